package tpm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const resourceProject = "project"

// ProjectInput carries the writable fields of a project.
type ProjectInput struct {
	Name     string
	ParentID int // 0 for a root project
	Tags     []string
	Notes    string
}

type projectCreateDocument struct {
	Name     string `json:"name"`
	ParentID int    `json:"parent_id"`
	Tags     string `json:"tags"`
	Notes    string `json:"notes"`
}

type projectUpdateDocument struct {
	Name  string `json:"name"`
	Tags  string `json:"tags"`
	Notes string `json:"notes"`
}

// ProjectClient implements the project verbs.
type ProjectClient struct {
	t      *Transport
	policy Policy
}

// GetByID fetches the full project entry.
func (c *ProjectClient) GetByID(ctx context.Context, id int) (*Project, error) {
	key := strconv.Itoa(id)
	raw, err := c.t.Get(ctx, fmt.Sprintf("api/v4/projects/%d.json", id))
	if err != nil {
		return nil, opError(OpGet, resourceProject, key, err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, opError(OpGet, resourceProject, key, fmt.Errorf("failed to decode response: %w", err))
	}
	return &p, nil
}

// Find runs a project search query.
func (c *ProjectClient) Find(ctx context.Context, query string) ([]Project, error) {
	raw, err := c.t.Get(ctx, fmt.Sprintf("api/v4/projects/search/%s.json", escapeQuery(query)))
	if err != nil {
		return nil, opError(OpFind, resourceProject, query, err)
	}
	var results []Project
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, opError(OpFind, resourceProject, query, fmt.Errorf("failed to decode response: %w", err))
	}
	return results, nil
}

// FindFirst returns the first search result, or def when there is none.
func (c *ProjectClient) FindFirst(ctx context.Context, query string, def *Project) (*Project, error) {
	results, err := c.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return def, nil
	}
	return &results[0], nil
}

// Create adds a project and returns the stored entry.
func (c *ProjectClient) Create(ctx context.Context, in ProjectInput) (*Project, error) {
	fail := func(err error) (*Project, error) {
		return nil, opError(OpCreate, resourceProject, in.Name, err)
	}

	raw, err := c.t.Post(ctx, "api/v4/projects.json", projectCreateDocument{
		Name:     in.Name,
		ParentID: in.ParentID,
		Tags:     JoinTags(in.Tags),
		Notes:    in.Notes,
	})
	if err != nil {
		return fail(err)
	}
	id, err := decodeID(raw)
	if err != nil {
		return fail(err)
	}

	created, err := c.GetByID(ctx, id)
	if err != nil {
		return fail(err)
	}
	return created, nil
}

// Update rewrites project id, merging tags and keeping notes and name when
// not given. Failures carry OpCreate unless Policy.StrictUpdateErrors is set.
func (c *ProjectClient) Update(ctx context.Context, id int, in ProjectInput) (*Project, error) {
	op := OpCreate
	if c.policy.StrictUpdateErrors {
		op = OpUpdate
	}
	key := strconv.Itoa(id)
	fail := func(err error) (*Project, error) {
		return nil, opError(op, resourceProject, key, err)
	}

	existing, err := c.GetByID(ctx, id)
	if err != nil {
		return fail(err)
	}

	raw, err := c.t.Put(ctx, fmt.Sprintf("api/v4/projects/%d.json", id), projectUpdateDocument{
		Name:  coalesce(in.Name, existing.Name),
		Tags:  JoinTags(existing.TagList(), in.Tags),
		Notes: coalesce(in.Notes, existing.Notes),
	})
	if err != nil {
		return fail(err)
	}

	// The server answers 204 without a body; use its id only if it sent one.
	if returned, err := decodeID(raw); err == nil {
		id = returned
	}

	updated, err := c.GetByID(ctx, id)
	if err != nil {
		return fail(err)
	}
	return updated, nil
}

// Delete removes project id.
func (c *ProjectClient) Delete(ctx context.Context, id int) (string, error) {
	if _, err := c.t.Delete(ctx, fmt.Sprintf("api/v4/projects/%d.json", id)); err != nil {
		return "", opError(OpDelete, resourceProject, strconv.Itoa(id), err)
	}
	return "Successfully deleted project", nil
}
