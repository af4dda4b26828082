package tpm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const resourcePassword = "password"

// PasswordInput carries the writable fields of a password. Empty strings
// mean "not given".
type PasswordInput struct {
	ProjectName string
	Name        string
	Tags        []string
	AccessInfo  string
	Username    string
	Email       string
	Password    string
	ExpiryDate  string // yyyy-mm-dd
	Notes       string
	// CustomData[i] is written to custom_data{i+1}.
	CustomData [CustomFieldCount]string
}

// passwordDocument is the request body for create and update.
type passwordDocument struct {
	ProjectID    int    `json:"project_id,omitempty"`
	Name         string `json:"name"`
	Tags         string `json:"tags"`
	AccessInfo   string `json:"access_info"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	Notes        string `json:"notes"`
	CustomData1  string `json:"custom_data1"`
	CustomData2  string `json:"custom_data2"`
	CustomData3  string `json:"custom_data3"`
	CustomData4  string `json:"custom_data4"`
	CustomData5  string `json:"custom_data5"`
	CustomData6  string `json:"custom_data6"`
	CustomData7  string `json:"custom_data7"`
	CustomData8  string `json:"custom_data8"`
	CustomData9  string `json:"custom_data9"`
	CustomData10 string `json:"custom_data10"`
}

func (d *passwordDocument) setCustomData(data [CustomFieldCount]string) {
	d.CustomData1, d.CustomData2, d.CustomData3 = data[0], data[1], data[2]
	d.CustomData4, d.CustomData5, d.CustomData6 = data[3], data[4], data[5]
	d.CustomData7, d.CustomData8, d.CustomData9 = data[6], data[7], data[8]
	d.CustomData10 = data[9]
}

// PasswordClient implements the password verbs.
type PasswordClient struct {
	t        *Transport
	projects *ProjectClient
	policy   Policy
}

// GetByID fetches the full password entry.
func (c *PasswordClient) GetByID(ctx context.Context, id int) (*Password, error) {
	key := strconv.Itoa(id)
	raw, err := c.t.Get(ctx, fmt.Sprintf("api/v4/passwords/%d.json", id))
	if err != nil {
		return nil, opError(OpGet, resourcePassword, key, err)
	}
	var p Password
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, opError(OpGet, resourcePassword, key, fmt.Errorf("failed to decode response: %w", err))
	}
	return &p, nil
}

// Find runs a search query. Results are partial entries in server order.
func (c *PasswordClient) Find(ctx context.Context, query string) ([]Password, error) {
	raw, err := c.t.Get(ctx, fmt.Sprintf("api/v4/passwords/search/%s.json", escapeQuery(query)))
	if err != nil {
		return nil, opError(OpFind, resourcePassword, query, err)
	}
	var results []Password
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, opError(OpFind, resourcePassword, query, fmt.Errorf("failed to decode response: %w", err))
	}
	return results, nil
}

// FindFirst returns the first search result, or def when there is none.
func (c *PasswordClient) FindFirst(ctx context.Context, query string, def *Password) (*Password, error) {
	results, err := c.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return def, nil
	}
	return &results[0], nil
}

// Generate asks the server for a new random password.
func (c *PasswordClient) Generate(ctx context.Context) (*GeneratedPassword, error) {
	raw, err := c.t.Get(ctx, "api/v4/generate_password.json")
	if err != nil {
		return nil, opError(OpGenerate, resourcePassword, "", err)
	}
	var g GeneratedPassword
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, opError(OpGenerate, resourcePassword, "", fmt.Errorf("failed to decode response: %w", err))
	}
	return &g, nil
}

// Create adds a password to the project found by in.ProjectName. A
// password is generated when none is given. The full entry is fetched
// back because the server only returns the new id.
func (c *PasswordClient) Create(ctx context.Context, in PasswordInput) (*Password, error) {
	fail := func(err error) (*Password, error) {
		return nil, opError(OpCreate, resourcePassword, in.Name, err)
	}

	project, err := c.projects.FindFirst(ctx, in.ProjectName, nil)
	if err != nil {
		return fail(err)
	}
	if project == nil {
		return fail(fmt.Errorf("%w: %q", ErrProjectNotFound, in.ProjectName))
	}

	password := in.Password
	if password == "" {
		g, err := c.Generate(ctx)
		if err != nil {
			return fail(err)
		}
		password = g.Password
	}

	doc := passwordDocument{
		ProjectID:  project.ID,
		Name:       in.Name,
		Tags:       JoinTags(in.Tags),
		AccessInfo: in.AccessInfo,
		Username:   in.Username,
		Email:      in.Email,
		Password:   password,
		ExpiryDate: in.ExpiryDate,
		Notes:      in.Notes,
	}
	doc.setCustomData(in.CustomData)

	raw, err := c.t.Post(ctx, "api/v4/passwords.json", doc)
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

// Update rewrites password id. Fields left empty in keep their current
// value, tags are merged with the existing ones, and a missing password is
// regenerated unless Policy.PreservePasswordOnUpdate is set.
func (c *PasswordClient) Update(ctx context.Context, id int, in PasswordInput) (*Password, error) {
	key := strconv.Itoa(id)
	fail := func(err error) (*Password, error) {
		return nil, opError(OpUpdate, resourcePassword, key, err)
	}

	existing, err := c.GetByID(ctx, id)
	if err != nil {
		return fail(err)
	}

	password := in.Password
	if password == "" {
		if c.policy.PreservePasswordOnUpdate {
			password = existing.Password
		} else {
			g, err := c.Generate(ctx)
			if err != nil {
				return fail(err)
			}
			password = g.Password
		}
	}

	doc := passwordDocument{
		Name:       coalesce(in.Name, existing.Name),
		Tags:       JoinTags(existing.TagList(), in.Tags),
		AccessInfo: coalesce(in.AccessInfo, existing.AccessInfo),
		Username:   coalesce(in.Username, existing.Username),
		Email:      coalesce(in.Email, existing.Email),
		Password:   password,
		ExpiryDate: coalesce(in.ExpiryDate, existing.ExpiryDate),
		Notes:      coalesce(in.Notes, existing.Notes),
	}
	var custom [CustomFieldCount]string
	for i := range custom {
		custom[i] = coalesce(in.CustomData[i], existing.CustomData(i+1))
	}
	doc.setCustomData(custom)

	if _, err := c.t.Put(ctx, fmt.Sprintf("api/v4/passwords/%d.json", id), doc); err != nil {
		return fail(err)
	}

	updated, err := c.GetByID(ctx, id)
	if err != nil {
		return fail(err)
	}
	return updated, nil
}

// Delete removes password id.
func (c *PasswordClient) Delete(ctx context.Context, id int) (string, error) {
	if _, err := c.t.Delete(ctx, fmt.Sprintf("api/v4/passwords/%d.json", id)); err != nil {
		return "", opError(OpDelete, resourcePassword, strconv.Itoa(id), err)
	}
	return "Successfully deleted password", nil
}

func decodeID(raw json.RawMessage) (int, error) {
	var r struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if r.ID == 0 {
		return 0, fmt.Errorf("response carries no id")
	}
	return r.ID, nil
}
