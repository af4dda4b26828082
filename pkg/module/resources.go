package module

import (
	"context"

	"github.com/systmms/tpmops/pkg/tpm"
)

// PasswordClient is the subset of tpm.PasswordClient the password resource
// uses.
type PasswordClient interface {
	Find(ctx context.Context, query string) ([]tpm.Password, error)
	Create(ctx context.Context, in tpm.PasswordInput) (*tpm.Password, error)
	Update(ctx context.Context, id int, in tpm.PasswordInput) (*tpm.Password, error)
	Delete(ctx context.Context, id int) (string, error)
}

// ProjectClient is the subset of tpm.ProjectClient the project resource
// uses.
type ProjectClient interface {
	Find(ctx context.Context, query string) ([]tpm.Project, error)
	Create(ctx context.Context, in tpm.ProjectInput) (*tpm.Project, error)
	Update(ctx context.Context, id int, in tpm.ProjectInput) (*tpm.Project, error)
	Delete(ctx context.Context, id int) (string, error)
}

// PasswordResource binds a password input to a client.
type PasswordResource struct {
	client PasswordClient
	input  tpm.PasswordInput
}

// Passwords returns the password resource for in.
func Passwords(client PasswordClient, in tpm.PasswordInput) *PasswordResource {
	return &PasswordResource{client: client, input: in}
}

func (r *PasswordResource) Kind() string { return "password" }
func (r *PasswordResource) Name() string { return r.input.Name }

func (r *PasswordResource) Find(ctx context.Context, name string) ([]Entry, error) {
	found, err := r.client.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(found))
	for i := range found {
		entries[i] = found[i]
	}
	return entries, nil
}

func (r *PasswordResource) Create(ctx context.Context) (Entry, error) {
	p, err := r.client.Create(ctx, r.input)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

func (r *PasswordResource) Update(ctx context.Context, id int) (Entry, error) {
	p, err := r.client.Update(ctx, id, r.input)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

func (r *PasswordResource) Delete(ctx context.Context, id int) (string, error) {
	return r.client.Delete(ctx, id)
}

// ProjectResource binds a project input to a client.
type ProjectResource struct {
	client ProjectClient
	input  tpm.ProjectInput
}

// Projects returns the project resource for in.
func Projects(client ProjectClient, in tpm.ProjectInput) *ProjectResource {
	return &ProjectResource{client: client, input: in}
}

func (r *ProjectResource) Kind() string { return "project" }
func (r *ProjectResource) Name() string { return r.input.Name }

func (r *ProjectResource) Find(ctx context.Context, name string) ([]Entry, error) {
	found, err := r.client.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(found))
	for i := range found {
		entries[i] = found[i]
	}
	return entries, nil
}

func (r *ProjectResource) Create(ctx context.Context) (Entry, error) {
	p, err := r.client.Create(ctx, r.input)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

func (r *ProjectResource) Update(ctx context.Context, id int) (Entry, error) {
	p, err := r.client.Update(ctx, id, r.input)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

func (r *ProjectResource) Delete(ctx context.Context, id int) (string, error) {
	return r.client.Delete(ctx, id)
}
