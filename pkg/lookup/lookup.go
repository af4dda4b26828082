package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/systmms/tpmops/internal/logging"
	"github.com/systmms/tpmops/pkg/tpm"
)

// PasswordSource is the subset of tpm.PasswordClient used by lookups.
type PasswordSource interface {
	Find(ctx context.Context, query string) ([]tpm.Password, error)
	GetByID(ctx context.Context, id int) (*tpm.Password, error)
	Generate(ctx context.Context) (*tpm.GeneratedPassword, error)
}

// ProjectSource is the subset of tpm.ProjectClient used by lookups.
type ProjectSource interface {
	Find(ctx context.Context, query string) ([]tpm.Project, error)
	GetByID(ctx context.Context, id int) (*tpm.Project, error)
}

// Lookup runs read-only queries against one TPM instance.
type Lookup struct {
	passwords PasswordSource
	projects  ProjectSource
	logger    *logging.Logger
}

// New returns a lookup backed by a client.
func New(c *tpm.Client, logger *logging.Logger) *Lookup {
	return NewWithSources(c.Passwords(), c.Projects(), logger)
}

// NewWithSources returns a lookup backed by arbitrary sources.
func NewWithSources(passwords PasswordSource, projects ProjectSource, logger *logging.Logger) *Lookup {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Lookup{passwords: passwords, projects: projects, logger: logger}
}

// Passwords looks up every term. Search results are partial, so each hit
// is fetched in full before selection. Results of all terms are
// concatenated in term order; failed terms are reported together.
func (l *Lookup) Passwords(ctx context.Context, terms []string, opts Options) ([]interface{}, error) {
	return eachTerm(terms, func(query string) ([]interface{}, error) {
		l.logger.Debug("Searching matching passwords for query %q", query)

		hits, err := l.passwords.Find(ctx, query)
		if err != nil && !notFound(err) {
			return nil, err
		}
		full := make([]tpm.Password, 0, len(hits))
		for _, hit := range hits {
			p, err := l.passwords.GetByID(ctx, hit.ID)
			if err != nil {
				return nil, err
			}
			full = append(full, *p)
		}

		l.logger.Debug("Found %d results for query %q", len(full), query)
		return Select(query, full, opts.field(DefaultPasswordField), opts)
	})
}

// PasswordByID fetches one password and projects it.
func (l *Lookup) PasswordByID(ctx context.Context, id int, opts Options) (interface{}, error) {
	p, err := l.passwords.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Project(*p, opts.field(DefaultPasswordField), opts.StrictField)
}

// Projects looks up every term. Project search results are complete.
func (l *Lookup) Projects(ctx context.Context, terms []string, opts Options) ([]interface{}, error) {
	return eachTerm(terms, func(query string) ([]interface{}, error) {
		l.logger.Debug("Searching matching projects for query %q", query)

		hits, err := l.projects.Find(ctx, query)
		if err != nil && !notFound(err) {
			return nil, err
		}

		l.logger.Debug("Found %d results for query %q", len(hits), query)
		return Select(query, hits, opts.field(DefaultProjectField), opts)
	})
}

// ProjectByID fetches one project and projects it.
func (l *Lookup) ProjectByID(ctx context.Context, id int, opts Options) (interface{}, error) {
	p, err := l.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Project(*p, opts.field(DefaultProjectField), opts.StrictField)
}

// Generate returns a new server-generated password.
func (l *Lookup) Generate(ctx context.Context) (string, error) {
	g, err := l.passwords.Generate(ctx)
	if err != nil {
		return "", err
	}
	return g.Password, nil
}

func eachTerm(terms []string, fn func(query string) ([]interface{}, error)) ([]interface{}, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("at least one query is required")
	}

	var result *multierror.Error
	out := []interface{}{}
	for _, query := range terms {
		values, err := fn(query)
		var noMatch *NoMatchError
		switch {
		case errors.As(err, &noMatch):
			result = multierror.Append(result, err)
			continue
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("query %q: %w", query, err))
			continue
		}
		out = append(out, values...)
	}
	return out, result.ErrorOrNil()
}

// notFound reports a search the server answered with 404, which means no
// entry matched.
func notFound(err error) bool {
	return tpm.IsOp(err, tpm.OpFind) && tpm.StatusCode(err) == http.StatusNotFound
}
