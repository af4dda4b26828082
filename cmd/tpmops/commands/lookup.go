package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/internal/template"
	"github.com/systmms/tpmops/pkg/lookup"
)

type lookupFlags struct {
	all         bool
	field       string
	strictField bool
	id          int
	asJSON      bool
	format      string
}

func (f *lookupFlags) register(cmd *cobra.Command, defaultField string) {
	cmd.Flags().BoolVar(&f.all, "all", false, "Return every match instead of only the first")
	cmd.Flags().StringVar(&f.field, "field", "", fmt.Sprintf("Field to return, or %q for the whole entry (default %q)", lookup.FieldAll, defaultField))
	cmd.Flags().BoolVar(&f.strictField, "strict-field", false, "Fail when the field is not part of the entry")
	cmd.Flags().IntVar(&f.id, "id", 0, "Fetch the entry with this id instead of searching")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Always print JSON")
	cmd.Flags().StringVar(&f.format, "format", "", "Go template rendered once per result (implies --field all)")
}

func (f *lookupFlags) options(profile config.Profile) lookup.Options {
	field := f.field
	if f.format != "" && field == "" {
		field = lookup.FieldAll
	}
	return lookup.Options{
		All:         f.all,
		Field:       field,
		StrictField: f.strictField || profile.StrictField,
	}
}

// parseFormat compiles --format, if given.
func (f *lookupFlags) parseFormat() (*template.Template, error) {
	if f.format == "" {
		return nil, nil
	}
	tmpl, err := template.NewRenderer().Parse(f.format)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Invalid --format",
			Details:    err.Error(),
			Suggestion: "Use Go template syntax, e.g. --format '{{.Username}}:{{.Password}}'",
		}
	}
	return tmpl, nil
}

// writeFormatted renders tmpl once per value, one value per line.
func writeFormatted(w io.Writer, tmpl *template.Template, values []interface{}) error {
	for _, v := range values {
		out, err := tmpl.Execute(v)
		if err != nil {
			return dserrors.UserError{Message: "Cannot render --format", Details: err.Error()}
		}
		if _, err := fmt.Fprintln(w, out); err != nil {
			return err
		}
	}
	return nil
}

// validate checks that exactly one of queries or --id was given.
func (f *lookupFlags) validate(args []string) error {
	if f.id < 0 {
		return dserrors.UserError{
			Message:    "Invalid --id",
			Details:    fmt.Sprintf("id must be positive, got %d", f.id),
			Suggestion: "Pass the numeric id shown in the TPM web interface",
		}
	}
	if f.id > 0 && len(args) > 0 {
		return dserrors.UserError{
			Message:    "Cannot combine --id with search queries",
			Suggestion: "Use either 'lookup password <query>...' or 'lookup password --id <n>'",
		}
	}
	if f.format != "" && f.asJSON {
		return dserrors.UserError{
			Message:    "Cannot combine --format with --json",
			Suggestion: "Use the json template function instead, e.g. --format '{{json .}}'",
		}
	}
	if f.id == 0 && len(args) == 0 {
		return dserrors.UserError{
			Message:    "No query given",
			Suggestion: "Pass at least one search query, or --id <n>",
		}
	}
	return nil
}

// NewLookupCommand creates the lookup command
func NewLookupCommand(cfg *config.Config) *cobra.Command {
	var conn connectionFlags

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up passwords and projects",
		Long: `Search passwords or projects and print the requested field.

Each query is a TPM search string. Results are sorted by name; only the
first one is returned unless --all is given. A single string value is
printed as-is so it can be used in scripts:

  export DB_PASSWORD=$(tpmops lookup password 'name:db-prod')`,
	}

	addConnectionFlags(cmd, &conn)

	cmd.AddCommand(
		newLookupPasswordCommand(cfg, &conn),
		newLookupProjectCommand(cfg, &conn),
	)

	return cmd
}

func newLookupPasswordCommand(cfg *config.Config, conn *connectionFlags) *cobra.Command {
	var (
		flags    lookupFlags
		generate bool
	)

	cmd := &cobra.Command{
		Use:   "password [query...]",
		Short: "Look up passwords",
		Example: `  tpmops lookup password 'name:db-prod'
  tpmops lookup password 'tags:prd' --all --field username
  tpmops lookup password --id 42 --field all
  tpmops lookup password 'tags:prd' --all --format '{{.Name}}={{.Password}}'
  tpmops lookup password --generate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !generate {
				if err := flags.validate(args); err != nil {
					return err
				}
			}
			tmpl, err := flags.parseFormat()
			if err != nil {
				return err
			}

			client, profile, err := conn.connect(cmd, cfg)
			if err != nil {
				return err
			}
			l := lookup.New(client, cfg.Logger)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if generate {
				password, err := l.Generate(ctx)
				if err != nil {
					return dserrors.TPMError("password generation", err)
				}
				if tmpl != nil {
					return writeFormatted(out, tmpl, []interface{}{password})
				}
				return writeValue(out, password, flags.asJSON)
			}

			opts := flags.options(profile)
			if flags.id > 0 {
				value, err := l.PasswordByID(ctx, flags.id, opts)
				if err != nil {
					return dserrors.TPMError("password lookup", err)
				}
				return writeResults(out, []interface{}{value}, nil, 1, tmpl, flags, "password lookup")
			}

			values, err := l.Passwords(ctx, args, opts)
			return writeResults(out, values, err, len(args), tmpl, flags, "password lookup")
		},
	}

	flags.register(cmd, lookup.DefaultPasswordField)
	cmd.Flags().BoolVar(&generate, "generate", false, "Print a newly generated password instead of searching")

	return cmd
}

func newLookupProjectCommand(cfg *config.Config, conn *connectionFlags) *cobra.Command {
	var flags lookupFlags

	cmd := &cobra.Command{
		Use:   "project [query...]",
		Short: "Look up projects",
		Example: `  tpmops lookup project infra
  tpmops lookup project infra --field all --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(args); err != nil {
				return err
			}
			tmpl, err := flags.parseFormat()
			if err != nil {
				return err
			}

			client, profile, err := conn.connect(cmd, cfg)
			if err != nil {
				return err
			}
			l := lookup.New(client, cfg.Logger)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			opts := flags.options(profile)

			if flags.id > 0 {
				value, err := l.ProjectByID(ctx, flags.id, opts)
				if err != nil {
					return dserrors.TPMError("project lookup", err)
				}
				return writeResults(out, []interface{}{value}, nil, 1, tmpl, flags, "project lookup")
			}

			values, err := l.Projects(ctx, args, opts)
			return writeResults(out, values, err, len(args), tmpl, flags, "project lookup")
		},
	}

	flags.register(cmd, lookup.DefaultProjectField)

	return cmd
}

// writeResults prints what was found before reporting failed terms. A
// single term without --all prints its value unwrapped.
func writeResults(w io.Writer, values []interface{}, lookupErr error, terms int, tmpl *template.Template, flags lookupFlags, operation string) error {
	if len(values) > 0 || lookupErr == nil {
		var err error
		if tmpl != nil {
			err = writeFormatted(w, tmpl, values)
		} else if terms == 1 && !flags.all && len(values) == 1 {
			err = writeValue(w, values[0], flags.asJSON)
		} else {
			err = writeJSON(w, values)
		}
		if err != nil {
			return err
		}
	}
	if lookupErr != nil {
		return dserrors.TPMError(operation, lookupErr)
	}
	return nil
}
