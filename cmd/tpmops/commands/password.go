package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/internal/schema"
	"github.com/systmms/tpmops/pkg/module"
	"github.com/systmms/tpmops/pkg/tpm"
)

// passwordFlags maps entry flags to module argument keys. The entry's
// username and password use prefixed flags because --username and
// --password authenticate the caller.
var passwordFlags = []struct{ flag, key, usage string }{
	{"name", "name", "Password entry name"},
	{"project-name", "project_name", "Name of the project the entry belongs to (required for present)"},
	{"access-info", "access_info", "Access information, e.g. a URL"},
	{"entry-username", "username", "Username stored in the entry"},
	{"email", "email", "Email stored in the entry"},
	{"entry-password", "password", "Password stored in the entry; generated when omitted"},
	{"expiry-date", "expiry_date", "Expiry date as yyyy-mm-dd"},
	{"notes", "notes", "Notes"},
}

// NewPasswordCommand creates the password state command
func NewPasswordCommand(cfg *config.Config) *cobra.Command {
	var (
		conn       connectionFlags
		args       moduleArgs
		customData map[string]string
	)

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Create, update or delete a password entry",
		Long: `Bring a password entry to the requested state and print the result as JSON.

  present  create the entry unless one with the same name exists
  absent   delete the entry with this name
  update   update the entry with this name; fields left out keep their
           current value, tags are merged and a new password is generated
           unless one is given (or --preserve-password is set)`,
		Example: `  tpmops password --name db-prod --project-name infra --tags prd,db
  tpmops password --state update --name db-prod --custom-data 1=5432
  tpmops password --params task.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModule(cmd, cfg, &conn, &args, schema.Password, buildPasswordResource)
		},
	}

	addConnectionFlags(cmd, &conn)
	addPolicyFlags(cmd, &conn)
	args.register(cmd)

	for _, f := range passwordFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	cmd.Flags().StringToStringVar(&customData, "custom-data", nil, fmt.Sprintf("Custom field as N=value with N from 1 to %d; repeatable", tpm.CustomFieldCount))

	args.set = func(cmd *cobra.Command, doc map[string]interface{}) error {
		for _, f := range passwordFlags {
			setString(cmd, doc, f.flag, f.key)
		}
		setTags(cmd, doc, "tags")
		return setCustomData(doc, customData)
	}

	return cmd
}

func setCustomData(doc map[string]interface{}, values map[string]string) error {
	for n, value := range values {
		i, err := strconv.Atoi(n)
		if err != nil || i < 1 || i > tpm.CustomFieldCount {
			return dserrors.UserError{
				Message:    "Invalid --custom-data field",
				Details:    fmt.Sprintf("%q is not a custom field number", n),
				Suggestion: fmt.Sprintf("Use --custom-data N=value with N from 1 to %d", tpm.CustomFieldCount),
			}
		}
		doc[fmt.Sprintf("custom_data%d", i)] = value
	}
	return nil
}

func buildPasswordResource(client *tpm.Client, doc map[string]interface{}) (module.State, module.Resource, error) {
	var params module.PasswordParams
	if err := module.DecodeParams(doc, &params); err != nil {
		return "", nil, err
	}
	return params.State, module.Passwords(client.Passwords(), params.Input()), nil
}
