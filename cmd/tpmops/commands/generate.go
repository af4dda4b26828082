package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/pkg/lookup"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand(cfg *config.Config) *cobra.Command {
	var (
		conn   connectionFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a password generated by the server",
		Long: `Ask the server for a random password that follows its password policy.
Nothing is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := conn.connect(cmd, cfg)
			if err != nil {
				return err
			}

			password, err := lookup.New(client, cfg.Logger).Generate(cmd.Context())
			if err != nil {
				return dserrors.TPMError("password generation", err)
			}
			return writeValue(cmd.OutOrStdout(), password, asJSON)
		},
	}

	addConnectionFlags(cmd, &conn)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the password as a JSON string")

	return cmd
}
