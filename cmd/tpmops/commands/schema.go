package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/tpmops/internal/config"
	"github.com/systmms/tpmops/internal/schema"
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [password|project]",
		Short: "Print the JSON schema of a module's arguments",
		Long: `Print the JSON schema that 'tpmops password' or 'tpmops project' arguments,
including --params files, are validated against.`,
		ValidArgs: []string{string(schema.Password), string(schema.Project)},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Source(schema.Name(args[0]))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	return cmd
}
