package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/tpmops/internal/config"
	"github.com/systmms/tpmops/internal/schema"
	"github.com/systmms/tpmops/pkg/module"
	"github.com/systmms/tpmops/pkg/tpm"
)

// NewProjectCommand creates the project state command
func NewProjectCommand(cfg *config.Config) *cobra.Command {
	var (
		conn connectionFlags
		args moduleArgs
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, update or delete a project",
		Long: `Bring a project to the requested state and print the result as JSON.

Projects are created under the root project unless --parent-id is given.`,
		Example: `  tpmops project --name infra --tags ops
  tpmops project --state absent --name infra`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModule(cmd, cfg, &conn, &args, schema.Project, buildProjectResource)
		},
	}

	addConnectionFlags(cmd, &conn)
	addPolicyFlags(cmd, &conn)
	args.register(cmd)

	cmd.Flags().String("name", "", "Project name")
	cmd.Flags().Int("parent-id", 0, "Id of the parent project; 0 is the root")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	cmd.Flags().String("notes", "", "Notes")

	args.set = func(cmd *cobra.Command, doc map[string]interface{}) error {
		setString(cmd, doc, "name", "name")
		setString(cmd, doc, "notes", "notes")
		setTags(cmd, doc, "tags")
		if cmd.Flags().Changed("parent-id") {
			parentID, _ := cmd.Flags().GetInt("parent-id")
			doc["parent_id"] = parentID
		}
		return nil
	}

	return cmd
}

func buildProjectResource(client *tpm.Client, doc map[string]interface{}) (module.State, module.Resource, error) {
	var params module.ProjectParams
	if err := module.DecodeParams(doc, &params); err != nil {
		return "", nil, err
	}
	return params.State, module.Projects(client.Projects(), params.Input()), nil
}
