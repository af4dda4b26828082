package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/tpmops/internal/config"
	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/internal/metrics"
	"github.com/systmms/tpmops/internal/schema"
	"github.com/systmms/tpmops/pkg/module"
	"github.com/systmms/tpmops/pkg/tpm"
)

// moduleArgs collects the arguments of a state command: the --params file
// first, then every flag that was set on the command line.
type moduleArgs struct {
	paramsFile string
	state      string
	set        func(cmd *cobra.Command, doc map[string]interface{}) error
}

func (a *moduleArgs) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.paramsFile, "params", "", "YAML or JSON file with module arguments; flags override it")
	cmd.Flags().StringVar(&a.state, "state", string(module.StatePresent), "Desired state: present, absent or update")
}

func (a *moduleArgs) document(cmd *cobra.Command) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	if a.paramsFile != "" {
		var err error
		if doc, err = readParamsFile(a.paramsFile); err != nil {
			return nil, err
		}
	}

	if _, ok := doc["state"]; !ok || cmd.Flags().Changed("state") {
		doc["state"] = a.state
	}
	if a.set != nil {
		if err := a.set(cmd, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// resourceBuilder decodes a validated document into a resource.
type resourceBuilder func(client *tpm.Client, doc map[string]interface{}) (module.State, module.Resource, error)

// runModule validates the arguments, brings the entry to the requested
// state and prints the result.
func runModule(cmd *cobra.Command, cfg *config.Config, conn *connectionFlags, args *moduleArgs, name schema.Name, build resourceBuilder) error {
	doc, err := args.document(cmd)
	if err != nil {
		return err
	}

	if err := schema.Validate(name, doc); err != nil {
		var invalid *schema.ValidationError
		if errors.As(err, &invalid) {
			return dserrors.UserError{
				Message:    fmt.Sprintf("Invalid %s arguments", name),
				Details:    invalid.Error(),
				Suggestion: fmt.Sprintf("Run 'tpmops schema %s' to see the accepted arguments", name),
				Err:        err,
			}
		}
		return err
	}

	client, _, err := conn.connect(cmd, cfg)
	if err != nil {
		return err
	}

	state, resource, err := build(client, doc)
	if err != nil {
		return err
	}

	result, runErr := module.New(cfg.Logger).Run(cmd.Context(), state, resource)
	metrics.Default().ObserveResult(resource.Kind(), string(state), outcome(result))

	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if runErr != nil {
		return dserrors.TPMError(fmt.Sprintf("%s %s", resource.Kind(), state), runErr)
	}
	return nil
}

func outcome(r module.Result) string {
	switch {
	case r.Failed:
		return metrics.OutcomeFailed
	case r.Changed:
		return metrics.OutcomeChanged
	}
	return metrics.OutcomeUnchanged
}

// setString copies a string flag into doc when it was given.
func setString(cmd *cobra.Command, doc map[string]interface{}, flag, key string) {
	if !cmd.Flags().Changed(flag) {
		return
	}
	value, _ := cmd.Flags().GetString(flag)
	doc[key] = value
}

// setTags copies a string slice flag into doc when it was given.
func setTags(cmd *cobra.Command, doc map[string]interface{}, flag string) {
	if !cmd.Flags().Changed(flag) {
		return
	}
	tags, _ := cmd.Flags().GetStringSlice(flag)
	items := make([]interface{}, 0, len(tags))
	for _, tag := range tags {
		items = append(items, tag)
	}
	doc["tags"] = items
}
