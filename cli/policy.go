package cli

import (
	"github.com/spf13/cobra"
	"github.com/warp/finance-gate/factory"
	"gopkg.in/yaml.v3"
)

// NewPolicyCommand creates the policy command group.
func NewPolicyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect validation thresholds",
	}
	cmd.AddCommand(newPolicyShowCommand(rootOpts))
	cmd.AddCommand(newPolicyCheckCommand(rootOpts))
	return cmd
}

func newPolicyShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective policy",
		Long: `Print the thresholds the pipelines would be built with: the defaults,
overlaid with --policy when given. Text format prints YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy(rootOpts.Policy)
			if err != nil {
				return err
			}
			doc := factory.NewPolicyFactory().ToJSON(policy)

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if out.Format == "json" {
				return out.JSON(doc)
			}
			data, err := yaml.Marshal(doc)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to encode policy", err)
			}
			out.Printf("%s", data)
			return nil
		},
	}
}

func newPolicyCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <policy-file>",
		Short: "Validate a policy document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if _, err := factory.NewPolicyFactory().LoadFile(args[0]); err != nil {
				if out.Format == "json" {
					_ = out.JSON(map[string]any{"file": args[0], "valid": false, "error": err.Error()})
				}
				return WrapExitError(ExitFailure, "invalid policy", err)
			}
			if out.Format == "json" {
				return out.JSON(map[string]any{"file": args[0], "valid": true})
			}
			out.Printf("%s: ok\n", args[0])
			return nil
		},
	}
}
