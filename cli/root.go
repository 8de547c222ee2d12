// Package cli implements the finance-gate command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/warp/finance-gate/factory"
	"github.com/warp/finance-gate/finance"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Policy  string // policy file; empty means defaults
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "finance-gate",
		Short: "Pre-commit validation for school finance records",
		Long: `finance-gate decides whether a proposed write to a finance collection
(expenses, payments, fee assignments, salary runs, bank transactions,
transfers and the records they reference) may be committed.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Policy, "policy", "", "policy file (.json, .yaml or .yml)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPolicyCommand(opts))

	return cmd
}

// loadPolicy returns the defaults, or the file overlaid on them.
func loadPolicy(path string) (finance.Policy, error) {
	if path == "" {
		return finance.DefaultPolicy(), nil
	}
	p, err := factory.NewPolicyFactory().LoadFile(path)
	if err != nil {
		return finance.Policy{}, WrapExitError(ExitCommandError, "failed to load policy", err)
	}
	return p, nil
}
