package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Syncs  []SyncSummary `json:"syncs,omitempty"`
	Errors []ConfigIssue `json:"errors,omitempty"`
}

// SyncSummary lists the rules of one sync.
type SyncSummary struct {
	Name  string   `json:"name"`
	Rules []string `json:"rules"`
}

// NewConfigurationCommand creates the configuration command group.
func NewConfigurationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configuration",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(NewValidateCommand(rootOpts))
	return cmd
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Validate the configuration without syncing anything.

Checks the file against the configuration schema, compiles types, mappings,
rules and transformers, then initializes every provider and lets it check
the rule endpoints it serves. All problems are reported together.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	setupLogging(opts, cmd.ErrOrStderr())

	cfg, err := loadConfiguration(opts, formatter)
	if err != nil {
		return err
	}

	if err := cfg.Validate(commandContext(cmd), opts.registry()); err != nil {
		return outputConfigErrors(formatter, err, ExitFailure)
	}

	result := ValidationResult{Valid: true}
	rules := 0
	for _, name := range cfg.SyncNames() {
		names := cfg.Syncs[name].RuleNames()
		result.Syncs = append(result.Syncs, SyncSummary{Name: name, Rules: names})
		rules += len(names)
		formatter.VerboseLog("sync %s: rules %v", name, names)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s Configuration valid: %d sync(s), %d rule(s)\n", okMark, len(result.Syncs), rules)
	return nil
}
