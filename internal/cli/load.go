package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Thox33/sync-tool/internal/config"
)

// ConfigIssue is one configuration problem in command output.
type ConfigIssue struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfiguration loads the configuration selected by --config. A file
// that cannot be read is a command error; a file that does not describe a
// valid configuration is a validation failure.
func loadConfiguration(opts *RootOptions, f *OutputFormatter) (*config.Configuration, error) {
	path := config.ResolvePath(opts.Config)
	f.VerboseLog("Loading configuration from %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		exit := ExitFailure
		if config.Code(err) == config.ErrCodeLoad {
			exit = ExitCommandError
		}
		return nil, outputConfigErrors(f, err, exit)
	}
	return cfg, nil
}

// findRule looks up a rule and reports unknown names as command errors.
func findRule(cfg *config.Configuration, f *OutputFormatter, syncName, ruleName string) (*config.Rule, error) {
	rule, err := cfg.Rule(syncName, ruleName)
	if err != nil {
		_ = f.Error(config.Code(err), err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, config.Code(err), err)
	}
	return rule, nil
}

func configIssues(err error) []ConfigIssue {
	var issues []ConfigIssue
	for _, e := range multierr.Errors(err) {
		issue := ConfigIssue{Code: errorCode(e), Message: e.Error()}
		var ce *config.Error
		if errors.As(e, &ce) {
			issue.Path = ce.Path
			issue.Message = ce.Message
			if ce.Pos.IsValid() {
				issue.File = ce.Pos.Filename()
				issue.Line = ce.Pos.Line()
			}
		}
		issues = append(issues, issue)
	}
	return issues
}

// outputConfigErrors prints every configuration problem held by err.
func outputConfigErrors(f *OutputFormatter, err error, exit int) error {
	issues := configIssues(err)
	if f.json() {
		_ = f.Error(issues[0].Code, issues[0].Message, issues)
	} else {
		fmt.Fprintf(f.Writer, "%s Configuration invalid\n\n", failMark)
		for _, is := range issues {
			if is.Line > 0 {
				fmt.Fprintf(f.Writer, "%s:%d\n", is.File, is.Line)
			}
			if is.Path != "" {
				fmt.Fprintf(f.Writer, "  %s: %s: %s\n\n", is.Code, is.Path, is.Message)
			} else {
				fmt.Fprintf(f.Writer, "  %s: %s\n\n", is.Code, is.Message)
			}
		}
	}
	return WrapExitError(exit, fmt.Sprintf("configuration invalid with %d error(s)", len(issues)), err)
}

// outputRunError prints a run-level failure with the engine's error code.
func outputRunError(f *OutputFormatter, err error) error {
	code := errorCode(err)
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, code, err)
}
