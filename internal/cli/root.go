package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Thox33/sync-tool/internal/engine"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/provider/builtin"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // configuration path; empty means SYNCTOOL_CONFIG or ./synctool.cue

	// Registry overrides the provider registry (for testing).
	// If nil, the built-in providers are used.
	Registry *provider.Registry

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the synctool CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "synctool",
		Short: "synctool - keep records in sync between systems",
		Long: `Synchronize records between tracking systems.

Records are read from a source provider, mapped into a shared internal type,
and created or updated in a destination provider. Syncs, rules, types and
providers are declared in a CUE, JSON or YAML configuration file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "configuration file or directory (default $SYNCTOOL_CONFIG or ./synctool.cue)")

	cmd.AddCommand(NewConfigurationCommand(opts))
	cmd.AddCommand(NewDataCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setupLogging installs the default logger. Logs always go to w (stderr)
// so they never mix with command output.
func setupLogging(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func (o *RootOptions) registry() *provider.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return builtin.Registry()
}
