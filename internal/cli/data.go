package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thox33/sync-tool/internal/engine"
)

// DataGetOptions holds flags for the data get command.
type DataGetOptions struct {
	*RootOptions
	OnlyCount bool
	Raw       bool
}

// DataResult is the payload of data get.
type DataResult struct {
	Rule    string `json:"rule"`
	Count   int    `json:"count"`
	Records []any  `json:"records,omitempty"`
}

// NewDataCommand creates the data command group.
func NewDataCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect provider data",
	}
	cmd.AddCommand(NewDataGetCommand(rootOpts))
	return cmd
}

// NewDataGetCommand creates the data get command.
func NewDataGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DataGetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <sync> <rule>",
		Short: "Show the source records of a rule",
		Long: `Read the source records of a rule without syncing them.

Records are shown in their internal form: mapped, transformed and validated
exactly as a sync run would see them. Use --raw to see them as the source
provider returns them.

Example:
  synctool data get requirements default --only-count
  synctool data get requirements default --raw --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDataGet(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.OnlyCount, "only-count", false, "only show the number of records")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "show records as returned by the source provider")

	return cmd
}

func runDataGet(opts *DataGetOptions, syncName, ruleName string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := setupLogging(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := loadConfiguration(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	rule, err := findRule(cfg, formatter, syncName, ruleName)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	ctrl := engine.NewController(cfg, rule,
		engine.WithRegistry(opts.registry()),
		engine.WithLogger(logger))
	if err := ctrl.Init(ctx); err != nil {
		return outputRunError(formatter, err)
	}
	// Teardown failures are logged by the controller.
	defer func() { _ = ctrl.Teardown(context.WithoutCancel(ctx)) }()

	result := DataResult{Rule: rule.ID()}
	if opts.Raw {
		raws, err := ctrl.SourceData(ctx)
		if err != nil {
			return outputRunError(formatter, err)
		}
		for _, r := range raws {
			result.Records = append(result.Records, r)
		}
	} else {
		recs, err := ctrl.SourceRecords(ctx)
		if err != nil {
			return outputRunError(formatter, err)
		}
		for _, r := range recs {
			result.Records = append(result.Records, r)
		}
	}
	result.Count = len(result.Records)
	if opts.OnlyCount {
		result.Records = nil
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, r := range result.Records {
		line, err := json.Marshal(r)
		if err != nil {
			return WrapExitError(ExitFailure, "encoding record", err)
		}
		fmt.Fprintln(formatter.Writer, string(line))
	}
	fmt.Fprintf(formatter.Writer, "%d record(s) for rule %s\n", result.Count, result.Rule)
	return nil
}
