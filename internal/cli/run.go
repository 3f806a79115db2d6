package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thox33/sync-tool/internal/engine"
)

// SyncRunOptions holds flags for the sync run command.
type SyncRunOptions struct {
	*RootOptions
	DryRun      bool
	Workers     int
	MetricsFile string
}

// SyncResult is the payload of sync run.
type SyncResult struct {
	Reports []*engine.Report `json:"reports"`
}

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run syncs",
	}
	cmd.AddCommand(NewSyncRunCommand(rootOpts))
	return cmd
}

// NewSyncRunCommand creates the sync run command.
func NewSyncRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncRunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <sync> [rule]",
		Short: "Run a sync rule once",
		Long: `Run one rule of a sync, or all of its rules in declaration order.

Every source record is matched with its counterpart in the destination:
missing counterparts are created and linked, linked ones are fetched,
compared and updated when they differ. A failing record is reported and
never stops the others. Rules run one after another; the first rule that
aborts stops the remaining ones.

Example:
  synctool sync run requirements
  synctool sync run requirements default --dry-run
  synctool sync run requirements default --workers 4 --metrics-file /var/lib/node_exporter/synctool.prom`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "read everything, write nothing")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 1, "number of records stepped concurrently")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")

	return cmd
}

func runSync(opts *SyncRunOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := setupLogging(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --workers %d: must be at least 1", opts.Workers))
	}

	cfg, err := loadConfiguration(opts.RootOptions, formatter)
	if err != nil {
		return err
	}

	syncName := args[0]
	var ruleNames []string
	if len(args) == 2 {
		ruleNames = []string{args[1]}
	} else if s, ok := cfg.Syncs[syncName]; ok {
		ruleNames = s.RuleNames()
	} else {
		_, err := findRule(cfg, formatter, syncName, "")
		return err
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, finishing in-flight steps", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var metrics *engine.Metrics
	if opts.MetricsFile != "" {
		metrics = engine.NewMetrics()
	}

	var (
		reports []*engine.Report
		runErr  error
	)
	for _, ruleName := range ruleNames {
		rule, err := findRule(cfg, formatter, syncName, ruleName)
		if err != nil {
			return err
		}
		ctrlOpts := []engine.Option{
			engine.WithRegistry(opts.registry()),
			engine.WithLogger(logger),
			engine.WithWorkers(opts.Workers),
			engine.WithMetrics(metrics),
		}
		if opts.RunIDs != nil {
			ctrlOpts = append(ctrlOpts, engine.WithRunIDGenerator(opts.RunIDs))
		}
		ctrl := engine.NewController(cfg, rule, ctrlOpts...)

		formatter.VerboseLog("Running rule %s", rule.ID())
		if err := ctrl.Init(ctx); err != nil {
			runErr = err
			break
		}
		report, err := ctrl.Sync(ctx, opts.DryRun)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	if metrics != nil {
		if err := metrics.WriteToTextfile(opts.MetricsFile); err != nil {
			logger.Error("writing metrics failed", "path", opts.MetricsFile, "error", err)
		}
	}

	if runErr != nil {
		return outputSyncFailure(formatter, reports, runErr)
	}
	if err := outputReports(formatter, reports); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		failed += r.Failed()
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("sync finished with %d failed item(s)", failed))
	}
	return nil
}

func outputReports(formatter *OutputFormatter, reports []*engine.Report) error {
	if formatter.Format == "json" {
		runID := ""
		if len(reports) == 1 {
			runID = reports[0].RunID
		}
		return formatter.SuccessWithRun(runID, SyncResult{Reports: reports})
	}
	for _, r := range reports {
		mark := okMark
		if r.Failed() > 0 {
			mark = warnMark
		}
		fmt.Fprintf(formatter.Writer, "%s ", mark)
		if err := r.WriteText(formatter.Writer); err != nil {
			return err
		}
	}
	return nil
}

// outputSyncFailure reports an aborted run together with the reports
// collected so far.
func outputSyncFailure(formatter *OutputFormatter, reports []*engine.Report, err error) error {
	code := errorCode(err)

	if formatter.json() {
		if encErr := formatter.encode(CLIResponse{
			Status: "error",
			Data:   SyncResult{Reports: reports},
			Error:  &CLIError{Code: code, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
		return WrapExitError(ExitFailure, code, err)
	}

	for _, r := range reports {
		fmt.Fprintf(formatter.Writer, "%s ", failMark)
		if wErr := r.WriteText(formatter.Writer); wErr != nil {
			return wErr
		}
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, code, err)
}
