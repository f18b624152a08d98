package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/millsync/internal/config"
	"github.com/roach88/millsync/internal/extract"
	"github.com/roach88/millsync/internal/gateway"
	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/journal"
	"github.com/roach88/millsync/internal/reconcile"
	"github.com/roach88/millsync/internal/report"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Source  string
	Limit   int
	Journal string
	XLSX    string
	Strict  bool
	DryRun  bool

	// Gateway replaces the HTTP client (for testing).
	Gateway reconcile.Gateway

	// IDs overrides the run id generator (for testing).
	IDs reconcile.IDGenerator

	// Now overrides the run clock (for testing).
	Now func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile equipment logs with the order ledger",
		Long: `Run one reconciliation batch.

The order ledger is listed once, then every enabled source is scanned in
order (dwx, odlog, xml) and each job is created, updated, skipped or held.
A failed ledger listing degrades to an empty ledger. Failed jobs are
reported; with --strict they make the command exit 1.

Examples:
  millsync run --config millsync.yaml
  millsync run --config millsync.yaml --source odlog --limit 3
  millsync run --config millsync.toml --dry-run --xlsx outcomes.xlsx
  millsync run --config millsync.yaml --journal ./journal.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "all", "source to process (dwx|odlog|xml|all)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum artifacts per source (0 keeps the configured limit)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides journal.path)")
	cmd.Flags().StringVar(&opts.XLSX, "xlsx", "", "write per-job outcomes to an XLSX file")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any job or artifact failed")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "classify jobs without remote writes")

	return cmd
}

// selectSources narrows the enabled sources to --source.
func selectSources(cfg *config.Config, flag string) ([]job.Source, error) {
	enabled := cfg.Enabled()
	if flag == "" || flag == "all" {
		if len(enabled) == 0 {
			return nil, NewExitError(ExitCommandError, "no sources enabled in config")
		}
		return enabled, nil
	}
	src, ok := job.ParseSource(flag)
	if !ok {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid --source %q: must be dwx, odlog, xml or all", flag))
	}
	if !slices.Contains(enabled, src) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("source %s is not enabled in config", src))
	}
	return []job.Source{src}, nil
}

func runBatch(opts *RunOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	sources, err := selectSources(cfg, opts.Source)
	if err != nil {
		return err
	}

	logs, err := opts.logger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Logger

	extractors := make([]job.Extractor, 0, len(sources))
	for _, src := range sources {
		eopts := cfg.ExtractOptions(src, logger.With("source", string(src)))
		if opts.Limit > 0 {
			eopts.Limit = opts.Limit
		}
		ex, err := extract.New(src, eopts)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create extractor", err)
		}
		extractors = append(extractors, ex)
	}

	var gw reconcile.Gateway = opts.Gateway
	if gw == nil {
		gw = newClient(cfg, logger)
	}
	if opts.DryRun {
		gw = gateway.DryRun{Lister: gw, Logger: logger}
	}

	runner := &reconcile.Runner{
		Gateway:    gw,
		Extractors: extractors,
		Policies:   cfg.Policies(),
		IDs:        opts.IDs,
		Logger:     logger,
		DryRun:     opts.DryRun,
		Now:        opts.Now,
	}

	journalPath := cfg.Journal.Path
	if opts.Journal != "" {
		journalPath = opts.Journal
	}
	if journalPath != "" {
		j, err := journal.Open(journalPath)
		if err != nil {
			logger.Warn("journal unavailable, run will not be recorded", "path", journalPath, "error", err)
		} else {
			defer j.Close()
			runner.Recorder = j
		}
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	summary, runErr := runner.Run(ctx)
	if runErr != nil {
		switch {
		case reconcile.IsScanError(runErr):
			if out.JSON() {
				_ = out.Error(CodeScan, runErr.Error(), nil)
			}
			return WrapExitError(ExitCommandError, "source directory unreadable", runErr)
		case errors.Is(runErr, context.Canceled):
			return WrapExitError(ExitFailure, "run interrupted", runErr)
		default:
			return WrapExitError(ExitFailure, "run failed", runErr)
		}
	}

	if opts.XLSX != "" {
		if err := report.SaveXLSX(opts.XLSX, summary, cfg.TimeZone()); err != nil {
			logger.Error("xlsx export failed", "path", opts.XLSX, "error", err)
		} else {
			logger.Info("xlsx exported", "path", opts.XLSX, "rows", len(summary.Outcomes))
		}
	}

	if out.JSON() {
		if err := out.SuccessRun(summary.RunID, summary); err != nil {
			return err
		}
	} else if err := report.WriteText(out.Writer, summary, cfg.TimeZone()); err != nil {
		return err
	}

	if opts.Strict && summary.HasFailures() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("run finished with %d failed jobs and %d failed artifacts", summary.Failed, summary.ArtifactFailures))
	}
	return nil
}
