package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/millsync/internal/journal"
	"github.com/roach88/millsync/internal/timefmt"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	RunID   string
	Orderer string
	Limit   int
}

// RunDetail is a run with its job outcomes.
type RunDetail struct {
	Run      journal.Run       `json:"run"`
	Outcomes []journal.Outcome `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled runs",
		Long: `Show runs recorded in the SQLite journal.

Without flags the most recent runs are listed. --run shows every job
outcome of one run and --orderer shows one orderer's outcomes across runs.

Examples:
  millsync history --journal ./journal.db
  millsync history --journal ./journal.db --run 0195b1c2-...
  millsync history --config millsync.yaml --orderer 김철수 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides journal.path)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the outcomes of one run")
	cmd.Flags().StringVar(&opts.Orderer, "orderer", "", "show one orderer's outcomes")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum rows (0 for all)")

	return cmd
}

func (o *HistoryOptions) journalPath() (string, error) {
	if o.Journal != "" {
		return o.Journal, nil
	}
	if o.Config == "" {
		return "", NewExitError(ExitCommandError, "--journal or a config with journal.path is required")
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Journal.Path == "" {
		return "", NewExitError(ExitCommandError, "config has no journal.path")
	}
	return cfg.Journal.Path, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path, err := opts.journalPath()
	if err != nil {
		return err
	}
	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	switch {
	case opts.RunID != "":
		run, err := j.Run(ctx, opts.RunID)
		if errors.Is(err, journal.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "unknown run", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		outcomes, err := j.Outcomes(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		if out.JSON() {
			return out.SuccessRun(run.ID, RunDetail{Run: run, Outcomes: outcomes})
		}
		writeRuns(out.Writer, []journal.Run{run})
		fmt.Fprintln(out.Writer)
		writeOutcomes(out.Writer, outcomes)
		return nil

	case opts.Orderer != "":
		outcomes, err := j.OrdererHistory(ctx, opts.Orderer, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		if out.JSON() {
			return out.Success(outcomes)
		}
		writeOutcomes(out.Writer, outcomes)
		return nil

	default:
		runs, err := j.Runs(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		if out.JSON() {
			return out.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out.Writer, "No runs recorded.")
			return nil
		}
		writeRuns(out.Writer, runs)
		return nil
	}
}

func writeRuns(w io.Writer, runs []journal.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tCREATED\tUPDATED\tSKIPPED\tHELD\tFAILED\tFLAGS")
	for _, r := range runs {
		flags := ""
		if r.FinishedAt == nil {
			flags += " unfinished"
		}
		if r.DryRun {
			flags += " dry-run"
		}
		if r.Degraded {
			flags += " degraded"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(timefmt.WireLayout),
			r.Created, r.Updated, r.Skipped, r.Held, r.Failed, flags)
	}
	tw.Flush()
}

func writeOutcomes(w io.Writer, outcomes []journal.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No outcomes recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSOURCE\tARTIFACT\tORDERER\tSTATUS\tWORK START\tACTION\tORDER\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Seq, o.Source, o.Artifact, o.Orderer, o.Status,
			o.WorkStart.Local().Format(timefmt.WireLayout),
			o.Action, o.OrderCode, o.Error)
	}
	tw.Flush()
}
