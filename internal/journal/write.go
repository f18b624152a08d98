package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/millsync/internal/reconcile"
)

var _ reconcile.Recorder = (*Journal)(nil)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// BeginRun inserts the run row. Repeating it for the same id is a no-op.
func (j *Journal) BeginRun(ctx context.Context, runID string, started time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, formatTime(started))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordOutcome inserts one job outcome under its logical sequence number.
func (j *Journal) RecordOutcome(ctx context.Context, runID string, o reconcile.Outcome) error {
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, seq, source, artifact, orderer, status, work_start, action, match_rule, order_code, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		o.Seq,
		string(o.Source),
		o.Artifact,
		o.Orderer,
		string(o.Status),
		formatTime(o.WorkStart),
		string(o.Action),
		string(o.MatchRule),
		o.OrderCode,
		errText,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// FinishRun stores the final counters. The run row is created if BeginRun
// never landed.
func (j *Journal) FinishRun(ctx context.Context, s reconcile.Summary) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, dry_run, degraded, created, updated, skipped, held, failed, ledger_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			dry_run     = excluded.dry_run,
			degraded    = excluded.degraded,
			created     = excluded.created,
			updated     = excluded.updated,
			skipped     = excluded.skipped,
			held        = excluded.held,
			failed      = excluded.failed,
			ledger_size = excluded.ledger_size
	`,
		s.RunID,
		formatTime(s.Started),
		formatTime(s.Finished),
		boolInt(s.DryRun),
		boolInt(s.Degraded),
		s.Created,
		s.Updated,
		s.Skipped,
		s.Held,
		s.Failed,
		s.LedgerSize,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
