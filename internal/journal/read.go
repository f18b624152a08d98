package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// Run is a journaled batch run.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DryRun     bool       `json:"dry_run"`
	Degraded   bool       `json:"degraded"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
	Held       int        `json:"held"`
	Failed     int        `json:"failed"`
	LedgerSize int        `json:"ledger_size"`
}

// Outcome is a journaled job outcome.
type Outcome struct {
	RunID     string    `json:"run_id"`
	Seq       int64     `json:"seq"`
	Source    string    `json:"source"`
	Artifact  string    `json:"artifact"`
	Orderer   string    `json:"orderer"`
	Status    string    `json:"status"`
	WorkStart time.Time `json:"work_start"`
	Action    string    `json:"action"`
	MatchRule string    `json:"match_rule,omitempty"`
	OrderCode string    `json:"order_code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

const runColumns = `id, started_at, finished_at, dry_run, degraded, created, updated, skipped, held, failed, ledger_size`

func scanRun(row rowScanner) (Run, error) {
	var (
		r               Run
		started         string
		finished        sql.NullString
		dryRun, degrade int
	)
	err := row.Scan(&r.ID, &started, &finished, &dryRun, &degrade,
		&r.Created, &r.Updated, &r.Skipped, &r.Held, &r.Failed, &r.LedgerSize)
	if err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s finished_at: %w", r.ID, err)
		}
		r.FinishedAt = &t
	}
	r.DryRun = dryRun != 0
	r.Degraded = degrade != 0
	return r, nil
}

// Runs returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns a single run.
func (j *Journal) Run(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// Outcomes returns a run's job outcomes in sequence order.
func (j *Journal) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+outcomeColumns+`
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	return scanOutcomes(rows)
}

// OrdererHistory returns the latest outcomes for an orderer across runs.
func (j *Journal) OrdererHistory(ctx context.Context, orderer string, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+outcomeColumns+`
		FROM outcomes
		JOIN runs ON runs.id = outcomes.run_id
		WHERE outcomes.orderer = ?
		ORDER BY runs.started_at DESC, outcomes.seq DESC
		LIMIT ?
	`, orderer, limit)
	if err != nil {
		return nil, fmt.Errorf("query orderer history: %w", err)
	}
	return scanOutcomes(rows)
}

const outcomeColumns = `outcomes.run_id, outcomes.seq, outcomes.source, outcomes.artifact,
	outcomes.orderer, outcomes.status, outcomes.work_start, outcomes.action,
	outcomes.match_rule, outcomes.order_code, outcomes.error`

// scanOutcomes drains rows and closes them.
func scanOutcomes(rows *sql.Rows) ([]Outcome, error) {
	defer rows.Close()

	out := []Outcome{}
	for rows.Next() {
		var (
			o     Outcome
			start string
		)
		if err := rows.Scan(&o.RunID, &o.Seq, &o.Source, &o.Artifact, &o.Orderer, &o.Status,
			&start, &o.Action, &o.MatchRule, &o.OrderCode, &o.Error); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		var err error
		if o.WorkStart, err = time.Parse(timeLayout, start); err != nil {
			return nil, fmt.Errorf("outcome %d work_start: %w", o.Seq, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}
