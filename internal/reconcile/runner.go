package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/ledger"
)

// Gateway is the full order API consumed by a run.
type Gateway interface {
	List(ctx context.Context) ([]ledger.Order, error)
	Mutator
}

// Recorder persists run progress. Recorder failures are logged and never
// abort a run.
type Recorder interface {
	BeginRun(ctx context.Context, runID string, started time.Time) error
	RecordOutcome(ctx context.Context, runID string, o Outcome) error
	FinishRun(ctx context.Context, s Summary) error
}

// Runner executes one batch: list once, then reconcile every job from
// every extractor sequentially.
type Runner struct {
	Gateway    Gateway
	Extractors []job.Extractor

	// Policies overrides DefaultPolicy per source.
	Policies map[job.Source]Policy

	Recorder Recorder
	IDs      IDGenerator
	Logger   *slog.Logger
	DryRun   bool

	// Now is the wall clock for run timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Run executes the batch. Per-job and per-artifact failures are counted in
// the summary; only a source that cannot be scanned at all, or context
// cancellation, returns an error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	ids := r.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	base := r.Logger
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}

	s := Summary{RunID: ids.Generate(), Started: now(), DryRun: r.DryRun}
	logger := base.With("run_id", s.RunID)
	clock := NewClock()

	r.record(logger, func() error { return r.Recorder.BeginRun(ctx, s.RunID, s.Started) })

	orders, err := r.Gateway.List(ctx)
	if err != nil {
		s.Degraded = true
		s.DegradedErr = err.Error()
		logger.Error("ledger listing failed, continuing with empty ledger", "error", err)
		orders = nil
	}
	l := ledger.New(orders)
	s.LedgerSize = l.Len()
	logger.Info("ledger loaded", "orders", l.Len(), "degraded", s.Degraded, "dry_run", r.DryRun)

	var runErr error
	for _, ex := range r.Extractors {
		s.Sources = append(s.Sources, ex.Source())
		l, runErr = r.runSource(ctx, logger, ex, l, clock, &s)
		if runErr != nil {
			break
		}
	}

	s.Finished = now()
	s.LedgerInProgress, s.LedgerCompleted = l.Counts()
	r.record(logger, func() error { return r.Recorder.FinishRun(context.WithoutCancel(ctx), s) })

	logger.Info("run finished",
		"created", s.Created,
		"updated", s.Updated,
		"skipped", s.Skipped,
		"held", s.Held,
		"failed", s.Failed,
		"artifact_failures", s.ArtifactFailures)
	return s, runErr
}

func (r *Runner) runSource(ctx context.Context, logger *slog.Logger, ex job.Extractor, l ledger.Ledger, clock *Clock, s *Summary) (ledger.Ledger, error) {
	src := ex.Source()
	logger = logger.With("source", string(src))

	policy, ok := r.Policies[src]
	if !ok {
		policy = DefaultPolicy(src)
	}
	rec := NewReconciler(r.Gateway, policy, logger)
	if r.DryRun {
		rec.Limiter = nil
	}

	artifacts, err := ex.Scan(ctx)
	if err != nil {
		logger.Error("scan failed", "error", err)
		return l, &Error{Code: CodeScanFailed, Source: string(src), Err: err}
	}
	logger.Info("scan complete", "artifacts", len(artifacts))

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return l, err
		}
		s.Artifacts++
		alog := logger.With("artifact", a.Name)

		jobs, err := ex.Extract(ctx, a)
		if err != nil {
			s.ArtifactFailures++
			alog.Error("artifact skipped", "error", err)
			continue
		}
		alog.Debug("artifact extracted", "jobs", len(jobs))

		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				return l, err
			}
			var out Outcome
			out, l, _ = rec.Reconcile(ctx, j, l)
			out.Seq = clock.Next()
			s.Count(out)
			r.record(alog, func() error { return r.Recorder.RecordOutcome(context.WithoutCancel(ctx), s.RunID, out) })
		}
	}
	return l, nil
}

func (r *Runner) record(logger *slog.Logger, fn func() error) {
	if r.Recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("journal write failed", "error", err)
	}
}
