package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/ledger"
	"github.com/roach88/millsync/internal/timefmt"
)

// Mutator is the write half of the order API. A nil order with a nil
// error means the write was accepted without an echoed body.
type Mutator interface {
	Create(ctx context.Context, r ledger.CreateRequest) (*ledger.Order, error)
	Update(ctx context.Context, r ledger.UpdateRequest) (*ledger.Order, error)
}

// Action is the reconciliation decision for one job.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionSkip   Action = "SKIP"
	ActionHold   Action = "HOLD"
)

// Mutates reports whether the action issues a remote call.
func (a Action) Mutates() bool {
	return a == ActionCreate || a == ActionUpdate
}

// Outcome records what happened to one job.
type Outcome struct {
	Seq       int64
	Source    job.Source
	Artifact  string
	Orderer   string
	Status    job.Status
	WorkStart time.Time // as transmitted
	Action    Action
	MatchRule ledger.MatchRule
	OrderCode string
	Err       error
}

// Failed reports whether the remote call for this outcome failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Reconciler runs the state machine for one source policy.
type Reconciler struct {
	Mutator Mutator
	Policy  Policy

	// Limiter spaces consecutive remote mutations. Nil disables the cool-down.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// NewReconciler creates a Reconciler whose limiter enforces the policy's
// cool-down between mutations.
func NewReconciler(m Mutator, p Policy, logger *slog.Logger) *Reconciler {
	r := &Reconciler{Mutator: m, Policy: p, Logger: logger}
	if p.Cooldown > 0 {
		r.Limiter = rate.NewLimiter(rate.Every(p.Cooldown), 1)
	}
	return r
}

// Reconcile classifies j against l and issues at most one remote mutation.
// It returns the ledger to use for the next job: on failure that is l
// itself, and the error is also recorded on the outcome.
func (r *Reconciler) Reconcile(ctx context.Context, j job.Job, l ledger.Ledger) (Outcome, ledger.Ledger, error) {
	logger := r.logger()
	out := Outcome{
		Source:    r.Policy.Source,
		Artifact:  j.Artifact,
		Orderer:   j.Orderer,
		Status:    j.Status(),
		WorkStart: timefmt.Transmit(j.WorkStart, j.Encoding),
	}

	m, found := ledger.Matcher{Skew: r.Policy.Skew, Logger: logger}.Find(j, l)
	if found {
		out.MatchRule = m.Rule
		out.OrderCode = m.Order.OrderCode
	}

	switch {
	case !found:
		out.Action = ActionCreate
		return r.create(ctx, j, out, l)

	case !m.Order.InProgress():
		out.Action = ActionSkip
		logger.Info("already completed", "orderer", j.Orderer, "action", out.Action, "order_code", out.OrderCode)
		return out, l, nil

	case out.Status == job.StatusInProgress:
		out.Action = ActionSkip
		if r.Policy.Repeat == RepeatHold {
			out.Action = ActionHold
		}
		logger.Info("still in progress", "orderer", j.Orderer, "action", out.Action, "order_code", out.OrderCode)
		return out, l, nil

	default:
		out.Action = ActionUpdate
		return r.update(ctx, j, m, out, l)
	}
}

func (r *Reconciler) create(ctx context.Context, j job.Job, out Outcome, l ledger.Ledger) (Outcome, ledger.Ledger, error) {
	req := ledger.CreateRequest{
		EquipmentModel: j.EquipmentModel,
		Orderer:        j.Orderer,
		WorkStart:      out.WorkStart,
		WorkEnd:        transmitEnd(j),
		TotalMinutes:   j.TotalMinutes,
		Result:         out.Status,
		Error:          j.ErrorText(),
	}

	if err := r.wait(ctx); err != nil {
		return r.fail(out, CodeCreateFailed, err, l)
	}
	echoed, err := r.Mutator.Create(ctx, req)
	if err != nil {
		return r.fail(out, CodeCreateFailed, err, l)
	}
	order := foldCreated(req, echoed)

	out.OrderCode = order.OrderCode
	r.logger().Info("order created",
		"orderer", j.Orderer,
		"action", out.Action,
		"status", string(out.Status),
		"order_code", out.OrderCode)
	return out, l.Insert(order), nil
}

// foldCreated picks the order to insert after an accepted create. An echo
// without orderer or start time cannot be matched later, so the order is
// built from the request and keeps only the echoed code.
func foldCreated(req ledger.CreateRequest, echoed *ledger.Order) ledger.Order {
	if echoed != nil && echoed.Orderer != "" && !echoed.WorkStart.IsZero() {
		return *echoed
	}
	o := req.Order()
	if echoed != nil {
		o.OrderCode = echoed.OrderCode
	}
	return o
}

func (r *Reconciler) update(ctx context.Context, j job.Job, m ledger.Match, out Outcome, l ledger.Ledger) (Outcome, ledger.Ledger, error) {
	// Addressed by the matched order's orderer and start time, not the
	// job's transmitted start. The two differ on skew and in-window
	// matches; the remote keys orders by the values it stored.
	req := ledger.UpdateRequest{
		Orderer:      m.Order.Orderer,
		WorkStart:    m.Order.WorkStart,
		WorkEnd:      *transmitEnd(j),
		TotalMinutes: j.TotalMinutes,
		Error:        j.ErrorText(),
	}

	if err := r.wait(ctx); err != nil {
		return r.fail(out, CodeUpdateFailed, err, l)
	}
	echoed, err := r.Mutator.Update(ctx, req)
	if err != nil {
		return r.fail(out, CodeUpdateFailed, err, l)
	}

	updated := req.Apply(m.Order)
	if updated.OrderCode == "" && echoed != nil {
		updated.OrderCode = echoed.OrderCode
	}
	next, err := l.Replace(m.Index, updated)
	if err != nil {
		return r.fail(out, CodeUpdateFailed, err, l)
	}

	out.OrderCode = updated.OrderCode
	r.logger().Info("order completed",
		"orderer", j.Orderer,
		"action", out.Action,
		"status", string(out.Status),
		"order_code", out.OrderCode,
		"match_rule", string(m.Rule))
	return out, next, nil
}

func (r *Reconciler) fail(out Outcome, code ErrorCode, err error, l ledger.Ledger) (Outcome, ledger.Ledger, error) {
	rerr := &Error{Code: code, Source: string(r.Policy.Source), Orderer: out.Orderer, Err: err}
	out.Err = rerr
	r.logger().Error("remote write failed",
		"orderer", out.Orderer,
		"action", out.Action,
		"code", string(code),
		"error", err)
	return out, l, rerr
}

func (r *Reconciler) wait(ctx context.Context) error {
	if r.Limiter == nil {
		return ctx.Err()
	}
	if err := r.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cool-down: %w", err)
	}
	return nil
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

func transmitEnd(j job.Job) *time.Time {
	if j.WorkEnd == nil {
		return nil
	}
	t := timefmt.Transmit(*j.WorkEnd, j.Encoding)
	return &t
}
