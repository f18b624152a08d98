package ledger

import (
	"time"

	"github.com/roach88/millsync/internal/job"
)

// Result is the remote two-state order result.
type Result string

const (
	ResultInProgress Result = "IN_PROGRESS"
	ResultCompleted  Result = "COMPLETED"
)

// Order is the cached copy of a remote order.
type Order struct {
	// OrderCode is assigned by the remote system; empty for orders folded
	// in locally after a create that returned no body.
	OrderCode      string
	EquipmentModel string
	Orderer        string
	WorkStart      time.Time
	WorkEnd        *time.Time
	TotalMinutes   *int
	Result         Result
	Error          string
}

// InProgress reports whether the order is still running remotely.
func (o Order) InProgress() bool {
	return o.Result == ResultInProgress
}

// ResultFromEnd classifies an order whose remote result string is not one of
// the two known states by end-time presence.
func ResultFromEnd(end *time.Time) Result {
	if end == nil {
		return ResultInProgress
	}
	return ResultCompleted
}

// CreateRequest is the payload for creating an order. Result keeps the
// three-state job status; the gateway maps it to the remote vocabulary.
type CreateRequest struct {
	EquipmentModel string
	Orderer        string
	WorkStart      time.Time
	WorkEnd        *time.Time
	TotalMinutes   *int
	Result         job.Status
	Error          string
}

// Order builds the order a successful create is expected to produce. The
// ledger result collapses FAILED to COMPLETED by end-time presence.
func (r CreateRequest) Order() Order {
	return Order{
		EquipmentModel: r.EquipmentModel,
		Orderer:        r.Orderer,
		WorkStart:      r.WorkStart,
		WorkEnd:        copyTime(r.WorkEnd),
		TotalMinutes:   copyInt(r.TotalMinutes),
		Result:         ResultFromEnd(r.WorkEnd),
		Error:          r.Error,
	}
}

// UpdateRequest is the payload for completing an in-progress order. The
// order is addressed by Orderer and WorkStart.
type UpdateRequest struct {
	Orderer      string
	WorkStart    time.Time
	WorkEnd      time.Time
	TotalMinutes *int
	Error        string
}

// Apply overwrites the completion fields of o and forces it COMPLETED.
// Identity fields and the order code are kept.
func (r UpdateRequest) Apply(o Order) Order {
	end := r.WorkEnd
	o.WorkEnd = &end
	o.TotalMinutes = copyInt(r.TotalMinutes)
	o.Result = ResultCompleted
	if r.Error != "" {
		o.Error = r.Error
	}
	return o
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
