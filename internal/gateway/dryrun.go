package gateway

import (
	"context"
	"log/slog"

	"github.com/roach88/millsync/internal/ledger"
)

// Lister is the read half of the order API.
type Lister interface {
	List(ctx context.Context) ([]ledger.Order, error)
}

// DryRun lists through a real client but never sends mutations. Create and
// Update succeed without a response body, so the caller folds the order it
// would have written into its ledger.
type DryRun struct {
	Lister Lister
	Logger *slog.Logger
}

func (d DryRun) List(ctx context.Context) ([]ledger.Order, error) {
	return d.Lister.List(ctx)
}

func (d DryRun) Create(ctx context.Context, r ledger.CreateRequest) (*ledger.Order, error) {
	d.log("dry-run create", "orderer", r.Orderer, "result", string(r.Result))
	return nil, ctx.Err()
}

func (d DryRun) Update(ctx context.Context, r ledger.UpdateRequest) (*ledger.Order, error) {
	d.log("dry-run update", "orderer", r.Orderer)
	return nil, ctx.Err()
}

func (d DryRun) log(msg string, args ...any) {
	if d.Logger != nil {
		d.Logger.Info(msg, args...)
	}
}
