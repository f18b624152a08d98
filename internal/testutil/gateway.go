// Package testutil provides in-memory stand-ins for the order API and job
// extractors.
package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/roach88/millsync/internal/ledger"
)

// GatewayCall records one call made to a FakeGateway.
type GatewayCall struct {
	Op     string
	Create ledger.CreateRequest
	Update ledger.UpdateRequest
}

// FakeGateway is an in-memory order API. Creates echo an order with a
// generated code unless NoEcho is set.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeGateway struct {
	mu sync.Mutex

	Orders []ledger.Order

	// ListErr, CreateErr and UpdateErr are returned by the matching call
	// when set.
	ListErr   error
	CreateErr error
	UpdateErr error

	// FailCreateFor fails creates for the named orderers only.
	FailCreateFor map[string]error

	NoEcho bool

	// EchoCodeOnly makes creates echo an order carrying just its code.
	EchoCodeOnly bool

	calls []GatewayCall
	next  int
}

func (g *FakeGateway) List(ctx context.Context) ([]ledger.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, GatewayCall{Op: "list"})
	if g.ListErr != nil {
		return nil, g.ListErr
	}
	out := make([]ledger.Order, len(g.Orders))
	copy(out, g.Orders)
	return out, nil
}

func (g *FakeGateway) Create(ctx context.Context, r ledger.CreateRequest) (*ledger.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, GatewayCall{Op: "create", Create: r})
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	if err, ok := g.FailCreateFor[r.Orderer]; ok {
		return nil, err
	}
	o := r.Order()
	g.next++
	o.OrderCode = orderCode(g.next)
	g.Orders = append(g.Orders, o)
	if g.NoEcho {
		return nil, nil
	}
	if g.EchoCodeOnly {
		return &ledger.Order{OrderCode: o.OrderCode}, nil
	}
	return &o, nil
}

func (g *FakeGateway) Update(ctx context.Context, r ledger.UpdateRequest) (*ledger.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, GatewayCall{Op: "update", Update: r})
	if g.UpdateErr != nil {
		return nil, g.UpdateErr
	}
	for i, o := range g.Orders {
		if o.Orderer == r.Orderer && o.WorkStart.Equal(r.WorkStart) {
			g.Orders[i] = r.Apply(o)
			return nil, nil
		}
	}
	return nil, nil
}

// Calls returns a copy of the recorded calls.
func (g *FakeGateway) Calls() []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GatewayCall, len(g.calls))
	copy(out, g.calls)
	return out
}

// Ops returns the recorded operation names in call order.
func (g *FakeGateway) Ops() []string {
	var ops []string
	for _, c := range g.Calls() {
		ops = append(ops, c.Op)
	}
	return ops
}

// Mutations counts create and update calls.
func (g *FakeGateway) Mutations() int {
	n := 0
	for _, c := range g.Calls() {
		if c.Op != "list" {
			n++
		}
	}
	return n
}

func orderCode(n int) string {
	return "ORD-" + strconv.Itoa(n)
}
