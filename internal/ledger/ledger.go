// Package ledger holds the per-run cached view of the remote order ledger
// and the matcher that finds the order a job corresponds to.
//
// A Ledger is a value. Every mutation returns a new Ledger and leaves the
// receiver untouched, so a failed remote write can simply keep using the
// value it started with.
//
// Ordering: all in-progress orders precede all completed orders at
// construction and on Insert. Replace keeps the slot it is given, so a
// completed order may sit among the in-progress prefix after an update.
// Matching is first-match in stored order and relies on that shape.
package ledger

import "fmt"

// Ledger is an ordered snapshot of remote orders.
type Ledger struct {
	orders []Order
}

// New builds a ledger from a remote listing, keeping in-progress orders
// first. Relative order within each group is preserved.
func New(orders []Order) Ledger {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.InProgress() {
			out = append(out, o)
		}
	}
	for _, o := range orders {
		if !o.InProgress() {
			out = append(out, o)
		}
	}
	return Ledger{orders: out}
}

// Len returns the number of cached orders.
func (l Ledger) Len() int {
	return len(l.orders)
}

// At returns the order at index i.
func (l Ledger) At(i int) Order {
	return l.orders[i]
}

// Orders returns a copy of the cached orders in stored order.
func (l Ledger) Orders() []Order {
	out := make([]Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// Counts returns the number of in-progress and completed orders.
func (l Ledger) Counts() (inProgress, completed int) {
	for _, o := range l.orders {
		if o.InProgress() {
			inProgress++
		} else {
			completed++
		}
	}
	return inProgress, completed
}

// Insert returns a ledger with o prepended when it is in progress and
// appended otherwise.
func (l Ledger) Insert(o Order) Ledger {
	out := make([]Order, 0, len(l.orders)+1)
	if o.InProgress() {
		out = append(out, o)
		out = append(out, l.orders...)
	} else {
		out = append(out, l.orders...)
		out = append(out, o)
	}
	return Ledger{orders: out}
}

// Replace returns a ledger with the order at index i overwritten by o.
// The slot is kept; ordering is not re-established.
func (l Ledger) Replace(i int, o Order) (Ledger, error) {
	if i < 0 || i >= len(l.orders) {
		return l, fmt.Errorf("replace index %d out of range [0,%d)", i, len(l.orders))
	}
	out := l.Orders()
	out[i] = o
	return Ledger{orders: out}, nil
}
