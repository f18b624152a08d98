// Package reconcile decides, for each locally observed job, whether it is
// already known to the remote order ledger, an in-progress order now
// completing, or a new order, and drives the matching remote mutation.
//
// ARCHITECTURE:
//
// Single-threaded batch:
// A Runner lists the remote ledger once, then feeds every job from every
// enabled source through a Reconciler, one at a time, in scan order. There
// is no parallel dispatch and the ledger is never shared.
//
// Ledger threading:
// The ledger is a value passed into Reconcile and returned from it. A
// failed remote write returns the input ledger, so no partial state leaks
// into the next job.
//
// Transition table (matched order result x job status):
//
//	none         any                  CREATE
//	COMPLETED    any                  SKIP
//	IN_PROGRESS  IN_PROGRESS          SKIP or HOLD, per Policy.Repeat
//	IN_PROGRESS  COMPLETED or FAILED  UPDATE
//
// Per-source behavior (skew allow-list, repeat handling, cool-down) lives
// in a Policy; there is one state machine.
//
// Degraded mode:
// A failed listing yields an empty ledger. Duplicate detection is off for
// that run and every job becomes a CREATE. The summary records it.
package reconcile
