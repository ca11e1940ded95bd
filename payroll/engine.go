/*
engine.go - Engine wiring

PURPOSE:
  The Engine is the synchronous entry point for every operation: run
  lifecycle, revision tracking, snapshot capture, diffing, verification
  and amendments. It holds no state of its own beyond its Store and the
  actor metadata stamped onto mutating actions.

CONCURRENCY:
  Every call is a blocking, synchronous operation. The engine assumes a
  single logical writer per run but does not enforce it; the one place
  where concurrent writers would corrupt data (revision numbering) is
  hardened at the store layer instead.

SEE ALSO:
  - run.go, revision.go, snapshot.go, diff.go, verify.go, amendment.go
*/
package payroll

import "log/slog"

// Actor identifies who is performing engine operations, stamped onto
// revisions, amendments and run completion metadata.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// Engine orchestrates all snapshot-engine operations over a Store.
type Engine struct {
	Store Store
	Actor Actor
	Log   *slog.Logger
}

// New creates an engine over the given store, logging via slog.Default().
func New(store Store) *Engine {
	return &Engine{Store: store, Log: slog.Default()}
}

// WithActor returns a shallow copy of the engine bound to a different
// actor. Handlers use this to stamp per-request identity without sharing
// mutable engine state.
func (e *Engine) WithActor(actor Actor) *Engine {
	clone := *e
	clone.Actor = actor
	return &clone
}

func (e *Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}
