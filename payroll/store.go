/*
store.go - Persistence interfaces for the snapshot engine

PURPOSE:
  Low-level storage contracts implemented by payroll/store (memory) and
  store/sqlite. The engine is written against these interfaces only.

CRITICAL INVARIANTS:
  1. Snapshots and revisions are APPEND-ONLY: no update, no delete. The
     single sanctioned mutation is the revision -> snapshot back-link.
  2. Revision numbers are assigned atomically per run: CreateRevision must
     be safe against concurrent calls for the same run (unique constraint
     plus retry, or serialized writes). The naive read-max-then-insert
     pattern is not acceptable.
  3. PutDiff must treat a duplicate (from, to) pair as success: concurrent
     computation of the same diff is wasteful but never unsafe.

SEE ALSO:
  - store/memory.go: In-memory implementation for tests and dev
  - store/sqlite (module root): SQLite implementation
*/
package payroll

import (
	"context"
	"time"
)

// =============================================================================
// PER-ENTITY STORE INTERFACES
// =============================================================================

// RunStore persists pay runs. CreateRun assigns ID and RunNumber
// (current maximum across all runs + 1) and writes them back to the value.
type RunStore interface {
	CreateRun(ctx context.Context, run *PayRun) error
	GetRun(ctx context.Context, id int64) (*PayRun, error)
	ListRuns(ctx context.Context) ([]PayRun, error)
	SetRunStatus(ctx context.Context, id int64, status RunStatus) error
	SetRunCompletion(ctx context.Context, id int64, by string, at time.Time) error
}

// RevisionStore persists the per-run revision log. CreateRevision assigns
// ID and RevisionNumber (per-run maximum + 1, atomic) and writes them back.
type RevisionStore interface {
	CreateRevision(ctx context.Context, rev *Revision) error
	GetRevision(ctx context.Context, id int64) (*Revision, error)
	ListRevisions(ctx context.Context, runID int64) ([]Revision, error)

	// LinkRevisionSnapshot sets the snapshot back-link on a revision.
	// This is the only permitted revision mutation.
	LinkRevisionSnapshot(ctx context.Context, revisionID, snapshotID int64) error
}

// SnapshotStore persists immutable snapshots. CreateSnapshot assigns ID.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snap *Snapshot) error
	GetSnapshot(ctx context.Context, id int64) (*Snapshot, error)

	// ListSnapshotIDs returns all snapshot ids for a run in creation order.
	ListSnapshotIDs(ctx context.Context, runID int64) ([]int64, error)

	// LatestSnapshot returns the most recent snapshot for a run, or
	// ErrSnapshotNotFound when the run has none.
	LatestSnapshot(ctx context.Context, runID int64) (*Snapshot, error)
}

// DetailStore persists the normalized per-employee projection.
type DetailStore interface {
	// PutEmployeeDetail upserts one detail row keyed by (snapshot, user)
	// and replaces its child line rows. Re-running capture for the same
	// logical employee within a snapshot updates rather than duplicates.
	// The assigned detail ID is written back to the value.
	PutEmployeeDetail(ctx context.Context, d *EmployeeDetail,
		earnings []EarningLine, deductions []DeductionLine, holidays []PublicHolidayDetail) error

	EmployeeDetails(ctx context.Context, runID, snapshotID int64) ([]EmployeeDetail, error)

	// EmployeeLines returns the child line rows for one detail row.
	EmployeeLines(ctx context.Context, detailID int64) ([]EarningLine, []DeductionLine, []PublicHolidayDetail, error)

	InsertPayslipLines(ctx context.Context, lines []PayslipLine) error
	PayslipLines(ctx context.Context, snapshotID int64) ([]PayslipLine, error)
}

// DiffStore memoizes computed diffs keyed by the exact ordered snapshot pair.
type DiffStore interface {
	// GetDiff returns the cached diff, or (nil, nil) when not yet computed.
	GetDiff(ctx context.Context, fromID, toID int64) (*Diff, error)

	// PutDiff stores a computed diff. A concurrent insert of the same
	// (from, to) pair is treated as success.
	PutDiff(ctx context.Context, d *Diff) error
}

// AmendmentStore persists manual adjustments and their approval state.
type AmendmentStore interface {
	CreateAmendment(ctx context.Context, a *Amendment) error
	GetAmendment(ctx context.Context, id int64) (*Amendment, error)
	ListAmendments(ctx context.Context, runID int64) ([]Amendment, error)

	// ResolveAmendment moves a pending amendment to approved or rejected.
	// Returns ErrAmendmentResolved if it is no longer pending.
	ResolveAmendment(ctx context.Context, id int64, status ApprovalStatus, by string, at time.Time) error
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store is everything the engine needs from persistence.
type Store interface {
	RunStore
	RevisionStore
	SnapshotStore
	DetailStore
	DiffStore
	AmendmentStore
}
