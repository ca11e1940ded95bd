/*
errors.go - Centralized error types for the snapshot engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers wrap these with additional context where useful.

ERROR CATEGORIES:
  1. Not-found errors - Referenced rows that don't exist
  2. Conflict errors  - Concurrency and terminal-state violations
  3. Decode errors    - Corrupt stored blobs

USAGE:
  if payroll.IsNotFound(err) {
      // 404, not 500
  }

Hash mismatches are NOT errors: integrity verification reports them as a
structured result so monitoring can alert without crashing the read path.
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRunNotFound is returned when a referenced pay run doesn't exist.
	ErrRunNotFound = errors.New("pay run not found")

	// ErrSnapshotNotFound is returned when a referenced snapshot doesn't
	// exist. Diffing against a missing snapshot fails with this rather than
	// returning an empty diff.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrRevisionNotFound is returned when a referenced revision doesn't exist.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrAmendmentNotFound is returned when a referenced amendment doesn't exist.
	ErrAmendmentNotFound = errors.New("amendment not found")

	// ErrEmployeeDetailNotFound is returned when a referenced employee
	// detail row doesn't exist.
	ErrEmployeeDetailNotFound = errors.New("employee detail not found")

	// ErrRevisionConflict is returned when concurrent revision creation for
	// the same run collides on a revision number. Stores retry internally;
	// seeing this means the retry budget was exhausted.
	ErrRevisionConflict = errors.New("revision number conflict")

	// ErrAmendmentResolved is returned when resolving an amendment that has
	// already been approved or rejected. Resolution is terminal.
	ErrAmendmentResolved = errors.New("amendment already resolved")

	// ErrCorruptSnapshot is returned when a stored snapshot blob fails to
	// decode. Corrupt data must surface, never silently read as empty.
	ErrCorruptSnapshot = errors.New("corrupt snapshot blob")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// DecodeError reports which snapshot and domain failed to decode.
type DecodeError struct {
	SnapshotID int64
	Domain     string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("snapshot %d: decoding %s domain: %v", e.SnapshotID, e.Domain, e.Err)
}

func (e *DecodeError) Unwrap() error { return ErrCorruptSnapshot }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, ErrRevisionNotFound) ||
		errors.Is(err, ErrAmendmentNotFound) ||
		errors.Is(err, ErrEmployeeDetailNotFound)
}

// IsConflict returns true if the error is a concurrency or terminal-state
// violation that the caller may choose to retry or report.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict) ||
		errors.Is(err, ErrAmendmentResolved)
}
