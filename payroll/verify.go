/*
verify.go - Snapshot integrity verification

PURPOSE:
  Detects corruption or tampering by recomputing each snapshot's content
  hash from its stored blobs, using the exact fixed-order algorithm from
  capture, and comparing against the stored hash.

A mismatch is a reported result, never an error: monitoring decides
whether to alert, and the read path keeps working.
*/
package payroll

import (
	"context"
	"time"
)

// VerificationResult reports one snapshot's integrity check.
type VerificationResult struct {
	Valid        bool      `json:"valid"`
	SnapshotID   int64     `json:"snapshot_id"`
	TakenAt      time.Time `json:"snapshot_at"`
	StoredHash   string    `json:"stored_hash"`
	ComputedHash string    `json:"computed_hash"`
	HashMatch    bool      `json:"hash_match"`
}

// RunVerification aggregates verification across all snapshots of a run.
type RunVerification struct {
	RunID          int64                `json:"run_id"`
	TotalSnapshots int                  `json:"total_snapshots"`
	ValidCount     int                  `json:"valid"`
	InvalidCount   int                  `json:"invalid"`
	AllValid       bool                 `json:"all_valid"`
	Results        []VerificationResult `json:"snapshots"`
}

// VerifySnapshot recomputes the content hash of one snapshot and compares
// it with the stored hash. Only a missing snapshot is an error.
func (e *Engine) VerifySnapshot(ctx context.Context, snapshotID int64) (VerificationResult, error) {
	snap, err := e.Store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return VerificationResult{}, err
	}

	computed := snap.Blobs.ContentHash()
	valid := computed == snap.ContentHash

	log := e.logger().Info
	if !valid {
		log = e.logger().Warn
	}
	log("verified snapshot integrity",
		"snapshot_id", snapshotID,
		"valid", valid,
		"stored_hash", shortHash(snap.ContentHash),
		"computed_hash", shortHash(computed))

	return VerificationResult{
		Valid:        valid,
		SnapshotID:   snapshotID,
		TakenAt:      snap.TakenAt,
		StoredHash:   snap.ContentHash,
		ComputedHash: computed,
		HashMatch:    valid,
	}, nil
}

// VerifyRun verifies every snapshot of a run in creation order.
func (e *Engine) VerifyRun(ctx context.Context, runID int64) (RunVerification, error) {
	ids, err := e.Store.ListSnapshotIDs(ctx, runID)
	if err != nil {
		return RunVerification{}, err
	}

	out := RunVerification{
		RunID:          runID,
		TotalSnapshots: len(ids),
		Results:        make([]VerificationResult, 0, len(ids)),
	}

	for _, id := range ids {
		result, err := e.VerifySnapshot(ctx, id)
		if err != nil {
			return RunVerification{}, err
		}
		out.Results = append(out.Results, result)
		if result.Valid {
			out.ValidCount++
		} else {
			out.InvalidCount++
		}
	}

	out.AllValid = out.InvalidCount == 0
	return out, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
