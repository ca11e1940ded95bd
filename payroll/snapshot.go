/*
snapshot.go - Full-state capture and content hashing

PURPOSE:
  Captures the complete state universe of a pay run into one immutable,
  content-hashed record: employee objects, roster timesheets, account
  balances, provider payslips, provider employee master data, public
  holidays, bonus calculations, amendments and the config in effect.

HASH CONTRACT:
  content_hash = SHA256 of the nine domain blobs joined with "|" in the
  order returned by SnapshotBlobs.ordered. Absent domains contribute the
  empty string. The order is part of the contract: changing it would
  change the meaning of every historical hash, so it must never change
  for the lifetime of the system.

CANONICAL ENCODING:
  Domains are encoded with encoding/json: struct fields in declaration
  order, map keys sorted, HTML escaping disabled. Identical inputs encode
  to identical bytes, so capturing the same state twice yields the same
  content hash.

SEE ALSO:
  - normalize.go: Per-employee projection run after each capture
  - verify.go: Hash recomputation against stored blobs
*/
package payroll

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// CONTENT HASH
// =============================================================================

// ordered returns the blobs in the fixed, documented hash order:
//
//	employees | timesheets | account balances | payslips |
//	provider employees | public holidays | bonuses | amendments | config
//
// DO NOT reorder, insert or remove entries. Ever.
func (b *SnapshotBlobs) ordered() [][]byte {
	return [][]byte{
		b.Employees,
		b.Timesheets,
		b.AccountBalances,
		b.Payslips,
		b.ProviderEmployees,
		b.PublicHolidays,
		b.Bonuses,
		b.Amendments,
		b.Config,
	}
}

var hashSeparator = []byte("|")

// ContentHash computes the SHA-256 digest over the fixed-order blob join.
// Blobs are streamed into the hash; no joined intermediate copy is built.
func (b *SnapshotBlobs) ContentHash() string {
	h := sha256.New()
	for i, blob := range b.ordered() {
		if i > 0 {
			h.Write(hashSeparator)
		}
		h.Write(blob)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TotalSize returns the summed byte length of all domain blobs.
func (b *SnapshotBlobs) TotalSize() int64 {
	var n int64
	for _, blob := range b.ordered() {
		n += int64(len(blob))
	}
	return n
}

// encodeDomain canonically serializes one domain value. nil encodes to a
// nil blob (the absent domain).
func encodeDomain(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// =============================================================================
// CAPTURE
// =============================================================================

// CaptureInput carries everything a snapshot records. Employees is the
// only required domain; every other domain may be nil/empty and hashes as
// absent. Payslips may be supplied as plain records, as provider-shaped
// sources (flattened through the adapter in payslip.go), or both.
type CaptureInput struct {
	RunID      int64
	RevisionID *int64
	Type       SnapshotType

	Employees         []EmployeeRecord
	Timesheets        any
	AccountBalances   any
	Payslips          []Payslip
	PayslipSources    []PayslipSource
	ProviderEmployees any
	PublicHolidays    any
	Bonuses           any
	Amendments        any
	Config            *ConfigSnapshot
}

// CaptureSnapshot persists one immutable snapshot of the run state and
// materializes the per-employee projection for it.
//
// Side effects: exactly one snapshot row, len(Employees) employee detail
// rows (upserted, so recapture of the same employee updates in place),
// child line rows per line item present, and the revision back-link when
// RevisionID is given.
func (e *Engine) CaptureSnapshot(ctx context.Context, in CaptureInput) (int64, error) {
	payslips := in.Payslips
	if len(in.PayslipSources) > 0 {
		payslips = append(payslips[:len(payslips):len(payslips)], FlattenPayslips(in.PayslipSources)...)
	}

	blobs, err := encodeCaptureBlobs(in, payslips)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot domains: %w", err)
	}

	snapType := in.Type
	if snapType == "" {
		snapType = SnapshotManual
	}

	snap := &Snapshot{
		RunID:          in.RunID,
		RevisionID:     in.RevisionID,
		Type:           snapType,
		TakenAt:        time.Now().UTC(),
		Blobs:          blobs,
		ContentHash:    blobs.ContentHash(),
		EmployeeCount:  len(in.Employees),
		TotalSizeBytes: blobs.TotalSize(),
	}

	if err := e.Store.CreateSnapshot(ctx, snap); err != nil {
		return 0, fmt.Errorf("persisting snapshot: %w", err)
	}

	if in.RevisionID != nil {
		if err := e.Store.LinkRevisionSnapshot(ctx, *in.RevisionID, snap.ID); err != nil {
			return 0, fmt.Errorf("linking revision %d: %w", *in.RevisionID, err)
		}
	}

	skipped, err := e.normalize(ctx, in.RunID, snap.ID, in.Employees, payslips)
	if err != nil {
		return 0, err
	}

	e.logger().Info("captured snapshot",
		"run_id", in.RunID,
		"snapshot_id", snap.ID,
		"type", snapType,
		"employees", snap.EmployeeCount,
		"size_bytes", snap.TotalSizeBytes,
		"hash", snap.ContentHash[:12])
	if skipped > 0 {
		e.logger().Warn("skipped unlinkable payslip lines",
			"run_id", in.RunID,
			"snapshot_id", snap.ID,
			"skipped", skipped)
	}

	return snap.ID, nil
}

func encodeCaptureBlobs(in CaptureInput, payslips []Payslip) (SnapshotBlobs, error) {
	var blobs SnapshotBlobs
	var err error

	// Employees is always encoded, even when empty: it anchors the hash.
	employees := in.Employees
	if employees == nil {
		employees = []EmployeeRecord{}
	}
	if blobs.Employees, err = encodeDomain(employees); err != nil {
		return blobs, fmt.Errorf("employees: %w", err)
	}

	if blobs.Timesheets, err = encodeDomain(in.Timesheets); err != nil {
		return blobs, fmt.Errorf("timesheets: %w", err)
	}
	if blobs.AccountBalances, err = encodeDomain(in.AccountBalances); err != nil {
		return blobs, fmt.Errorf("account balances: %w", err)
	}
	if len(payslips) > 0 {
		if blobs.Payslips, err = encodeDomain(payslips); err != nil {
			return blobs, fmt.Errorf("payslips: %w", err)
		}
	}
	if blobs.ProviderEmployees, err = encodeDomain(in.ProviderEmployees); err != nil {
		return blobs, fmt.Errorf("provider employees: %w", err)
	}
	if blobs.PublicHolidays, err = encodeDomain(in.PublicHolidays); err != nil {
		return blobs, fmt.Errorf("public holidays: %w", err)
	}
	if blobs.Bonuses, err = encodeDomain(in.Bonuses); err != nil {
		return blobs, fmt.Errorf("bonuses: %w", err)
	}
	if blobs.Amendments, err = encodeDomain(in.Amendments); err != nil {
		return blobs, fmt.Errorf("amendments: %w", err)
	}
	if in.Config != nil {
		if blobs.Config, err = encodeDomain(in.Config); err != nil {
			return blobs, fmt.Errorf("config: %w", err)
		}
	}

	return blobs, nil
}

// =============================================================================
// SNAPSHOT READS
// =============================================================================

// GetSnapshot returns a snapshot by id, blobs included.
func (e *Engine) GetSnapshot(ctx context.Context, snapshotID int64) (*Snapshot, error) {
	return e.Store.GetSnapshot(ctx, snapshotID)
}

// GetLatestSnapshot returns the most recent snapshot for a run.
func (e *Engine) GetLatestSnapshot(ctx context.Context, runID int64) (*Snapshot, error) {
	return e.Store.LatestSnapshot(ctx, runID)
}

// EmployeeDetails returns the normalized projection rows for one snapshot.
func (e *Engine) EmployeeDetails(ctx context.Context, runID, snapshotID int64) ([]EmployeeDetail, error) {
	return e.Store.EmployeeDetails(ctx, runID, snapshotID)
}
