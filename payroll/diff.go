/*
diff.go - Structured diffs between snapshot pairs

PURPOSE:
  Computes a memoized, directional delta between any two snapshots of a
  run: employees added, removed, and modified, with per-field changes and
  an aggregate pay delta.

DIRECTIONALITY:
  CalculateDiff(A, B) is framed from B's perspective. It is intentionally
  NOT the algebraic negation of CalculateDiff(B, A); both orderings are
  memoized independently under their exact (from, to) key.

THRESHOLD:
  A whitelisted field counts as changed only when |from - to| > 0.01.
  This absorbs floating-point noise introduced by upstream calculators.
*/
package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIFF TYPES
// =============================================================================

// FieldChange records one whitelisted field moving between snapshots.
type FieldChange struct {
	From  decimal.Decimal `json:"from"`
	To    decimal.Decimal `json:"to"`
	Delta decimal.Decimal `json:"delta"` // To - From
}

// DiffEntry is one employee present on only one side of the diff.
type DiffEntry struct {
	UserID        int64           `json:"user_id"`
	Name          string          `json:"name"`
	GrossEarnings decimal.Decimal `json:"gross_earnings"`
}

// DiffModification is one employee present on both sides with at least
// one whitelisted field changed beyond the threshold.
type DiffModification struct {
	UserID  int64                  `json:"user_id"`
	Name    string                 `json:"name"`
	Changes map[string]FieldChange `json:"changes"`
}

type DiffSummary struct {
	AdditionsCount     int             `json:"additions_count"`
	ModificationsCount int             `json:"modifications_count"`
	DeletionsCount     int             `json:"deletions_count"`
	EmployeesAffected  int             `json:"employees_affected"`
	TotalPayDelta      decimal.Decimal `json:"total_pay_delta"` // rounded to 2 dp
}

// Diff is the structured delta between an ordered snapshot pair.
// Computed once, persisted, and returned from the memo store thereafter.
type Diff struct {
	FromSnapshotID   int64              `json:"from_snapshot_id"`
	ToSnapshotID     int64              `json:"to_snapshot_id"`
	Additions        []DiffEntry        `json:"additions"`
	Modifications    []DiffModification `json:"modifications"`
	Deletions        []DiffEntry        `json:"deletions"`
	EmployeesChanged []int64            `json:"employees_changed"`
	TotalPayDelta    decimal.Decimal    `json:"total_pay_delta"`
	Summary          DiffSummary        `json:"summary"`
}

// =============================================================================
// FIELD WHITELIST
// =============================================================================

// diffFields is the fixed whitelist of numeric fields compared for
// modifications. Keys match the employee record JSON field names.
var diffFields = []struct {
	name string
	get  func(*EmployeeRecord) decimal.Decimal
}{
	{"totalHours", func(r *EmployeeRecord) decimal.Decimal { return r.TotalHours }},
	{"grossEarnings", func(r *EmployeeRecord) decimal.Decimal { return r.GrossEarnings }},
	{"netPay", func(r *EmployeeRecord) decimal.Decimal { return r.NetPay }},
	{"commission", func(r *EmployeeRecord) decimal.Decimal { return r.Commission }},
	{"monthlyBonus", func(r *EmployeeRecord) decimal.Decimal { return r.MonthlyBonus }},
	{"googleReviewBonus", func(r *EmployeeRecord) decimal.Decimal { return r.GoogleReviewBonus }},
	{"vapeDropsBonus", func(r *EmployeeRecord) decimal.Decimal { return r.VapeDropsBonus }},
	{"accountPaymentDeduction", func(r *EmployeeRecord) decimal.Decimal { return r.AccountPaymentDeduction }},
}

// diffThreshold is 0.01 exactly. Deltas at or below it are noise.
var diffThreshold = decimal.New(1, -2)

// =============================================================================
// DIFF ENGINE
// =============================================================================

// CalculateDiff returns the structured delta from snapshot fromID to
// snapshot toID, computing and memoizing it on first request.
func (e *Engine) CalculateDiff(ctx context.Context, fromID, toID int64) (*Diff, error) {
	cached, err := e.Store.GetDiff(ctx, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("reading diff memo: %w", err)
	}
	if cached != nil {
		return cached, nil
	}

	from, err := e.Store.GetSnapshot(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := e.Store.GetSnapshot(ctx, toID)
	if err != nil {
		return nil, err
	}

	fromEmps, err := decodeEmployees(from)
	if err != nil {
		return nil, err
	}
	toEmps, err := decodeEmployees(to)
	if err != nil {
		return nil, err
	}

	diff := computeDiff(fromID, toID, fromEmps, toEmps)

	if err := e.Store.PutDiff(ctx, diff); err != nil {
		return nil, fmt.Errorf("memoizing diff: %w", err)
	}

	e.logger().Info("computed snapshot diff",
		"from", fromID,
		"to", toID,
		"additions", diff.Summary.AdditionsCount,
		"modifications", diff.Summary.ModificationsCount,
		"deletions", diff.Summary.DeletionsCount,
		"total_pay_delta", diff.Summary.TotalPayDelta)

	return diff, nil
}

// decodeEmployees decodes the employee-object domain of a snapshot.
// An empty or malformed blob is a surfaced corruption, never an empty list.
func decodeEmployees(snap *Snapshot) ([]EmployeeRecord, error) {
	if len(snap.Blobs.Employees) == 0 {
		return nil, &DecodeError{SnapshotID: snap.ID, Domain: "employees", Err: errors.New("empty blob")}
	}
	var recs []EmployeeRecord
	if err := json.Unmarshal(snap.Blobs.Employees, &recs); err != nil {
		return nil, &DecodeError{SnapshotID: snap.ID, Domain: "employees", Err: err}
	}
	return recs, nil
}

func computeDiff(fromID, toID int64, fromEmps, toEmps []EmployeeRecord) *Diff {
	fromByID := indexEmployees(fromEmps)
	toByID := indexEmployees(toEmps)

	diff := &Diff{
		FromSnapshotID:   fromID,
		ToSnapshotID:     toID,
		Additions:        []DiffEntry{},
		Modifications:    []DiffModification{},
		Deletions:        []DiffEntry{},
		EmployeesChanged: []int64{},
		TotalPayDelta:    decimal.Zero,
	}

	// Additions: present in "to" only. Full gross earnings counts toward
	// the pay delta.
	for _, id := range sortedIDs(toByID) {
		if _, ok := fromByID[id]; ok {
			continue
		}
		emp := toByID[id]
		diff.Additions = append(diff.Additions, DiffEntry{
			UserID:        id,
			Name:          displayName(emp),
			GrossEarnings: emp.GrossEarnings,
		})
		diff.TotalPayDelta = diff.TotalPayDelta.Add(emp.GrossEarnings)
	}

	// Modifications: present in both, any whitelisted field moved beyond
	// the threshold. Only grossEarnings changes feed the pay delta.
	for _, id := range sortedIDs(toByID) {
		fromEmp, ok := fromByID[id]
		if !ok {
			continue
		}
		toEmp := toByID[id]

		changes := map[string]FieldChange{}
		for _, f := range diffFields {
			fromVal := f.get(fromEmp)
			toVal := f.get(toEmp)
			if fromVal.Sub(toVal).Abs().GreaterThan(diffThreshold) {
				changes[f.name] = FieldChange{
					From:  fromVal,
					To:    toVal,
					Delta: toVal.Sub(fromVal),
				}
				if f.name == "grossEarnings" {
					diff.TotalPayDelta = diff.TotalPayDelta.Add(toVal.Sub(fromVal))
				}
			}
		}

		if len(changes) > 0 {
			diff.Modifications = append(diff.Modifications, DiffModification{
				UserID:  id,
				Name:    displayName(toEmp),
				Changes: changes,
			})
			diff.EmployeesChanged = append(diff.EmployeesChanged, id)
		}
	}

	// Deletions: present in "from" only. Gross earnings subtracts.
	for _, id := range sortedIDs(fromByID) {
		if _, ok := toByID[id]; ok {
			continue
		}
		emp := fromByID[id]
		diff.Deletions = append(diff.Deletions, DiffEntry{
			UserID:        id,
			Name:          displayName(emp),
			GrossEarnings: emp.GrossEarnings,
		})
		diff.TotalPayDelta = diff.TotalPayDelta.Sub(emp.GrossEarnings)
	}

	diff.Summary = DiffSummary{
		AdditionsCount:     len(diff.Additions),
		ModificationsCount: len(diff.Modifications),
		DeletionsCount:     len(diff.Deletions),
		EmployeesAffected:  len(diff.EmployeesChanged),
		TotalPayDelta:      diff.TotalPayDelta.Round(2),
	}

	return diff
}

func indexEmployees(emps []EmployeeRecord) map[int64]*EmployeeRecord {
	byID := make(map[int64]*EmployeeRecord, len(emps))
	for i := range emps {
		byID[emps[i].UserID] = &emps[i]
	}
	return byID
}

// sortedIDs keeps diff output byte-stable across runs.
func sortedIDs(byID map[int64]*EmployeeRecord) []int64 {
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func displayName(emp *EmployeeRecord) string {
	if emp.Name == "" {
		return "Unknown"
	}
	return emp.Name
}
