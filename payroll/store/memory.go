// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	nextID int64

	runs      map[int64]payroll.PayRun
	revisions map[int64]payroll.Revision
	snapshots map[int64]payroll.Snapshot

	// creation-ordered ids per run
	runSnapshots map[int64][]int64

	details      map[int64]payroll.EmployeeDetail
	detailIndex  map[detailKey]int64
	earnings     map[int64][]payroll.EarningLine
	deductions   map[int64][]payroll.DeductionLine
	holidays     map[int64][]payroll.PublicHolidayDetail
	payslipLines map[int64][]payroll.PayslipLine // by snapshot id

	diffs map[diffKey]payroll.Diff

	amendments map[int64]payroll.Amendment
}

type detailKey struct {
	SnapshotID int64
	UserID     int64
}

type diffKey struct {
	From int64
	To   int64
}

func NewMemory() *Memory {
	return &Memory{
		runs:         make(map[int64]payroll.PayRun),
		revisions:    make(map[int64]payroll.Revision),
		snapshots:    make(map[int64]payroll.Snapshot),
		runSnapshots: make(map[int64][]int64),
		details:      make(map[int64]payroll.EmployeeDetail),
		detailIndex:  make(map[detailKey]int64),
		earnings:     make(map[int64][]payroll.EarningLine),
		deductions:   make(map[int64][]payroll.DeductionLine),
		holidays:     make(map[int64][]payroll.PublicHolidayDetail),
		payslipLines: make(map[int64][]payroll.PayslipLine),
		diffs:        make(map[diffKey]payroll.Diff),
		amendments:   make(map[int64]payroll.Amendment),
	}
}

func (m *Memory) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) CreateRun(_ context.Context, run *payroll.PayRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxNumber := 0
	for _, r := range m.runs {
		if r.RunNumber > maxNumber {
			maxNumber = r.RunNumber
		}
	}

	run.ID = m.nextIDLocked()
	run.RunNumber = maxNumber + 1
	m.runs[run.ID] = *run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id int64) (*payroll.PayRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, payroll.ErrRunNotFound
	}
	return &run, nil
}

func (m *Memory) ListRuns(_ context.Context) ([]payroll.PayRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]payroll.PayRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].RunNumber > out[j].RunNumber })
	return out, nil
}

func (m *Memory) SetRunStatus(_ context.Context, id int64, status payroll.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return payroll.ErrRunNotFound
	}
	run.Status = status
	m.runs[id] = run
	return nil
}

func (m *Memory) SetRunCompletion(_ context.Context, id int64, by string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return payroll.ErrRunNotFound
	}
	run.CompletedBy = by
	run.CompletedAt = &at
	m.runs[id] = run
	return nil
}

// =============================================================================
// REVISION STORE
// =============================================================================

// CreateRevision assigns the revision number under the store lock, so
// concurrent calls for the same run serialize and never collide.
func (m *Memory) CreateRevision(_ context.Context, rev *payroll.Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxNumber := 0
	for _, r := range m.revisions {
		if r.RunID == rev.RunID && r.RevisionNumber > maxNumber {
			maxNumber = r.RevisionNumber
		}
	}

	rev.ID = m.nextIDLocked()
	rev.RevisionNumber = maxNumber + 1
	m.revisions[rev.ID] = *rev
	return nil
}

func (m *Memory) GetRevision(_ context.Context, id int64) (*payroll.Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rev, ok := m.revisions[id]
	if !ok {
		return nil, payroll.ErrRevisionNotFound
	}
	return &rev, nil
}

func (m *Memory) ListRevisions(_ context.Context, runID int64) ([]payroll.Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.Revision
	for _, rev := range m.revisions {
		if rev.RunID == runID {
			out = append(out, rev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RevisionNumber < out[j].RevisionNumber })
	return out, nil
}

func (m *Memory) LinkRevisionSnapshot(_ context.Context, revisionID, snapshotID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rev, ok := m.revisions[revisionID]
	if !ok {
		return payroll.ErrRevisionNotFound
	}
	rev.SnapshotID = &snapshotID
	m.revisions[revisionID] = rev
	return nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (m *Memory) CreateSnapshot(_ context.Context, snap *payroll.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap.ID = m.nextIDLocked()
	m.snapshots[snap.ID] = *snap
	m.runSnapshots[snap.RunID] = append(m.runSnapshots[snap.RunID], snap.ID)
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, id int64) (*payroll.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[id]
	if !ok {
		return nil, payroll.ErrSnapshotNotFound
	}
	return &snap, nil
}

func (m *Memory) ListSnapshotIDs(_ context.Context, runID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, len(m.runSnapshots[runID]))
	copy(ids, m.runSnapshots[runID])
	return ids, nil
}

func (m *Memory) LatestSnapshot(_ context.Context, runID int64) (*payroll.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.runSnapshots[runID]
	if len(ids) == 0 {
		return nil, payroll.ErrSnapshotNotFound
	}
	snap := m.snapshots[ids[len(ids)-1]]
	return &snap, nil
}

// Corrupt overwrites a stored snapshot's hash or blob in place. Test hook:
// real stores have no mutation path for snapshots, so tamper scenarios are
// simulated here.
func (m *Memory) Corrupt(id int64, mutate func(*payroll.Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[id]
	if !ok {
		return
	}
	mutate(&snap)
	m.snapshots[id] = snap
}

// =============================================================================
// DETAIL STORE
// =============================================================================

func (m *Memory) PutEmployeeDetail(_ context.Context, d *payroll.EmployeeDetail,
	earnings []payroll.EarningLine, deductions []payroll.DeductionLine, holidays []payroll.PublicHolidayDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := detailKey{SnapshotID: d.SnapshotID, UserID: d.UserID}
	if existing, ok := m.detailIndex[key]; ok {
		d.ID = existing
	} else {
		d.ID = m.nextIDLocked()
		m.detailIndex[key] = d.ID
	}
	m.details[d.ID] = *d

	m.earnings[d.ID] = withDetailIDEarnings(d.ID, earnings)
	m.deductions[d.ID] = withDetailIDDeductions(d.ID, deductions)
	m.holidays[d.ID] = withDetailIDHolidays(d.ID, holidays)
	return nil
}

func withDetailIDEarnings(id int64, lines []payroll.EarningLine) []payroll.EarningLine {
	out := make([]payroll.EarningLine, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].EmployeeDetailID = id
	}
	return out
}

func withDetailIDDeductions(id int64, lines []payroll.DeductionLine) []payroll.DeductionLine {
	out := make([]payroll.DeductionLine, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].EmployeeDetailID = id
	}
	return out
}

func withDetailIDHolidays(id int64, lines []payroll.PublicHolidayDetail) []payroll.PublicHolidayDetail {
	out := make([]payroll.PublicHolidayDetail, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].EmployeeDetailID = id
	}
	return out
}

func (m *Memory) EmployeeDetails(_ context.Context, runID, snapshotID int64) ([]payroll.EmployeeDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.EmployeeDetail
	for _, d := range m.details {
		if d.RunID == runID && d.SnapshotID == snapshotID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) EmployeeLines(_ context.Context, detailID int64) ([]payroll.EarningLine, []payroll.DeductionLine, []payroll.PublicHolidayDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.details[detailID]; !ok {
		return nil, nil, nil, payroll.ErrEmployeeDetailNotFound
	}
	return m.earnings[detailID], m.deductions[detailID], m.holidays[detailID], nil
}

func (m *Memory) InsertPayslipLines(_ context.Context, lines []payroll.PayslipLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, line := range lines {
		line.ID = m.nextIDLocked()
		m.payslipLines[line.SnapshotID] = append(m.payslipLines[line.SnapshotID], line)
	}
	return nil
}

func (m *Memory) PayslipLines(_ context.Context, snapshotID int64) ([]payroll.PayslipLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]payroll.PayslipLine, len(m.payslipLines[snapshotID]))
	copy(out, m.payslipLines[snapshotID])
	return out, nil
}

// =============================================================================
// DIFF STORE
// =============================================================================

func (m *Memory) GetDiff(_ context.Context, fromID, toID int64) (*payroll.Diff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	diff, ok := m.diffs[diffKey{From: fromID, To: toID}]
	if !ok {
		return nil, nil
	}
	return &diff, nil
}

// PutDiff keeps the first write for a pair; a duplicate insert is success.
func (m *Memory) PutDiff(_ context.Context, d *payroll.Diff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := diffKey{From: d.FromSnapshotID, To: d.ToSnapshotID}
	if _, ok := m.diffs[key]; ok {
		return nil
	}
	m.diffs[key] = *d
	return nil
}

// =============================================================================
// AMENDMENT STORE
// =============================================================================

func (m *Memory) CreateAmendment(_ context.Context, a *payroll.Amendment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = m.nextIDLocked()
	m.amendments[a.ID] = *a
	return nil
}

func (m *Memory) GetAmendment(_ context.Context, id int64) (*payroll.Amendment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.amendments[id]
	if !ok {
		return nil, payroll.ErrAmendmentNotFound
	}
	return &a, nil
}

func (m *Memory) ListAmendments(_ context.Context, runID int64) ([]payroll.Amendment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.Amendment
	for _, a := range m.amendments {
		if a.RunID == runID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ResolveAmendment(_ context.Context, id int64, status payroll.ApprovalStatus, by string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.amendments[id]
	if !ok {
		return payroll.ErrAmendmentNotFound
	}
	if a.ApprovalStatus != payroll.ApprovalPending {
		return payroll.ErrAmendmentResolved
	}
	a.ApprovalStatus = status
	a.ResolvedBy = by
	a.ResolvedAt = &at
	m.amendments[id] = a
	return nil
}
