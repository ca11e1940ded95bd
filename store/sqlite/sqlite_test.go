package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "payroll_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testRun(t *testing.T, s *Store) int64 {
	t.Helper()
	run := &payroll.PayRun{
		UUID:        "run-" + t.Name(),
		PeriodStart: "2026-08-01",
		PeriodEnd:   "2026-08-31",
		PaymentDate: "2026-09-05",
		Status:      payroll.RunDraft,
	}
	require.NoError(t, s.CreateRun(context.Background(), run))
	return run.ID
}

// =============================================================================
// ENGINE-OVER-SQLITE TESTS
// =============================================================================

func TestEngineLifecycle_SQLite(t *testing.T) {
	ctx := context.Background()
	engine := payroll.New(newTestStore(t))
	engine = engine.WithActor(payroll.Actor{UserID: "ops@example.com", IPAddress: "127.0.0.1"})

	result, err := engine.StartRun(ctx, "2026-08-01", "2026-08-31", "2026-09-05", "sqlite lifecycle")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RunNumber)

	revisionID, err := engine.CreateRevision(ctx, result.RunID, payroll.ActionLoadPayroll, "load", 2, decimal.Zero)
	require.NoError(t, err)

	employees := []payroll.EmployeeRecord{
		{UserID: 1, Name: "Alice Chen", GrossEarnings: dec("1000.00"), NetPay: dec("812.40")},
		{UserID: 2, Name: "Ben Torres", GrossEarnings: dec("850.50")},
	}

	before, err := engine.CaptureSnapshot(ctx, payroll.CaptureInput{
		RunID:      result.RunID,
		RevisionID: &revisionID,
		Type:       payroll.SnapshotPreLoad,
		Employees:  employees,
	})
	require.NoError(t, err)

	changed := make([]payroll.EmployeeRecord, len(employees))
	copy(changed, employees)
	changed[0].GrossEarnings = dec("1200.00")

	after, err := engine.CaptureSnapshot(ctx, payroll.CaptureInput{
		RunID:     result.RunID,
		Type:      payroll.SnapshotPrePush,
		Employees: changed,
	})
	require.NoError(t, err)

	// Diff survives the round trip through TEXT columns.
	diff, err := engine.CalculateDiff(ctx, before, after)
	require.NoError(t, err)
	require.Len(t, diff.Modifications, 1)
	assert.True(t, diff.Summary.TotalPayDelta.Equal(dec("200.00")))

	cached, err := engine.CalculateDiff(ctx, before, after)
	require.NoError(t, err)
	assert.True(t, cached.Summary.TotalPayDelta.Equal(diff.Summary.TotalPayDelta))

	verification, err := engine.VerifyRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.True(t, verification.AllValid)
	assert.Equal(t, 2, verification.TotalSnapshots)

	details, err := engine.EmployeeDetails(ctx, result.RunID, before)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.True(t, details[0].NetPay.Equal(dec("812.40")))

	revs, err := engine.ListRevisions(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	require.NotNil(t, revs[0].SnapshotID)
	assert.Equal(t, before, *revs[0].SnapshotID)
}

func TestVerifySnapshot_DetectsDirectTampering(t *testing.T) {
	// GIVEN: a snapshot row altered with raw SQL behind the engine's back
	// THEN: verification flags the hash mismatch

	ctx := context.Background()
	store := newTestStore(t)
	engine := payroll.New(store)
	runID := testRun(t, store)

	snapshotID, err := engine.CaptureSnapshot(ctx, payroll.CaptureInput{
		RunID:     runID,
		Employees: []payroll.EmployeeRecord{{UserID: 1, Name: "Alice Chen", GrossEarnings: dec("1000.00")}},
	})
	require.NoError(t, err)

	_, err = store.db.Exec(
		`UPDATE payroll_snapshots SET employees_json = ? WHERE id = ?`,
		`[{"userID":1,"name":"Alice Chen","grossEarnings":"99999.00"}]`, snapshotID)
	require.NoError(t, err)

	result, err := engine.VerifySnapshot(ctx, snapshotID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.HashMatch)
	assert.NotEqual(t, result.StoredHash, result.ComputedHash)
}

// =============================================================================
// STORE-LEVEL TESTS
// =============================================================================

func TestCreateRevision_UniquePerRunUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	runID := testRun(t, store)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	revs := make([]*payroll.Revision, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rev := &payroll.Revision{RunID: runID, ActionType: payroll.ActionManualOverride}
			errs[i] = store.CreateRevision(ctx, rev)
			revs[i] = rev
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[revs[i].RevisionNumber], "duplicate revision number %d", revs[i].RevisionNumber)
		seen[revs[i].RevisionNumber] = true
	}
}

func TestPutEmployeeDetail_UpsertReplacesChildLines(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	runID := testRun(t, store)

	snap := &payroll.Snapshot{RunID: runID, Type: payroll.SnapshotManual, ContentHash: "x"}
	require.NoError(t, store.CreateSnapshot(ctx, snap))

	detail := &payroll.EmployeeDetail{
		RunID: runID, SnapshotID: snap.ID, UserID: 1,
		Name: "Alice Chen", ProcessingStatus: "pending",
		GrossEarnings: dec("1000.00"),
	}
	earnings := []payroll.EarningLine{{Type: "ordinary", Total: dec("1000.00")}}
	require.NoError(t, store.PutEmployeeDetail(ctx, detail, earnings, nil, nil))
	firstID := detail.ID

	// Second write for the same (snapshot, user) updates in place.
	detail2 := &payroll.EmployeeDetail{
		RunID: runID, SnapshotID: snap.ID, UserID: 1,
		Name: "Alice Chen", ProcessingStatus: "completed",
		GrossEarnings: dec("1150.00"),
	}
	earnings2 := []payroll.EarningLine{
		{Type: "ordinary", Total: dec("1000.00")},
		{Type: "bonus", Total: dec("150.00"), IsBonus: true},
	}
	require.NoError(t, store.PutEmployeeDetail(ctx, detail2, earnings2, nil, nil))
	assert.Equal(t, firstID, detail2.ID)

	details, err := store.EmployeeDetails(ctx, runID, snap.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.True(t, details[0].GrossEarnings.Equal(dec("1150.00")))
	assert.Equal(t, "completed", details[0].ProcessingStatus)

	gotEarnings, _, _, err := store.EmployeeLines(ctx, firstID)
	require.NoError(t, err)
	assert.Len(t, gotEarnings, 2)
}

func TestPutDiff_DuplicatePairIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := &payroll.Diff{
		FromSnapshotID: 1, ToSnapshotID: 2,
		Additions: []payroll.DiffEntry{}, Modifications: []payroll.DiffModification{},
		Deletions: []payroll.DiffEntry{}, EmployeesChanged: []int64{1},
		Summary: payroll.DiffSummary{ModificationsCount: 1, TotalPayDelta: dec("10.00")},
	}
	require.NoError(t, store.PutDiff(ctx, first))

	second := &payroll.Diff{
		FromSnapshotID: 1, ToSnapshotID: 2,
		Additions: []payroll.DiffEntry{}, Modifications: []payroll.DiffModification{},
		Deletions: []payroll.DiffEntry{}, EmployeesChanged: []int64{},
		Summary: payroll.DiffSummary{TotalPayDelta: dec("999.00")},
	}
	require.NoError(t, store.PutDiff(ctx, second))

	// First write wins.
	got, err := store.GetDiff(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Summary.TotalPayDelta.Equal(dec("10.00")))
}

func TestGetDiff_MissingPairReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetDiff(context.Background(), 5, 6)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveAmendment_ConditionalTransition(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	runID := testRun(t, store)

	a := &payroll.Amendment{
		RunID: runID, AmendmentType: "bonus_correction", FieldName: "monthlyBonus",
		OldValue: dec("0"), NewValue: dec("50"), Delta: dec("50"),
		ApprovalStatus: payroll.ApprovalPending,
	}
	require.NoError(t, store.CreateAmendment(ctx, a))

	require.NoError(t, store.ResolveAmendment(ctx, a.ID, payroll.ApprovalApproved, "approver", a.RequestedAt))

	err := store.ResolveAmendment(ctx, a.ID, payroll.ApprovalRejected, "approver", a.RequestedAt)
	assert.ErrorIs(t, err, payroll.ErrAmendmentResolved)

	err = store.ResolveAmendment(ctx, 9999, payroll.ApprovalApproved, "approver", a.RequestedAt)
	assert.ErrorIs(t, err, payroll.ErrAmendmentNotFound)
}

func TestSnapshotBlobs_RoundTripNilVsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	runID := testRun(t, store)

	snap := &payroll.Snapshot{
		RunID: runID, Type: payroll.SnapshotManual,
		Blobs: payroll.SnapshotBlobs{
			Employees: []byte("[]"),
			Config:    []byte(`{"dryRun":true}`),
		},
	}
	snap.ContentHash = snap.Blobs.ContentHash()
	require.NoError(t, store.CreateSnapshot(ctx, snap))

	got, err := store.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), got.Blobs.Employees)
	assert.Nil(t, got.Blobs.Timesheets)
	assert.Equal(t, snap.ContentHash, got.Blobs.ContentHash())
}
