package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

func captureEmployees(t *testing.T, e *payroll.Engine, runID int64, employees ...payroll.EmployeeRecord) int64 {
	t.Helper()
	id, err := e.CaptureSnapshot(context.Background(), payroll.CaptureInput{
		RunID:     runID,
		Employees: employees,
	})
	require.NoError(t, err)
	return id
}

// =============================================================================
// DIFF CONTENT TESTS
// =============================================================================

func TestCalculateDiff_IdenticalSnapshots(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	employees := []payroll.EmployeeRecord{emp(1, "Alice Chen", "1000.00"), emp(2, "Ben Torres", "850.50")}
	from := captureEmployees(t, engine, runID, employees...)
	to := captureEmployees(t, engine, runID, employees...)

	diff, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)
	assert.Empty(t, diff.Additions)
	assert.Empty(t, diff.Modifications)
	assert.Empty(t, diff.Deletions)
	assert.Empty(t, diff.EmployeesChanged)
	assert.True(t, diff.Summary.TotalPayDelta.IsZero())
}

func TestCalculateDiff_GrossEarningsModification(t *testing.T) {
	// GIVEN: one employee whose gross moves 1000.00 -> 1200.00
	// THEN: one modification with delta +200.00 and matching summary

	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	from := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))
	to := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1200.00"))

	diff, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)

	require.Len(t, diff.Modifications, 1)
	mod := diff.Modifications[0]
	assert.Equal(t, int64(1), mod.UserID)
	require.Contains(t, mod.Changes, "grossEarnings")
	change := mod.Changes["grossEarnings"]
	assert.True(t, change.From.Equal(dec("1000.00")))
	assert.True(t, change.To.Equal(dec("1200.00")))
	assert.True(t, change.Delta.Equal(dec("200.00")))

	assert.Equal(t, []int64{1}, diff.EmployeesChanged)
	assert.Equal(t, 1, diff.Summary.ModificationsCount)
	assert.Equal(t, 1, diff.Summary.EmployeesAffected)
	assert.True(t, diff.Summary.TotalPayDelta.Equal(dec("200.00")))
}

func TestCalculateDiff_BelowThresholdIgnored(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	// 0.005 below, 0.01 exactly at: neither exceeds the threshold.
	from := captureEmployees(t, engine, runID,
		emp(1, "Alice Chen", "1000.000"),
		emp(2, "Ben Torres", "500.00"),
	)
	to := captureEmployees(t, engine, runID,
		emp(1, "Alice Chen", "1000.005"),
		emp(2, "Ben Torres", "500.01"),
	)

	diff, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)
	assert.Empty(t, diff.Modifications)
	assert.True(t, diff.Summary.TotalPayDelta.IsZero())
}

func TestCalculateDiff_JustOverThresholdReported(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	from := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))
	to := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.011"))

	diff, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, diff.Modifications, 1)
}

func TestCalculateDiff_AdditionAndDeletion(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	from := captureEmployees(t, engine, runID,
		emp(1, "Alice Chen", "1000.00"),
		emp(2, "Ben Torres", "850.50"),
	)
	to := captureEmployees(t, engine, runID,
		emp(1, "Alice Chen", "1000.00"),
		emp(3, "Cara Singh", "400.00"),
	)

	diff, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)

	require.Len(t, diff.Additions, 1)
	assert.Equal(t, int64(3), diff.Additions[0].UserID)
	assert.True(t, diff.Additions[0].GrossEarnings.Equal(dec("400.00")))

	require.Len(t, diff.Deletions, 1)
	assert.Equal(t, int64(2), diff.Deletions[0].UserID)

	// Additions add gross, deletions subtract: 400.00 - 850.50.
	assert.True(t, diff.Summary.TotalPayDelta.Equal(dec("-450.50")))

	// Additions and deletions do not count as "changed" employees.
	assert.Empty(t, diff.EmployeesChanged)
	assert.Equal(t, 0, diff.Summary.EmployeesAffected)
}

func TestCalculateDiff_OnlyWhitelistedFieldsCompared(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	before := emp(1, "Alice Chen", "1000.00")
	before.OrdinaryHours = dec("76")

	after := before
	after.OrdinaryHours = dec("80") // not in the whitelist
	after.Commission = dec("120.00")

	from := captureEmployees(t, engine, runID, before)
	to := captureEmployees(t, engine, runID, after)

	diff, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)

	require.Len(t, diff.Modifications, 1)
	changes := diff.Modifications[0].Changes
	assert.Contains(t, changes, "commission")
	assert.NotContains(t, changes, "ordinaryHours")

	// Commission changes never feed the pay delta; only grossEarnings does.
	assert.True(t, diff.Summary.TotalPayDelta.IsZero())
}

func TestCalculateDiff_OutputSortedByUserID(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	from := captureEmployees(t, engine, runID, emp(5, "E", "10"), emp(3, "C", "10"), emp(9, "I", "10"))
	to := captureEmployees(t, engine, runID, emp(5, "E", "20"), emp(3, "C", "20"), emp(9, "I", "20"))

	diff, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 9}, diff.EmployeesChanged)
}

// =============================================================================
// MEMOIZATION AND ERROR TESTS
// =============================================================================

func TestCalculateDiff_Memoized(t *testing.T) {
	// GIVEN: a computed diff
	// WHEN: the underlying snapshot is corrupted afterwards
	// THEN: repeating the request serves the stored diff, proving the
	// second call never recomputed from blobs

	ctx := context.Background()
	engine, mem := newTestEngine()
	runID := startRun(t, engine)

	from := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))
	to := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1200.00"))

	first, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)

	mem.Corrupt(to, func(snap *payroll.Snapshot) {
		snap.Blobs.Employees = []byte("{broken")
	})

	second, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Modifications, second.Modifications)
}

func TestCalculateDiff_DirectionalPairsMemoizedSeparately(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	from := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))
	to := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1200.00"), emp(2, "Ben Torres", "300.00"))

	forward, err := engine.CalculateDiff(ctx, from, to)
	require.NoError(t, err)
	backward, err := engine.CalculateDiff(ctx, to, from)
	require.NoError(t, err)

	assert.Equal(t, 1, forward.Summary.AdditionsCount)
	assert.Equal(t, 0, forward.Summary.DeletionsCount)
	assert.Equal(t, 0, backward.Summary.AdditionsCount)
	assert.Equal(t, 1, backward.Summary.DeletionsCount)
	assert.True(t, forward.Summary.TotalPayDelta.Equal(dec("500.00")))
	assert.True(t, backward.Summary.TotalPayDelta.Equal(dec("-500.00")))
}

func TestCalculateDiff_MissingSnapshot(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	real := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))

	_, err := engine.CalculateDiff(ctx, real, 9999)
	assert.ErrorIs(t, err, payroll.ErrSnapshotNotFound)
	_, err = engine.CalculateDiff(ctx, 9999, real)
	assert.ErrorIs(t, err, payroll.ErrSnapshotNotFound)
}

func TestCalculateDiff_CorruptBlobSurfaced(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine()
	runID := startRun(t, engine)

	from := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))
	to := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1200.00"))

	mem.Corrupt(from, func(snap *payroll.Snapshot) {
		snap.Blobs.Employees = nil
	})

	_, err := engine.CalculateDiff(ctx, from, to)
	require.Error(t, err)
	assert.ErrorIs(t, err, payroll.ErrCorruptSnapshot)

	var decodeErr *payroll.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, from, decodeErr.SnapshotID)
	assert.Equal(t, "employees", decodeErr.Domain)
}
