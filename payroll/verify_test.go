package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

func TestVerifySnapshot_Intact(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	snapshotID := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))

	result, err := engine.VerifySnapshot(ctx, snapshotID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.HashMatch)
	assert.Equal(t, snapshotID, result.SnapshotID)
	assert.Equal(t, result.StoredHash, result.ComputedHash)
}

func TestVerifySnapshot_TamperedBlobDetected(t *testing.T) {
	// GIVEN: a stored snapshot whose employee blob is altered after capture
	// THEN: verification reports the mismatch as a result, not an error

	ctx := context.Background()
	engine, mem := newTestEngine()
	runID := startRun(t, engine)

	snapshotID := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))

	mem.Corrupt(snapshotID, func(snap *payroll.Snapshot) {
		snap.Blobs.Employees = []byte(`[{"userID":1,"name":"Alice Chen","grossEarnings":"9999.00"}]`)
	})

	result, err := engine.VerifySnapshot(ctx, snapshotID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.HashMatch)
	assert.NotEqual(t, result.StoredHash, result.ComputedHash)
}

func TestVerifySnapshot_Missing(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.VerifySnapshot(context.Background(), 404)
	assert.ErrorIs(t, err, payroll.ErrSnapshotNotFound)
}

func TestVerifyRun_AllSnapshotsChecked(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine()
	runID := startRun(t, engine)

	first := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1000.00"))
	second := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1100.00"))
	third := captureEmployees(t, engine, runID, emp(1, "Alice Chen", "1200.00"))

	mem.Corrupt(second, func(snap *payroll.Snapshot) {
		snap.Blobs.Bonuses = []byte(`{"injected":true}`)
	})

	result, err := engine.VerifyRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, result.RunID)
	assert.Equal(t, 3, result.TotalSnapshots)
	assert.Equal(t, 2, result.ValidCount)
	assert.Equal(t, 1, result.InvalidCount)
	assert.False(t, result.AllValid)

	// Results come back in creation order.
	require.Len(t, result.Results, 3)
	assert.Equal(t, first, result.Results[0].SnapshotID)
	assert.True(t, result.Results[0].Valid)
	assert.Equal(t, second, result.Results[1].SnapshotID)
	assert.False(t, result.Results[1].Valid)
	assert.Equal(t, third, result.Results[2].SnapshotID)
	assert.True(t, result.Results[2].Valid)
}

func TestVerifyRun_NoSnapshots(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	result, err := engine.VerifyRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalSnapshots)
	assert.True(t, result.AllValid)
}
