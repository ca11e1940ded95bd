package payroll_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine() (*payroll.Engine, *store.Memory) {
	mem := store.NewMemory()
	return payroll.New(mem), mem
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func emp(userID int64, name, gross string) payroll.EmployeeRecord {
	return payroll.EmployeeRecord{
		UserID:        userID,
		Name:          name,
		GrossEarnings: dec(gross),
	}
}

func startRun(t *testing.T, e *payroll.Engine) int64 {
	t.Helper()
	result, err := e.StartRun(context.Background(), "2026-08-01", "2026-08-31", "2026-09-05", "")
	require.NoError(t, err)
	return result.RunID
}

// =============================================================================
// RUN LIFECYCLE TESTS
// =============================================================================

func TestStartRun_DraftWithFreshIdentity(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	result, err := engine.StartRun(ctx, "2026-08-01", "2026-08-31", "2026-09-05", "august run")
	require.NoError(t, err)
	assert.NotZero(t, result.RunID)
	assert.NotEmpty(t, result.UUID)
	assert.Equal(t, 1, result.RunNumber)

	run, err := engine.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunDraft, run.Status)
	assert.Equal(t, "august run", run.Notes)
	assert.Nil(t, run.CompletedAt)
}

func TestStartRun_SequentialRunNumbers(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	var uuids []string
	for want := 1; want <= 3; want++ {
		result, err := engine.StartRun(ctx, "2026-08-01", "2026-08-31", "2026-09-05", "")
		require.NoError(t, err)
		assert.Equal(t, want, result.RunNumber)
		uuids = append(uuids, result.UUID)
	}

	assert.NotEqual(t, uuids[0], uuids[1])
	assert.NotEqual(t, uuids[1], uuids[2])
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	startRun(t, engine)
	startRun(t, engine)
	startRun(t, engine)

	runs, err := engine.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 3, runs[0].RunNumber)
	assert.Equal(t, 1, runs[2].RunNumber)
}

func TestUpdateRunStatus_PostedStampsCompletion(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	engine = engine.WithActor(payroll.Actor{UserID: "admin@example.com"})

	runID := startRun(t, engine)

	require.NoError(t, engine.UpdateRunStatus(ctx, runID, payroll.RunLoaded))
	run, err := engine.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunLoaded, run.Status)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, engine.UpdateRunStatus(ctx, runID, payroll.RunPosted))
	run, err = engine.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunPosted, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, "admin@example.com", run.CompletedBy)
}

func TestUpdateRunStatus_UnknownRun(t *testing.T) {
	engine, _ := newTestEngine()

	err := engine.UpdateRunStatus(context.Background(), 9999, payroll.RunLoaded)
	assert.True(t, payroll.IsNotFound(err))
}

func TestGetRun_UnknownRun(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.GetRun(context.Background(), 42)
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

// =============================================================================
// REVISION TESTS
// =============================================================================

func TestCreateRevision_NumbersFromOnePerRun(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()

	runA := startRun(t, engine)
	runB := startRun(t, engine)

	for i := 0; i < 3; i++ {
		_, err := engine.CreateRevision(ctx, runA, payroll.ActionLoadPayroll, "load", 10, decimal.Zero)
		require.NoError(t, err)
	}
	_, err := engine.CreateRevision(ctx, runB, payroll.ActionLoadPayroll, "load", 5, decimal.Zero)
	require.NoError(t, err)

	revsA, err := engine.ListRevisions(ctx, runA)
	require.NoError(t, err)
	require.Len(t, revsA, 3)
	for i, rev := range revsA {
		assert.Equal(t, i+1, rev.RevisionNumber)
	}

	// Each run owns its own sequence.
	revsB, err := engine.ListRevisions(ctx, runB)
	require.NoError(t, err)
	require.Len(t, revsB, 1)
	assert.Equal(t, 1, revsB[0].RevisionNumber)
}

func TestCreateRevision_ActorMetadataStamped(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	engine = engine.WithActor(payroll.Actor{
		UserID:    "ops@example.com",
		IPAddress: "10.1.2.3",
		UserAgent: "payroll-cli/1.0",
	})

	runID := startRun(t, engine)
	_, err := engine.CreateRevision(ctx, runID, payroll.ActionCalculateBonus, "monthly bonuses", 12, dec("345.60"))
	require.NoError(t, err)

	revs, err := engine.ListRevisions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "ops@example.com", revs[0].PerformedBy)
	assert.Equal(t, "10.1.2.3", revs[0].IPAddress)
	assert.Equal(t, "payroll-cli/1.0", revs[0].UserAgent)
	assert.True(t, revs[0].TotalPayDelta.Equal(dec("345.60")))
}

func TestCreateRevision_ConcurrentCreatorsGetUniqueNumbers(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.CreateRevision(ctx, runID, payroll.ActionManualOverride, "", 0, decimal.Zero)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	revs, err := engine.ListRevisions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, revs, workers)

	seen := make(map[int]bool, workers)
	for _, rev := range revs {
		assert.False(t, seen[rev.RevisionNumber], "duplicate revision number %d", rev.RevisionNumber)
		seen[rev.RevisionNumber] = true
		assert.GreaterOrEqual(t, rev.RevisionNumber, 1)
		assert.LessOrEqual(t, rev.RevisionNumber, workers)
	}
}
