package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

func TestCreateAmendment_PendingWithComputedDelta(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	engine = engine.WithActor(payroll.Actor{UserID: "manager@example.com"})
	runID := startRun(t, engine)

	id, err := engine.CreateAmendment(ctx, runID, nil, "bonus_correction", "monthlyBonus",
		dec("100.00"), dec("250.00"), "missed store target bonus")
	require.NoError(t, err)

	a, err := engine.GetAmendment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalPending, a.ApprovalStatus)
	assert.True(t, a.Delta.Equal(dec("150.00")))
	assert.Equal(t, "manager@example.com", a.RequestedBy)
	assert.Empty(t, a.ResolvedBy)
	assert.Nil(t, a.ResolvedAt)
}

func TestResolveAmendment_ApproveIsTerminal(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	engine = engine.WithActor(payroll.Actor{UserID: "approver@example.com"})
	runID := startRun(t, engine)

	id, err := engine.CreateAmendment(ctx, runID, nil, "bonus_correction", "monthlyBonus",
		dec("0"), dec("50.00"), "")
	require.NoError(t, err)

	require.NoError(t, engine.ResolveAmendment(ctx, id, payroll.ApprovalApproved))

	a, err := engine.GetAmendment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalApproved, a.ApprovalStatus)
	assert.Equal(t, "approver@example.com", a.ResolvedBy)
	require.NotNil(t, a.ResolvedAt)

	// Resolved is terminal in both directions.
	err = engine.ResolveAmendment(ctx, id, payroll.ApprovalRejected)
	assert.ErrorIs(t, err, payroll.ErrAmendmentResolved)
	err = engine.ResolveAmendment(ctx, id, payroll.ApprovalApproved)
	assert.ErrorIs(t, err, payroll.ErrAmendmentResolved)
}

func TestResolveAmendment_Reject(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	id, err := engine.CreateAmendment(ctx, runID, nil, "hours_correction", "totalHours",
		dec("80"), dec("76"), "timesheet error")
	require.NoError(t, err)

	require.NoError(t, engine.ResolveAmendment(ctx, id, payroll.ApprovalRejected))

	a, err := engine.GetAmendment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalRejected, a.ApprovalStatus)
}

func TestResolveAmendment_InvalidTargetStatus(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runID := startRun(t, engine)

	id, err := engine.CreateAmendment(ctx, runID, nil, "bonus_correction", "monthlyBonus",
		dec("0"), dec("10"), "")
	require.NoError(t, err)

	err = engine.ResolveAmendment(ctx, id, payroll.ApprovalPending)
	require.Error(t, err)

	// Still pending after the rejected transition attempt.
	a, err := engine.GetAmendment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalPending, a.ApprovalStatus)
}

func TestResolveAmendment_Missing(t *testing.T) {
	engine, _ := newTestEngine()

	err := engine.ResolveAmendment(context.Background(), 777, payroll.ApprovalApproved)
	assert.ErrorIs(t, err, payroll.ErrAmendmentNotFound)
}

func TestListAmendments_ScopedToRun(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine()
	runA := startRun(t, engine)
	runB := startRun(t, engine)

	_, err := engine.CreateAmendment(ctx, runA, nil, "bonus_correction", "monthlyBonus", dec("0"), dec("10"), "")
	require.NoError(t, err)
	_, err = engine.CreateAmendment(ctx, runA, nil, "bonus_correction", "commission", dec("0"), dec("20"), "")
	require.NoError(t, err)
	_, err = engine.CreateAmendment(ctx, runB, nil, "bonus_correction", "netPay", dec("0"), dec("30"), "")
	require.NoError(t, err)

	forA, err := engine.ListAmendments(ctx, runA)
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	forB, err := engine.ListAmendments(ctx, runB)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, "netPay", forB[0].FieldName)
}
