/*
run.go - Pay run lifecycle

PURPOSE:
  Creating pay runs and moving them through their status lifecycle
  (draft -> ... -> completed). Runs are never deleted; everything except
  status and completion metadata is immutable after creation.
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRunResult is returned by StartRun.
type StartRunResult struct {
	RunID     int64
	UUID      string
	RunNumber int
}

// StartRun creates a new pay run in draft status. The run number is the
// current maximum across all runs plus one; the UUID is a fresh v4.
//
// Period and payment date consistency is deliberately NOT validated here:
// the caller owns that check.
func (e *Engine) StartRun(ctx context.Context, periodStart, periodEnd, paymentDate, notes string) (StartRunResult, error) {
	run := &PayRun{
		UUID:        uuid.NewString(),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		PaymentDate: paymentDate,
		Status:      RunDraft,
		Notes:       notes,
		CreatedBy:   e.Actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.Store.CreateRun(ctx, run); err != nil {
		return StartRunResult{}, fmt.Errorf("creating pay run: %w", err)
	}

	e.logger().Info("started pay run",
		"run_id", run.ID,
		"run_uuid", run.UUID,
		"run_number", run.RunNumber,
		"period", periodStart+" to "+periodEnd)

	return StartRunResult{RunID: run.ID, UUID: run.UUID, RunNumber: run.RunNumber}, nil
}

// GetRun returns a pay run by id.
func (e *Engine) GetRun(ctx context.Context, runID int64) (*PayRun, error) {
	return e.Store.GetRun(ctx, runID)
}

// ListRuns returns all pay runs, newest first.
func (e *Engine) ListRuns(ctx context.Context) ([]PayRun, error) {
	return e.Store.ListRuns(ctx)
}

// UpdateRunStatus moves a run to the given status. Reaching posted or
// completed also stamps completion metadata with the current actor.
func (e *Engine) UpdateRunStatus(ctx context.Context, runID int64, status RunStatus) error {
	if err := e.Store.SetRunStatus(ctx, runID, status); err != nil {
		return fmt.Errorf("updating run status: %w", err)
	}

	if status == RunPosted || status == RunCompleted {
		if err := e.Store.SetRunCompletion(ctx, runID, e.Actor.UserID, time.Now().UTC()); err != nil {
			return fmt.Errorf("stamping run completion: %w", err)
		}
	}

	e.logger().Info("updated run status", "run_id", runID, "status", status)
	return nil
}
