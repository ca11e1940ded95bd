/*
revision.go - Revision tracking

PURPOSE:
  Every mutating action against a run is logged as a revision before it
  happens. Revision numbers are strictly increasing from 1, unique per
  run, with no gaps; the store assigns the number atomically so that
  concurrent actions against the same run cannot collide.
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CreateRevision logs one mutating action against a run and returns the
// revision id. The revision number is assigned by the store.
func (e *Engine) CreateRevision(ctx context.Context, runID int64, actionType ActionType, description string, employeesAffected int, totalPayDelta decimal.Decimal) (int64, error) {
	rev := &Revision{
		RunID:             runID,
		ActionType:        actionType,
		Description:       description,
		EmployeesAffected: employeesAffected,
		TotalPayDelta:     totalPayDelta,
		PerformedBy:       e.Actor.UserID,
		PerformedAt:       time.Now().UTC(),
		IPAddress:         e.Actor.IPAddress,
		UserAgent:         e.Actor.UserAgent,
	}

	if err := e.Store.CreateRevision(ctx, rev); err != nil {
		return 0, fmt.Errorf("creating revision: %w", err)
	}

	e.logger().Info("created revision",
		"run_id", runID,
		"revision_id", rev.ID,
		"revision_number", rev.RevisionNumber,
		"action", actionType)

	return rev.ID, nil
}

// ListRevisions returns the revision log for a run in revision order.
func (e *Engine) ListRevisions(ctx context.Context, runID int64) ([]Revision, error) {
	return e.Store.ListRevisions(ctx, runID)
}
