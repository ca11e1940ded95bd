/*
amendment.go - Manual amendment ledger

PURPOSE:
  Records manual, field-level pay adjustments against a run with an
  approval workflow. Amendments start pending; approved and rejected are
  terminal. Applying an approved amendment to a snapshot is up to the
  orchestration layer, not the engine.
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CreateAmendment records one requested adjustment. Delta is computed as
// newValue - oldValue and the amendment starts pending.
func (e *Engine) CreateAmendment(ctx context.Context, runID int64, employeeDetailID *int64, amendmentType, fieldName string, oldValue, newValue decimal.Decimal, reason string) (int64, error) {
	a := &Amendment{
		RunID:            runID,
		EmployeeDetailID: employeeDetailID,
		AmendmentType:    amendmentType,
		FieldName:        fieldName,
		OldValue:         oldValue,
		NewValue:         newValue,
		Delta:            newValue.Sub(oldValue),
		Reason:           reason,
		RequestedBy:      e.Actor.UserID,
		RequestedAt:      time.Now().UTC(),
		ApprovalStatus:   ApprovalPending,
	}

	if err := e.Store.CreateAmendment(ctx, a); err != nil {
		return 0, fmt.Errorf("creating amendment: %w", err)
	}

	e.logger().Info("created amendment",
		"run_id", runID,
		"amendment_id", a.ID,
		"field", fieldName,
		"delta", a.Delta)

	return a.ID, nil
}

// ResolveAmendment moves a pending amendment to approved or rejected.
// Both outcomes are terminal: resolving an already-resolved amendment
// returns ErrAmendmentResolved.
func (e *Engine) ResolveAmendment(ctx context.Context, amendmentID int64, status ApprovalStatus) error {
	if status != ApprovalApproved && status != ApprovalRejected {
		return fmt.Errorf("invalid resolution status %q", status)
	}

	if err := e.Store.ResolveAmendment(ctx, amendmentID, status, e.Actor.UserID, time.Now().UTC()); err != nil {
		return err
	}

	e.logger().Info("resolved amendment", "amendment_id", amendmentID, "status", status)
	return nil
}

// GetAmendment returns one amendment by id.
func (e *Engine) GetAmendment(ctx context.Context, amendmentID int64) (*Amendment, error) {
	return e.Store.GetAmendment(ctx, amendmentID)
}

// ListAmendments returns all amendments recorded against a run.
func (e *Engine) ListAmendments(ctx context.Context, runID int64) ([]Amendment, error) {
	return e.Store.ListAmendments(ctx, runID)
}
