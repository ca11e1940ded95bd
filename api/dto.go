/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Run:
    RunDTO, CreateRunRequest, UpdateRunStatusRequest

  Revision:
    RevisionDTO, CreateRevisionRequest

  Snapshot:
    SnapshotDTO, CaptureSnapshotRequest, EmployeeDetailDTO

  Amendment:
    AmendmentDTO, CreateAmendmentRequest

  Diffs and verification reuse the payroll package types directly: they
  are already JSON-tagged response shapes.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/types.go: Domain model
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// RUN TYPES
// =============================================================================

// RunDTO represents a pay run in API responses.
type RunDTO struct {
	ID          int64  `json:"id"`
	UUID        string `json:"uuid"`
	RunNumber   int    `json:"run_number"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PaymentDate string `json:"payment_date"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	CompletedBy string `json:"completed_by,omitempty"`
}

// CreateRunRequest is the request to start a pay run.
type CreateRunRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PaymentDate string `json:"payment_date"`
	Notes       string `json:"notes,omitempty"`
}

// UpdateRunStatusRequest moves a run to a new lifecycle status.
type UpdateRunStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// REVISION TYPES
// =============================================================================

// RevisionDTO represents one logged action in API responses.
type RevisionDTO struct {
	ID                int64           `json:"id"`
	RunID             int64           `json:"run_id"`
	RevisionNumber    int             `json:"revision_number"`
	ActionType        string          `json:"action_type"`
	Description       string          `json:"description,omitempty"`
	EmployeesAffected int             `json:"employees_affected"`
	TotalPayDelta     decimal.Decimal `json:"total_pay_delta"`
	PerformedBy       string          `json:"performed_by,omitempty"`
	PerformedAt       string          `json:"performed_at"`
	IPAddress         string          `json:"ip_address,omitempty"`
	UserAgent         string          `json:"user_agent,omitempty"`
	SnapshotID        *int64          `json:"snapshot_id,omitempty"`
}

// CreateRevisionRequest logs one mutating action against a run.
type CreateRevisionRequest struct {
	ActionType        string          `json:"action_type"`
	Description       string          `json:"description,omitempty"`
	EmployeesAffected int             `json:"employees_affected"`
	TotalPayDelta     decimal.Decimal `json:"total_pay_delta"`
}

// =============================================================================
// SNAPSHOT TYPES
// =============================================================================

// SnapshotDTO represents snapshot metadata. Domain blobs are not echoed
// back; they can be large and clients query the projection instead.
type SnapshotDTO struct {
	ID             int64  `json:"id"`
	RunID          int64  `json:"run_id"`
	RevisionID     *int64 `json:"revision_id,omitempty"`
	Type           string `json:"type"`
	TakenAt        string `json:"taken_at"`
	ContentHash    string `json:"content_hash"`
	EmployeeCount  int    `json:"employee_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// CaptureSnapshotRequest carries the full state universe to capture.
// Employees is the only required domain; the rest are captured verbatim
// when present and hash as absent when omitted.
type CaptureSnapshotRequest struct {
	RevisionID *int64 `json:"revision_id,omitempty"`
	Type       string `json:"type,omitempty"`

	Employees         []payroll.EmployeeRecord `json:"employees"`
	Timesheets        json.RawMessage          `json:"timesheets,omitempty"`
	AccountBalances   json.RawMessage          `json:"account_balances,omitempty"`
	Payslips          []payroll.Payslip        `json:"payslips,omitempty"`
	ProviderEmployees json.RawMessage          `json:"provider_employees,omitempty"`
	PublicHolidays    json.RawMessage          `json:"public_holidays,omitempty"`
	Bonuses           json.RawMessage          `json:"bonuses,omitempty"`
	Amendments        json.RawMessage          `json:"amendments,omitempty"`
	Config            *payroll.ConfigSnapshot  `json:"config,omitempty"`
}

// CaptureSnapshotResponse returns the new snapshot's identity.
type CaptureSnapshotResponse struct {
	SnapshotID  int64  `json:"snapshot_id"`
	ContentHash string `json:"content_hash"`
}

// EmployeeDetailDTO is one row of the per-snapshot employee projection.
type EmployeeDetailDTO struct {
	ID         int64 `json:"id"`
	RunID      int64 `json:"run_id"`
	SnapshotID int64 `json:"snapshot_id"`
	UserID     int64 `json:"user_id"`

	PayrollEmployeeID string `json:"payroll_employee_id,omitempty"`
	PayslipID         string `json:"payslip_id,omitempty"`
	RosterEmployeeID  string `json:"roster_employee_id,omitempty"`
	StoreCustomerID   string `json:"store_customer_id,omitempty"`

	Name  string `json:"name"`
	Email string `json:"email,omitempty"`

	TotalHours         decimal.Decimal `json:"total_hours"`
	OrdinaryHours      decimal.Decimal `json:"ordinary_hours"`
	OvertimeHours      decimal.Decimal `json:"overtime_hours"`
	LeaveHours         decimal.Decimal `json:"leave_hours"`
	PublicHolidayHours decimal.Decimal `json:"public_holiday_hours"`

	BasePay           decimal.Decimal `json:"base_pay"`
	OvertimePay       decimal.Decimal `json:"overtime_pay"`
	Commission        decimal.Decimal `json:"commission"`
	MonthlyBonus      decimal.Decimal `json:"monthly_bonus"`
	GoogleReviewBonus decimal.Decimal `json:"google_review_bonus"`
	VapeDropsBonus    decimal.Decimal `json:"vape_drops_bonus"`
	OtherBonuses      decimal.Decimal `json:"other_bonuses"`
	LeavePay          decimal.Decimal `json:"leave_pay"`
	PublicHolidayPay  decimal.Decimal `json:"public_holiday_pay"`
	GrossEarnings     decimal.Decimal `json:"gross_earnings"`

	AccountPaymentDeduction decimal.Decimal `json:"account_payment_deduction"`
	OtherDeductions         decimal.Decimal `json:"other_deductions"`
	TotalDeductions         decimal.Decimal `json:"total_deductions"`
	NetPay                  decimal.Decimal `json:"net_pay"`

	TimesheetCount      int    `json:"timesheet_count"`
	PublicHolidayWorked bool   `json:"public_holiday_worked"`
	ProcessingStatus    string `json:"processing_status"`
	SkipReason          string `json:"skip_reason,omitempty"`
	ErrorMessage        string `json:"error_message,omitempty"`
}

// =============================================================================
// AMENDMENT TYPES
// =============================================================================

// AmendmentDTO represents an amendment in API responses.
type AmendmentDTO struct {
	ID               int64           `json:"id"`
	RunID            int64           `json:"run_id"`
	EmployeeDetailID *int64          `json:"employee_detail_id,omitempty"`
	AmendmentType    string          `json:"amendment_type"`
	FieldName        string          `json:"field_name"`
	OldValue         decimal.Decimal `json:"old_value"`
	NewValue         decimal.Decimal `json:"new_value"`
	Delta            decimal.Decimal `json:"delta"`
	Reason           string          `json:"reason,omitempty"`
	RequestedBy      string          `json:"requested_by,omitempty"`
	RequestedAt      string          `json:"requested_at"`
	ApprovalStatus   string          `json:"approval_status"`
	ResolvedBy       string          `json:"resolved_by,omitempty"`
	ResolvedAt       string          `json:"resolved_at,omitempty"`
}

// CreateAmendmentRequest requests one manual field adjustment.
type CreateAmendmentRequest struct {
	EmployeeDetailID *int64          `json:"employee_detail_id,omitempty"`
	AmendmentType    string          `json:"amendment_type"`
	FieldName        string          `json:"field_name"`
	OldValue         decimal.Decimal `json:"old_value"`
	NewValue         decimal.Decimal `json:"new_value"`
	Reason           string          `json:"reason,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
