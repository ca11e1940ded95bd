/*
Package payroll provides the pay-run state snapshot and diff engine.

PURPOSE:
  This package contains the types and algorithms for capturing, hashing,
  indexing and comparing complete point-in-time states of a payroll
  processing run. Pay figures are calculated elsewhere; the engine consumes
  plain data and hands back identifiers, diffs and verification results.

KEY CONCEPTS IN THIS FILE (types.go):
  - PayRun: One payroll processing cycle (period + payment date)
  - Revision: A logged mutating action within a run, numbered from 1
  - Snapshot: Immutable, content-hashed capture of the full run state
  - EmployeeRecord: Loosely-shaped per-employee input, all fields defaulted
  - EmployeeDetail: Denormalized per-employee projection of a snapshot

DESIGN PRINCIPLES:
  1. Immutability: Snapshots and revisions are never modified, only appended
  2. Precision: Uses decimal.Decimal for every pay and hours figure
  3. Tolerance: Input records may omit any field; absence defaults, never errors
  4. Auditability: Every mutating action carries actor and request metadata

SEE ALSO:
  - snapshot.go: Capture and content hashing
  - diff.go: Structured snapshot comparison
  - store.go: Persistence interfaces
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY RUN - One payroll processing cycle
// =============================================================================

type RunStatus string

const (
	RunDraft     RunStatus = "draft"     // Created, nothing loaded yet
	RunLoaded    RunStatus = "loaded"    // Source data loaded
	RunReview    RunStatus = "review"    // Awaiting review/amendments
	RunPosted    RunStatus = "posted"    // Pushed to the payroll provider
	RunCompleted RunStatus = "completed" // Finalized
)

// PayRun is created once and never deleted. Status changes go through
// Engine.UpdateRunStatus; everything else is immutable after creation.
type PayRun struct {
	ID          int64
	UUID        string
	RunNumber   int
	PeriodStart string // calendar date, YYYY-MM-DD
	PeriodEnd   string
	PaymentDate string
	Status      RunStatus
	Notes       string
	CreatedBy   string
	CreatedAt   time.Time

	// Set only when the run reaches posted/completed.
	CompletedAt *time.Time
	CompletedBy string
}

// =============================================================================
// REVISION - Logged mutating action against a run
// =============================================================================

type ActionType string

const (
	ActionLoadPayroll     ActionType = "load_payroll"
	ActionCalculateBonus  ActionType = "calculate_bonuses"
	ActionApplyAmendment  ActionType = "apply_amendment"
	ActionPushPayslips    ActionType = "push_payslips"
	ActionManualOverride  ActionType = "manual_override"
	ActionStatusChange    ActionType = "status_change"
)

// Revision is immutable once written. RevisionNumber starts at 1 and is
// strictly increasing per run with no gaps; the store assigns it atomically.
type Revision struct {
	ID                int64
	RunID             int64
	RevisionNumber    int
	ActionType        ActionType
	Description       string
	EmployeesAffected int
	TotalPayDelta     decimal.Decimal
	PerformedBy       string
	PerformedAt       time.Time
	IPAddress         string
	UserAgent         string

	// Back-link set when a snapshot is captured against this revision.
	SnapshotID *int64
}

// =============================================================================
// SNAPSHOT - Immutable content-hashed state capture
// =============================================================================

type SnapshotType string

const (
	SnapshotPreLoad   SnapshotType = "pre_load"
	SnapshotPrePush   SnapshotType = "pre_push"
	SnapshotPostPush  SnapshotType = "post_push"
	SnapshotAmendment SnapshotType = "amendment"
	SnapshotManual    SnapshotType = "manual"
)

// SnapshotBlobs holds one serialized blob per captured domain. A nil blob
// means the domain was absent at capture time and hashes as the empty string.
// Field order here is documentation only; the hash order is fixed by
// SnapshotBlobs.ordered and must never change (see snapshot.go).
type SnapshotBlobs struct {
	Employees         []byte
	Timesheets        []byte
	AccountBalances   []byte
	Payslips          []byte
	ProviderEmployees []byte
	PublicHolidays    []byte
	Bonuses           []byte
	Amendments        []byte
	Config            []byte
}

// Snapshot is append-only: never mutated after creation. Recomputing the
// content hash from Blobs must always equal ContentHash.
type Snapshot struct {
	ID             int64
	RunID          int64
	RevisionID     *int64
	Type           SnapshotType
	TakenAt        time.Time
	Blobs          SnapshotBlobs
	ContentHash    string
	EmployeeCount  int
	TotalSizeBytes int64
}

// =============================================================================
// EMPLOYEE RECORD - Loosely-shaped per-employee input
// =============================================================================

// EmployeeRecord is the per-employee state handed in by the orchestration
// layer. The upstream shape is not fixed: callers populate whatever they
// have and every field defaults to its zero value. The engine never rejects
// a record for missing fields.
type EmployeeRecord struct {
	UserID int64  `json:"userID"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`

	// External system identifiers.
	PayrollEmployeeID string `json:"payrollEmployeeID,omitempty"`
	PayslipID         string `json:"payslipID,omitempty"`
	RosterEmployeeID  string `json:"rosterEmployeeID,omitempty"`
	StoreCustomerID   string `json:"storeCustomerID,omitempty"`

	// Hours.
	TotalHours         decimal.Decimal `json:"totalHours"`
	OrdinaryHours      decimal.Decimal `json:"ordinaryHours"`
	OvertimeHours      decimal.Decimal `json:"overtimeHours"`
	LeaveHours         decimal.Decimal `json:"leaveHours"`
	PublicHolidayHours decimal.Decimal `json:"publicHolidayHours"`

	// Pay components.
	BasePay           decimal.Decimal `json:"basePay"`
	OvertimePay       decimal.Decimal `json:"overtimePay"`
	Commission        decimal.Decimal `json:"commission"`
	MonthlyBonus      decimal.Decimal `json:"monthlyBonus"`
	GoogleReviewBonus decimal.Decimal `json:"googleReviewBonus"`
	VapeDropsBonus    decimal.Decimal `json:"vapeDropsBonus"`
	OtherBonuses      decimal.Decimal `json:"otherBonuses"`
	LeavePay          decimal.Decimal `json:"leavePay"`
	PublicHolidayPay  decimal.Decimal `json:"publicHolidayPay"`
	GrossEarnings     decimal.Decimal `json:"grossEarnings"`

	// Deductions and net.
	AccountPaymentDeduction decimal.Decimal `json:"accountPaymentDeduction"`
	OtherDeductions         decimal.Decimal `json:"otherDeductions"`
	TotalDeductions         decimal.Decimal `json:"totalDeductions"`
	NetPay                  decimal.Decimal `json:"netPay"`

	// Rates.
	HourlyRate   decimal.Decimal `json:"hourlyRate"`
	SalaryAnnual decimal.Decimal `json:"salaryAnnual"`

	// Account balance owed by the employee (deducted from pay).
	AccountBalance decimal.Decimal `json:"accountBalance"`

	// Timesheet summary.
	TimesheetCount int    `json:"timesheetCount,omitempty"`
	FirstPunch     string `json:"firstPunch,omitempty"`
	LastPunch      string `json:"lastPunch,omitempty"`

	// Public holiday handling.
	HolidayPreference         string          `json:"holidayPreference,omitempty"`
	AlternativeHolidayCreated bool            `json:"alternativeHolidayCreated,omitempty"`
	AlternativeHolidayHours   decimal.Decimal `json:"alternativeHolidayHours"`

	// Processing outcome.
	ProcessingStatus string `json:"processingStatus,omitempty"`
	SkipReason       string `json:"skipReason,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`

	// Child line items, stored per employee when present.
	EarningLines   []EarningLine         `json:"earningLines,omitempty"`
	DeductionLines []DeductionLine       `json:"deductionLines,omitempty"`
	PublicHolidays []PublicHolidayDetail `json:"publicHolidays,omitempty"`
}

// =============================================================================
// EMPLOYEE DETAIL - Denormalized projection, one row per (run, snapshot, employee)
// =============================================================================

type EmployeeDetail struct {
	ID         int64
	RunID      int64
	SnapshotID int64
	UserID     int64

	PayrollEmployeeID string
	PayslipID         string
	RosterEmployeeID  string
	StoreCustomerID   string

	Name  string
	Email string

	TotalHours         decimal.Decimal
	OrdinaryHours      decimal.Decimal
	OvertimeHours      decimal.Decimal
	LeaveHours         decimal.Decimal
	PublicHolidayHours decimal.Decimal

	BasePay           decimal.Decimal
	OvertimePay       decimal.Decimal
	Commission        decimal.Decimal
	MonthlyBonus      decimal.Decimal
	GoogleReviewBonus decimal.Decimal
	VapeDropsBonus    decimal.Decimal
	OtherBonuses      decimal.Decimal
	LeavePay          decimal.Decimal
	PublicHolidayPay  decimal.Decimal
	GrossEarnings     decimal.Decimal

	AccountPaymentDeduction decimal.Decimal
	OtherDeductions         decimal.Decimal
	TotalDeductions         decimal.Decimal
	NetPay                  decimal.Decimal

	HourlyRate     decimal.Decimal
	SalaryAnnual   decimal.Decimal
	AccountBalance decimal.Decimal

	TimesheetCount int
	FirstPunch     string
	LastPunch      string

	PublicHolidayWorked       bool
	HolidayPreference         string
	AlternativeHolidayCreated bool
	AlternativeHolidayHours   decimal.Decimal

	ProcessingStatus string
	SkipReason       string
	ErrorMessage     string

	// Complete source record, for drill-down.
	FullRecordJSON []byte
}

// =============================================================================
// CHILD LINE ITEMS - One-to-many under EmployeeDetail
// =============================================================================

type EarningLine struct {
	ID               int64 `json:"-"`
	EmployeeDetailID int64 `json:"-"`

	Type            string          `json:"type,omitempty"`
	RateID          string          `json:"rateId,omitempty"`
	RateName        string          `json:"rateName,omitempty"`
	Units           decimal.Decimal `json:"units"`
	RatePerUnit     decimal.Decimal `json:"ratePerUnit"`
	FixedAmount     decimal.Decimal `json:"fixedAmount"`
	Total           decimal.Decimal `json:"total"`
	IsLeave         bool            `json:"isLeave,omitempty"`
	IsOvertime      bool            `json:"isOvertime,omitempty"`
	IsBonus         bool            `json:"isBonus,omitempty"`
	IsPublicHoliday bool            `json:"isPublicHoliday,omitempty"`
	Source          string          `json:"source,omitempty"`
	SourceRef       string          `json:"sourceRef,omitempty"`
	Description     string          `json:"description,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

type DeductionLine struct {
	ID               int64 `json:"-"`
	EmployeeDetailID int64 `json:"-"`

	Type             string          `json:"type,omitempty"`
	Code             string          `json:"code,omitempty"`
	Name             string          `json:"name,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	StoreCustomerID  string          `json:"storeCustomerId,omitempty"`
	StorePaymentID   string          `json:"storePaymentId,omitempty"`
	AllocationStatus string          `json:"allocationStatus,omitempty"`
	AllocatedAt      string          `json:"allocatedAt,omitempty"`
	AllocationError  string          `json:"allocationError,omitempty"`
	Source           string          `json:"source,omitempty"`
	SourceRef        string          `json:"sourceRef,omitempty"`
	Description      string          `json:"description,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

type PublicHolidayDetail struct {
	ID               int64 `json:"-"`
	EmployeeDetailID int64 `json:"-"`

	Date                      string          `json:"date,omitempty"`
	Name                      string          `json:"name,omitempty"`
	HoursWorked               decimal.Decimal `json:"hoursWorked"`
	Worked                    bool            `json:"worked,omitempty"`
	Preference                string          `json:"preference,omitempty"`
	EarningsZeroed            bool            `json:"earningsZeroed,omitempty"`
	AlternativeHolidayCreated bool            `json:"alternativeHolidayCreated,omitempty"`
	LeaveHoursGranted         decimal.Decimal `json:"leaveHoursGranted"`
	ProviderLeaveID           string          `json:"providerLeaveId,omitempty"`
	OrdinaryPayRemoved        decimal.Decimal `json:"ordinaryPayRemoved"`
	PublicHolidayRateApplied  bool            `json:"publicHolidayRateApplied,omitempty"`
	TotalPayImpact            decimal.Decimal `json:"totalPayImpact"`
	Notes                     string          `json:"notes,omitempty"`
}

// =============================================================================
// CONFIG SNAPSHOT - Explicit caller-provided configuration capture
// =============================================================================

// ConfigSnapshot is the configuration in effect at capture time, passed in
// explicitly by the caller. The engine never reads process environment or
// global constants itself.
type ConfigSnapshot struct {
	TenantID    string            `json:"tenantID,omitempty"`
	Environment string            `json:"environment,omitempty"`
	DryRun      bool              `json:"dryRun"`
	CapturedAt  string            `json:"capturedAt,omitempty"`
	Constants   map[string]string `json:"constants,omitempty"`
}

// =============================================================================
// AMENDMENT - Manual field-level adjustment with approval workflow
// =============================================================================

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Amendment records a requested manual adjustment to one employee pay
// field. Approved and rejected are terminal; there is no way back to
// pending. Applying an approved amendment to a snapshot is the caller's
// job, not the engine's.
type Amendment struct {
	ID               int64
	RunID            int64
	EmployeeDetailID *int64
	AmendmentType    string
	FieldName        string
	OldValue         decimal.Decimal
	NewValue         decimal.Decimal
	Delta            decimal.Decimal // NewValue - OldValue
	Reason           string
	RequestedBy      string
	RequestedAt      time.Time
	ApprovalStatus   ApprovalStatus
	ResolvedBy       string
	ResolvedAt       *time.Time
}
