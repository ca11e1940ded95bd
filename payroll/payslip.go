/*
payslip.go - Provider payslip records and the flattening adapter

PURPOSE:
  The payroll provider's SDK exposes payslips as accessor-heavy objects.
  The engine never touches those objects directly: the integration layer
  wraps them in small per-category capability interfaces, and the adapter
  here flattens whatever capabilities are present into plain Payslip
  records before hashing and storage.

ADAPTER CONTRACT:
  One optional interface per line category. A source that does not
  implement a category simply yields an empty list for it; absence is
  never an error. The engine performs no reflective probing for method
  existence.

CATEGORIES:
  earnings, deductions, leave earnings, reimbursements, employee tax,
  employer tax, superannuation, leave accruals, statutory deductions,
  tax settings (plus gross-earnings history and pay-period dates).
*/
package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// PLAIN PAYSLIP RECORDS
// =============================================================================

// Payslip is the flattened, storage-ready form of one provider payslip.
// Amount fields are pointers: a nil value records that the provider did
// not supply the figure, which is different from zero.
type Payslip struct {
	PayslipID  string `json:"payslipID,omitempty"`
	EmployeeID string `json:"employeeID,omitempty"`
	PayRunID   string `json:"payRunID,omitempty"`

	PeriodStart string `json:"periodStart,omitempty"`
	PeriodEnd   string `json:"periodEnd,omitempty"`
	PaymentDate string `json:"paymentDate,omitempty"`
	LastEdited  string `json:"lastEdited,omitempty"`

	Earnings            []PayslipEarningsLine      `json:"earnings,omitempty"`
	Deductions          []PayslipDeductionLine     `json:"deductions,omitempty"`
	LeaveEarnings       []PayslipEarningsLine      `json:"leaveEarnings,omitempty"`
	Reimbursements      []PayslipReimbursementLine `json:"reimbursements,omitempty"`
	EmployeeTax         []PayslipTaxLine           `json:"employeeTax,omitempty"`
	EmployerTax         []PayslipTaxLine           `json:"employerTax,omitempty"`
	Superannuation      []PayslipSuperLine         `json:"superannuation,omitempty"`
	LeaveAccruals       []PayslipLeaveAccrualLine  `json:"leaveAccruals,omitempty"`
	StatutoryDeductions []PayslipStatutoryLine     `json:"statutoryDeductions,omitempty"`

	TaxSettings  *PayslipTaxSettings   `json:"taxSettings,omitempty"`
	GrossHistory *GrossEarningsHistory `json:"grossHistory,omitempty"`
}

type PayslipEarningsLine struct {
	RateID              string           `json:"rateID,omitempty"`
	DisplayName         string           `json:"displayName,omitempty"`
	RatePerUnit         *decimal.Decimal `json:"ratePerUnit,omitempty"`
	Units               *decimal.Decimal `json:"units,omitempty"`
	FixedAmount         *decimal.Decimal `json:"fixedAmount,omitempty"`
	Amount              *decimal.Decimal `json:"amount,omitempty"`
	LinkedToTimesheet   bool             `json:"linkedToTimesheet,omitempty"`
	AverageDailyPayRate bool             `json:"averageDailyPayRate,omitempty"`
}

type PayslipDeductionLine struct {
	TypeID      string           `json:"typeID,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Percentage  *decimal.Decimal `json:"percentage,omitempty"`
}

type PayslipReimbursementLine struct {
	TypeID      string           `json:"typeID,omitempty"`
	Description string           `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

type PayslipTaxLine struct {
	TypeID       string           `json:"typeID,omitempty"`
	Description  string           `json:"description,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	GlobalTypeID string           `json:"globalTypeID,omitempty"`
}

type PayslipSuperLine struct {
	TypeID               string           `json:"typeID,omitempty"`
	DisplayName          string           `json:"displayName,omitempty"`
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	Percentage           *decimal.Decimal `json:"percentage,omitempty"`
	EmployeeContribution *decimal.Decimal `json:"employeeContribution,omitempty"`
	EmployerContribution *decimal.Decimal `json:"employerContribution,omitempty"`
}

type PayslipLeaveAccrualLine struct {
	LeaveTypeID   string           `json:"leaveTypeID,omitempty"`
	Units         *decimal.Decimal `json:"units,omitempty"`
	AutoCalculate bool             `json:"autoCalculate,omitempty"`
}

type PayslipStatutoryLine struct {
	TypeID      string           `json:"typeID,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

type PayslipTaxSettings struct {
	TaxCode        string           `json:"taxCode,omitempty"`
	SpecialTaxRate *decimal.Decimal `json:"specialTaxRate,omitempty"`
	LumpSumTaxCode string           `json:"lumpSumTaxCode,omitempty"`
	LumpSumAmount  *decimal.Decimal `json:"lumpSumAmount,omitempty"`
}

type GrossEarningsHistory struct {
	DayPayGrossEarnings  *decimal.Decimal `json:"dayPayGrossEarnings,omitempty"`
	WeekPayGrossEarnings *decimal.Decimal `json:"weekPayGrossEarnings,omitempty"`
}

// =============================================================================
// CAPABILITY INTERFACES - One per line category
// =============================================================================

// PayslipSource is the minimum a provider-shaped payslip must expose.
// Everything else is an optional capability below.
type PayslipSource interface {
	PayslipID() string
	EmployeeID() string
}

type PayRunRefSource interface{ PayRunID() string }

// PeriodSource exposes the pay period dates (YYYY-MM-DD) and payment date.
type PeriodSource interface{ PayPeriod() (start, end, payment string) }

type LastEditedSource interface{ LastEdited() string }

type EarningsSource interface{ EarningsLines() []PayslipEarningsLine }
type DeductionsSource interface{ DeductionLines() []PayslipDeductionLine }
type LeaveEarningsSource interface{ LeaveEarningsLines() []PayslipEarningsLine }
type ReimbursementsSource interface{ ReimbursementLines() []PayslipReimbursementLine }
type EmployeeTaxSource interface{ EmployeeTaxLines() []PayslipTaxLine }
type EmployerTaxSource interface{ EmployerTaxLines() []PayslipTaxLine }
type SuperannuationSource interface{ SuperannuationLines() []PayslipSuperLine }
type LeaveAccrualsSource interface{ LeaveAccrualLines() []PayslipLeaveAccrualLine }
type StatutoryDeductionsSource interface{ StatutoryDeductionLines() []PayslipStatutoryLine }
type TaxSettingsSource interface{ TaxSettings() *PayslipTaxSettings }
type GrossHistorySource interface{ GrossEarningsHistory() *GrossEarningsHistory }

// =============================================================================
// FLATTENING ADAPTER
// =============================================================================

// FlattenPayslip converts one provider-shaped source into a plain Payslip.
// Each category is taken from its capability interface when implemented
// and degrades to an empty list (or nil settings) when not.
func FlattenPayslip(src PayslipSource) Payslip {
	ps := Payslip{
		PayslipID:  src.PayslipID(),
		EmployeeID: src.EmployeeID(),
	}

	if s, ok := src.(PayRunRefSource); ok {
		ps.PayRunID = s.PayRunID()
	}
	if s, ok := src.(PeriodSource); ok {
		ps.PeriodStart, ps.PeriodEnd, ps.PaymentDate = s.PayPeriod()
	}
	if s, ok := src.(LastEditedSource); ok {
		ps.LastEdited = s.LastEdited()
	}
	if s, ok := src.(EarningsSource); ok {
		ps.Earnings = s.EarningsLines()
	}
	if s, ok := src.(DeductionsSource); ok {
		ps.Deductions = s.DeductionLines()
	}
	if s, ok := src.(LeaveEarningsSource); ok {
		ps.LeaveEarnings = s.LeaveEarningsLines()
	}
	if s, ok := src.(ReimbursementsSource); ok {
		ps.Reimbursements = s.ReimbursementLines()
	}
	if s, ok := src.(EmployeeTaxSource); ok {
		ps.EmployeeTax = s.EmployeeTaxLines()
	}
	if s, ok := src.(EmployerTaxSource); ok {
		ps.EmployerTax = s.EmployerTaxLines()
	}
	if s, ok := src.(SuperannuationSource); ok {
		ps.Superannuation = s.SuperannuationLines()
	}
	if s, ok := src.(LeaveAccrualsSource); ok {
		ps.LeaveAccruals = s.LeaveAccrualLines()
	}
	if s, ok := src.(StatutoryDeductionsSource); ok {
		ps.StatutoryDeductions = s.StatutoryDeductionLines()
	}
	if s, ok := src.(TaxSettingsSource); ok {
		ps.TaxSettings = s.TaxSettings()
	}
	if s, ok := src.(GrossHistorySource); ok {
		ps.GrossHistory = s.GrossEarningsHistory()
	}

	return ps
}

// FlattenPayslips flattens a batch of provider-shaped sources.
func FlattenPayslips(srcs []PayslipSource) []Payslip {
	if len(srcs) == 0 {
		return nil
	}
	out := make([]Payslip, 0, len(srcs))
	for _, src := range srcs {
		out = append(out, FlattenPayslip(src))
	}
	return out
}
