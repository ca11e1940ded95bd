/*
normalize.go - Per-employee projection and payslip line indexing

PURPOSE:
  After every capture, the opaque employee-state blob is projected into
  queryable rows: one EmployeeDetail per employee plus child earning,
  deduction and public-holiday rows, and one PayslipLine per provider
  payslip line item, linked back to the owning detail row.

TOLERANCE:
  The input shape is not fixed across callers. Missing fields project as
  zero/empty, never as errors. Payslip lines that cannot be linked to an
  employee detail (unknown provider employee id) are skipped; the skip
  count is returned so capture can log it.
*/
package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE DETAIL PROJECTION
// =============================================================================

// normalize materializes the projection rows for one snapshot. Returns
// the number of payslip lines that could not be linked.
func (e *Engine) normalize(ctx context.Context, runID, snapshotID int64, employees []EmployeeRecord, payslips []Payslip) (int, error) {
	detailByProviderID := make(map[string]int64, len(employees))

	for i := range employees {
		rec := &employees[i]

		detail, err := projectEmployee(runID, snapshotID, rec)
		if err != nil {
			return 0, fmt.Errorf("projecting employee %d: %w", rec.UserID, err)
		}

		if err := e.Store.PutEmployeeDetail(ctx, detail, rec.EarningLines, rec.DeductionLines, rec.PublicHolidays); err != nil {
			return 0, fmt.Errorf("storing employee detail %d: %w", rec.UserID, err)
		}

		if rec.PayrollEmployeeID != "" {
			detailByProviderID[rec.PayrollEmployeeID] = detail.ID
		}
	}

	if len(payslips) == 0 {
		return 0, nil
	}
	return e.storePayslipLines(ctx, runID, snapshotID, payslips, detailByProviderID)
}

// projectEmployee flattens one employee record into a detail row.
// Every source field is optional; zero values carry through unchanged.
func projectEmployee(runID, snapshotID int64, rec *EmployeeRecord) (*EmployeeDetail, error) {
	fullJSON, err := encodeDomain(rec)
	if err != nil {
		return nil, err
	}

	name := rec.Name
	if name == "" {
		name = "Unknown"
	}

	status := rec.ProcessingStatus
	if status == "" {
		status = "pending"
	}

	return &EmployeeDetail{
		RunID:      runID,
		SnapshotID: snapshotID,
		UserID:     rec.UserID,

		PayrollEmployeeID: rec.PayrollEmployeeID,
		PayslipID:         rec.PayslipID,
		RosterEmployeeID:  rec.RosterEmployeeID,
		StoreCustomerID:   rec.StoreCustomerID,

		Name:  name,
		Email: rec.Email,

		TotalHours:         rec.TotalHours,
		OrdinaryHours:      rec.OrdinaryHours,
		OvertimeHours:      rec.OvertimeHours,
		LeaveHours:         rec.LeaveHours,
		PublicHolidayHours: rec.PublicHolidayHours,

		BasePay:           rec.BasePay,
		OvertimePay:       rec.OvertimePay,
		Commission:        rec.Commission,
		MonthlyBonus:      rec.MonthlyBonus,
		GoogleReviewBonus: rec.GoogleReviewBonus,
		VapeDropsBonus:    rec.VapeDropsBonus,
		OtherBonuses:      rec.OtherBonuses,
		LeavePay:          rec.LeavePay,
		PublicHolidayPay:  rec.PublicHolidayPay,
		GrossEarnings:     rec.GrossEarnings,

		AccountPaymentDeduction: rec.AccountPaymentDeduction,
		OtherDeductions:         rec.OtherDeductions,
		TotalDeductions:         rec.TotalDeductions,
		NetPay:                  rec.NetPay,

		HourlyRate:     rec.HourlyRate,
		SalaryAnnual:   rec.SalaryAnnual,
		AccountBalance: rec.AccountBalance,

		TimesheetCount: rec.TimesheetCount,
		FirstPunch:     rec.FirstPunch,
		LastPunch:      rec.LastPunch,

		PublicHolidayWorked:       len(rec.PublicHolidays) > 0,
		HolidayPreference:         rec.HolidayPreference,
		AlternativeHolidayCreated: rec.AlternativeHolidayCreated,
		AlternativeHolidayHours:   rec.AlternativeHolidayHours,

		ProcessingStatus: status,
		SkipReason:       rec.SkipReason,
		ErrorMessage:     rec.ErrorMessage,

		FullRecordJSON: fullJSON,
	}, nil
}

// =============================================================================
// PAYSLIP LINE INDEXING
// =============================================================================

type PayslipLineCategory string

const (
	LineEarnings           PayslipLineCategory = "earnings"
	LineDeduction          PayslipLineCategory = "deduction"
	LineLeaveEarnings      PayslipLineCategory = "leave_earnings"
	LineReimbursement      PayslipLineCategory = "reimbursement"
	LineEmployeeTax        PayslipLineCategory = "employee_tax"
	LineEmployerTax        PayslipLineCategory = "employer_tax"
	LineSuperannuation     PayslipLineCategory = "superannuation"
	LineLeaveAccrual       PayslipLineCategory = "leave_accrual"
	LineStatutoryDeduction PayslipLineCategory = "statutory_deduction"
)

// PayslipLine is one provider payslip line item, indexed for querying and
// linked to the employee detail row captured in the same snapshot.
type PayslipLine struct {
	ID               int64
	RunID            int64
	SnapshotID       int64
	EmployeeDetailID int64
	PayslipID        string
	EmployeeID       string

	Category    PayslipLineCategory
	TypeID      string
	DisplayName string
	Description string

	RatePerUnit *decimal.Decimal
	Units       *decimal.Decimal
	FixedAmount *decimal.Decimal
	Percentage  *decimal.Decimal
	Amount      decimal.Decimal

	EmployeeContribution *decimal.Decimal
	EmployerContribution *decimal.Decimal

	LeaveTypeID   string
	LeaveUnits    *decimal.Decimal
	AutoCalculate bool

	PeriodStart string
	PeriodEnd   string
	PaymentDate string

	LineJSON []byte
}

// storePayslipLines links provider payslip line items to employee detail
// rows by provider employee id. Payslips that cannot be linked are skipped
// wholesale; their line count is returned.
func (e *Engine) storePayslipLines(ctx context.Context, runID, snapshotID int64, payslips []Payslip, detailByProviderID map[string]int64) (int, error) {
	var lines []PayslipLine
	skipped := 0

	for i := range payslips {
		ps := &payslips[i]

		detailID, linked := detailByProviderID[ps.EmployeeID]
		if ps.PayslipID == "" || ps.EmployeeID == "" || !linked {
			skipped += countPayslipLines(ps)
			continue
		}

		lines = append(lines, expandPayslipLines(runID, snapshotID, detailID, ps)...)
	}

	if len(lines) > 0 {
		if err := e.Store.InsertPayslipLines(ctx, lines); err != nil {
			return skipped, fmt.Errorf("storing payslip lines: %w", err)
		}
	}
	return skipped, nil
}

func countPayslipLines(ps *Payslip) int {
	return len(ps.Earnings) + len(ps.Deductions) + len(ps.LeaveEarnings) +
		len(ps.Reimbursements) + len(ps.EmployeeTax) + len(ps.EmployerTax) +
		len(ps.Superannuation) + len(ps.LeaveAccruals) + len(ps.StatutoryDeductions)
}

func expandPayslipLines(runID, snapshotID, detailID int64, ps *Payslip) []PayslipLine {
	base := PayslipLine{
		RunID:            runID,
		SnapshotID:       snapshotID,
		EmployeeDetailID: detailID,
		PayslipID:        ps.PayslipID,
		EmployeeID:       ps.EmployeeID,
		PeriodStart:      ps.PeriodStart,
		PeriodEnd:        ps.PeriodEnd,
		PaymentDate:      ps.PaymentDate,
	}

	var out []PayslipLine

	add := func(line PayslipLine, raw any) {
		line.LineJSON, _ = encodeDomain(raw)
		out = append(out, line)
	}

	for _, l := range ps.Earnings {
		line := base
		line.Category = LineEarnings
		line.TypeID = l.RateID
		line.DisplayName = l.DisplayName
		line.RatePerUnit = l.RatePerUnit
		line.Units = l.Units
		line.FixedAmount = l.FixedAmount
		line.Amount = deref(l.Amount)
		add(line, l)
	}

	for _, l := range ps.Deductions {
		line := base
		line.Category = LineDeduction
		line.TypeID = l.TypeID
		line.DisplayName = l.DisplayName
		line.Percentage = l.Percentage
		line.Amount = deref(l.Amount)
		add(line, l)
	}

	for _, l := range ps.LeaveEarnings {
		line := base
		line.Category = LineLeaveEarnings
		line.TypeID = l.RateID
		line.DisplayName = l.DisplayName
		line.RatePerUnit = l.RatePerUnit
		line.Units = l.Units
		line.FixedAmount = l.FixedAmount
		line.LeaveUnits = l.Units
		line.Amount = deref(l.Amount)
		add(line, l)
	}

	for _, l := range ps.Reimbursements {
		line := base
		line.Category = LineReimbursement
		line.TypeID = l.TypeID
		line.DisplayName = l.Description
		line.Description = l.Description
		line.Amount = deref(l.Amount)
		add(line, l)
	}

	for _, l := range ps.EmployeeTax {
		line := base
		line.Category = LineEmployeeTax
		line.TypeID = l.TypeID
		line.DisplayName = l.Description
		line.Description = l.Description
		line.Amount = deref(l.Amount)
		add(line, l)
	}

	for _, l := range ps.EmployerTax {
		line := base
		line.Category = LineEmployerTax
		line.TypeID = l.TypeID
		line.DisplayName = l.Description
		line.Description = l.Description
		line.Amount = deref(l.Amount)
		add(line, l)
	}

	for _, l := range ps.Superannuation {
		line := base
		line.Category = LineSuperannuation
		line.TypeID = l.TypeID
		line.DisplayName = l.DisplayName
		line.Percentage = l.Percentage
		line.Amount = deref(l.Amount)
		line.EmployeeContribution = l.EmployeeContribution
		line.EmployerContribution = l.EmployerContribution
		add(line, l)
	}

	for _, l := range ps.LeaveAccruals {
		line := base
		line.Category = LineLeaveAccrual
		line.DisplayName = "Leave Accrual"
		line.LeaveTypeID = l.LeaveTypeID
		line.LeaveUnits = l.Units
		line.AutoCalculate = l.AutoCalculate
		add(line, l)
	}

	for _, l := range ps.StatutoryDeductions {
		line := base
		line.Category = LineStatutoryDeduction
		line.TypeID = l.TypeID
		line.DisplayName = l.DisplayName
		line.Amount = deref(l.Amount)
		add(line, l)
	}

	return out
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
