package payroll_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// FAKE PROVIDER SOURCES
// =============================================================================

// minimalSource implements only the base PayslipSource capabilities.
type minimalSource struct {
	id, employee string
}

func (s minimalSource) PayslipID() string  { return s.id }
func (s minimalSource) EmployeeID() string { return s.employee }

// richSource implements most line-category capabilities, mimicking a full
// provider SDK payslip.
type richSource struct {
	minimalSource
}

func (richSource) PayRunID() string { return "PR-2026-08" }

func (richSource) PayPeriod() (string, string, string) {
	return "2026-08-01", "2026-08-31", "2026-09-05"
}

func (richSource) EarningsLines() []payroll.PayslipEarningsLine {
	return []payroll.PayslipEarningsLine{
		{RateID: "ORD", DisplayName: "Ordinary Hours", Units: decPtr("76"), RatePerUnit: decPtr("30.50"), Amount: decPtr("2318.00")},
		{RateID: "BONUS", DisplayName: "Monthly Bonus", FixedAmount: decPtr("150.00"), Amount: decPtr("150.00")},
	}
}

func (richSource) DeductionLines() []payroll.PayslipDeductionLine {
	return []payroll.PayslipDeductionLine{
		{TypeID: "ACCT", DisplayName: "Staff Account", Amount: decPtr("50.00")},
	}
}

func (richSource) SuperannuationLines() []payroll.PayslipSuperLine {
	return []payroll.PayslipSuperLine{
		{TypeID: "KIWI", DisplayName: "KiwiSaver", Percentage: decPtr("3"),
			EmployeeContribution: decPtr("74.04"), EmployerContribution: decPtr("74.04")},
	}
}

func (richSource) LeaveAccrualLines() []payroll.PayslipLeaveAccrualLine {
	return []payroll.PayslipLeaveAccrualLine{
		{LeaveTypeID: "ANNUAL", Units: decPtr("6.67"), AutoCalculate: true},
	}
}

func (richSource) EmployeeTaxLines() []payroll.PayslipTaxLine {
	return []payroll.PayslipTaxLine{
		{TypeID: "PAYE", Description: "PAYE", Amount: decPtr("493.20")},
	}
}

func (richSource) TaxSettings() *payroll.PayslipTaxSettings {
	return &payroll.PayslipTaxSettings{TaxCode: "M"}
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// =============================================================================
// FLATTENING TESTS
// =============================================================================

func TestFlattenPayslip_AllCapabilities(t *testing.T) {
	src := richSource{minimalSource{id: "PS-1", employee: "XE-100"}}

	ps := payroll.FlattenPayslip(src)
	assert.Equal(t, "PS-1", ps.PayslipID)
	assert.Equal(t, "XE-100", ps.EmployeeID)
	assert.Equal(t, "PR-2026-08", ps.PayRunID)
	assert.Equal(t, "2026-08-01", ps.PeriodStart)
	assert.Equal(t, "2026-09-05", ps.PaymentDate)
	assert.Len(t, ps.Earnings, 2)
	assert.Len(t, ps.Deductions, 1)
	assert.Len(t, ps.Superannuation, 1)
	assert.Len(t, ps.LeaveAccruals, 1)
	assert.Len(t, ps.EmployeeTax, 1)
	require.NotNil(t, ps.TaxSettings)
	assert.Equal(t, "M", ps.TaxSettings.TaxCode)
}

func TestFlattenPayslip_MissingCapabilitiesAreEmpty(t *testing.T) {
	ps := payroll.FlattenPayslip(minimalSource{id: "PS-2", employee: "XE-200"})

	assert.Equal(t, "PS-2", ps.PayslipID)
	assert.Empty(t, ps.Earnings)
	assert.Empty(t, ps.Deductions)
	assert.Empty(t, ps.Reimbursements)
	assert.Empty(t, ps.StatutoryDeductions)
	assert.Nil(t, ps.TaxSettings)
	assert.Nil(t, ps.GrossHistory)
	assert.Empty(t, ps.PeriodStart)
}

// =============================================================================
// LINE INDEXING TESTS
// =============================================================================

func TestCaptureSnapshot_PayslipLinesLinkedToDetails(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine()
	runID := startRun(t, engine)

	record := emp(1, "Alice Chen", "2468.00")
	record.PayrollEmployeeID = "XE-100"

	snapshotID, err := engine.CaptureSnapshot(ctx, payroll.CaptureInput{
		RunID:          runID,
		Employees:      []payroll.EmployeeRecord{record},
		PayslipSources: []payroll.PayslipSource{richSource{minimalSource{id: "PS-1", employee: "XE-100"}}},
	})
	require.NoError(t, err)

	details, err := engine.EmployeeDetails(ctx, runID, snapshotID)
	require.NoError(t, err)
	require.Len(t, details, 1)

	lines, err := mem.PayslipLines(ctx, snapshotID)
	require.NoError(t, err)
	// 2 earnings + 1 deduction + 1 super + 1 leave accrual + 1 employee tax.
	require.Len(t, lines, 6)

	categories := map[payroll.PayslipLineCategory]int{}
	for _, line := range lines {
		categories[line.Category]++
		assert.Equal(t, details[0].ID, line.EmployeeDetailID)
		assert.Equal(t, "PS-1", line.PayslipID)
		assert.NotEmpty(t, line.LineJSON)
	}
	assert.Equal(t, 2, categories[payroll.LineEarnings])
	assert.Equal(t, 1, categories[payroll.LineDeduction])
	assert.Equal(t, 1, categories[payroll.LineSuperannuation])
	assert.Equal(t, 1, categories[payroll.LineLeaveAccrual])
	assert.Equal(t, 1, categories[payroll.LineEmployeeTax])
}

func TestCaptureSnapshot_UnlinkablePayslipSkipped(t *testing.T) {
	// GIVEN: a payslip whose provider employee id matches no captured
	// employee
	// THEN: capture succeeds, the payslip stays in the hashed blob, and
	// none of its lines are indexed

	ctx := context.Background()
	engine, mem := newTestEngine()
	runID := startRun(t, engine)

	record := emp(1, "Alice Chen", "2468.00")
	record.PayrollEmployeeID = "XE-100"

	snapshotID, err := engine.CaptureSnapshot(ctx, payroll.CaptureInput{
		RunID:     runID,
		Employees: []payroll.EmployeeRecord{record},
		PayslipSources: []payroll.PayslipSource{
			richSource{minimalSource{id: "PS-9", employee: "XE-UNKNOWN"}},
		},
	})
	require.NoError(t, err)

	lines, err := mem.PayslipLines(ctx, snapshotID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	snap, err := engine.GetSnapshot(ctx, snapshotID)
	require.NoError(t, err)
	assert.NotNil(t, snap.Blobs.Payslips)
}

func TestCaptureSnapshot_SourcesAndPlainPayslipsCombined(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine()
	runID := startRun(t, engine)

	alice := emp(1, "Alice Chen", "2468.00")
	alice.PayrollEmployeeID = "XE-100"
	ben := emp(2, "Ben Torres", "900.00")
	ben.PayrollEmployeeID = "XE-200"

	amount := dec("900.00")
	plain := payroll.Payslip{
		PayslipID:  "PS-PLAIN",
		EmployeeID: "XE-200",
		Earnings:   []payroll.PayslipEarningsLine{{RateID: "ORD", Amount: &amount}},
	}

	snapshotID, err := engine.CaptureSnapshot(ctx, payroll.CaptureInput{
		RunID:          runID,
		Employees:      []payroll.EmployeeRecord{alice, ben},
		Payslips:       []payroll.Payslip{plain},
		PayslipSources: []payroll.PayslipSource{richSource{minimalSource{id: "PS-1", employee: "XE-100"}}},
	})
	require.NoError(t, err)

	lines, err := mem.PayslipLines(ctx, snapshotID)
	require.NoError(t, err)

	byPayslip := map[string]int{}
	for _, line := range lines {
		byPayslip[line.PayslipID]++
	}
	assert.Equal(t, 1, byPayslip["PS-PLAIN"])
	assert.Equal(t, 6, byPayslip["PS-1"])
}
