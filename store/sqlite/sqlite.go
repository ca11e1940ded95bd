/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements payroll.Store using SQLite. In production, the same patterns
  apply to PostgreSQL/MySQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  Snapshots and revisions are never updated or deleted. The two sanctioned
  mutations outside run status are the revision -> snapshot back-link and
  the pending -> approved/rejected amendment transition, both expressed as
  conditional UPDATEs.

REVISION NUMBERING:
  Revision numbers are assigned inside a transaction guarded by
  UNIQUE(run_id, revision_number), with a bounded retry on conflict. Two
  concurrent revisions against the same run can never share a number.

KEY TABLES:
  payroll_runs:             Pay run lifecycle rows
  payroll_revisions:        Per-run revision log (append-only)
  payroll_snapshots:        Immutable content-hashed state blobs
  payroll_employee_details: Normalized per-employee projection
  payroll_earning_lines / payroll_deduction_lines / payroll_public_holidays:
                            Child line items under employee details
  payroll_payslip_lines:    Indexed provider payslip line items
  payroll_snapshot_diffs:   Memoized diffs, unique per ordered pair
  payroll_amendments:       Manual adjustments with approval state

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.New(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/engine.go: Engine wiring the store
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// Store implements payroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Pay runs
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uuid TEXT NOT NULL UNIQUE,
		run_number INTEGER NOT NULL UNIQUE,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		completed_at TEXT,
		completed_by TEXT
	);

	-- Revisions (append-only log, one sequence per run)
	CREATE TABLE IF NOT EXISTS payroll_revisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES payroll_runs(id),
		revision_number INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		description TEXT,
		employees_affected INTEGER NOT NULL DEFAULT 0,
		total_pay_delta TEXT NOT NULL DEFAULT '0',
		performed_by TEXT,
		performed_at TEXT NOT NULL,
		ip_address TEXT,
		user_agent TEXT,
		snapshot_id INTEGER
	);

	-- CRITICAL: revision numbers are unique per run. Concurrent inserts
	-- that race on the same number fail here and retry.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_revisions_run_number
		ON payroll_revisions(run_id, revision_number);

	-- Snapshots (append-only, never updated)
	CREATE TABLE IF NOT EXISTS payroll_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES payroll_runs(id),
		revision_id INTEGER,
		snapshot_type TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		employees_json TEXT,
		timesheets_json TEXT,
		account_balances_json TEXT,
		payslips_json TEXT,
		provider_employees_json TEXT,
		public_holidays_json TEXT,
		bonuses_json TEXT,
		amendments_json TEXT,
		config_json TEXT,
		content_hash TEXT NOT NULL,
		employee_count INTEGER NOT NULL DEFAULT 0,
		total_size_bytes INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_run
		ON payroll_snapshots(run_id);

	-- Employee details (projection; upserted per snapshot+user)
	CREATE TABLE IF NOT EXISTS payroll_employee_details (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		snapshot_id INTEGER NOT NULL REFERENCES payroll_snapshots(id),
		user_id INTEGER NOT NULL,
		payroll_employee_id TEXT,
		payslip_id TEXT,
		roster_employee_id TEXT,
		store_customer_id TEXT,
		employee_name TEXT NOT NULL,
		employee_email TEXT,
		total_hours TEXT NOT NULL DEFAULT '0',
		ordinary_hours TEXT NOT NULL DEFAULT '0',
		overtime_hours TEXT NOT NULL DEFAULT '0',
		leave_hours TEXT NOT NULL DEFAULT '0',
		public_holiday_hours TEXT NOT NULL DEFAULT '0',
		base_pay TEXT NOT NULL DEFAULT '0',
		overtime_pay TEXT NOT NULL DEFAULT '0',
		commission TEXT NOT NULL DEFAULT '0',
		monthly_bonus TEXT NOT NULL DEFAULT '0',
		google_review_bonus TEXT NOT NULL DEFAULT '0',
		vape_drops_bonus TEXT NOT NULL DEFAULT '0',
		other_bonuses TEXT NOT NULL DEFAULT '0',
		leave_pay TEXT NOT NULL DEFAULT '0',
		public_holiday_pay TEXT NOT NULL DEFAULT '0',
		gross_earnings TEXT NOT NULL DEFAULT '0',
		account_payment_deduction TEXT NOT NULL DEFAULT '0',
		other_deductions TEXT NOT NULL DEFAULT '0',
		total_deductions TEXT NOT NULL DEFAULT '0',
		net_pay TEXT NOT NULL DEFAULT '0',
		hourly_rate TEXT NOT NULL DEFAULT '0',
		salary_annual TEXT NOT NULL DEFAULT '0',
		account_balance TEXT NOT NULL DEFAULT '0',
		timesheet_count INTEGER NOT NULL DEFAULT 0,
		first_punch TEXT,
		last_punch TEXT,
		public_holiday_worked INTEGER NOT NULL DEFAULT 0,
		holiday_preference TEXT,
		alternative_holiday_created INTEGER NOT NULL DEFAULT 0,
		alternative_holiday_hours TEXT NOT NULL DEFAULT '0',
		processing_status TEXT NOT NULL DEFAULT 'pending',
		skip_reason TEXT,
		error_message TEXT,
		full_record_json TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_details_snapshot_user
		ON payroll_employee_details(snapshot_id, user_id);
	CREATE INDEX IF NOT EXISTS idx_details_run_snapshot
		ON payroll_employee_details(run_id, snapshot_id);

	-- Earning lines
	CREATE TABLE IF NOT EXISTS payroll_earning_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_detail_id INTEGER NOT NULL REFERENCES payroll_employee_details(id),
		earning_type TEXT,
		rate_id TEXT,
		rate_name TEXT,
		units TEXT NOT NULL DEFAULT '0',
		rate_per_unit TEXT NOT NULL DEFAULT '0',
		fixed_amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		is_leave INTEGER NOT NULL DEFAULT 0,
		is_overtime INTEGER NOT NULL DEFAULT 0,
		is_bonus INTEGER NOT NULL DEFAULT 0,
		is_public_holiday INTEGER NOT NULL DEFAULT 0,
		source_type TEXT,
		source_reference TEXT,
		description TEXT,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_earning_lines_detail
		ON payroll_earning_lines(employee_detail_id);

	-- Deduction lines
	CREATE TABLE IF NOT EXISTS payroll_deduction_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_detail_id INTEGER NOT NULL REFERENCES payroll_employee_details(id),
		deduction_type TEXT,
		deduction_code TEXT,
		deduction_name TEXT,
		amount TEXT NOT NULL DEFAULT '0',
		store_customer_id TEXT,
		store_payment_id TEXT,
		allocation_status TEXT,
		allocated_at TEXT,
		allocation_error TEXT,
		source_type TEXT,
		source_reference TEXT,
		description TEXT,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deduction_lines_detail
		ON payroll_deduction_lines(employee_detail_id);

	-- Public holiday details
	CREATE TABLE IF NOT EXISTS payroll_public_holidays (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_detail_id INTEGER NOT NULL REFERENCES payroll_employee_details(id),
		holiday_date TEXT,
		holiday_name TEXT,
		hours_worked TEXT NOT NULL DEFAULT '0',
		worked INTEGER NOT NULL DEFAULT 0,
		preference TEXT,
		earnings_zeroed INTEGER NOT NULL DEFAULT 0,
		alternative_holiday_created INTEGER NOT NULL DEFAULT 0,
		leave_hours_granted TEXT NOT NULL DEFAULT '0',
		provider_leave_id TEXT,
		ordinary_pay_removed TEXT NOT NULL DEFAULT '0',
		public_holiday_rate_applied INTEGER NOT NULL DEFAULT 0,
		total_pay_impact TEXT NOT NULL DEFAULT '0',
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_public_holidays_detail
		ON payroll_public_holidays(employee_detail_id);

	-- Provider payslip lines
	CREATE TABLE IF NOT EXISTS payroll_payslip_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		snapshot_id INTEGER NOT NULL REFERENCES payroll_snapshots(id),
		employee_detail_id INTEGER NOT NULL REFERENCES payroll_employee_details(id),
		payslip_id TEXT NOT NULL,
		provider_employee_id TEXT NOT NULL,
		line_category TEXT NOT NULL,
		line_type_id TEXT,
		display_name TEXT,
		description TEXT,
		rate_per_unit TEXT,
		number_of_units TEXT,
		fixed_amount TEXT,
		percentage TEXT,
		calculated_amount TEXT NOT NULL DEFAULT '0',
		employee_contribution TEXT,
		employer_contribution TEXT,
		leave_type_id TEXT,
		leave_units TEXT,
		auto_calculate INTEGER NOT NULL DEFAULT 0,
		period_start_date TEXT,
		period_end_date TEXT,
		payment_date TEXT,
		full_line_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payslip_lines_snapshot
		ON payroll_payslip_lines(snapshot_id);
	CREATE INDEX IF NOT EXISTS idx_payslip_lines_detail
		ON payroll_payslip_lines(employee_detail_id);

	-- Memoized diffs, one row per ordered snapshot pair
	CREATE TABLE IF NOT EXISTS payroll_snapshot_diffs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_snapshot_id INTEGER NOT NULL,
		to_snapshot_id INTEGER NOT NULL,
		employees_changed INTEGER NOT NULL DEFAULT 0,
		total_pay_delta TEXT NOT NULL DEFAULT '0',
		changes_json TEXT NOT NULL,
		additions_count INTEGER NOT NULL DEFAULT 0,
		modifications_count INTEGER NOT NULL DEFAULT 0,
		deletions_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_diffs_pair
		ON payroll_snapshot_diffs(from_snapshot_id, to_snapshot_id);

	-- Amendments
	CREATE TABLE IF NOT EXISTS payroll_amendments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES payroll_runs(id),
		employee_detail_id INTEGER,
		amendment_type TEXT NOT NULL,
		field_name TEXT NOT NULL,
		old_value TEXT NOT NULL DEFAULT '0',
		new_value TEXT NOT NULL DEFAULT '0',
		delta TEXT NOT NULL DEFAULT '0',
		reason TEXT,
		requested_by TEXT,
		requested_at TEXT NOT NULL,
		approval_status TEXT NOT NULL DEFAULT 'pending',
		resolved_by TEXT,
		resolved_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_amendments_run
		ON payroll_amendments(run_id);
	CREATE INDEX IF NOT EXISTS idx_amendments_status
		ON payroll_amendments(approval_status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE
// =============================================================================

// CreateRun inserts a run with run_number = max+1, inside a transaction.
// The UNIQUE constraint on run_number backstops concurrent creators.
func (s *Store) CreateRun(ctx context.Context, run *payroll.PayRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT IFNULL(MAX(run_number), 0) + 1 FROM payroll_runs`).Scan(&next); err != nil {
		return fmt.Errorf("failed to allocate run number: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO payroll_runs
		(run_uuid, run_number, period_start, period_end, payment_date,
		 status, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.UUID,
		next,
		run.PeriodStart,
		run.PeriodEnd,
		run.PaymentDate,
		run.Status,
		nullString(run.Notes),
		nullString(run.CreatedBy),
		run.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	run.ID = id
	run.RunNumber = next
	return nil
}

const runColumns = `id, run_uuid, run_number, period_start, period_end, payment_date,
	status, notes, created_by, created_at, completed_at, completed_by`

func (s *Store) GetRun(ctx context.Context, id int64) (*payroll.PayRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrRunNotFound
	}
	return run, err
}

func (s *Store) ListRuns(ctx context.Context) ([]payroll.PayRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs ORDER BY run_number DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*payroll.PayRun, error) {
	var (
		run                 payroll.PayRun
		notes, createdBy    sql.NullString
		createdAt           string
		completedAt, doneBy sql.NullString
	)
	err := row.Scan(&run.ID, &run.UUID, &run.RunNumber,
		&run.PeriodStart, &run.PeriodEnd, &run.PaymentDate,
		&run.Status, &notes, &createdBy, &createdAt, &completedAt, &doneBy)
	if err != nil {
		return nil, err
	}
	run.Notes = notes.String
	run.CreatedBy = createdBy.String
	run.CreatedAt = parseTime(createdAt)
	run.CompletedBy = doneBy.String
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		run.CompletedAt = &t
	}
	return &run, nil
}

func (s *Store) SetRunStatus(ctx context.Context, id int64, status payroll.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payroll_runs SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return requireRow(res, payroll.ErrRunNotFound)
}

func (s *Store) SetRunCompletion(ctx context.Context, id int64, by string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payroll_runs SET completed_at = ?, completed_by = ? WHERE id = ?`,
		at.Format(time.RFC3339), nullString(by), id)
	if err != nil {
		return fmt.Errorf("failed to stamp run completion: %w", err)
	}
	return requireRow(res, payroll.ErrRunNotFound)
}

// =============================================================================
// REVISION STORE
// =============================================================================

const revisionRetries = 5

// CreateRevision allocates the next revision number and inserts, retrying
// on a unique-constraint collision. With the store mutex held, collisions
// cannot happen in-process; the constraint and retry protect against
// multiple processes sharing the database file.
func (s *Store) CreateRevision(ctx context.Context, rev *payroll.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < revisionRetries; attempt++ {
		if err := s.insertRevision(ctx, rev); err != nil {
			if isUniqueConstraintError(err) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %v", payroll.ErrRevisionConflict, lastErr)
}

func (s *Store) insertRevision(ctx context.Context, rev *payroll.Revision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, `
		SELECT IFNULL(MAX(revision_number), 0) + 1
		FROM payroll_revisions
		WHERE run_id = ?`, rev.RunID).Scan(&next); err != nil {
		return fmt.Errorf("failed to allocate revision number: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO payroll_revisions
		(run_id, revision_number, action_type, description,
		 employees_affected, total_pay_delta,
		 performed_by, performed_at, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.RunID,
		next,
		rev.ActionType,
		nullString(rev.Description),
		rev.EmployeesAffected,
		rev.TotalPayDelta.String(),
		nullString(rev.PerformedBy),
		rev.PerformedAt.Format(time.RFC3339),
		nullString(rev.IPAddress),
		nullString(rev.UserAgent),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	rev.ID = id
	rev.RevisionNumber = next
	return nil
}

const revisionColumns = `id, run_id, revision_number, action_type, description,
	employees_affected, total_pay_delta, performed_by, performed_at,
	ip_address, user_agent, snapshot_id`

func (s *Store) GetRevision(ctx context.Context, id int64) (*payroll.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM payroll_revisions WHERE id = ?`, id)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrRevisionNotFound
	}
	return rev, err
}

func (s *Store) ListRevisions(ctx context.Context, runID int64) ([]payroll.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM payroll_revisions
		 WHERE run_id = ? ORDER BY revision_number ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rev)
	}
	return out, rows.Err()
}

func scanRevision(row rowScanner) (*payroll.Revision, error) {
	var (
		rev         payroll.Revision
		desc, by    sql.NullString
		delta       string
		performedAt string
		ip, agent   sql.NullString
		snapshotID  sql.NullInt64
	)
	err := row.Scan(&rev.ID, &rev.RunID, &rev.RevisionNumber, &rev.ActionType,
		&desc, &rev.EmployeesAffected, &delta, &by, &performedAt, &ip, &agent, &snapshotID)
	if err != nil {
		return nil, err
	}
	rev.Description = desc.String
	rev.TotalPayDelta = parseDec(delta)
	rev.PerformedBy = by.String
	rev.PerformedAt = parseTime(performedAt)
	rev.IPAddress = ip.String
	rev.UserAgent = agent.String
	if snapshotID.Valid {
		rev.SnapshotID = &snapshotID.Int64
	}
	return &rev, nil
}

func (s *Store) LinkRevisionSnapshot(ctx context.Context, revisionID, snapshotID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payroll_revisions SET snapshot_id = ? WHERE id = ?`, snapshotID, revisionID)
	if err != nil {
		return fmt.Errorf("failed to link revision snapshot: %w", err)
	}
	return requireRow(res, payroll.ErrRevisionNotFound)
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (s *Store) CreateSnapshot(ctx context.Context, snap *payroll.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payroll_snapshots
		(run_id, revision_id, snapshot_type, taken_at,
		 employees_json, timesheets_json, account_balances_json,
		 payslips_json, provider_employees_json, public_holidays_json,
		 bonuses_json, amendments_json, config_json,
		 content_hash, employee_count, total_size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID,
		nullInt64Ptr(snap.RevisionID),
		snap.Type,
		snap.TakenAt.Format(time.RFC3339),
		nullBlob(snap.Blobs.Employees),
		nullBlob(snap.Blobs.Timesheets),
		nullBlob(snap.Blobs.AccountBalances),
		nullBlob(snap.Blobs.Payslips),
		nullBlob(snap.Blobs.ProviderEmployees),
		nullBlob(snap.Blobs.PublicHolidays),
		nullBlob(snap.Blobs.Bonuses),
		nullBlob(snap.Blobs.Amendments),
		nullBlob(snap.Blobs.Config),
		snap.ContentHash,
		snap.EmployeeCount,
		snap.TotalSizeBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	snap.ID, err = res.LastInsertId()
	return err
}

const snapshotColumns = `id, run_id, revision_id, snapshot_type, taken_at,
	employees_json, timesheets_json, account_balances_json,
	payslips_json, provider_employees_json, public_holidays_json,
	bonuses_json, amendments_json, config_json,
	content_hash, employee_count, total_size_bytes`

func (s *Store) GetSnapshot(ctx context.Context, id int64) (*payroll.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM payroll_snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrSnapshotNotFound
	}
	return snap, err
}

func (s *Store) ListSnapshotIDs(ctx context.Context, runID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM payroll_snapshots WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) LatestSnapshot(ctx context.Context, runID int64) (*payroll.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM payroll_snapshots
		 WHERE run_id = ? ORDER BY id DESC LIMIT 1`, runID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrSnapshotNotFound
	}
	return snap, err
}

func scanSnapshot(row rowScanner) (*payroll.Snapshot, error) {
	var (
		snap       payroll.Snapshot
		revisionID sql.NullInt64
		takenAt    string
		blobs      [9]sql.NullString
	)
	err := row.Scan(&snap.ID, &snap.RunID, &revisionID, &snap.Type, &takenAt,
		&blobs[0], &blobs[1], &blobs[2], &blobs[3], &blobs[4],
		&blobs[5], &blobs[6], &blobs[7], &blobs[8],
		&snap.ContentHash, &snap.EmployeeCount, &snap.TotalSizeBytes)
	if err != nil {
		return nil, err
	}
	if revisionID.Valid {
		snap.RevisionID = &revisionID.Int64
	}
	snap.TakenAt = parseTime(takenAt)
	snap.Blobs = payroll.SnapshotBlobs{
		Employees:         blobBytes(blobs[0]),
		Timesheets:        blobBytes(blobs[1]),
		AccountBalances:   blobBytes(blobs[2]),
		Payslips:          blobBytes(blobs[3]),
		ProviderEmployees: blobBytes(blobs[4]),
		PublicHolidays:    blobBytes(blobs[5]),
		Bonuses:           blobBytes(blobs[6]),
		Amendments:        blobBytes(blobs[7]),
		Config:            blobBytes(blobs[8]),
	}
	return &snap, nil
}

// =============================================================================
// DETAIL STORE
// =============================================================================

// PutEmployeeDetail upserts the detail row keyed by (snapshot, user) and
// replaces its child lines, all in one transaction. Recapturing the same
// snapshot state twice leaves exactly one row per employee.
func (s *Store) PutEmployeeDetail(ctx context.Context, d *payroll.EmployeeDetail,
	earnings []payroll.EarningLine, deductions []payroll.DeductionLine, holidays []payroll.PublicHolidayDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payroll_employee_details
		(run_id, snapshot_id, user_id,
		 payroll_employee_id, payslip_id, roster_employee_id, store_customer_id,
		 employee_name, employee_email,
		 total_hours, ordinary_hours, overtime_hours, leave_hours, public_holiday_hours,
		 base_pay, overtime_pay, commission, monthly_bonus,
		 google_review_bonus, vape_drops_bonus, other_bonuses,
		 leave_pay, public_holiday_pay, gross_earnings,
		 account_payment_deduction, other_deductions, total_deductions,
		 net_pay, hourly_rate, salary_annual, account_balance,
		 timesheet_count, first_punch, last_punch,
		 public_holiday_worked, holiday_preference,
		 alternative_holiday_created, alternative_holiday_hours,
		 processing_status, skip_reason, error_message, full_record_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id, user_id) DO UPDATE SET
			total_hours = excluded.total_hours,
			ordinary_hours = excluded.ordinary_hours,
			overtime_hours = excluded.overtime_hours,
			leave_hours = excluded.leave_hours,
			public_holiday_hours = excluded.public_holiday_hours,
			base_pay = excluded.base_pay,
			overtime_pay = excluded.overtime_pay,
			commission = excluded.commission,
			monthly_bonus = excluded.monthly_bonus,
			google_review_bonus = excluded.google_review_bonus,
			vape_drops_bonus = excluded.vape_drops_bonus,
			other_bonuses = excluded.other_bonuses,
			leave_pay = excluded.leave_pay,
			public_holiday_pay = excluded.public_holiday_pay,
			gross_earnings = excluded.gross_earnings,
			account_payment_deduction = excluded.account_payment_deduction,
			other_deductions = excluded.other_deductions,
			total_deductions = excluded.total_deductions,
			net_pay = excluded.net_pay,
			processing_status = excluded.processing_status,
			skip_reason = excluded.skip_reason,
			error_message = excluded.error_message,
			full_record_json = excluded.full_record_json`,
		d.RunID, d.SnapshotID, d.UserID,
		nullString(d.PayrollEmployeeID), nullString(d.PayslipID),
		nullString(d.RosterEmployeeID), nullString(d.StoreCustomerID),
		d.Name, nullString(d.Email),
		d.TotalHours.String(), d.OrdinaryHours.String(), d.OvertimeHours.String(),
		d.LeaveHours.String(), d.PublicHolidayHours.String(),
		d.BasePay.String(), d.OvertimePay.String(), d.Commission.String(), d.MonthlyBonus.String(),
		d.GoogleReviewBonus.String(), d.VapeDropsBonus.String(), d.OtherBonuses.String(),
		d.LeavePay.String(), d.PublicHolidayPay.String(), d.GrossEarnings.String(),
		d.AccountPaymentDeduction.String(), d.OtherDeductions.String(), d.TotalDeductions.String(),
		d.NetPay.String(), d.HourlyRate.String(), d.SalaryAnnual.String(), d.AccountBalance.String(),
		d.TimesheetCount, nullString(d.FirstPunch), nullString(d.LastPunch),
		boolInt(d.PublicHolidayWorked), nullString(d.HolidayPreference),
		boolInt(d.AlternativeHolidayCreated), d.AlternativeHolidayHours.String(),
		d.ProcessingStatus, nullString(d.SkipReason), nullString(d.ErrorMessage),
		string(d.FullRecordJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert employee detail: %w", err)
	}

	var detailID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM payroll_employee_details WHERE snapshot_id = ? AND user_id = ?`,
		d.SnapshotID, d.UserID).Scan(&detailID); err != nil {
		return fmt.Errorf("failed to read employee detail id: %w", err)
	}

	// Replace child lines wholesale; recapture must not duplicate them.
	for _, table := range []string{"payroll_earning_lines", "payroll_deduction_lines", "payroll_public_holidays"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE employee_detail_id = ?`, detailID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, line := range earnings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payroll_earning_lines
			(employee_detail_id, earning_type, rate_id, rate_name,
			 units, rate_per_unit, fixed_amount, total_amount,
			 is_leave, is_overtime, is_bonus, is_public_holiday,
			 source_type, source_reference, description, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			detailID,
			nullString(line.Type), nullString(line.RateID), nullString(line.RateName),
			line.Units.String(), line.RatePerUnit.String(), line.FixedAmount.String(), line.Total.String(),
			boolInt(line.IsLeave), boolInt(line.IsOvertime), boolInt(line.IsBonus), boolInt(line.IsPublicHoliday),
			nullString(line.Source), nullString(line.SourceRef),
			nullString(line.Description), nullString(line.Notes),
		); err != nil {
			return fmt.Errorf("failed to insert earning line: %w", err)
		}
	}

	for _, line := range deductions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payroll_deduction_lines
			(employee_detail_id, deduction_type, deduction_code, deduction_name,
			 amount, store_customer_id, store_payment_id,
			 allocation_status, allocated_at, allocation_error,
			 source_type, source_reference, description, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			detailID,
			nullString(line.Type), nullString(line.Code), nullString(line.Name),
			line.Amount.String(),
			nullString(line.StoreCustomerID), nullString(line.StorePaymentID),
			nullString(line.AllocationStatus), nullString(line.AllocatedAt), nullString(line.AllocationError),
			nullString(line.Source), nullString(line.SourceRef),
			nullString(line.Description), nullString(line.Notes),
		); err != nil {
			return fmt.Errorf("failed to insert deduction line: %w", err)
		}
	}

	for _, line := range holidays {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payroll_public_holidays
			(employee_detail_id, holiday_date, holiday_name,
			 hours_worked, worked, preference,
			 earnings_zeroed, alternative_holiday_created,
			 leave_hours_granted, provider_leave_id,
			 ordinary_pay_removed, public_holiday_rate_applied,
			 total_pay_impact, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			detailID,
			nullString(line.Date), nullString(line.Name),
			line.HoursWorked.String(), boolInt(line.Worked), nullString(line.Preference),
			boolInt(line.EarningsZeroed), boolInt(line.AlternativeHolidayCreated),
			line.LeaveHoursGranted.String(), nullString(line.ProviderLeaveID),
			line.OrdinaryPayRemoved.String(), boolInt(line.PublicHolidayRateApplied),
			line.TotalPayImpact.String(), nullString(line.Notes),
		); err != nil {
			return fmt.Errorf("failed to insert public holiday detail: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	d.ID = detailID
	return nil
}

const detailColumns = `id, run_id, snapshot_id, user_id,
	payroll_employee_id, payslip_id, roster_employee_id, store_customer_id,
	employee_name, employee_email,
	total_hours, ordinary_hours, overtime_hours, leave_hours, public_holiday_hours,
	base_pay, overtime_pay, commission, monthly_bonus,
	google_review_bonus, vape_drops_bonus, other_bonuses,
	leave_pay, public_holiday_pay, gross_earnings,
	account_payment_deduction, other_deductions, total_deductions,
	net_pay, hourly_rate, salary_annual, account_balance,
	timesheet_count, first_punch, last_punch,
	public_holiday_worked, holiday_preference,
	alternative_holiday_created, alternative_holiday_hours,
	processing_status, skip_reason, error_message, full_record_json`

func (s *Store) EmployeeDetails(ctx context.Context, runID, snapshotID int64) ([]payroll.EmployeeDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+detailColumns+` FROM payroll_employee_details
		 WHERE run_id = ? AND snapshot_id = ? ORDER BY user_id ASC`, runID, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.EmployeeDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDetail(row rowScanner) (*payroll.EmployeeDetail, error) {
	var (
		d payroll.EmployeeDetail

		payrollID, payslipID, rosterID, customerID sql.NullString
		email, firstPunch, lastPunch               sql.NullString
		holidayPref, skipReason, errorMessage      sql.NullString
		fullJSON                                   sql.NullString

		dec [22]string
		alt string

		phWorked, altCreated int
	)
	err := row.Scan(&d.ID, &d.RunID, &d.SnapshotID, &d.UserID,
		&payrollID, &payslipID, &rosterID, &customerID,
		&d.Name, &email,
		&dec[0], &dec[1], &dec[2], &dec[3], &dec[4],
		&dec[5], &dec[6], &dec[7], &dec[8],
		&dec[9], &dec[10], &dec[11],
		&dec[12], &dec[13], &dec[14],
		&dec[15], &dec[16], &dec[17],
		&dec[18], &dec[19], &dec[20], &dec[21],
		&d.TimesheetCount, &firstPunch, &lastPunch,
		&phWorked, &holidayPref,
		&altCreated, &alt,
		&d.ProcessingStatus, &skipReason, &errorMessage, &fullJSON)
	if err != nil {
		return nil, err
	}

	d.PayrollEmployeeID = payrollID.String
	d.PayslipID = payslipID.String
	d.RosterEmployeeID = rosterID.String
	d.StoreCustomerID = customerID.String
	d.Email = email.String
	d.FirstPunch = firstPunch.String
	d.LastPunch = lastPunch.String
	d.HolidayPreference = holidayPref.String
	d.SkipReason = skipReason.String
	d.ErrorMessage = errorMessage.String
	d.PublicHolidayWorked = phWorked != 0
	d.AlternativeHolidayCreated = altCreated != 0
	d.AlternativeHolidayHours = parseDec(alt)
	if fullJSON.Valid {
		d.FullRecordJSON = []byte(fullJSON.String)
	}

	d.TotalHours = parseDec(dec[0])
	d.OrdinaryHours = parseDec(dec[1])
	d.OvertimeHours = parseDec(dec[2])
	d.LeaveHours = parseDec(dec[3])
	d.PublicHolidayHours = parseDec(dec[4])
	d.BasePay = parseDec(dec[5])
	d.OvertimePay = parseDec(dec[6])
	d.Commission = parseDec(dec[7])
	d.MonthlyBonus = parseDec(dec[8])
	d.GoogleReviewBonus = parseDec(dec[9])
	d.VapeDropsBonus = parseDec(dec[10])
	d.OtherBonuses = parseDec(dec[11])
	d.LeavePay = parseDec(dec[12])
	d.PublicHolidayPay = parseDec(dec[13])
	d.GrossEarnings = parseDec(dec[14])
	d.AccountPaymentDeduction = parseDec(dec[15])
	d.OtherDeductions = parseDec(dec[16])
	d.TotalDeductions = parseDec(dec[17])
	d.NetPay = parseDec(dec[18])
	d.HourlyRate = parseDec(dec[19])
	d.SalaryAnnual = parseDec(dec[20])
	d.AccountBalance = parseDec(dec[21])

	return &d, nil
}

func (s *Store) EmployeeLines(ctx context.Context, detailID int64) ([]payroll.EarningLine, []payroll.DeductionLine, []payroll.PublicHolidayDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM payroll_employee_details WHERE id = ?`, detailID).Scan(&exists)
	if err != nil {
		return nil, nil, nil, err
	}
	if exists == 0 {
		return nil, nil, nil, payroll.ErrEmployeeDetailNotFound
	}

	earnings, err := s.queryEarningLines(ctx, detailID)
	if err != nil {
		return nil, nil, nil, err
	}
	deductions, err := s.queryDeductionLines(ctx, detailID)
	if err != nil {
		return nil, nil, nil, err
	}
	holidays, err := s.queryHolidayDetails(ctx, detailID)
	if err != nil {
		return nil, nil, nil, err
	}
	return earnings, deductions, holidays, nil
}

func (s *Store) queryEarningLines(ctx context.Context, detailID int64) ([]payroll.EarningLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_detail_id, earning_type, rate_id, rate_name,
		       units, rate_per_unit, fixed_amount, total_amount,
		       is_leave, is_overtime, is_bonus, is_public_holiday,
		       source_type, source_reference, description, notes
		FROM payroll_earning_lines WHERE employee_detail_id = ? ORDER BY id ASC`, detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.EarningLine
	for rows.Next() {
		var (
			line                         payroll.EarningLine
			typ, rateID, rateName        sql.NullString
			units, rate, fixed, total    string
			isLeave, isOT, isBonus, isPH int
			src, srcRef, desc, notes     sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.EmployeeDetailID, &typ, &rateID, &rateName,
			&units, &rate, &fixed, &total,
			&isLeave, &isOT, &isBonus, &isPH,
			&src, &srcRef, &desc, &notes); err != nil {
			return nil, err
		}
		line.Type = typ.String
		line.RateID = rateID.String
		line.RateName = rateName.String
		line.Units = parseDec(units)
		line.RatePerUnit = parseDec(rate)
		line.FixedAmount = parseDec(fixed)
		line.Total = parseDec(total)
		line.IsLeave = isLeave != 0
		line.IsOvertime = isOT != 0
		line.IsBonus = isBonus != 0
		line.IsPublicHoliday = isPH != 0
		line.Source = src.String
		line.SourceRef = srcRef.String
		line.Description = desc.String
		line.Notes = notes.String
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) queryDeductionLines(ctx context.Context, detailID int64) ([]payroll.DeductionLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_detail_id, deduction_type, deduction_code, deduction_name,
		       amount, store_customer_id, store_payment_id,
		       allocation_status, allocated_at, allocation_error,
		       source_type, source_reference, description, notes
		FROM payroll_deduction_lines WHERE employee_detail_id = ? ORDER BY id ASC`, detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.DeductionLine
	for rows.Next() {
		var (
			line                           payroll.DeductionLine
			typ, code, name                sql.NullString
			amount                         string
			customerID, paymentID          sql.NullString
			allocStatus, allocAt, allocErr sql.NullString
			src, srcRef, desc, notes       sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.EmployeeDetailID, &typ, &code, &name,
			&amount, &customerID, &paymentID,
			&allocStatus, &allocAt, &allocErr,
			&src, &srcRef, &desc, &notes); err != nil {
			return nil, err
		}
		line.Type = typ.String
		line.Code = code.String
		line.Name = name.String
		line.Amount = parseDec(amount)
		line.StoreCustomerID = customerID.String
		line.StorePaymentID = paymentID.String
		line.AllocationStatus = allocStatus.String
		line.AllocatedAt = allocAt.String
		line.AllocationError = allocErr.String
		line.Source = src.String
		line.SourceRef = srcRef.String
		line.Description = desc.String
		line.Notes = notes.String
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) queryHolidayDetails(ctx context.Context, detailID int64) ([]payroll.PublicHolidayDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_detail_id, holiday_date, holiday_name,
		       hours_worked, worked, preference,
		       earnings_zeroed, alternative_holiday_created,
		       leave_hours_granted, provider_leave_id,
		       ordinary_pay_removed, public_holiday_rate_applied,
		       total_pay_impact, notes
		FROM payroll_public_holidays WHERE employee_detail_id = ? ORDER BY id ASC`, detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PublicHolidayDetail
	for rows.Next() {
		var (
			line                         payroll.PublicHolidayDetail
			date, name, pref             sql.NullString
			hours, leaveGranted          string
			payRemoved, payImpact        string
			worked, zeroed, alt, rateApp int
			leaveID, notes               sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.EmployeeDetailID, &date, &name,
			&hours, &worked, &pref,
			&zeroed, &alt,
			&leaveGranted, &leaveID,
			&payRemoved, &rateApp,
			&payImpact, &notes); err != nil {
			return nil, err
		}
		line.Date = date.String
		line.Name = name.String
		line.HoursWorked = parseDec(hours)
		line.Worked = worked != 0
		line.Preference = pref.String
		line.EarningsZeroed = zeroed != 0
		line.AlternativeHolidayCreated = alt != 0
		line.LeaveHoursGranted = parseDec(leaveGranted)
		line.ProviderLeaveID = leaveID.String
		line.OrdinaryPayRemoved = parseDec(payRemoved)
		line.PublicHolidayRateApplied = rateApp != 0
		line.TotalPayImpact = parseDec(payImpact)
		line.Notes = notes.String
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) InsertPayslipLines(ctx context.Context, lines []payroll.PayslipLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payroll_payslip_lines
			(run_id, snapshot_id, employee_detail_id,
			 payslip_id, provider_employee_id,
			 line_category, line_type_id, display_name, description,
			 rate_per_unit, number_of_units, fixed_amount, percentage, calculated_amount,
			 employee_contribution, employer_contribution,
			 leave_type_id, leave_units, auto_calculate,
			 period_start_date, period_end_date, payment_date, full_line_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.RunID, line.SnapshotID, line.EmployeeDetailID,
			line.PayslipID, line.EmployeeID,
			line.Category, nullString(line.TypeID), nullString(line.DisplayName), nullString(line.Description),
			nullDecPtr(line.RatePerUnit), nullDecPtr(line.Units), nullDecPtr(line.FixedAmount),
			nullDecPtr(line.Percentage), line.Amount.String(),
			nullDecPtr(line.EmployeeContribution), nullDecPtr(line.EmployerContribution),
			nullString(line.LeaveTypeID), nullDecPtr(line.LeaveUnits), boolInt(line.AutoCalculate),
			nullString(line.PeriodStart), nullString(line.PeriodEnd), nullString(line.PaymentDate),
			string(line.LineJSON),
		); err != nil {
			return fmt.Errorf("failed to insert payslip line: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) PayslipLines(ctx context.Context, snapshotID int64) ([]payroll.PayslipLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, snapshot_id, employee_detail_id,
		       payslip_id, provider_employee_id,
		       line_category, line_type_id, display_name, description,
		       rate_per_unit, number_of_units, fixed_amount, percentage, calculated_amount,
		       employee_contribution, employer_contribution,
		       leave_type_id, leave_units, auto_calculate,
		       period_start_date, period_end_date, payment_date, full_line_json
		FROM payroll_payslip_lines WHERE snapshot_id = ? ORDER BY id ASC`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayslipLine
	for rows.Next() {
		var (
			line                                payroll.PayslipLine
			typeID, displayName, desc           sql.NullString
			rate, units, fixed, pct             sql.NullString
			amount                              string
			empContrib, erContrib               sql.NullString
			leaveTypeID, leaveUnits             sql.NullString
			autoCalc                            int
			periodStart, periodEnd, paymentDate sql.NullString
			lineJSON                            sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.RunID, &line.SnapshotID, &line.EmployeeDetailID,
			&line.PayslipID, &line.EmployeeID,
			&line.Category, &typeID, &displayName, &desc,
			&rate, &units, &fixed, &pct, &amount,
			&empContrib, &erContrib,
			&leaveTypeID, &leaveUnits, &autoCalc,
			&periodStart, &periodEnd, &paymentDate, &lineJSON); err != nil {
			return nil, err
		}
		line.TypeID = typeID.String
		line.DisplayName = displayName.String
		line.Description = desc.String
		line.RatePerUnit = decPtr(rate)
		line.Units = decPtr(units)
		line.FixedAmount = decPtr(fixed)
		line.Percentage = decPtr(pct)
		line.Amount = parseDec(amount)
		line.EmployeeContribution = decPtr(empContrib)
		line.EmployerContribution = decPtr(erContrib)
		line.LeaveTypeID = leaveTypeID.String
		line.LeaveUnits = decPtr(leaveUnits)
		line.AutoCalculate = autoCalc != 0
		line.PeriodStart = periodStart.String
		line.PeriodEnd = periodEnd.String
		line.PaymentDate = paymentDate.String
		if lineJSON.Valid {
			line.LineJSON = []byte(lineJSON.String)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// =============================================================================
// DIFF STORE
// =============================================================================

func (s *Store) GetDiff(ctx context.Context, fromID, toID int64) (*payroll.Diff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var changesJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT changes_json FROM payroll_snapshot_diffs
		WHERE from_snapshot_id = ? AND to_snapshot_id = ?`, fromID, toID).Scan(&changesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var diff payroll.Diff
	if err := json.Unmarshal([]byte(changesJSON), &diff); err != nil {
		return nil, fmt.Errorf("failed to decode cached diff: %w", err)
	}
	return &diff, nil
}

// PutDiff inserts the memoized diff; OR IGNORE makes a concurrent
// duplicate of the same (from, to) pair a no-op success.
func (s *Store) PutDiff(ctx context.Context, d *payroll.Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changesJSON, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode diff: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO payroll_snapshot_diffs
		(from_snapshot_id, to_snapshot_id,
		 employees_changed, total_pay_delta, changes_json,
		 additions_count, modifications_count, deletions_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FromSnapshotID, d.ToSnapshotID,
		len(d.EmployeesChanged), d.Summary.TotalPayDelta.String(), string(changesJSON),
		d.Summary.AdditionsCount, d.Summary.ModificationsCount, d.Summary.DeletionsCount,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert diff: %w", err)
	}
	return nil
}

// =============================================================================
// AMENDMENT STORE
// =============================================================================

func (s *Store) CreateAmendment(ctx context.Context, a *payroll.Amendment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payroll_amendments
		(run_id, employee_detail_id, amendment_type, field_name,
		 old_value, new_value, delta, reason,
		 requested_by, requested_at, approval_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID,
		nullInt64Ptr(a.EmployeeDetailID),
		a.AmendmentType,
		a.FieldName,
		a.OldValue.String(),
		a.NewValue.String(),
		a.Delta.String(),
		nullString(a.Reason),
		nullString(a.RequestedBy),
		a.RequestedAt.Format(time.RFC3339),
		a.ApprovalStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to insert amendment: %w", err)
	}

	a.ID, err = res.LastInsertId()
	return err
}

const amendmentColumns = `id, run_id, employee_detail_id, amendment_type, field_name,
	old_value, new_value, delta, reason,
	requested_by, requested_at, approval_status, resolved_by, resolved_at`

func (s *Store) GetAmendment(ctx context.Context, id int64) (*payroll.Amendment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+amendmentColumns+` FROM payroll_amendments WHERE id = ?`, id)
	a, err := scanAmendment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrAmendmentNotFound
	}
	return a, err
}

func (s *Store) ListAmendments(ctx context.Context, runID int64) ([]payroll.Amendment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+amendmentColumns+` FROM payroll_amendments
		 WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Amendment
	for rows.Next() {
		a, err := scanAmendment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAmendment(row rowScanner) (*payroll.Amendment, error) {
	var (
		a                      payroll.Amendment
		detailID               sql.NullInt64
		oldV, newV, delta      string
		reason, reqBy          sql.NullString
		requestedAt            string
		resolvedBy, resolvedAt sql.NullString
	)
	err := row.Scan(&a.ID, &a.RunID, &detailID, &a.AmendmentType, &a.FieldName,
		&oldV, &newV, &delta, &reason,
		&reqBy, &requestedAt, &a.ApprovalStatus, &resolvedBy, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if detailID.Valid {
		a.EmployeeDetailID = &detailID.Int64
	}
	a.OldValue = parseDec(oldV)
	a.NewValue = parseDec(newV)
	a.Delta = parseDec(delta)
	a.Reason = reason.String
	a.RequestedBy = reqBy.String
	a.RequestedAt = parseTime(requestedAt)
	a.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		t := parseTime(resolvedAt.String)
		a.ResolvedAt = &t
	}
	return &a, nil
}

// ResolveAmendment is a conditional update: only a pending amendment
// moves. Zero rows affected means the amendment is missing or already
// resolved; the follow-up read disambiguates.
func (s *Store) ResolveAmendment(ctx context.Context, id int64, status payroll.ApprovalStatus, by string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payroll_amendments
		SET approval_status = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND approval_status = ?`,
		status, nullString(by), at.Format(time.RFC3339), id, payroll.ApprovalPending)
	if err != nil {
		return fmt.Errorf("failed to resolve amendment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM payroll_amendments WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return payroll.ErrAmendmentNotFound
	}
	return payroll.ErrAmendmentResolved
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullBlob(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func blobBytes(ns sql.NullString) []byte {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}

func nullDecPtr(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func decPtr(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d := parseDec(ns.String)
	return &d
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
