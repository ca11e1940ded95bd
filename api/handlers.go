/*
handlers.go - HTTP API handlers for the payroll snapshot engine

PURPOSE:
  Exposes the snapshot and diff engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Runs:
    GET    /api/runs                     List all pay runs
    POST   /api/runs                     Start a pay run
    GET    /api/runs/{id}                Get one pay run
    POST   /api/runs/{id}/status         Update run status
    GET    /api/runs/{id}/revisions      Revision history
    POST   /api/runs/{id}/revisions      Log a revision
    POST   /api/runs/{id}/snapshots      Capture a snapshot
    GET    /api/runs/{id}/snapshots/latest Latest snapshot metadata
    GET    /api/runs/{id}/verify         Verify all snapshots of a run
    GET    /api/runs/{id}/amendments     List amendments
    POST   /api/runs/{id}/amendments     Request an amendment

  Snapshots:
    GET    /api/snapshots/{id}           Snapshot metadata
    GET    /api/snapshots/{id}/employees Employee projection rows
    GET    /api/snapshots/{id}/verify    Verify one snapshot
    GET    /api/snapshots/{from}/diff/{to} Diff two snapshots

  Amendments:
    GET    /api/amendments/{id}          Get one amendment
    POST   /api/amendments/{id}/approve  Approve a pending amendment
    POST   /api/amendments/{id}/reject   Reject a pending amendment

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Bind a per-request actor (X-User-ID header, remote addr, user agent)
  4. Call engine logic
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (revision numbering, already-resolved amendment)
  - 422: Corrupt snapshot content
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  The X-User-ID header is trusted as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *payroll.Engine
}

// NewHandler creates a new handler over the given engine.
func NewHandler(engine *payroll.Engine) *Handler {
	return &Handler{Engine: engine}
}

// engineFor binds the engine to the identity of this request.
func (h *Handler) engineFor(r *http.Request) *payroll.Engine {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return h.Engine.WithActor(payroll.Actor{
		UserID:    r.Header.Get("X-User-ID"),
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	})
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// ListRuns returns all pay runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Engine.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i := range runs {
		dtos[i] = toRunDTO(&runs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRun starts a new pay run in draft status.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PeriodStart == "" || req.PeriodEnd == "" || req.PaymentDate == "" {
		writeError(w, http.StatusBadRequest, "period_start, period_end and payment_date are required", nil)
		return
	}

	result, err := h.engineFor(r).StartRun(r.Context(), req.PeriodStart, req.PeriodEnd, req.PaymentDate, req.Notes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start run", err)
		return
	}

	run, err := h.Engine.GetRun(r.Context(), result.RunID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read created run", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// GetRun returns one pay run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	run, err := h.Engine.GetRun(r.Context(), runID)
	if err != nil {
		writeEngineError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// UpdateRunStatus moves a run through its lifecycle.
func (h *Handler) UpdateRunStatus(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRunStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := payroll.RunStatus(req.Status)
	switch status {
	case payroll.RunDraft, payroll.RunLoaded, payroll.RunReview, payroll.RunPosted, payroll.RunCompleted:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}

	if err := h.engineFor(r).UpdateRunStatus(r.Context(), runID, status); err != nil {
		writeEngineError(w, "Failed to update run status", err)
		return
	}

	run, err := h.Engine.GetRun(r.Context(), runID)
	if err != nil {
		writeEngineError(w, "Failed to read run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// =============================================================================
// REVISION HANDLERS
// =============================================================================

// ListRevisions returns the full revision history of a run, oldest first.
func (h *Handler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	revisions, err := h.Engine.ListRevisions(r.Context(), runID)
	if err != nil {
		writeEngineError(w, "Failed to list revisions", err)
		return
	}

	dtos := make([]RevisionDTO, len(revisions))
	for i := range revisions {
		dtos[i] = toRevisionDTO(&revisions[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRevision logs one mutating action against a run.
func (h *Handler) CreateRevision(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req CreateRevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActionType == "" {
		writeError(w, http.StatusBadRequest, "action_type is required", nil)
		return
	}

	revisionID, err := h.engineFor(r).CreateRevision(r.Context(), runID,
		payroll.ActionType(req.ActionType), req.Description, req.EmployeesAffected, req.TotalPayDelta)
	if err != nil {
		writeEngineError(w, "Failed to create revision", err)
		return
	}

	rev, err := h.Engine.Store.GetRevision(r.Context(), revisionID)
	if err != nil {
		writeEngineError(w, "Failed to read revision", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRevisionDTO(rev))
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// CaptureSnapshot captures the posted state universe for a run.
func (h *Handler) CaptureSnapshot(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req CaptureSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// An explicit empty list is allowed; an omitted domain is not.
	if req.Employees == nil {
		writeError(w, http.StatusBadRequest, "employees is required", nil)
		return
	}

	in := payroll.CaptureInput{
		RunID:             runID,
		RevisionID:        req.RevisionID,
		Type:              payroll.SnapshotType(req.Type),
		Employees:         req.Employees,
		Timesheets:        rawDomain(req.Timesheets),
		AccountBalances:   rawDomain(req.AccountBalances),
		Payslips:          req.Payslips,
		ProviderEmployees: rawDomain(req.ProviderEmployees),
		PublicHolidays:    rawDomain(req.PublicHolidays),
		Bonuses:           rawDomain(req.Bonuses),
		Amendments:        rawDomain(req.Amendments),
		Config:            req.Config,
	}

	snapshotID, err := h.engineFor(r).CaptureSnapshot(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Failed to capture snapshot", err)
		return
	}

	snap, err := h.Engine.GetSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeEngineError(w, "Failed to read snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, CaptureSnapshotResponse{
		SnapshotID:  snap.ID,
		ContentHash: snap.ContentHash,
	})
}

// GetSnapshot returns snapshot metadata.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.Engine.GetSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeEngineError(w, "Failed to get snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// GetLatestSnapshot returns the newest snapshot of a run.
func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.Engine.GetLatestSnapshot(r.Context(), runID)
	if err != nil {
		writeEngineError(w, "Failed to get latest snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// ListSnapshotEmployees returns the normalized projection of a snapshot.
func (h *Handler) ListSnapshotEmployees(w http.ResponseWriter, r *http.Request) {
	snapshotID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.Engine.GetSnapshot(r.Context(), snapshotID)
	if err != nil {
		writeEngineError(w, "Failed to get snapshot", err)
		return
	}

	details, err := h.Engine.EmployeeDetails(r.Context(), snap.RunID, snap.ID)
	if err != nil {
		writeEngineError(w, "Failed to list employee details", err)
		return
	}

	dtos := make([]EmployeeDetailDTO, len(details))
	for i := range details {
		dtos[i] = toEmployeeDetailDTO(&details[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DIFF AND VERIFICATION HANDLERS
// =============================================================================

// DiffSnapshots returns the structured delta between two snapshots.
func (h *Handler) DiffSnapshots(w http.ResponseWriter, r *http.Request) {
	fromID, ok := pathID(w, r, "from")
	if !ok {
		return
	}
	toID, ok := pathID(w, r, "to")
	if !ok {
		return
	}

	diff, err := h.Engine.CalculateDiff(r.Context(), fromID, toID)
	if err != nil {
		writeEngineError(w, "Failed to calculate diff", err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// VerifySnapshot checks one snapshot's content hash.
func (h *Handler) VerifySnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.Engine.VerifySnapshot(r.Context(), snapshotID)
	if err != nil {
		writeEngineError(w, "Failed to verify snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// VerifyRun checks every snapshot of a run.
func (h *Handler) VerifyRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.Engine.VerifyRun(r.Context(), runID)
	if err != nil {
		writeEngineError(w, "Failed to verify run", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// AMENDMENT HANDLERS
// =============================================================================

// ListAmendments returns all amendments of a run.
func (h *Handler) ListAmendments(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	amendments, err := h.Engine.ListAmendments(r.Context(), runID)
	if err != nil {
		writeEngineError(w, "Failed to list amendments", err)
		return
	}

	dtos := make([]AmendmentDTO, len(amendments))
	for i := range amendments {
		dtos[i] = toAmendmentDTO(&amendments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAmendment requests a manual adjustment against a run.
func (h *Handler) CreateAmendment(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req CreateAmendmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AmendmentType == "" || req.FieldName == "" {
		writeError(w, http.StatusBadRequest, "amendment_type and field_name are required", nil)
		return
	}

	amendmentID, err := h.engineFor(r).CreateAmendment(r.Context(), runID,
		req.EmployeeDetailID, req.AmendmentType, req.FieldName, req.OldValue, req.NewValue, req.Reason)
	if err != nil {
		writeEngineError(w, "Failed to create amendment", err)
		return
	}

	a, err := h.Engine.GetAmendment(r.Context(), amendmentID)
	if err != nil {
		writeEngineError(w, "Failed to read amendment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAmendmentDTO(a))
}

// GetAmendment returns one amendment.
func (h *Handler) GetAmendment(w http.ResponseWriter, r *http.Request) {
	amendmentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	a, err := h.Engine.GetAmendment(r.Context(), amendmentID)
	if err != nil {
		writeEngineError(w, "Failed to get amendment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAmendmentDTO(a))
}

// ApproveAmendment approves a pending amendment.
func (h *Handler) ApproveAmendment(w http.ResponseWriter, r *http.Request) {
	h.resolveAmendment(w, r, payroll.ApprovalApproved)
}

// RejectAmendment rejects a pending amendment.
func (h *Handler) RejectAmendment(w http.ResponseWriter, r *http.Request) {
	h.resolveAmendment(w, r, payroll.ApprovalRejected)
}

func (h *Handler) resolveAmendment(w http.ResponseWriter, r *http.Request, status payroll.ApprovalStatus) {
	amendmentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.engineFor(r).ResolveAmendment(r.Context(), amendmentID, status); err != nil {
		writeEngineError(w, "Failed to resolve amendment", err)
		return
	}

	a, err := h.Engine.GetAmendment(r.Context(), amendmentID)
	if err != nil {
		writeEngineError(w, "Failed to read amendment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAmendmentDTO(a))
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toRunDTO(run *payroll.PayRun) RunDTO {
	dto := RunDTO{
		ID:          run.ID,
		UUID:        run.UUID,
		RunNumber:   run.RunNumber,
		PeriodStart: run.PeriodStart,
		PeriodEnd:   run.PeriodEnd,
		PaymentDate: run.PaymentDate,
		Status:      string(run.Status),
		Notes:       run.Notes,
		CreatedBy:   run.CreatedBy,
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
		CompletedBy: run.CompletedBy,
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toRevisionDTO(rev *payroll.Revision) RevisionDTO {
	return RevisionDTO{
		ID:                rev.ID,
		RunID:             rev.RunID,
		RevisionNumber:    rev.RevisionNumber,
		ActionType:        string(rev.ActionType),
		Description:       rev.Description,
		EmployeesAffected: rev.EmployeesAffected,
		TotalPayDelta:     rev.TotalPayDelta,
		PerformedBy:       rev.PerformedBy,
		PerformedAt:       rev.PerformedAt.Format(time.RFC3339),
		IPAddress:         rev.IPAddress,
		UserAgent:         rev.UserAgent,
		SnapshotID:        rev.SnapshotID,
	}
}

func toSnapshotDTO(snap *payroll.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		ID:             snap.ID,
		RunID:          snap.RunID,
		RevisionID:     snap.RevisionID,
		Type:           string(snap.Type),
		TakenAt:        snap.TakenAt.Format(time.RFC3339),
		ContentHash:    snap.ContentHash,
		EmployeeCount:  snap.EmployeeCount,
		TotalSizeBytes: snap.TotalSizeBytes,
	}
}

func toEmployeeDetailDTO(d *payroll.EmployeeDetail) EmployeeDetailDTO {
	return EmployeeDetailDTO{
		ID:         d.ID,
		RunID:      d.RunID,
		SnapshotID: d.SnapshotID,
		UserID:     d.UserID,

		PayrollEmployeeID: d.PayrollEmployeeID,
		PayslipID:         d.PayslipID,
		RosterEmployeeID:  d.RosterEmployeeID,
		StoreCustomerID:   d.StoreCustomerID,

		Name:  d.Name,
		Email: d.Email,

		TotalHours:         d.TotalHours,
		OrdinaryHours:      d.OrdinaryHours,
		OvertimeHours:      d.OvertimeHours,
		LeaveHours:         d.LeaveHours,
		PublicHolidayHours: d.PublicHolidayHours,

		BasePay:           d.BasePay,
		OvertimePay:       d.OvertimePay,
		Commission:        d.Commission,
		MonthlyBonus:      d.MonthlyBonus,
		GoogleReviewBonus: d.GoogleReviewBonus,
		VapeDropsBonus:    d.VapeDropsBonus,
		OtherBonuses:      d.OtherBonuses,
		LeavePay:          d.LeavePay,
		PublicHolidayPay:  d.PublicHolidayPay,
		GrossEarnings:     d.GrossEarnings,

		AccountPaymentDeduction: d.AccountPaymentDeduction,
		OtherDeductions:         d.OtherDeductions,
		TotalDeductions:         d.TotalDeductions,
		NetPay:                  d.NetPay,

		TimesheetCount:      d.TimesheetCount,
		PublicHolidayWorked: d.PublicHolidayWorked,
		ProcessingStatus:    d.ProcessingStatus,
		SkipReason:          d.SkipReason,
		ErrorMessage:        d.ErrorMessage,
	}
}

func toAmendmentDTO(a *payroll.Amendment) AmendmentDTO {
	dto := AmendmentDTO{
		ID:               a.ID,
		RunID:            a.RunID,
		EmployeeDetailID: a.EmployeeDetailID,
		AmendmentType:    a.AmendmentType,
		FieldName:        a.FieldName,
		OldValue:         a.OldValue,
		NewValue:         a.NewValue,
		Delta:            a.Delta,
		Reason:           a.Reason,
		RequestedBy:      a.RequestedBy,
		RequestedAt:      a.RequestedAt.Format(time.RFC3339),
		ApprovalStatus:   string(a.ApprovalStatus),
		ResolvedBy:       a.ResolvedBy,
	}
	if a.ResolvedAt != nil {
		dto.ResolvedAt = a.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

// rawDomain passes a raw JSON domain through to capture, or nil when the
// domain was omitted. A typed-nil RawMessage must not reach the encoder:
// it would capture the domain as JSON null instead of absent.
func rawDomain(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+param, err)
		return 0, false
	}
	return id, true
}

// writeEngineError maps domain errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case payroll.IsConflict(err), errors.Is(err, payroll.ErrAmendmentResolved):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, payroll.ErrCorruptSnapshot):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
