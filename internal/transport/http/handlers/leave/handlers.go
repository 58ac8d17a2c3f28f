package leavehandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"hrops/internal/domain/audit"
	"hrops/internal/domain/auth"
	"hrops/internal/domain/leave"
	"hrops/internal/platform/blob"
	"hrops/internal/platform/jobs"
	"hrops/internal/transport/http/api"
	"hrops/internal/transport/http/middleware"
	"hrops/internal/transport/http/shared"
)

const maxCertificateBytes = 2 * 1024 * 1024

type Handler struct {
	Service *leave.Service
	Blobs   *blob.Store
	Audit   *audit.Service
	Jobs    *jobs.Service
}

func NewHandler(service *leave.Service, blobs *blob.Store, auditSvc *audit.Service, jobsSvc *jobs.Service) *Handler {
	return &Handler{Service: service, Blobs: blobs, Audit: auditSvc, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/holidays", h.handleListHolidays)
		r.With(middleware.RequirePermission(auth.PermHolidaysWrite)).Post("/holidays", h.handleCreateHoliday)
		r.With(middleware.RequirePermission(auth.PermHolidaysWrite)).Delete("/holidays/{holidayID}", h.handleDeleteHoliday)

		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/balance", h.handleOwnBalance)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Get("/balances", h.handleListBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Post("/balances/adjust", h.handleAdjustBalance)

		r.With(middleware.RequirePermission(auth.PermLeaveWrite)).Post("/requests", h.handleApply)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/requests", h.handleListRequests)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite)).Put("/requests/{requestID}", h.handleEdit)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite)).Delete("/requests/{requestID}", h.handleDelete)

		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Post("/requests/{requestID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Post("/requests/{requestID}/reject", h.handleReject)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Post("/requests/{requestID}/days/{dayID}/approve", h.handleApproveDay)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Post("/requests/{requestID}/days/{dayID}/reject", h.handleRejectDay)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Post("/requests/{requestID}/status", h.handleForceStatus)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Post("/requests/{requestID}/convert", h.handleConvert)

		r.With(middleware.RequirePermission(auth.PermLeaveWrite)).Post("/certificates", h.handleUploadCertificate)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/requests/{requestID}/certificate", h.handleDownloadCertificate)

		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/calendar", h.handleCalendar)
		r.With(middleware.RequirePermission(auth.PermReportsRead)).Get("/calendar/export", h.handleCalendarExport)

		r.With(middleware.RequirePermission(auth.PermLeaveAdmin)).Post("/jobs/{jobType}/run", h.handleRunJob)
	})
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
	}
	return user, ok
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload leave.ApplyInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	id, err := h.Service.Apply(r.Context(), user.EmployeeID, payload)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.apply", "leave_request", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	requests, err := h.Service.ListRequests(r.Context(), user.EmployeeID, page.Limit, page.Offset)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	api.Success(w, requests, reqID)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	req, err := h.Service.GetRequest(r.Context(), chi.URLParam(r, "requestID"), user.EmployeeID)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	api.Success(w, req, reqID)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	var payload leave.ApplyInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if err := h.Service.Edit(r.Context(), requestID, user.EmployeeID, payload); err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.edit", "leave_request", requestID, payload)
	api.Success(w, map[string]string{"id": requestID}, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	if err := h.Service.Delete(r.Context(), requestID, user.EmployeeID); err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.delete", "leave_request", requestID, nil)
	api.Success(w, map[string]bool{"deleted": true}, reqID)
}

type decisionRequest struct {
	Comment string   `json:"comment"`
	DayIDs  []string `json:"dayIds"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	var payload decisionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	var result *leave.DecisionResult
	var err error
	if len(payload.DayIDs) > 0 {
		result, err = h.Service.ApproveDays(r.Context(), requestID, user.EmployeeID, payload.DayIDs, payload.Comment)
	} else {
		result, err = h.Service.ApproveRequest(r.Context(), requestID, user.EmployeeID, payload.Comment)
	}
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.approve", "leave_request", requestID, result)
	api.Success(w, result, reqID)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	var payload decisionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	var result *leave.DecisionResult
	var err error
	if len(payload.DayIDs) > 0 {
		result, err = h.Service.RejectDays(r.Context(), requestID, user.EmployeeID, payload.DayIDs, payload.Comment)
	} else {
		result, err = h.Service.RejectRequest(r.Context(), requestID, user.EmployeeID, payload.Comment)
	}
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.reject", "leave_request", requestID, result)
	api.Success(w, result, reqID)
}

func (h *Handler) handleApproveDay(w http.ResponseWriter, r *http.Request) {
	h.decideDay(w, r, leave.StatusApproved)
}

func (h *Handler) handleRejectDay(w http.ResponseWriter, r *http.Request) {
	h.decideDay(w, r, leave.StatusRejected)
}

func (h *Handler) decideDay(w http.ResponseWriter, r *http.Request, decision leave.Status) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	dayID := chi.URLParam(r, "dayID")
	var payload decisionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	result, err := h.Service.DecideDay(r.Context(), requestID, dayID, user.EmployeeID, decision, payload.Comment)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.day."+string(decision), "leave_request", requestID, result)
	api.Success(w, result, reqID)
}

type forceStatusRequest struct {
	Status  leave.Status `json:"status"`
	DayIDs  []string     `json:"dayIds"`
	Comment string       `json:"comment"`
}

func (h *Handler) handleForceStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	var payload forceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	result, err := h.Service.ForceStatus(r.Context(), requestID, user.EmployeeID, payload.Status, payload.DayIDs, payload.Comment)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.force_status", "leave_request", requestID, result)
	api.Success(w, result, reqID)
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	if err := h.Service.ConvertToCasual(r.Context(), requestID, user.EmployeeID); err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.convert", "leave_request", requestID, nil)
	api.Success(w, map[string]string{"id": requestID, "leaveType": string(leave.TypeCasual)}, reqID)
}

func (h *Handler) handleOwnBalance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	balance, err := h.Service.Store.GetBalance(r.Context(), h.Service.Store.DB, user.EmployeeID)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	api.Success(w, balance, reqID)
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	balances, err := h.Service.Store.ListBalances(r.Context())
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	api.Success(w, balances, reqID)
}

type adjustBalanceRequest struct {
	EmployeeID string          `json:"employeeId"`
	LeaveType  leave.LeaveType `json:"leaveType"`
	Amount     decimal.Decimal `json:"amount"`
}

// handleAdjustBalance moves a balance by a signed amount. Positive credits
// respect the LOP ceiling; negative amounts debit through the same
// sufficiency guard that protects requests.
func (h *Handler) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if payload.EmployeeID == "" || !payload.LeaveType.Valid() || payload.LeaveType == leave.TypePermission {
		api.Fail(w, http.StatusBadRequest, "validation_error", "employeeId and a balance-backed leaveType are required", reqID)
		return
	}
	if payload.Amount.IsZero() {
		api.Fail(w, http.StatusBadRequest, "validation_error", "amount must be non-zero", reqID)
		return
	}

	store := h.Service.Store
	if err := store.EnsureBalance(r.Context(), store.DB, payload.EmployeeID); err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	var err error
	if payload.Amount.IsPositive() {
		err = h.Service.Ledger.Credit(r.Context(), store.DB, payload.EmployeeID, payload.LeaveType, payload.Amount)
	} else {
		err = h.Service.Ledger.Debit(r.Context(), store.DB, payload.EmployeeID, payload.LeaveType, payload.Amount.Neg())
	}
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}

	h.Audit.Record(r.Context(), user.EmployeeID, "leave.balance.adjust", "leave_balance", payload.EmployeeID, payload)
	balance, err := store.GetBalance(r.Context(), store.DB, payload.EmployeeID)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	api.Success(w, balance, reqID)
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a number", reqID)
			return
		}
		year = parsed
	}
	holidays, err := h.Service.Store.ListHolidays(r.Context(), year)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	api.Success(w, holidays, reqID)
}

type createHolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

func (h *Handler) handleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var payload createHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	date, err := leave.ParseDate(payload.Date)
	if err != nil || payload.Name == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "date (YYYY-MM-DD) and name are required", reqID)
		return
	}
	id, err := h.Service.Store.CreateHoliday(r.Context(), date, payload.Name)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "holiday.create", "holiday", id, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	holidayID := chi.URLParam(r, "holidayID")
	if err := h.Service.Store.DeleteHoliday(r.Context(), holidayID); err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "holiday.delete", "holiday", holidayID, nil)
	api.Success(w, map[string]bool{"deleted": true}, reqID)
}

func (h *Handler) handleUploadCertificate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if _, ok := h.user(w, r); !ok {
		return
	}
	if err := r.ParseMultipartForm(maxCertificateBytes); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "multipart form with a file field is required", reqID)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "file field is required", reqID)
		return
	}
	defer file.Close()
	if header.Size > maxCertificateBytes {
		api.Fail(w, http.StatusBadRequest, "validation_error", "certificate exceeds the 2MB limit", reqID)
		return
	}

	key, err := h.Blobs.Save(r.Context(), io.LimitReader(file, maxCertificateBytes))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "upload_failed", "failed to store certificate", reqID)
		return
	}
	api.Created(w, map[string]string{"key": key}, reqID)
}

func (h *Handler) handleDownloadCertificate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	req, err := h.Service.GetRequest(r.Context(), chi.URLParam(r, "requestID"), user.EmployeeID)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	if req.CertificateKey == "" {
		api.Fail(w, http.StatusNotFound, "not_found", "no certificate attached", reqID)
		return
	}
	reader, err := h.Blobs.Open(r.Context(), req.CertificateKey)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "certificate missing from storage", reqID)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="certificate"`)
	_, _ = io.Copy(w, reader)
}

func (h *Handler) calendarRange(r *http.Request) (leave.Date, leave.Date, error) {
	from, hasFrom, err := shared.QueryDate(r, "from")
	if err != nil {
		return leave.Date{}, leave.Date{}, err
	}
	to, hasTo, err := shared.QueryDate(r, "to")
	if err != nil {
		return leave.Date{}, leave.Date{}, err
	}
	if !hasFrom || !hasTo {
		now := time.Now()
		from = leave.Date{Year: now.Year(), Month: now.Month(), Day: 1}
		to = from.AddDays(31)
	}
	return from, to, nil
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	from, to, err := h.calendarRange(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "from/to must be YYYY-MM-DD", reqID)
		return
	}
	rows, err := h.Service.Store.CalendarRows(r.Context(), from, to)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	api.Success(w, rows, reqID)
}

func (h *Handler) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	from, to, err := h.calendarRange(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "from/to must be YYYY-MM-DD", reqID)
		return
	}
	rows, err := h.Service.Store.CalendarRows(r.Context(), from, to)
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(60, 10, "Leave Calendar")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", from, to))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(70, 8, "Employee", "1", 0, "", false, 0, "")
	pdf.CellFormat(30, 8, "Type", "1", 0, "", false, 0, "")
	pdf.CellFormat(35, 8, "From", "1", 0, "", false, 0, "")
	pdf.CellFormat(35, 8, "To", "1", 0, "", false, 0, "")
	pdf.CellFormat(25, 8, "Days", "1", 0, "", false, 0, "")
	pdf.CellFormat(45, 8, "Status", "1", 1, "", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.CellFormat(70, 8, row.EmployeeName, "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 8, string(row.LeaveType), "1", 0, "", false, 0, "")
		pdf.CellFormat(35, 8, row.StartDate.String(), "1", 0, "", false, 0, "")
		pdf.CellFormat(35, 8, row.EndDate.String(), "1", 0, "", false, 0, "")
		pdf.CellFormat(25, 8, row.NoOfDays.String(), "1", 0, "", false, 0, "")
		pdf.CellFormat(45, 8, string(row.Status), "1", 1, "", false, 0, "")
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="leave-calendar.pdf"`)
	if err := pdf.Output(w); err != nil {
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to render calendar", reqID)
	}
}

func (h *Handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	jobType := chi.URLParam(r, "jobType")
	now := time.Now()

	var details any
	var err error
	switch jobType {
	case jobs.JobMonthlyAccrual:
		details, err = h.Jobs.RunNow(r.Context(), jobType, now.Format("2006-01"), h.Jobs.MonthlyAccrual)
	case jobs.JobAnniversary:
		details, err = h.Jobs.RunNow(r.Context(), jobType, now.Format("2006-01-02"), func(ctx context.Context) (any, error) {
			return h.Jobs.Anniversary(ctx, now)
		})
	case jobs.JobYearEndReset:
		details, err = h.Jobs.RunNow(r.Context(), jobType, now.Format("2006"), h.Jobs.YearEndReset)
	default:
		api.Fail(w, http.StatusNotFound, "not_found", "unknown job type "+jobType, reqID)
		return
	}
	if err != nil {
		api.DomainError(w, err, reqID)
		return
	}
	h.Audit.Record(r.Context(), user.EmployeeID, "leave.job.run", "job", jobType, details)
	api.Success(w, details, reqID)
}
