package directoryhandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrops/internal/domain/audit"
	"hrops/internal/domain/auth"
	"hrops/internal/domain/directory"
	"hrops/internal/transport/http/api"
	"hrops/internal/transport/http/middleware"
	"hrops/internal/transport/http/shared"
)

type Handler struct {
	Store *directory.Store
	Audit *audit.Service
}

func NewHandler(store *directory.Store, auditSvc *audit.Service) *Handler {
	return &Handler{Store: store, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead)).Get("/{employeeID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite)).Post("/", h.handleCreate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	employees, err := h.Store.ListEmployees(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_list_failed", "failed to list employees", reqID)
		return
	}
	api.Success(w, employees, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employee, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	api.Success(w, employee, reqID)
}

type createEmployeeRequest struct {
	EmployeeNumber     string `json:"employeeNumber"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	Role               string `json:"role"`
	Status             string `json:"status"`
	ReportingManagerID string `json:"reportingManagerId"`
	JoinDate           string `json:"joinDate"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload createEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if strings.TrimSpace(payload.FirstName) == "" || strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "firstName, email and password are required", reqID)
		return
	}
	if !auth.ValidRole(payload.Role) {
		api.Fail(w, http.StatusBadRequest, "validation_error", "unknown role "+payload.Role, reqID)
		return
	}
	status := payload.Status
	if status == "" {
		status = directory.StatusActive
	}
	switch status {
	case directory.StatusActive, directory.StatusOnNotice, directory.StatusInactive:
	default:
		api.Fail(w, http.StatusBadRequest, "validation_error", "unknown status "+status, reqID)
		return
	}

	var joinDate *time.Time
	if payload.JoinDate != "" {
		parsed, err := time.Parse("2006-01-02", payload.JoinDate)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", "joinDate must be YYYY-MM-DD", reqID)
			return
		}
		joinDate = &parsed
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", reqID)
		return
	}

	id, err := h.Store.CreateEmployee(r.Context(), directory.Employee{
		EmployeeNumber:     payload.EmployeeNumber,
		FirstName:          payload.FirstName,
		LastName:           payload.LastName,
		Email:              payload.Email,
		Role:               payload.Role,
		Status:             status,
		ReportingManagerID: payload.ReportingManagerID,
		JoinDate:           joinDate,
	}, hash)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", reqID)
		return
	}

	h.Audit.Record(r.Context(), user.EmployeeID, "employee.create", "employee", id, map[string]string{
		"email": payload.Email,
		"role":  payload.Role,
	})
	api.Created(w, map[string]string{"id": id}, reqID)
}
