package authhandler

import (
	"encoding/json"
	"net/http"
	"time"

	"hrops/internal/domain/auth"
	"hrops/internal/domain/directory"
	"hrops/internal/transport/http/api"
	"hrops/internal/transport/http/middleware"
)

type Handler struct {
	Directory *directory.Store
	Secret    string
}

func NewHandler(dir *directory.Store, secret string) *Handler {
	return &Handler{Directory: dir, Secret: secret}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	employee, err := h.Directory.GetEmployeeByEmail(r.Context(), payload.Email)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if employee.Status == directory.StatusInactive {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	hash, err := h.Directory.PasswordHash(r.Context(), employee.ID)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err := auth.CheckPassword(hash, payload.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	token, err := auth.SignToken(h.Secret, employee.ID, employee.Role, time.Now())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}

	api.Success(w, map[string]any{
		"token": token,
		"employee": map[string]string{
			"id":    employee.ID,
			"name":  employee.FullName(),
			"email": employee.Email,
			"role":  employee.Role,
		},
	}, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	employee, err := h.Directory.GetEmployee(r.Context(), user.EmployeeID)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "account no longer exists", reqID)
		return
	}
	api.Success(w, employee, reqID)
}
