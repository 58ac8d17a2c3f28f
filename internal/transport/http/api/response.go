package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"hrops/internal/domain/leave"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// DomainError translates an engine error into the envelope. Unclassified
// errors become an opaque 500; the message never leaks internals.
func DomainError(w http.ResponseWriter, err error, requestID string) {
	switch leave.KindOf(err) {
	case leave.KindNotFound:
		Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case leave.KindForbidden:
		Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case leave.KindConflict:
		Fail(w, http.StatusConflict, "conflict", err.Error(), requestID)
	case leave.KindValidation:
		Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case leave.KindInsufficientBalance:
		Fail(w, http.StatusBadRequest, "insufficient_balance", err.Error(), requestID)
	case leave.KindState:
		Fail(w, http.StatusBadRequest, "invalid_state", err.Error(), requestID)
	default:
		slog.Error("internal error", "requestId", requestID, "err", err)
		Fail(w, http.StatusInternalServerError, "internal_error", "something went wrong", requestID)
	}
}
