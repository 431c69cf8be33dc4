package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{
		Success: status < 400,
		Message: message,
		Data:    data,
	}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError maps domain sentinels to status codes. Anything unmapped is
// an internal error and its detail stays out of the response body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrMissingGroup),
		errors.Is(err, core.ErrMissingPayer),
		errors.Is(err, core.ErrEmptySplit),
		errors.Is(err, core.ErrSplitLocked),
		errors.Is(err, core.ErrNoOutstandingDebtors),
		errors.Is(err, core.ErrNotGroupMember),
		errors.Is(err, core.ErrNotInSplit),
		errors.Is(err, storage.ErrEmailExists):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, core.ErrGroupNotFound),
		errors.Is(err, core.ErrExpenseNotFound),
		errors.Is(err, core.ErrUserNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, core.ErrVersionConflict):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, storage.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, storage.ErrInvalidSession),
		errors.Is(err, storage.ErrExpiredSession):
		status = http.StatusUnauthorized
		message = "authentication required"
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}

	respondJSON(w, status, message, nil)
}
