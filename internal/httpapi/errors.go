package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/dispatch"
)

type jsonError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error body with the given status.
func WriteJSONError(w http.ResponseWriter, status int, message, code, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Code: code, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

// writeCommandError maps a dispatcher error to a status code.
func writeCommandError(w http.ResponseWriter, err error) {
	var authErr *dispatch.AuthError
	if errors.As(err, &authErr) {
		status := http.StatusUnauthorized
		switch authErr.Code {
		case dispatch.CodeMissingFields:
			status = http.StatusBadRequest
		case dispatch.CodeUnavailable:
			status = http.StatusServiceUnavailable
		}
		WriteJSONError(w, status, authErr.UserMessage(), string(authErr.Code), "")
		return
	}

	message := "Request failed."
	var mutErr *dispatch.MutationError
	if errors.As(err, &mutErr) {
		message = mutErr.UserMessage()
	}

	var valErr *catalog.ValidationError
	switch {
	case errors.As(err, &valErr):
		WriteJSONError(w, http.StatusBadRequest, message, "invalid_product", valErr.Error())
	case errors.Is(err, catalog.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, message, "not_found", err.Error())
	default:
		WriteJSONError(w, http.StatusInternalServerError, message, "internal", err.Error())
	}
}
