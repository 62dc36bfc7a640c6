// Package httputil renders JSON responses and coded errors.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "rrfiler/pkg/domain-errors"
	"rrfiler/pkg/platform/sentinel"
)

type errorResponse struct {
	Error       string   `json:"error"`
	Description string   `json:"error_description,omitempty"`
	Details     []string `json:"details,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:      http.StatusBadRequest,
	dErrors.CodeNotFound:        http.StatusNotFound,
	dErrors.CodeConflict:        http.StatusConflict,
	dErrors.CodeInvalidState:    http.StatusConflict,
	dErrors.CodePreflightFailed: http.StatusUnprocessableEntity,
	dErrors.CodeTransport:       http.StatusBadGateway,
	dErrors.CodeUnavailable:     http.StatusServiceUnavailable,
	dErrors.CodeTimeout:         http.StatusGatewayTimeout,
	dErrors.CodeInternal:        http.StatusInternalServerError,
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {"error": code, "error_description": message}.
// Internal errors never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	de := toDomainError(err)
	status, ok := statusByCode[de.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := errorResponse{Error: string(de.Code)}
	if de.Code != dErrors.CodeInternal {
		resp.Description = de.Message
		resp.Details = de.Details
	}
	WriteJSON(w, status, resp)
}

func toDomainError(err error) *dErrors.Error {
	if de, ok := dErrors.As(err); ok {
		return de
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "resource not found")
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrLocked):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update, try again")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "operation not allowed in current state")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "dependency unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
}
