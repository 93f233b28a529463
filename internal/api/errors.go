// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	xglog "github.com/ManuGH/storyreel/internal/log"
)

// APIError is a stable, machine-readable error code.
type APIError struct {
	Code   string
	Status int
}

// Error codes returned by the API.
var (
	ErrUnauthorized = &APIError{Code: "unauthorized", Status: http.StatusUnauthorized}
	ErrUnknownUser  = &APIError{Code: "unknown_user", Status: http.StatusNotFound}
	ErrInvalidClass = &APIError{Code: "invalid_cache_class", Status: http.StatusBadRequest}
	ErrInvalidInput = &APIError{Code: "invalid_input", Status: http.StatusBadRequest}
	ErrUnavailable  = &APIError{Code: "unavailable", Status: http.StatusServiceUnavailable}
)

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes apiErr as JSON. Optional detail strings are joined
// into the detail field.
func RespondError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError, detail ...string) {
	body := errorBody{
		Error:     apiErr.Code,
		RequestID: xglog.RequestIDFromContext(r.Context()),
	}
	if len(detail) > 0 {
		body.Detail = detail[0]
	}
	if status == 0 {
		status = apiErr.Status
	}
	writeJSON(w, status, body)
}
