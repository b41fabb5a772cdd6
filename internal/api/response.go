// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/loomfeed/internal/logging"
	"github.com/tomtom215/loomfeed/internal/validation"
)

// Error codes returned in the error envelope.
const (
	CodeValidationError = validation.CodeValidationError
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// APIResponse is the envelope used for error responses.
type APIResponse struct {
	Status   string    `json:"status"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata describes the response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError is a machine-readable error.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// sanitizeLogValue escapes control characters so client input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes v as JSON. Feed and health payloads are written bare;
// errors go through respondError.
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError writes the error envelope and logs err when present.
// Server errors are logged at error level, client errors at debug.
func respondError(ctx context.Context, w http.ResponseWriter, status int, apiErr *APIError, err error) {
	if err != nil {
		logger := logging.Ctx(ctx)
		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Str("code", apiErr.Code).
			Int("status", status).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &APIResponse{
		Status: "error",
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(ctx),
		},
		Error: apiErr,
	})
}

// validateRequest runs struct validation and converts failures to an APIError.
func validateRequest(v any) *APIError {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	converted := verr.ToAPIError()
	return &APIError{
		Code:    converted.Code,
		Message: converted.Message,
		Details: converted.Details,
	}
}
