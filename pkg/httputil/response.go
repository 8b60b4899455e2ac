// Package httputil writes the JSON envelope every endpoint answers with:
// {"data": ...} on success and {"error": {...}} on failure.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/logger"
)

type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the body of a failed request. RequestID echoes the
// correlation ID so clients can quote it.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with status. Encoding errors are dropped because the
// header is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Problem writes an error envelope with an explicit code. fields may be nil.
func Problem(w http.ResponseWriter, r *http.Request, status int, code, message string, fields map[string]string) {
	WriteJSON(w, status, Response{Error: &ErrorResponse{
		Code:      code,
		Message:   message,
		Fields:    fields,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}

// WriteError maps err through apperrors.From and writes it. 5xx causes are
// logged on the request logger, or on fallback outside the logging middleware.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	appErr := apperrors.From(err)
	if appErr.Status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == nil {
			l = fallback
		}
		if l != nil {
			l.LogAttrs(r.Context(), slog.LevelError, "request failed",
				slog.Int("status", appErr.Status),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
	}
	Problem(w, r, appErr.Status, appErr.Code, appErr.Message, nil)
}
