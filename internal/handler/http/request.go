package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/validator"
)

// maxBodyBytes limits request bodies to 1MB.
const maxBodyBytes = 1 << 20

// decodeBody reads and validates a JSON body into dst. On failure it writes
// the 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.Problem(w, r, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error(), nil)
		return false
	}
	err := validator.Validate(dst)
	if err == nil {
		return true
	}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.Problem(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", valErr.Fields())
	} else {
		httputil.Problem(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	}
	return false
}

// pathID reads a UUID path parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeBadParam(w, r, "invalid UUID: "+raw)
		return "", false
	}
	return id.String(), true
}

// optionalQuery returns a pointer to the trimmed query value, or nil when absent.
func optionalQuery(r *http.Request, key string) *string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil
	}
	return &v
}

// listQuery splits a comma separated query value, also accepting repeats.
func listQuery(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func writeBadParam(w http.ResponseWriter, r *http.Request, msg string) {
	httputil.Problem(w, r, http.StatusBadRequest, "INVALID_PARAMETER", msg, nil)
}
