package http

import (
	"mime"
	"net/http"

	"github.com/utafrali/catalog/pkg/httputil"
)

// requireJSON rejects write requests whose declared body type is not JSON.
// A missing Content-Type is let through and left to the decoder.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			if r.ContentLength <= 0 {
				next.ServeHTTP(w, r)
				return
			}
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
				httputil.Problem(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
					"Content-Type must be application/json", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
