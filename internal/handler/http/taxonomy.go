package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
)

// TaxonomyHandler handles HTTP requests for classifications and their
// categories.
type TaxonomyHandler struct {
	service *service.TaxonomyService
	logger  *slog.Logger
}

// NewTaxonomyHandler creates a new taxonomy HTTP handler.
func NewTaxonomyHandler(svc *service.TaxonomyService, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		service: svc,
		logger:  logger,
	}
}

// NameRequest is the JSON request body for creating a named taxonomy node.
type NameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// ListClassifications handles GET /api/v1/classifications
func (h *TaxonomyHandler) ListClassifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListClassifications(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
}

// CreateClassification handles POST /api/v1/classifications
func (h *TaxonomyHandler) CreateClassification(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.service.CreateClassification(r.Context(), req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: c})
}

// DeleteClassification handles DELETE /api/v1/classifications/{id}
func (h *TaxonomyHandler) DeleteClassification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteClassification(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /api/v1/classifications/{id}/categories
func (h *TaxonomyHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	items, err := h.service.ListCategories(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
}

// CreateCategory handles POST /api/v1/classifications/{id}/categories
func (h *TaxonomyHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.service.CreateCategory(r.Context(), id, req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: c})
}

// DeleteCategory handles DELETE /api/v1/classifications/categories/{id}
func (h *TaxonomyHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
