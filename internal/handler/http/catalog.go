package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/pagination"
)

// CatalogHandler handles HTTP requests for catalog entry endpoints.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog entry HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateEntryRequest is the JSON request body for creating a catalog entry.
type CreateEntryRequest struct {
	Name             string         `json:"name" validate:"required,min=1,max=500"`
	Brand            string         `json:"brand" validate:"max=255"`
	ClassificationID string         `json:"classification_id" validate:"required,uuid"`
	CategoryID       string         `json:"category_id" validate:"required,uuid"`
	Attributes       map[string]any `json:"attributes"`
	ImageURL         string         `json:"image_url" validate:"omitempty,url"`
	LicenseURL       string         `json:"license_url" validate:"omitempty,url"`
}

// UpdateEntryRequest is the JSON request body for updating a catalog entry.
type UpdateEntryRequest struct {
	Name             *string        `json:"name" validate:"omitempty,min=1,max=500"`
	Brand            *string        `json:"brand" validate:"omitempty,max=255"`
	ClassificationID *string        `json:"classification_id" validate:"omitempty,uuid"`
	CategoryID       *string        `json:"category_id" validate:"omitempty,uuid"`
	Attributes       map[string]any `json:"attributes"`
	ImageURL         *string        `json:"image_url" validate:"omitempty,url"`
	LicenseURL       *string        `json:"license_url" validate:"omitempty,url"`
}

// ListEntries handles GET /api/v1/catalog-entries
func (h *CatalogHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	pg := pagination.FromRequest(r)

	entries, total, err := h.service.ListEntries(r.Context(), repository.CatalogFilter{
		Search:     optionalQuery(r, "q"),
		Brand:      optionalQuery(r, "brand"),
		Visibility: optionalQuery(r, "visibility"),
		Page:       pg.Page,
		PerPage:    pg.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(entries, total, pg.Page, pg.PerPage))
}

// GetEntry handles GET /api/v1/catalog-entries/{id}
func (h *CatalogHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entry})
}

// CreateEntry handles POST /api/v1/catalog-entries
func (h *CatalogHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), &service.CreateEntryInput{
		Name:             req.Name,
		Brand:            req.Brand,
		ClassificationID: req.ClassificationID,
		CategoryID:       req.CategoryID,
		Attributes:       req.Attributes,
		ImageURL:         req.ImageURL,
		LicenseURL:       req.LicenseURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: entry})
}

// UpdateEntry handles PUT /api/v1/catalog-entries/{id}
func (h *CatalogHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.service.UpdateEntry(r.Context(), id, &service.UpdateEntryInput{
		Name:             req.Name,
		Brand:            req.Brand,
		ClassificationID: req.ClassificationID,
		CategoryID:       req.CategoryID,
		Attributes:       req.Attributes,
		ImageURL:         req.ImageURL,
		LicenseURL:       req.LicenseURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entry})
}

// DeleteEntry handles DELETE /api/v1/catalog-entries/{id}
func (h *CatalogHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetVisibility handles PUT /api/v1/catalog-entries/{id}/visibility
func (h *CatalogHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req VisibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.SetVisibility(r.Context(), id, req.Visibility); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "visibility": req.Visibility}})
}
