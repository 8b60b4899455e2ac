package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/pagination"
)

// SuggestionHandler handles HTTP requests for seller suggestions of new
// catalog entries.
type SuggestionHandler struct {
	service *service.SuggestionService
	logger  *slog.Logger
}

// NewSuggestionHandler creates a new suggestion HTTP handler.
func NewSuggestionHandler(svc *service.SuggestionService, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateSuggestionRequest is the JSON request body for proposing a catalog entry.
type CreateSuggestionRequest struct {
	Name             string         `json:"name" validate:"required,min=1,max=255"`
	Brand            string         `json:"brand" validate:"max=255"`
	ImageURL         string         `json:"image_url" validate:"omitempty,url"`
	LicenseURL       string         `json:"license_url" validate:"omitempty,url"`
	ClassificationID string         `json:"classification_id" validate:"required,uuid"`
	CategoryID       string         `json:"category_id" validate:"required,uuid"`
	Attributes       map[string]any `json:"attributes"`
	SellerID         string         `json:"seller_id" validate:"required"`
	SellerName       string         `json:"seller_name" validate:"max=255"`
}

// UpdateSuggestionRequest is the JSON request body for editing a pending suggestion.
type UpdateSuggestionRequest struct {
	Name             *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Brand            *string        `json:"brand" validate:"omitempty,max=255"`
	ImageURL         *string        `json:"image_url" validate:"omitempty,url"`
	LicenseURL       *string        `json:"license_url" validate:"omitempty,url"`
	ClassificationID *string        `json:"classification_id" validate:"omitempty,uuid"`
	CategoryID       *string        `json:"category_id" validate:"omitempty,uuid"`
	Attributes       map[string]any `json:"attributes"`
}

// RespondRequest is the JSON request body for an admin decision.
type RespondRequest struct {
	Decision    string `json:"approval_status" validate:"required,oneof=approved rejected"`
	Message     string `json:"message" validate:"max=1000"`
	RespondedBy string `json:"responded_by" validate:"required"`
	Responder   string `json:"responder_name" validate:"max=255"`
}

// ListSuggestions handles GET /api/v1/suggestions
func (h *SuggestionHandler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	pg := pagination.FromRequest(r)

	suggestions, total, err := h.service.ListSuggestions(r.Context(), repository.SuggestionFilter{
		SellerID:       optionalQuery(r, "seller_id"),
		ApprovalStatus: optionalQuery(r, "approval_status"),
		Page:           pg.Page,
		PerPage:        pg.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(suggestions, total, pg.Page, pg.PerPage))
}

// GetSuggestion handles GET /api/v1/suggestions/{id}
func (h *SuggestionHandler) GetSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	s, err := h.service.GetSuggestion(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: s})
}

// CreateSuggestion handles POST /api/v1/suggestions
func (h *SuggestionHandler) CreateSuggestion(w http.ResponseWriter, r *http.Request) {
	var req CreateSuggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s, err := h.service.CreateSuggestion(r.Context(), &service.CreateSuggestionInput{
		Name:             req.Name,
		Brand:            req.Brand,
		ImageURL:         req.ImageURL,
		LicenseURL:       req.LicenseURL,
		ClassificationID: req.ClassificationID,
		CategoryID:       req.CategoryID,
		Attributes:       req.Attributes,
		SellerID:         req.SellerID,
		SellerName:       req.SellerName,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: s})
}

// UpdateSuggestion handles PUT /api/v1/suggestions/{id}
func (h *SuggestionHandler) UpdateSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateSuggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s, err := h.service.UpdateSuggestion(r.Context(), id, &service.UpdateSuggestionInput{
		Name:             req.Name,
		Brand:            req.Brand,
		ImageURL:         req.ImageURL,
		LicenseURL:       req.LicenseURL,
		ClassificationID: req.ClassificationID,
		CategoryID:       req.CategoryID,
		Attributes:       req.Attributes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: s})
}

// DeleteSuggestion handles DELETE /api/v1/suggestions/{id}
func (h *SuggestionHandler) DeleteSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteSuggestion(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Respond handles PUT /api/v1/suggestions/{id}/response
//
// An approval answers with the catalog entry it created; a rejection
// answers with the decision only.
func (h *SuggestionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req RespondRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.service.Respond(r.Context(), id, &service.RespondInput{
		Decision:    req.Decision,
		Message:     req.Message,
		RespondedBy: req.RespondedBy,
		Responder:   req.Responder,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	data := map[string]any{"id": id, "approval_status": req.Decision}
	if entry != nil {
		data["catalog_entry"] = entry
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: data})
}
