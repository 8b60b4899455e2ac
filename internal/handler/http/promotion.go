package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/pagination"
)

// PromotionHandler handles HTTP requests for promotion templates and
// seller promotions.
type PromotionHandler struct {
	service *service.PromotionService
	logger  *slog.Logger
}

// NewPromotionHandler creates a new promotion HTTP handler.
func NewPromotionHandler(svc *service.PromotionService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// TemplateRequest is the JSON request body for creating or renaming a template.
type TemplateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// StatusRequest is the JSON request body for switching a status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// CreatePromotionRequest is the JSON request body for creating a promotion.
type CreatePromotionRequest struct {
	TemplateID   string          `json:"template_id" validate:"required,uuid"`
	SellerID     string          `json:"seller_id" validate:"required"`
	DiscountType string          `json:"discount_type" validate:"required,oneof=fixed percent fixed-final-price"`
	Value        decimal.Decimal `json:"value"`
	StartDate    *time.Time      `json:"start_date" validate:"required"`
	EndDate      *time.Time      `json:"end_date" validate:"required"`
}

// UpdatePromotionRequest is the JSON request body for updating a promotion.
type UpdatePromotionRequest struct {
	DiscountType *string          `json:"discount_type" validate:"omitempty,oneof=fixed percent fixed-final-price"`
	Value        *decimal.Decimal `json:"value"`
	StartDate    *time.Time       `json:"start_date"`
	EndDate      *time.Time       `json:"end_date"`
	Status       *string          `json:"status" validate:"omitempty,oneof=active inactive"`
}

// OverrideRequest is the JSON request body for a per-listing override.
// Omitted fields clear the override.
type OverrideRequest struct {
	ListingID       string           `json:"listing_id" validate:"required,uuid"`
	CustomValue     *decimal.Decimal `json:"custom_value"`
	CustomStartDate *time.Time       `json:"custom_start_date"`
	CustomEndDate   *time.Time       `json:"custom_end_date"`
}

// --- Template handlers ---

// ListTemplates handles GET /api/v1/promotion-templates
func (h *PromotionHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	pg := pagination.FromRequest(r)

	templates, total, err := h.service.ListTemplates(r.Context(), optionalQuery(r, "status"), pg.Page, pg.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(templates, total, pg.Page, pg.PerPage))
}

// GetTemplate handles GET /api/v1/promotion-templates/{id}
func (h *PromotionHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	tpl, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tpl})
}

// CreateTemplate handles POST /api/v1/promotion-templates
func (h *PromotionHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tpl, err := h.service.CreateTemplate(r.Context(), req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: tpl})
}

// UpdateTemplate handles PUT /api/v1/promotion-templates/{id}
func (h *PromotionHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req TemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tpl, err := h.service.RenameTemplate(r.Context(), id, req.Name)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tpl})
}

// DeleteTemplate handles DELETE /api/v1/promotion-templates/{id}
func (h *PromotionHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTemplate(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTemplateStatus handles PUT /api/v1/promotion-templates/{id}/status
func (h *PromotionHandler) SetTemplateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.SetTemplateStatus(r.Context(), id, req.Status); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": req.Status}})
}

// --- Promotion handlers ---

// ListPromotions handles GET /api/v1/promotions
func (h *PromotionHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	pg := pagination.FromRequest(r)

	promotions, total, err := h.service.ListPromotions(r.Context(), repository.PromotionFilter{
		SellerID: optionalQuery(r, "seller_id"),
		Status:   optionalQuery(r, "status"),
		Page:     pg.Page,
		PerPage:  pg.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(promotions, total, pg.Page, pg.PerPage))
}

// Available handles GET /api/v1/promotions/available
func (h *PromotionHandler) Available(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Available(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: groups})
}

// AvailableListings handles GET /api/v1/promotions/available/listings?name=
func (h *PromotionHandler) AvailableListings(w http.ResponseWriter, r *http.Request) {
	name := optionalQuery(r, "name")
	if name == nil {
		writeBadParam(w, r, "name is required")
		return
	}
	pg := pagination.FromRequest(r)

	views, total, err := h.service.ListingsInPromotion(r.Context(), *name, pg.Page, pg.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(views, total, pg.Page, pg.PerPage))
}

// NotInPromotion handles GET /api/v1/promotions/not-in-promotion?seller_id=
func (h *PromotionHandler) NotInPromotion(w http.ResponseWriter, r *http.Request) {
	sellerID := optionalQuery(r, "seller_id")
	if sellerID == nil {
		writeBadParam(w, r, "seller_id is required")
		return
	}
	pg := pagination.FromRequest(r)

	views, total, err := h.service.NotInPromotion(r.Context(), *sellerID, pg.Page, pg.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(views, total, pg.Page, pg.PerPage))
}

// GetPromotion handles GET /api/v1/promotions/{id}
func (h *PromotionHandler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetPromotion(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// CreatePromotion handles POST /api/v1/promotions
func (h *PromotionHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req CreatePromotionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.service.CreatePromotion(r.Context(), &service.CreatePromotionInput{
		TemplateID:   req.TemplateID,
		SellerID:     req.SellerID,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: p})
}

// UpdatePromotion handles PUT /api/v1/promotions/{id}
func (h *PromotionHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdatePromotionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.service.UpdatePromotion(r.Context(), id, &service.UpdatePromotionInput{
		DiscountType: req.DiscountType,
		Value:        req.Value,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Status:       req.Status,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// DeletePromotion handles DELETE /api/v1/promotions/{id}
func (h *PromotionHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePromotion(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPromotionStatus handles PUT /api/v1/promotions/{id}/status
func (h *PromotionHandler) SetPromotionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.SetPromotionStatus(r.Context(), id, req.Status); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": req.Status}})
}

// AssignListings handles POST /api/v1/promotions/{id}/listings
func (h *PromotionHandler) AssignListings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req IDsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := h.service.AssignListings(r.Context(), id, req.IDs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int64{"assigned": n}})
}

// UnassignListings handles DELETE /api/v1/promotions/{id}/listings
func (h *PromotionHandler) UnassignListings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req IDsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := h.service.UnassignListings(r.Context(), id, req.IDs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int64{"removed": n}})
}

// ListAssigned handles GET /api/v1/promotions/{id}/listings
func (h *PromotionHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	assigned, err := h.service.ListAssigned(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: assigned})
}

// SetOverride handles PUT /api/v1/promotions/{id}/listings/custom
func (h *PromotionHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.service.SetOverride(r.Context(), id, req.ListingID, &service.OverrideInput{
		Value:     req.CustomValue,
		StartDate: req.CustomStartDate,
		EndDate:   req.CustomEndDate,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
