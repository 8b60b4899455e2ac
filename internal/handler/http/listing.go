package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/presenter"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/pagination"
)

// ListingHandler handles HTTP requests for listing endpoints.
type ListingHandler struct {
	service *service.ListingService
	logger  *slog.Logger
}

// NewListingHandler creates a new listing HTTP handler.
func NewListingHandler(svc *service.ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateListingRequest is the JSON request body for creating a listing.
type CreateListingRequest struct {
	CatalogEntryID string          `json:"catalog_entry_id" validate:"required,uuid"`
	SellerID       string          `json:"seller_id" validate:"required"`
	SellerName     string          `json:"seller_name" validate:"max=255"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	Stock          int             `json:"stock" validate:"gte=0"`
	ImportDate     *time.Time      `json:"import_date"`
	InvoiceURL     string          `json:"invoice_url" validate:"omitempty,url"`
	ReturnPolicy   map[string]any  `json:"return_policy"`
}

// UpdateListingRequest is the JSON request body for updating a listing.
type UpdateListingRequest struct {
	SellerName   *string          `json:"seller_name" validate:"omitempty,max=255"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	RetailPrice  *decimal.Decimal `json:"retail_price"`
	Stock        *int             `json:"stock" validate:"omitempty,gte=0"`
	ImportDate   *time.Time       `json:"import_date"`
	InvoiceURL   *string          `json:"invoice_url" validate:"omitempty,url"`
	ReturnPolicy map[string]any   `json:"return_policy"`
}

// IDsRequest is the JSON request body for batch reads.
type IDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,uuid"`
}

// ByCategoriesRequest is the JSON request body for listing by category names.
type ByCategoriesRequest struct {
	Categories []string `json:"categories" validate:"required,min=1,dive,required"`
}

// CheckStockRequest is the JSON request body for checking stock.
type CheckStockRequest struct {
	Items []CheckStockItem `json:"items" validate:"required,min=1,max=100,dive"`
}

// CheckStockItem is one requested quantity in a stock check.
type CheckStockItem struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// ApprovalRequest is the JSON request body for approving or rejecting a listing.
type ApprovalRequest struct {
	ApprovalStatus string `json:"approval_status" validate:"required,oneof=approved rejected"`
}

// VisibilityRequest is the JSON request body for switching visibility.
type VisibilityRequest struct {
	Visibility string `json:"visibility" validate:"required,oneof=active inactive"`
}

// --- Handlers ---

// ListListings handles GET /api/v1/listings
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, listQuery(r, "category"))
}

// ListByCategories handles POST /api/v1/listings/by-categories
func (h *ListingHandler) ListByCategories(w http.ResponseWriter, r *http.Request) {
	var req ByCategoriesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.list(w, r, req.Categories)
}

func (h *ListingHandler) list(w http.ResponseWriter, r *http.Request, categories []string) {
	q := r.URL.Query()
	pg := pagination.FromRequest(r)

	input := &service.ListListingsInput{
		Search:         optionalQuery(r, "q"),
		Brand:          optionalQuery(r, "brand"),
		SellerID:       optionalQuery(r, "seller_id"),
		Classification: optionalQuery(r, "classification"),
		Categories:     categories,
		ApprovalStatus: optionalQuery(r, "approval_status"),
		SortPrice:      q.Get("sort_price"),
		Audience:       presenter.AudienceInternal,
		Page:           pg.Page,
		PerPage:        pg.PerPage,
	}

	if raw := q.Get("for_customer"); raw != "" {
		forCustomer, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadParam(w, r, "for_customer must be a boolean")
			return
		}
		if forCustomer {
			input.Audience = presenter.AudienceCustomer
		}
	}
	if input.Audience == presenter.AudienceInternal && input.SellerID != nil {
		input.Audience = presenter.AudienceSeller
	}

	views, total, err := h.service.ListListings(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(views, total, pg.Page, pg.PerPage))
}

// ListBrands handles GET /api/v1/listings/brands
func (h *ListingHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.service.Brands(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: brands})
}

// GetByIDs handles POST /api/v1/listings/by-ids
func (h *ListingHandler) GetByIDs(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	views, err := h.service.GetListingsByIDs(r.Context(), req.IDs, presenter.AudienceInternal)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: views})
}

// CheckStock handles POST /api/v1/listings/check-stock
func (h *ListingHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	var req CheckStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	requests := make([]service.StockRequest, len(req.Items))
	for i, it := range req.Items {
		requests[i] = service.StockRequest{ListingID: it.ListingID, Quantity: it.Quantity}
	}

	checks, err := h.service.CheckStock(r.Context(), requests)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: checks})
}

// GetListing handles GET /api/v1/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, presenter.AudienceInternal)
}

// GetCustomerListing handles GET /api/v1/listings/{id}/customer
func (h *ListingHandler) GetCustomerListing(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, presenter.AudienceCustomer)
}

func (h *ListingHandler) get(w http.ResponseWriter, r *http.Request, audience presenter.Audience) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.service.GetListing(r.Context(), id, audience)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// CreateListing handles POST /api/v1/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	listing, err := h.service.CreateListing(r.Context(), &service.CreateListingInput{
		CatalogEntryID: req.CatalogEntryID,
		SellerID:       req.SellerID,
		SellerName:     req.SellerName,
		CostPrice:      req.CostPrice,
		RetailPrice:    req.RetailPrice,
		Stock:          req.Stock,
		ImportDate:     req.ImportDate,
		InvoiceURL:     req.InvoiceURL,
		ReturnPolicy:   req.ReturnPolicy,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: listing})
}

// UpdateListing handles PUT /api/v1/listings/{id}
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateListingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	listing, err := h.service.UpdateListing(r.Context(), id, &service.UpdateListingInput{
		SellerName:   req.SellerName,
		CostPrice:    req.CostPrice,
		RetailPrice:  req.RetailPrice,
		Stock:        req.Stock,
		ImportDate:   req.ImportDate,
		InvoiceURL:   req.InvoiceURL,
		ReturnPolicy: req.ReturnPolicy,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listing})
}

// DeleteListing handles DELETE /api/v1/listings/{id}
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteListing(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetApproval handles PUT /api/v1/listings/{id}/approval
func (h *ListingHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	listing, err := h.service.SetApproval(r.Context(), id, req.ApprovalStatus)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listing})
}

// SetVisibility handles PUT /api/v1/listings/{id}/visibility
func (h *ListingHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req VisibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	listing, err := h.service.SetVisibility(r.Context(), id, req.Visibility)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listing})
}
