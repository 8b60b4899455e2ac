package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
)

// PurchaseHandler handles HTTP requests for purchase records.
type PurchaseHandler struct {
	service *service.PurchaseService
	logger  *slog.Logger
}

// NewPurchaseHandler creates a new purchase HTTP handler.
func NewPurchaseHandler(svc *service.PurchaseService, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		service: svc,
		logger:  logger,
	}
}

// PurchaseItemRequest is one line of a recorded order.
type PurchaseItemRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// RecordPurchaseRequest is the JSON request body for recording an order.
type RecordPurchaseRequest struct {
	OrderID string                `json:"order_id" validate:"required"`
	UserID  string                `json:"user_id" validate:"required"`
	Items   []PurchaseItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// OrderStatusRequest is the JSON request body for changing an order's
// purchase status.
type OrderStatusRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=processing completed returned"`
}

// ReturnRequest is the JSON request body for returning items of an order.
type ReturnRequest struct {
	Items []PurchaseItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// RecordPurchase handles POST /api/v1/purchases
func (h *PurchaseHandler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req RecordPurchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]service.PurchaseItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.PurchaseItemInput{ListingID: it.ListingID, Quantity: it.Quantity}
	}

	recorded, err := h.service.RecordPurchase(r.Context(), &service.RecordPurchaseInput{
		OrderID: req.OrderID,
		UserID:  req.UserID,
		Items:   items,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: recorded})
}

// SetOrderStatus handles PUT /api/v1/purchases/status
func (h *PurchaseHandler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.SetOrderStatus(r.Context(), req.OrderID, req.Status); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"order_id": req.OrderID, "status": req.Status}})
}

// GetOrder handles GET /api/v1/purchases/orders/{orderId}
func (h *PurchaseHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
}

// CancelOrder handles DELETE /api/v1/purchases/orders/{orderId}
func (h *PurchaseHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelOrder(r.Context(), chi.URLParam(r, "orderId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReturnItems handles PUT /api/v1/purchases/orders/{orderId}/return
func (h *PurchaseHandler) ReturnItems(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lines := make([]domain.ReturnLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = domain.ReturnLine{ListingID: it.ListingID, Quantity: it.Quantity}
	}

	if err := h.service.ReturnItems(r.Context(), chi.URLParam(r, "orderId"), lines); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
