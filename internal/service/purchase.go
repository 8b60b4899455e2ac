package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/pricing"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// PurchaseService records the items bought in orders and keeps listing stock
// in step with order status changes.
type PurchaseService struct {
	repo     repository.PurchaseRepository
	listings *ListingService
	logger   *slog.Logger
	now      Clock
}

// NewPurchaseService creates a new purchase service.
func NewPurchaseService(repo repository.PurchaseRepository, listings *ListingService, logger *slog.Logger) *PurchaseService {
	return &PurchaseService{
		repo:     repo,
		listings: listings,
		logger:   logger,
		now:      systemClock,
	}
}

// PurchaseItemInput is one listing quantity in an order.
type PurchaseItemInput struct {
	ListingID string
	Quantity  int
}

// RecordPurchaseInput holds the items of one order.
type RecordPurchaseInput struct {
	OrderID string
	UserID  string
	Items   []PurchaseItemInput
}

// RecordPurchase stores the order items priced at the current effective
// price and takes them out of stock.
func (s *PurchaseService) RecordPurchase(ctx context.Context, input *RecordPurchaseInput) ([]domain.PurchasedItem, error) {
	if input.OrderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}
	if len(input.Items) > maxBatchIDs {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d items per order", maxBatchIDs))
	}

	ids := make([]string, len(input.Items))
	for i, it := range input.Items {
		if it.ListingID == "" {
			return nil, apperrors.InvalidInput("listing id is required")
		}
		if it.Quantity <= 0 {
			return nil, apperrors.InvalidInput("quantity must be positive")
		}
		ids[i] = it.ListingID
	}

	details, err := s.listings.repo.GetDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get listings for purchase: %w", err)
	}
	byID := make(map[string]*domain.ListingDetail, len(details))
	for i := range details {
		byID[details[i].Listing.ID] = &details[i]
	}

	now := s.now()
	items := make([]domain.PurchasedItem, len(input.Items))
	var expired []string
	for i, it := range input.Items {
		d, ok := byID[it.ListingID]
		if !ok {
			return nil, apperrors.NotFound("listing", it.ListingID)
		}
		res, err := s.listings.price(ctx, d, now)
		if err != nil {
			return nil, err
		}
		expired = append(expired, pricing.Expired(d.Candidates, now)...)

		items[i] = domain.PurchasedItem{
			ID:         uuid.New().String(),
			UserID:     input.UserID,
			OrderID:    input.OrderID,
			SellerID:   d.Listing.SellerID,
			ListingID:  it.ListingID,
			Quantity:   it.Quantity,
			TotalPrice: res.ActualPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2),
			Status:     domain.PurchaseProcessing,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	if err := s.repo.Record(ctx, items); err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	invalidate(ctx, s.listings.cache, s.logger, dedupe(ids)...)
	s.listings.reconciler.Correct(ctx, dedupe(expired), now)

	if err := s.listings.producer.PublishPurchaseRecorded(ctx, input.OrderID, input.UserID, items); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish purchase_recorded event",
			slog.String("order_id", input.OrderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "purchase recorded",
		slog.String("order_id", input.OrderID),
		slog.Int("items", len(items)),
	)
	return items, nil
}

// ListOrder returns the items recorded for an order.
func (s *PurchaseService) ListOrder(ctx context.Context, orderID string) ([]domain.PurchasedItem, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	items, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list purchased items: %w", err)
	}
	return items, nil
}

// SetOrderStatus updates the status of every item of an order.
func (s *PurchaseService) SetOrderStatus(ctx context.Context, orderID, status string) error {
	if orderID == "" {
		return apperrors.InvalidInput("order id is required")
	}
	if !domain.IsValidPurchaseStatus(status) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid purchase status %q, must be one of: %s",
			status, strings.Join(domain.ValidPurchaseStatuses(), ", ")))
	}

	if err := s.repo.SetOrderStatus(ctx, orderID, status); err != nil {
		return fmt.Errorf("set order status: %w", err)
	}

	s.logger.InfoContext(ctx, "purchase status changed",
		slog.String("order_id", orderID),
		slog.String("status", status),
	)
	return nil
}

// CancelOrder deletes the order's items and puts their quantities back in stock.
func (s *PurchaseService) CancelOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return apperrors.InvalidInput("order id is required")
	}

	items, err := s.repo.CancelOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ListingID
	}
	invalidate(ctx, s.listings.cache, s.logger, dedupe(ids)...)

	s.logger.InfoContext(ctx, "order canceled",
		slog.String("order_id", orderID),
		slog.Int("items", len(items)),
	)
	return nil
}

// ReturnItems takes returned quantities off the order and restocks them.
func (s *PurchaseService) ReturnItems(ctx context.Context, orderID string, lines []domain.ReturnLine) error {
	if orderID == "" {
		return apperrors.InvalidInput("order id is required")
	}
	if len(lines) == 0 {
		return apperrors.InvalidInput("at least one return line is required")
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		if l.ListingID == "" {
			return apperrors.InvalidInput("listing id is required")
		}
		if l.Quantity <= 0 {
			return apperrors.InvalidInput("return quantity must be positive")
		}
		ids[i] = l.ListingID
	}

	if err := s.repo.ReturnItems(ctx, orderID, lines); err != nil {
		return fmt.Errorf("return items: %w", err)
	}
	invalidate(ctx, s.listings.cache, s.logger, dedupe(ids)...)

	s.logger.InfoContext(ctx, "order items returned",
		slog.String("order_id", orderID),
		slog.Int("lines", len(lines)),
	)
	return nil
}
