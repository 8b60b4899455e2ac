package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/media"
	"github.com/utafrali/catalog/internal/presenter"
	"github.com/utafrali/catalog/internal/pricing"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// maxBatchIDs bounds the number of listings read or checked in one call.
const maxBatchIDs = 100

// ListingService materializes listings with their promotion pricing and
// manages the listing lifecycle.
type ListingService struct {
	repo       repository.ListingRepository
	taxonomy   repository.TaxonomyRepository
	cache      repository.ListingCache
	reconciler *Reconciler
	producer   *event.Producer
	assets     AssetCleaner
	logger     *slog.Logger
	now        Clock
}

// NewListingService creates a new listing service.
func NewListingService(
	repo repository.ListingRepository,
	taxonomy repository.TaxonomyRepository,
	cache repository.ListingCache,
	reconciler *Reconciler,
	producer *event.Producer,
	assets AssetCleaner,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		repo:       repo,
		taxonomy:   taxonomy,
		cache:      cache,
		reconciler: reconciler,
		producer:   producer,
		assets:     assets,
		logger:     logger,
		now:        systemClock,
	}
}

// CreateListingInput holds the parameters for creating a listing.
type CreateListingInput struct {
	CatalogEntryID string
	SellerID       string
	SellerName     string
	CostPrice      decimal.Decimal
	RetailPrice    decimal.Decimal
	Stock          int
	ImportDate     *time.Time
	InvoiceURL     string
	ReturnPolicy   map[string]any
}

// UpdateListingInput holds the parameters for updating a listing. Nil fields
// are left unchanged.
type UpdateListingInput struct {
	SellerName   *string
	CostPrice    *decimal.Decimal
	RetailPrice  *decimal.Decimal
	Stock        *int
	ImportDate   *time.Time
	InvoiceURL   *string
	ReturnPolicy map[string]any
}

// ListListingsInput holds the listing query. Classification and Categories
// are names; an unknown name yields an empty page.
type ListListingsInput struct {
	Search         *string
	Brand          *string
	SellerID       *string
	Classification *string
	Categories     []string
	ApprovalStatus *string
	SortPrice      string
	Audience       presenter.Audience
	Page           int
	PerPage        int
}

// StockRequest is one quantity to check against a listing.
type StockRequest struct {
	ListingID string
	Quantity  int
}

// CreateListing creates a pending listing for a seller.
func (s *ListingService) CreateListing(ctx context.Context, input *CreateListingInput) (*domain.Listing, error) {
	if input.CatalogEntryID == "" {
		return nil, apperrors.InvalidInput("catalog entry id is required")
	}
	if input.SellerID == "" {
		return nil, apperrors.InvalidInput("seller id is required")
	}
	if err := validatePrices(input.CostPrice, input.RetailPrice); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, apperrors.InvalidInput("stock must not be negative")
	}

	now := s.now()
	listing := &domain.Listing{
		ID:               uuid.New().String(),
		CatalogEntryID:   input.CatalogEntryID,
		SellerID:         input.SellerID,
		SellerName:       input.SellerName,
		CostPrice:        input.CostPrice,
		RetailPrice:      input.RetailPrice,
		Stock:            input.Stock,
		ImportDate:       input.ImportDate,
		InvoiceURL:       input.InvoiceURL,
		ApprovalStatus:   domain.ApprovalPending,
		SellerVisibility: domain.StatusActive,
		ReturnPolicy:     input.ReturnPolicy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if listing.ReturnPolicy == nil {
		listing.ReturnPolicy = make(map[string]any)
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	if err := s.producer.PublishListingCreated(ctx, listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing_created event",
			slog.String("listing_id", listing.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "listing created",
		slog.String("listing_id", listing.ID),
		slog.String("seller_id", listing.SellerID),
	)
	return listing, nil
}

// GetListing returns the listing as seen by audience. Customers get a not
// found error for listings they may not see.
func (s *ListingService) GetListing(ctx context.Context, id string, audience presenter.Audience) (*presenter.ListingView, error) {
	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	views, err := s.materialize(ctx, []domain.ListingDetail{*detail}, audience)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperrors.NotFound("listing", id)
	}
	return &views[0], nil
}

// GetListingsByIDs returns the requested listings in request order. Unknown
// ids, and for customers invisible listings, are left out.
func (s *ListingService) GetListingsByIDs(ctx context.Context, ids []string, audience presenter.Audience) ([]presenter.ListingView, error) {
	if len(ids) > maxBatchIDs {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d ids per request", maxBatchIDs))
	}
	if len(ids) == 0 {
		return []presenter.ListingView{}, nil
	}

	details, err := s.repo.GetDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get listings by ids: %w", err)
	}
	return s.materialize(ctx, details, audience)
}

// ListListings returns a page of listings matching the query.
func (s *ListingService) ListListings(ctx context.Context, input *ListListingsInput) ([]presenter.ListingView, int, error) {
	page, perPage := normalizePage(input.Page, input.PerPage)

	if input.SortPrice != "" && input.SortPrice != repository.SortPriceAsc && input.SortPrice != repository.SortPriceDesc {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid sort_price %q, must be asc or desc", input.SortPrice))
	}
	if input.ApprovalStatus != nil && !domain.IsValidApprovalStatus(*input.ApprovalStatus) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid approval status %q, must be one of: %s",
			*input.ApprovalStatus, strings.Join(domain.ValidApprovalStatuses(), ", ")))
	}

	filter := repository.ListingFilter{
		Search:         input.Search,
		Brand:          input.Brand,
		SellerID:       input.SellerID,
		ApprovalStatus: input.ApprovalStatus,
		CustomerOnly:   input.Audience == presenter.AudienceCustomer,
		SortPrice:      input.SortPrice,
		Page:           page,
		PerPage:        perPage,
	}

	if input.Classification != nil {
		id, err := s.taxonomy.ClassificationIDByName(ctx, *input.Classification)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return []presenter.ListingView{}, 0, nil
			}
			return nil, 0, fmt.Errorf("resolve classification: %w", err)
		}
		filter.ClassificationID = &id
	}

	if len(input.Categories) > 0 {
		ids, err := s.taxonomy.CategoryIDsByNames(ctx, input.Categories)
		if err != nil {
			return nil, 0, fmt.Errorf("resolve categories: %w", err)
		}
		if len(ids) == 0 {
			return []presenter.ListingView{}, 0, nil
		}
		filter.CategoryIDs = ids
	}

	return s.list(ctx, filter, input.Audience)
}

// Brands returns the distinct brands that have listings.
func (s *ListingService) Brands(ctx context.Context) ([]string, error) {
	brands, err := s.repo.Brands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return brands, nil
}

// CheckStock reports, per request, whether the listing can cover the
// quantity and at what price it currently sells.
func (s *ListingService) CheckStock(ctx context.Context, requests []StockRequest) ([]domain.StockCheck, error) {
	if len(requests) == 0 {
		return []domain.StockCheck{}, nil
	}
	if len(requests) > maxBatchIDs {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d items per request", maxBatchIDs))
	}

	ids := make([]string, len(requests))
	for i, req := range requests {
		if req.ListingID == "" {
			return nil, apperrors.InvalidInput("listing id is required")
		}
		if req.Quantity <= 0 {
			return nil, apperrors.InvalidInput("quantity must be positive")
		}
		ids[i] = req.ListingID
	}

	details, err := s.repo.GetDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get listings for stock check: %w", err)
	}
	byID := make(map[string]*domain.ListingDetail, len(details))
	for i := range details {
		byID[details[i].Listing.ID] = &details[i]
	}

	now := s.now()
	checks := make([]domain.StockCheck, len(requests))
	var expired []string
	for i, req := range requests {
		d, ok := byID[req.ListingID]
		if !ok {
			return nil, apperrors.NotFound("listing", req.ListingID)
		}
		res, err := s.price(ctx, d, now)
		if err != nil {
			return nil, err
		}
		expired = append(expired, pricing.Expired(d.Candidates, now)...)

		checks[i] = domain.StockCheck{
			ListingID:   req.ListingID,
			Requested:   req.Quantity,
			Available:   d.Listing.Stock,
			InStock:     d.Listing.Stock >= req.Quantity,
			ActualPrice: res.ActualPrice,
		}
	}
	s.reconciler.Correct(ctx, dedupe(expired), now)

	return checks, nil
}

// UpdateListing applies partial updates to a listing.
func (s *ListingService) UpdateListing(ctx context.Context, id string, input *UpdateListingInput) (*domain.Listing, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing for update: %w", err)
	}
	listing := detail.Listing

	if input.SellerName != nil {
		listing.SellerName = *input.SellerName
	}
	if input.CostPrice != nil {
		listing.CostPrice = *input.CostPrice
	}
	if input.RetailPrice != nil {
		listing.RetailPrice = *input.RetailPrice
	}
	if err := validatePrices(listing.CostPrice, listing.RetailPrice); err != nil {
		return nil, err
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, apperrors.InvalidInput("stock must not be negative")
		}
		listing.Stock = *input.Stock
	}
	if input.ImportDate != nil {
		listing.ImportDate = input.ImportDate
	}
	if input.InvoiceURL != nil {
		listing.InvoiceURL = *input.InvoiceURL
	}
	if input.ReturnPolicy != nil {
		listing.ReturnPolicy = input.ReturnPolicy
	}

	if err := s.repo.Update(ctx, &listing); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	invalidate(ctx, s.cache, s.logger, id)

	if err := s.producer.PublishListingUpdated(ctx, &listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing_updated event",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "listing updated", slog.String("listing_id", id))
	return &listing, nil
}

// DeleteListing removes a listing, its promotion assignments and its media.
func (s *ListingService) DeleteListing(ctx context.Context, id string) error {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return fmt.Errorf("get listing for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	invalidate(ctx, s.cache, s.logger, id)
	cleanupAssets(ctx, s.assets, s.logger, media.OwnerListing, id)

	if err := s.producer.PublishListingDeleted(ctx, id, detail.Listing.SellerID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing_deleted event",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "listing deleted", slog.String("listing_id", id))
	return nil
}

// SetApproval records the review decision. Approval switches the seller
// visibility on, rejection switches it off.
func (s *ListingService) SetApproval(ctx context.Context, id, status string) (*domain.Listing, error) {
	if !domain.IsDecision(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid approval status %q, must be approved or rejected", status))
	}

	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing for approval: %w", err)
	}

	visibility := domain.StatusInactive
	if status == domain.ApprovalApproved {
		visibility = domain.StatusActive
	}
	if err := s.repo.SetApproval(ctx, id, status, visibility); err != nil {
		return nil, fmt.Errorf("set listing approval: %w", err)
	}
	invalidate(ctx, s.cache, s.logger, id)

	listing := detail.Listing
	listing.ApprovalStatus = status
	listing.SellerVisibility = visibility

	if err := s.producer.PublishListingApprovalChanged(ctx, &listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing_approval_changed event",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "listing approval changed",
		slog.String("listing_id", id),
		slog.String("approval_status", status),
	)
	return &listing, nil
}

// SetVisibility switches the seller visibility of an approved listing.
func (s *ListingService) SetVisibility(ctx context.Context, id, visibility string) (*domain.Listing, error) {
	if !domain.IsValidStatus(visibility) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid visibility %q, must be active or inactive", visibility))
	}

	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing for visibility: %w", err)
	}
	if detail.Listing.ApprovalStatus != domain.ApprovalApproved {
		return nil, apperrors.Conflict("only approved listings can change visibility")
	}

	if err := s.repo.SetVisibility(ctx, id, visibility); err != nil {
		return nil, fmt.Errorf("set listing visibility: %w", err)
	}
	invalidate(ctx, s.cache, s.logger, id)

	listing := detail.Listing
	listing.SellerVisibility = visibility

	if err := s.producer.PublishListingUpdated(ctx, &listing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing_updated event",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "listing visibility changed",
		slog.String("listing_id", id),
		slog.String("visibility", visibility),
	)
	return &listing, nil
}

// list runs a store query and materializes the page for audience.
func (s *ListingService) list(ctx context.Context, filter repository.ListingFilter, audience presenter.Audience) ([]presenter.ListingView, int, error) {
	details, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}

	views, err := s.materialize(ctx, details, audience)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// loadDetail reads a listing snapshot from the cache, falling back to the
// store and refilling the cache unless the listing was invalidated meanwhile.
func (s *ListingService) loadDetail(ctx context.Context, id string) (*domain.ListingDetail, error) {
	detail, err := s.cache.Get(ctx, id)
	if err == nil {
		pricing.SortCandidates(detail.Candidates)
		return detail, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.WarnContext(ctx, "listing cache read failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}

	// The generation is read before the store so an invalidation racing
	// this load keeps the older snapshot out of the cache.
	gen, genErr := s.cache.Generation(ctx, id)
	detail, err = s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}

	if genErr == nil {
		genErr = s.cache.Set(ctx, detail, gen)
	}
	if genErr != nil {
		s.logger.WarnContext(ctx, "listing cache write failed",
			slog.String("listing_id", id),
			slog.String("error", genErr.Error()),
		)
	}
	return detail, nil
}

// materialize resolves and presents every detail at one instant, then
// corrects any ended promotion still stored as active.
func (s *ListingService) materialize(ctx context.Context, details []domain.ListingDetail, audience presenter.Audience) ([]presenter.ListingView, error) {
	now := s.now()
	views := make([]presenter.ListingView, 0, len(details))
	var expired []string

	for i := range details {
		d := &details[i]
		res, err := s.price(ctx, d, now)
		if err != nil {
			return nil, err
		}
		expired = append(expired, pricing.Expired(d.Candidates, now)...)

		if view, ok := presenter.Present(d, res, audience); ok {
			views = append(views, *view)
		}
	}

	s.reconciler.Correct(ctx, dedupe(expired), now)
	return views, nil
}

// price resolves the effective price of d and records the outcome.
func (s *ListingService) price(ctx context.Context, d *domain.ListingDetail, now time.Time) (pricing.Resolution, error) {
	res, err := pricing.Resolve(d.Listing.RetailPrice, d.Candidates, now)
	if err != nil {
		promotionResolutions.WithLabelValues(outcomeError).Inc()
		s.logger.ErrorContext(ctx, "promotion resolution failed",
			slog.String("listing_id", d.Listing.ID),
			slog.String("error", err.Error()),
		)
		return pricing.Resolution{}, fmt.Errorf("resolve listing %s: %w", d.Listing.ID, err)
	}

	if res.Applied() {
		promotionResolutions.WithLabelValues(outcomeApplied).Inc()
	} else {
		promotionResolutions.WithLabelValues(outcomeNone).Inc()
	}
	return res, nil
}

func validatePrices(cost, retail decimal.Decimal) error {
	if !retail.IsPositive() {
		return apperrors.InvalidInput("retail price must be positive")
	}
	if cost.IsNegative() {
		return apperrors.InvalidInput("cost price must not be negative")
	}
	return nil
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
