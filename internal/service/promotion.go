package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/presenter"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

const (
	// availablePreview is how many customer listings each available
	// promotion group carries.
	availablePreview = 5
	// availableFanOut bounds concurrent listing queries for the groups.
	availableFanOut = 4
)

var hundred = decimal.NewFromInt(100)

// PromotionService manages promotion templates, seller promotions and their
// listing assignments.
type PromotionService struct {
	repo       repository.PromotionRepository
	listings   *ListingService
	reconciler *Reconciler
	logger     *slog.Logger
	now        Clock
}

// NewPromotionService creates a new promotion service.
func NewPromotionService(repo repository.PromotionRepository, listings *ListingService, reconciler *Reconciler, logger *slog.Logger) *PromotionService {
	return &PromotionService{
		repo:       repo,
		listings:   listings,
		reconciler: reconciler,
		logger:     logger,
		now:        systemClock,
	}
}

// CreatePromotionInput holds the parameters for creating a seller promotion.
type CreatePromotionInput struct {
	TemplateID   string
	SellerID     string
	DiscountType string
	Value        decimal.Decimal
	StartDate    *time.Time
	EndDate      *time.Time
}

// UpdatePromotionInput holds the parameters for updating a promotion. Nil
// fields are left unchanged.
type UpdatePromotionInput struct {
	DiscountType *string
	Value        *decimal.Decimal
	StartDate    *time.Time
	EndDate      *time.Time
	Status       *string
}

// OverrideInput replaces a promotion's terms for one listing. Nil fields
// clear the override and fall back to the promotion.
type OverrideInput struct {
	Value     *decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
}

// AvailablePromotion groups the running promotions of one template.
type AvailablePromotion struct {
	Name           string                  `json:"name"`
	StartDate      *time.Time              `json:"start_date"`
	EndDate        *time.Time              `json:"end_date"`
	PromotionCount int                     `json:"promotion_count"`
	ListingIDs     []string                `json:"listing_ids"`
	TotalListings  int                     `json:"total_listings"`
	Listings       []presenter.ListingView `json:"listings"`
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// CreateTemplate creates an active promotion template.
func (s *PromotionService) CreateTemplate(ctx context.Context, name string) (*domain.PromotionTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("template name is required")
	}

	now := s.now()
	tpl := &domain.PromotionTemplate{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("create promotion template: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion template created",
		slog.String("template_id", tpl.ID),
		slog.String("name", tpl.Name),
	)
	return tpl, nil
}

// GetTemplate retrieves a promotion template by its ID.
func (s *PromotionService) GetTemplate(ctx context.Context, id string) (*domain.PromotionTemplate, error) {
	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion template: %w", err)
	}
	return tpl, nil
}

// ListTemplates returns a page of templates, optionally filtered by status.
func (s *PromotionService) ListTemplates(ctx context.Context, status *string, page, perPage int) ([]domain.PromotionTemplate, int, error) {
	if status != nil && !domain.IsValidStatus(*status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be active or inactive", *status))
	}
	page, perPage = normalizePage(page, perPage)

	templates, total, err := s.repo.ListTemplates(ctx, status, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotion templates: %w", err)
	}
	return templates, total, nil
}

// RenameTemplate changes a template's name.
func (s *PromotionService) RenameTemplate(ctx context.Context, id, name string) (*domain.PromotionTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("template name is required")
	}

	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion template for update: %w", err)
	}
	tpl.Name = name
	tpl.UpdatedAt = s.now()

	if err := s.repo.UpdateTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("update promotion template: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion template updated",
		slog.String("template_id", id),
		slog.String("name", name),
	)
	return tpl, nil
}

// DeleteTemplate removes a template no seller promotion uses.
func (s *PromotionService) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete promotion template: %w", err)
	}
	s.logger.InfoContext(ctx, "promotion template deleted", slog.String("template_id", id))
	return nil
}

// SetTemplateStatus switches a template on or off. Inactive templates are
// left out of the available promotions.
func (s *PromotionService) SetTemplateStatus(ctx context.Context, id, status string) error {
	if !domain.IsValidStatus(status) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be active or inactive", status))
	}
	if err := s.repo.SetTemplateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("set promotion template status: %w", err)
	}
	s.logger.InfoContext(ctx, "promotion template status changed",
		slog.String("template_id", id),
		slog.String("status", status),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Seller promotions
// ---------------------------------------------------------------------------

// CreatePromotion creates an active seller promotion from a template.
func (s *PromotionService) CreatePromotion(ctx context.Context, input *CreatePromotionInput) (*domain.Promotion, error) {
	if input.TemplateID == "" {
		return nil, apperrors.InvalidInput("template id is required")
	}
	if input.SellerID == "" {
		return nil, apperrors.InvalidInput("seller id is required")
	}
	if input.StartDate == nil || input.EndDate == nil {
		return nil, apperrors.InvalidInput("start date and end date are required")
	}
	if err := validateTerms(input.DiscountType, input.Value); err != nil {
		return nil, err
	}
	if err := validateWindow(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	now := s.now()
	p := &domain.Promotion{
		ID:           uuid.New().String(),
		TemplateID:   input.TemplateID,
		SellerID:     input.SellerID,
		DiscountType: input.DiscountType,
		Value:        input.Value,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion created",
		slog.String("promotion_id", p.ID),
		slog.String("template_id", p.TemplateID),
		slog.String("seller_id", p.SellerID),
	)
	return p, nil
}

// GetPromotion retrieves a promotion by its ID.
func (s *PromotionService) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

// ListPromotions expires ended promotions and returns a page of promotions.
func (s *PromotionService) ListPromotions(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	if filter.Status != nil && !domain.IsValidStatus(*filter.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be active or inactive", *filter.Status))
	}
	filter.Page, filter.PerPage = normalizePage(filter.Page, filter.PerPage)

	if _, err := s.reconciler.Sweep(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to expire promotions before listing",
			slog.String("error", err.Error()),
		)
	}

	promotions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	return promotions, total, nil
}

// UpdatePromotion applies partial updates to a promotion.
func (s *PromotionService) UpdatePromotion(ctx context.Context, id string, input *UpdatePromotionInput) (*domain.Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion for update: %w", err)
	}

	typeChanged := input.DiscountType != nil && *input.DiscountType != p.DiscountType
	if input.DiscountType != nil {
		p.DiscountType = *input.DiscountType
	}
	if input.Value != nil {
		p.Value = *input.Value
	}
	if err := validateTerms(p.DiscountType, p.Value); err != nil {
		return nil, err
	}
	if typeChanged {
		if err := s.validateOverrides(ctx, id, p.DiscountType); err != nil {
			return nil, err
		}
	}
	if input.StartDate != nil {
		p.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		p.EndDate = input.EndDate
	}
	if err := validateWindow(p.StartDate, p.EndDate); err != nil {
		return nil, err
	}
	if input.Status != nil {
		if !domain.IsValidStatus(*input.Status) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be active or inactive", *input.Status))
		}
		p.Status = *input.Status
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update promotion: %w", err)
	}
	s.reconciler.InvalidatePromotions(ctx, id)

	s.logger.InfoContext(ctx, "promotion updated", slog.String("promotion_id", id))
	return p, nil
}

// DeletePromotion removes a promotion and its assignments.
func (s *PromotionService) DeletePromotion(ctx context.Context, id string) error {
	listingIDs, err := s.repo.AssignedListingIDs(ctx, id)
	if err != nil {
		return fmt.Errorf("get assigned listings for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	invalidate(ctx, s.listings.cache, s.logger, listingIDs...)

	s.logger.InfoContext(ctx, "promotion deleted",
		slog.String("promotion_id", id),
		slog.Int("listings", len(listingIDs)),
	)
	return nil
}

// SetPromotionStatus switches a promotion on or off.
func (s *PromotionService) SetPromotionStatus(ctx context.Context, id, status string) error {
	if !domain.IsValidStatus(status) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be active or inactive", status))
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return fmt.Errorf("set promotion status: %w", err)
	}
	s.reconciler.InvalidatePromotions(ctx, id)

	s.logger.InfoContext(ctx, "promotion status changed",
		slog.String("promotion_id", id),
		slog.String("status", status),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Assignments
// ---------------------------------------------------------------------------

// AssignListings attaches the seller's listings to the promotion. Listings
// already assigned, or owned by another seller, are skipped.
func (s *PromotionService) AssignListings(ctx context.Context, promotionID string, listingIDs []string) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, apperrors.InvalidInput("at least one listing id is required")
	}
	if _, err := s.repo.GetByID(ctx, promotionID); err != nil {
		return 0, fmt.Errorf("get promotion for assignment: %w", err)
	}

	n, err := s.repo.Assign(ctx, promotionID, listingIDs)
	if err != nil {
		return 0, fmt.Errorf("assign listings: %w", err)
	}
	invalidate(ctx, s.listings.cache, s.logger, listingIDs...)

	s.logger.InfoContext(ctx, "listings assigned to promotion",
		slog.String("promotion_id", promotionID),
		slog.Int64("assigned", n),
	)
	return n, nil
}

// UnassignListings detaches listings from the promotion.
func (s *PromotionService) UnassignListings(ctx context.Context, promotionID string, listingIDs []string) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, apperrors.InvalidInput("at least one listing id is required")
	}

	n, err := s.repo.Unassign(ctx, promotionID, listingIDs)
	if err != nil {
		return 0, fmt.Errorf("unassign listings: %w", err)
	}
	invalidate(ctx, s.listings.cache, s.logger, listingIDs...)

	s.logger.InfoContext(ctx, "listings removed from promotion",
		slog.String("promotion_id", promotionID),
		slog.Int64("removed", n),
	)
	return n, nil
}

// ListAssigned returns the promotion's listings with their overrides.
func (s *PromotionService) ListAssigned(ctx context.Context, promotionID string) ([]domain.AssignedListing, error) {
	if _, err := s.repo.GetByID(ctx, promotionID); err != nil {
		return nil, fmt.Errorf("get promotion: %w", err)
	}

	assigned, err := s.repo.ListAssigned(ctx, promotionID)
	if err != nil {
		return nil, fmt.Errorf("list assigned listings: %w", err)
	}
	return assigned, nil
}

// SetOverride sets or clears the per-listing terms of an assignment.
func (s *PromotionService) SetOverride(ctx context.Context, promotionID, listingID string, input *OverrideInput) error {
	if input.Value != nil && !input.Value.IsPositive() {
		return apperrors.InvalidInput("custom value must be positive")
	}
	if err := validateWindow(input.StartDate, input.EndDate); err != nil {
		return err
	}
	if input.Value != nil {
		p, err := s.repo.GetByID(ctx, promotionID)
		if err != nil {
			return fmt.Errorf("get promotion for override: %w", err)
		}
		if err := validateTerms(p.DiscountType, *input.Value); err != nil {
			return err
		}
	}

	override := repository.Override{
		Value:     input.Value,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	}
	if err := s.repo.SetOverride(ctx, promotionID, listingID, override); err != nil {
		return fmt.Errorf("set promotion override: %w", err)
	}
	invalidate(ctx, s.listings.cache, s.logger, listingID)

	s.logger.InfoContext(ctx, "promotion override set",
		slog.String("promotion_id", promotionID),
		slog.String("listing_id", listingID),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Customer views
// ---------------------------------------------------------------------------

// Available groups the running promotions by template name. Each group
// spans its promotions' earliest start and latest end, merges their listing
// ids and previews the first customer-visible listings.
func (s *PromotionService) Available(ctx context.Context) ([]AvailablePromotion, error) {
	active, err := s.repo.Available(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list available promotions: %w", err)
	}

	groups := []AvailablePromotion{}
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	for i := range active {
		p := &active[i]
		gi, ok := index[p.TemplateName]
		if !ok {
			gi = len(groups)
			index[p.TemplateName] = gi
			seen[p.TemplateName] = make(map[string]struct{})
			groups = append(groups, AvailablePromotion{
				Name:       p.TemplateName,
				StartDate:  p.StartDate,
				EndDate:    p.EndDate,
				ListingIDs: []string{},
			})
		} else {
			g := &groups[gi]
			g.StartDate = earlier(g.StartDate, p.StartDate)
			g.EndDate = later(g.EndDate, p.EndDate)
		}

		g := &groups[gi]
		g.PromotionCount++
		for _, id := range p.ListingIDs {
			if _, dup := seen[p.TemplateName][id]; dup {
				continue
			}
			seen[p.TemplateName][id] = struct{}{}
			g.ListingIDs = append(g.ListingIDs, id)
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(availableFanOut)
	for i := range groups {
		g := &groups[i]
		g.Listings = []presenter.ListingView{}
		if len(g.ListingIDs) == 0 {
			continue
		}
		eg.Go(func() error {
			views, total, err := s.listings.list(egCtx, repository.ListingFilter{
				IDs:          g.ListingIDs,
				CustomerOnly: true,
				Page:         1,
				PerPage:      availablePreview,
			}, presenter.AudienceCustomer)
			if err != nil {
				return fmt.Errorf("preview promotion %q: %w", g.Name, err)
			}
			g.Listings = views
			g.TotalListings = total
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListingsInPromotion returns a page of customer-visible listings assigned
// to the running promotions of the named template.
func (s *PromotionService) ListingsInPromotion(ctx context.Context, name string, page, perPage int) ([]presenter.ListingView, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, 0, apperrors.InvalidInput("promotion name is required")
	}
	page, perPage = normalizePage(page, perPage)

	active, err := s.repo.Available(ctx, s.now())
	if err != nil {
		return nil, 0, fmt.Errorf("list available promotions: %w", err)
	}

	var ids []string
	for _, p := range active {
		if strings.EqualFold(p.TemplateName, name) {
			ids = append(ids, p.ListingIDs...)
		}
	}
	if len(ids) == 0 {
		return []presenter.ListingView{}, 0, nil
	}

	return s.listings.list(ctx, repository.ListingFilter{
		IDs:          dedupe(ids),
		CustomerOnly: true,
		Page:         page,
		PerPage:      perPage,
	}, presenter.AudienceCustomer)
}

// NotInPromotion returns a page of the seller's listings that no running
// promotion covers.
func (s *PromotionService) NotInPromotion(ctx context.Context, sellerID string, page, perPage int) ([]presenter.ListingView, int, error) {
	if sellerID == "" {
		return nil, 0, apperrors.InvalidInput("seller id is required")
	}
	page, perPage = normalizePage(page, perPage)
	now := s.now()

	return s.listings.list(ctx, repository.ListingFilter{
		SellerID:         &sellerID,
		NotInPromotionAt: &now,
		Page:             page,
		PerPage:          perPage,
	}, presenter.AudienceSeller)
}

func validateTerms(discountType string, value decimal.Decimal) error {
	if !domain.IsValidDiscountType(discountType) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid discount type %q, must be one of: %s",
			discountType, strings.Join(domain.ValidDiscountTypes(), ", ")))
	}
	if !value.IsPositive() {
		return apperrors.InvalidInput("promotion value must be positive")
	}
	if discountType == domain.DiscountTypePercent && value.GreaterThan(hundred) {
		return apperrors.InvalidInput("percent value must not exceed 100")
	}
	return nil
}

// validateOverrides checks every per-listing custom value of a promotion
// against a new discount type. Custom values are stored as bare numbers and
// read under whatever type the promotion has.
func (s *PromotionService) validateOverrides(ctx context.Context, promotionID, discountType string) error {
	assigned, err := s.repo.ListAssigned(ctx, promotionID)
	if err != nil {
		return fmt.Errorf("list assignments for type change: %w", err)
	}
	for _, a := range assigned {
		cv := a.Assignment.CustomValue
		if cv == nil {
			continue
		}
		if err := validateTerms(discountType, *cv); err != nil {
			return apperrors.InvalidInput(fmt.Sprintf("custom value %s of listing %s is invalid for discount type %s",
				cv.String(), a.Assignment.ListingID, discountType))
		}
	}
	return nil
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperrors.InvalidInput("end date must not be before start date")
	}
	return nil
}

func earlier(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.Before(*a) {
		return b
	}
	return a
}

func later(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.After(*a) {
		return b
	}
	return a
}
