package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/media"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/slug"
)

// CatalogService manages the platform-curated catalog entries.
type CatalogService struct {
	repo     repository.CatalogRepository
	listings repository.ListingRepository
	cache    repository.ListingCache
	producer *event.Producer
	assets   AssetCleaner
	logger   *slog.Logger
	now      Clock
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	repo repository.CatalogRepository,
	listings repository.ListingRepository,
	cache repository.ListingCache,
	producer *event.Producer,
	assets AssetCleaner,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		repo:     repo,
		listings: listings,
		cache:    cache,
		producer: producer,
		assets:   assets,
		logger:   logger,
		now:      systemClock,
	}
}

// CreateEntryInput holds the parameters for creating a catalog entry.
type CreateEntryInput struct {
	Name             string
	Brand            string
	ClassificationID string
	CategoryID       string
	Attributes       map[string]any
	ImageURL         string
	LicenseURL       string
}

// UpdateEntryInput holds the parameters for updating a catalog entry. Nil
// fields are left unchanged.
type UpdateEntryInput struct {
	Name             *string
	Brand            *string
	ClassificationID *string
	CategoryID       *string
	Attributes       map[string]any
	ImageURL         *string
	LicenseURL       *string
}

// CreateEntry creates an active catalog entry with a slug derived from its name.
func (s *CatalogService) CreateEntry(ctx context.Context, input *CreateEntryInput) (*domain.CatalogEntry, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.ClassificationID == "" || input.CategoryID == "" {
		return nil, apperrors.InvalidInput("classification id and category id are required")
	}

	now := s.now()
	entry := &domain.CatalogEntry{
		ID:                 uuid.New().String(),
		Name:               name,
		Slug:               slug.Generate(name),
		Brand:              input.Brand,
		PlatformVisibility: domain.StatusActive,
		ClassificationID:   input.ClassificationID,
		CategoryID:         input.CategoryID,
		Attributes:         input.Attributes,
		ImageURL:           input.ImageURL,
		LicenseURL:         input.LicenseURL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if entry.Attributes == nil {
		entry.Attributes = make(map[string]any)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create catalog entry: %w", err)
	}

	if err := s.producer.PublishEntryCreated(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish entry_created event",
			slog.String("entry_id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "catalog entry created",
		slog.String("entry_id", entry.ID),
		slog.String("slug", entry.Slug),
	)
	return entry, nil
}

// GetEntry retrieves a catalog entry by its ID.
func (s *CatalogService) GetEntry(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns a page of catalog entries.
func (s *CatalogService) ListEntries(ctx context.Context, filter repository.CatalogFilter) ([]domain.CatalogEntry, int, error) {
	if filter.Visibility != nil && !domain.IsValidStatus(*filter.Visibility) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid visibility %q, must be active or inactive", *filter.Visibility))
	}
	filter.Page, filter.PerPage = normalizePage(filter.Page, filter.PerPage)

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list catalog entries: %w", err)
	}
	return entries, total, nil
}

// UpdateEntry applies partial updates. A new name also changes the slug.
func (s *CatalogService) UpdateEntry(ctx context.Context, id string, input *UpdateEntryInput) (*domain.CatalogEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get catalog entry for update: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		entry.Name = name
		entry.Slug = slug.Generate(name)
	}
	if input.Brand != nil {
		entry.Brand = *input.Brand
	}
	if input.ClassificationID != nil {
		entry.ClassificationID = *input.ClassificationID
	}
	if input.CategoryID != nil {
		entry.CategoryID = *input.CategoryID
	}
	if input.Attributes != nil {
		entry.Attributes = input.Attributes
	}
	if input.ImageURL != nil {
		entry.ImageURL = *input.ImageURL
	}
	if input.LicenseURL != nil {
		entry.LicenseURL = *input.LicenseURL
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("update catalog entry: %w", err)
	}
	s.invalidateListings(ctx, id)

	s.logger.InfoContext(ctx, "catalog entry updated", slog.String("entry_id", id))
	return entry, nil
}

// DeleteEntry removes a catalog entry together with its listings and media.
func (s *CatalogService) DeleteEntry(ctx context.Context, id string) error {
	listingIDs, err := s.listings.IDsByCatalogEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("get entry listings for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete catalog entry: %w", err)
	}
	invalidate(ctx, s.cache, s.logger, listingIDs...)
	cleanupAssets(ctx, s.assets, s.logger, media.OwnerCatalogEntry, id)

	s.logger.InfoContext(ctx, "catalog entry deleted",
		slog.String("entry_id", id),
		slog.Int("listings", len(listingIDs)),
	)
	return nil
}

// SetVisibility switches the platform visibility of a catalog entry.
func (s *CatalogService) SetVisibility(ctx context.Context, id, visibility string) error {
	if !domain.IsValidStatus(visibility) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid visibility %q, must be active or inactive", visibility))
	}
	if err := s.repo.SetVisibility(ctx, id, visibility); err != nil {
		return fmt.Errorf("set catalog entry visibility: %w", err)
	}
	s.invalidateListings(ctx, id)

	s.logger.InfoContext(ctx, "catalog entry visibility changed",
		slog.String("entry_id", id),
		slog.String("visibility", visibility),
	)
	return nil
}

func (s *CatalogService) invalidateListings(ctx context.Context, entryID string) {
	ids, err := s.listings.IDsByCatalogEntry(ctx, entryID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load entry listings for cache invalidation",
			slog.String("entry_id", entryID),
			slog.String("error", err.Error()),
		)
		return
	}
	invalidate(ctx, s.cache, s.logger, ids...)
}
