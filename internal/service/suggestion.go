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

// SuggestionService handles seller proposals for new catalog entries.
type SuggestionService struct {
	repo     repository.SuggestionRepository
	producer *event.Producer
	assets   AssetCleaner
	logger   *slog.Logger
	now      Clock
}

// NewSuggestionService creates a new suggestion service.
func NewSuggestionService(repo repository.SuggestionRepository, producer *event.Producer, assets AssetCleaner, logger *slog.Logger) *SuggestionService {
	return &SuggestionService{
		repo:     repo,
		producer: producer,
		assets:   assets,
		logger:   logger,
		now:      systemClock,
	}
}

// CreateSuggestionInput holds the parameters for proposing a catalog entry.
type CreateSuggestionInput struct {
	Name             string
	Brand            string
	ImageURL         string
	LicenseURL       string
	ClassificationID string
	CategoryID       string
	Attributes       map[string]any
	SellerID         string
	SellerName       string
}

// UpdateSuggestionInput holds the parameters for editing a pending
// suggestion. Nil fields are left unchanged.
type UpdateSuggestionInput struct {
	Name             *string
	Brand            *string
	ImageURL         *string
	LicenseURL       *string
	ClassificationID *string
	CategoryID       *string
	Attributes       map[string]any
}

// RespondInput is an admin's decision on a suggestion.
type RespondInput struct {
	Decision    string
	Message     string
	RespondedBy string
	Responder   string
}

// CreateSuggestion records a pending suggestion.
func (s *SuggestionService) CreateSuggestion(ctx context.Context, input *CreateSuggestionInput) (*domain.Suggestion, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.SellerID == "" {
		return nil, apperrors.InvalidInput("seller id is required")
	}
	if input.ClassificationID == "" || input.CategoryID == "" {
		return nil, apperrors.InvalidInput("classification id and category id are required")
	}

	now := s.now()
	sg := &domain.Suggestion{
		ID:               uuid.New().String(),
		Name:             name,
		Brand:            input.Brand,
		ImageURL:         input.ImageURL,
		LicenseURL:       input.LicenseURL,
		ClassificationID: input.ClassificationID,
		CategoryID:       input.CategoryID,
		Attributes:       input.Attributes,
		SellerID:         input.SellerID,
		SellerName:       input.SellerName,
		ApprovalStatus:   domain.ApprovalPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if sg.Attributes == nil {
		sg.Attributes = make(map[string]any)
	}

	if err := s.repo.Create(ctx, sg); err != nil {
		return nil, fmt.Errorf("create suggestion: %w", err)
	}

	s.logger.InfoContext(ctx, "suggestion created",
		slog.String("suggestion_id", sg.ID),
		slog.String("seller_id", sg.SellerID),
	)
	return sg, nil
}

// GetSuggestion retrieves a suggestion by its ID.
func (s *SuggestionService) GetSuggestion(ctx context.Context, id string) (*domain.Suggestion, error) {
	sg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return sg, nil
}

// ListSuggestions returns a page of suggestions.
func (s *SuggestionService) ListSuggestions(ctx context.Context, filter repository.SuggestionFilter) ([]domain.Suggestion, int, error) {
	if filter.ApprovalStatus != nil && !domain.IsValidApprovalStatus(*filter.ApprovalStatus) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid approval status %q, must be one of: %s",
			*filter.ApprovalStatus, strings.Join(domain.ValidApprovalStatuses(), ", ")))
	}
	filter.Page, filter.PerPage = normalizePage(filter.Page, filter.PerPage)

	suggestions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list suggestions: %w", err)
	}
	return suggestions, total, nil
}

// UpdateSuggestion edits a suggestion that has not been answered yet.
func (s *SuggestionService) UpdateSuggestion(ctx context.Context, id string, input *UpdateSuggestionInput) (*domain.Suggestion, error) {
	sg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get suggestion for update: %w", err)
	}
	if sg.ApprovalStatus != domain.ApprovalPending {
		return nil, apperrors.Conflict("only pending suggestions can be changed")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		sg.Name = name
	}
	if input.Brand != nil {
		sg.Brand = *input.Brand
	}
	if input.ImageURL != nil {
		sg.ImageURL = *input.ImageURL
	}
	if input.LicenseURL != nil {
		sg.LicenseURL = *input.LicenseURL
	}
	if input.ClassificationID != nil {
		sg.ClassificationID = *input.ClassificationID
	}
	if input.CategoryID != nil {
		sg.CategoryID = *input.CategoryID
	}
	if input.Attributes != nil {
		sg.Attributes = input.Attributes
	}

	if err := s.repo.Update(ctx, sg); err != nil {
		return nil, fmt.Errorf("update suggestion: %w", err)
	}

	s.logger.InfoContext(ctx, "suggestion updated", slog.String("suggestion_id", id))
	return sg, nil
}

// DeleteSuggestion removes a suggestion and its media.
func (s *SuggestionService) DeleteSuggestion(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete suggestion: %w", err)
	}
	cleanupAssets(ctx, s.assets, s.logger, media.OwnerSuggestion, id)

	s.logger.InfoContext(ctx, "suggestion deleted", slog.String("suggestion_id", id))
	return nil
}

// Respond answers a pending suggestion. Approval creates the catalog entry
// in the same transaction; it is returned, or nil on rejection.
func (s *SuggestionService) Respond(ctx context.Context, id string, input *RespondInput) (*domain.CatalogEntry, error) {
	if !domain.IsDecision(input.Decision) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid decision %q, must be approved or rejected", input.Decision))
	}

	sg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get suggestion for response: %w", err)
	}
	if sg.ApprovalStatus != domain.ApprovalPending {
		return nil, apperrors.Conflict("suggestion has already been answered")
	}

	now := s.now()
	resp := domain.SuggestionResponse{
		Decision:    input.Decision,
		Message:     input.Message,
		RespondedBy: input.RespondedBy,
		Responder:   input.Responder,
		RespondedAt: now,
	}

	var entry *domain.CatalogEntry
	if input.Decision == domain.ApprovalApproved {
		entry = sg.ToCatalogEntry(uuid.New().String(), slug.Generate(sg.Name), now)
	}

	if err := s.repo.Respond(ctx, id, resp, entry); err != nil {
		return nil, fmt.Errorf("respond to suggestion: %w", err)
	}

	if entry != nil {
		if err := s.producer.PublishEntryCreated(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish entry_created event",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "suggestion answered",
		slog.String("suggestion_id", id),
		slog.String("decision", input.Decision),
	)
	return entry, nil
}
