package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// TaxonomyService manages classifications and their categories.
type TaxonomyService struct {
	repo   repository.TaxonomyRepository
	logger *slog.Logger
	now    Clock
}

// NewTaxonomyService creates a new taxonomy service.
func NewTaxonomyService(repo repository.TaxonomyRepository, logger *slog.Logger) *TaxonomyService {
	return &TaxonomyService{repo: repo, logger: logger, now: systemClock}
}

// ListClassifications returns every classification.
func (s *TaxonomyService) ListClassifications(ctx context.Context) ([]domain.Classification, error) {
	out, err := s.repo.ListClassifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	return out, nil
}

// CreateClassification creates a classification with a unique name.
func (s *TaxonomyService) CreateClassification(ctx context.Context, name string) (*domain.Classification, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("classification name is required")
	}

	c := &domain.Classification{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateClassification(ctx, c); err != nil {
		return nil, fmt.Errorf("create classification: %w", err)
	}

	s.logger.InfoContext(ctx, "classification created",
		slog.String("classification_id", c.ID),
		slog.String("name", c.Name),
	)
	return c, nil
}

// DeleteClassification removes a classification nothing refers to.
func (s *TaxonomyService) DeleteClassification(ctx context.Context, id string) error {
	if err := s.repo.DeleteClassification(ctx, id); err != nil {
		return fmt.Errorf("delete classification: %w", err)
	}
	s.logger.InfoContext(ctx, "classification deleted", slog.String("classification_id", id))
	return nil
}

// ListCategories returns the categories of a classification.
func (s *TaxonomyService) ListCategories(ctx context.Context, classificationID string) ([]domain.Category, error) {
	out, err := s.repo.ListCategories(ctx, classificationID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// CreateCategory creates a category under a classification.
func (s *TaxonomyService) CreateCategory(ctx context.Context, classificationID, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}

	c := &domain.Category{
		ID:               uuid.New().String(),
		ClassificationID: classificationID,
		Name:             name,
		CreatedAt:        s.now(),
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", c.ID),
		slog.String("classification_id", classificationID),
	)
	return c, nil
}

// DeleteCategory removes a category nothing refers to.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.InfoContext(ctx, "category deleted", slog.String("category_id", id))
	return nil
}
