package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/pkg/database"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// TaxonomyRepository implements repository.TaxonomyRepository using PostgreSQL.
type TaxonomyRepository struct {
	db database.DBTX
}

// NewTaxonomyRepository creates a new PostgreSQL-backed taxonomy repository.
func NewTaxonomyRepository(db database.DBTX) *TaxonomyRepository {
	return &TaxonomyRepository{db: db}
}

// ListClassifications returns every classification ordered by name.
func (r *TaxonomyRepository) ListClassifications(ctx context.Context) ([]domain.Classification, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM classifications ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	classifications := []domain.Classification{}
	for rows.Next() {
		var c domain.Classification
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		classifications = append(classifications, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}
	return classifications, nil
}

// CreateClassification inserts a new classification.
func (r *TaxonomyRepository) CreateClassification(ctx context.Context, c *domain.Classification) error {
	query := `INSERT INTO classifications (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)`

	if _, err := r.db.Exec(ctx, query, c.ID, c.Name, c.CreatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("classification", "name", c.Name)
		}
		return fmt.Errorf("insert classification: %w", err)
	}
	return nil
}

// DeleteClassification removes a classification nothing refers to.
func (r *TaxonomyRepository) DeleteClassification(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM classifications WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict("classification is still in use")
		}
		return fmt.Errorf("delete classification: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("classification", id)
	}
	return nil
}

// ClassificationIDByName looks a classification up by name, ignoring case.
func (r *TaxonomyRepository) ClassificationIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `SELECT id FROM classifications WHERE lower(name) = lower($1)`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("classification", name)
		}
		return "", fmt.Errorf("get classification by name: %w", err)
	}
	return id, nil
}

// ListCategories returns the categories of a classification ordered by name.
func (r *TaxonomyRepository) ListCategories(ctx context.Context, classificationID string) ([]domain.Category, error) {
	query := `
		SELECT id, classification_id, name, created_at
		FROM categories
		WHERE classification_id = $1
		ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, classificationID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.ClassificationID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// CreateCategory inserts a new category under its classification.
func (r *TaxonomyRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	query := `
		INSERT INTO categories (id, classification_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)`

	if _, err := r.db.Exec(ctx, query, c.ID, c.ClassificationID, c.Name, c.CreatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("classification", c.ClassificationID)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category nothing refers to.
func (r *TaxonomyRepository) DeleteCategory(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict("category is still in use")
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", id)
	}
	return nil
}

// CategoryIDsByNames returns the ids of every category whose name matches
// one of names, ignoring case. The same name may exist under several
// classifications.
func (r *TaxonomyRepository) CategoryIDsByNames(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return []string{}, nil
	}

	query := `
		SELECT c.id
		FROM categories c
		WHERE lower(c.name) IN (SELECT lower(n) FROM unnest($1::text[]) AS n)`

	rows, err := r.db.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("get categories by names: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category ids: %w", err)
	}
	return ids, nil
}
