package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/pkg/database"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

const catalogColumns = `id, name, slug, brand, platform_visibility, classification_id, category_id,
		attributes, image_url, license_url, created_at, updated_at`

// CatalogRepository implements repository.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	db              database.DBTX
	searchAttribute string
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
// Search matches the entry name and the searchAttribute key of its attributes.
func NewCatalogRepository(db database.DBTX, searchAttribute string) *CatalogRepository {
	return &CatalogRepository{db: db, searchAttribute: searchAttribute}
}

// Create inserts a new catalog entry.
func (r *CatalogRepository) Create(ctx context.Context, e *domain.CatalogEntry) error {
	return insertCatalogEntry(ctx, r.db, e)
}

// insertCatalogEntry is shared with suggestion approval, which runs it
// inside its own transaction.
func insertCatalogEntry(ctx context.Context, db execer, e *domain.CatalogEntry) error {
	attrs, err := marshalObject(e.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	query := `
		INSERT INTO catalog_entries (id, name, slug, brand, platform_visibility, classification_id, category_id,
			attributes, image_url, license_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = db.Exec(ctx, query,
		e.ID,
		e.Name,
		e.Slug,
		e.Brand,
		e.PlatformVisibility,
		e.ClassificationID,
		e.CategoryID,
		attrs,
		e.ImageURL,
		e.LicenseURL,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("catalog entry", "name", e.Name)
		}
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput("classification or category does not exist")
		}
		return fmt.Errorf("insert catalog entry: %w", err)
	}
	return nil
}

// GetByID retrieves a catalog entry by its ID.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_entries WHERE id = $1`

	e, err := scanCatalogEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("catalog entry", id)
		}
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return e, nil
}

// List returns catalog entries matching the filter with the total count.
func (r *CatalogRepository) List(ctx context.Context, filter repository.CatalogFilter) ([]domain.CatalogEntry, int, error) {
	var w where
	if filter.Search != nil {
		pattern := containsPattern(*filter.Search)
		w.add(`(name ILIKE ? ESCAPE '\' OR attributes->>? ILIKE ? ESCAPE '\')`, pattern, r.searchAttribute, pattern)
	}
	if filter.Brand != nil {
		w.add("brand = ?", *filter.Brand)
	}
	if filter.Visibility != nil {
		w.add("platform_visibility = ?", *filter.Visibility)
	}

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM catalog_entries
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		catalogColumns, w.clause(), w.next(), w.next()+1,
	)
	args := append(w.args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list catalog entries: %w", err)
	}
	defer rows.Close()

	var (
		entries    = []domain.CatalogEntry{}
		totalCount int
	)
	for rows.Next() {
		var (
			e     domain.CatalogEntry
			attrs []byte
		)
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Slug, &e.Brand, &e.PlatformVisibility, &e.ClassificationID, &e.CategoryID,
			&attrs, &e.ImageURL, &e.LicenseURL, &e.CreatedAt, &e.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan catalog entry row: %w", err)
		}
		if e.Attributes, err = unmarshalObject(attrs); err != nil {
			return nil, 0, fmt.Errorf("unmarshal attributes: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate catalog entry rows: %w", err)
	}

	return entries, totalCount, nil
}

// Update modifies an existing catalog entry.
func (r *CatalogRepository) Update(ctx context.Context, e *domain.CatalogEntry) error {
	attrs, err := marshalObject(e.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	e.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE catalog_entries
		SET name = $1, slug = $2, brand = $3, platform_visibility = $4, classification_id = $5,
		    category_id = $6, attributes = $7, image_url = $8, license_url = $9, updated_at = $10
		WHERE id = $11`

	ct, err := r.db.Exec(ctx, query,
		e.Name,
		e.Slug,
		e.Brand,
		e.PlatformVisibility,
		e.ClassificationID,
		e.CategoryID,
		attrs,
		e.ImageURL,
		e.LicenseURL,
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("catalog entry", "name", e.Name)
		}
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput("classification or category does not exist")
		}
		return fmt.Errorf("update catalog entry: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("catalog entry", e.ID)
	}
	return nil
}

// Delete removes a catalog entry. Its listings go with it.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM catalog_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete catalog entry: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("catalog entry", id)
	}
	return nil
}

// SetVisibility switches the platform visibility of a catalog entry.
func (r *CatalogRepository) SetVisibility(ctx context.Context, id, visibility string) error {
	query := `UPDATE catalog_entries SET platform_visibility = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, visibility, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set catalog entry visibility: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("catalog entry", id)
	}
	return nil
}

func scanCatalogEntry(row pgx.Row) (*domain.CatalogEntry, error) {
	var (
		e     domain.CatalogEntry
		attrs []byte
	)
	if err := row.Scan(
		&e.ID, &e.Name, &e.Slug, &e.Brand, &e.PlatformVisibility, &e.ClassificationID, &e.CategoryID,
		&attrs, &e.ImageURL, &e.LicenseURL, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	attributes, err := unmarshalObject(attrs)
	if err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	e.Attributes = attributes
	return &e, nil
}
