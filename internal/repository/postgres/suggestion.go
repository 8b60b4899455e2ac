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

const suggestionColumns = `id, name, brand, image_url, license_url, classification_id, category_id, attributes,
		seller_id, seller_name, approval_status, response_message, responded_at, responded_by_id,
		responded_by_name, created_at, updated_at`

// SuggestionRepository implements repository.SuggestionRepository using PostgreSQL.
type SuggestionRepository struct {
	db database.DBTX
}

// NewSuggestionRepository creates a new PostgreSQL-backed suggestion repository.
func NewSuggestionRepository(db database.DBTX) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Create inserts a new suggestion.
func (r *SuggestionRepository) Create(ctx context.Context, s *domain.Suggestion) error {
	attrs, err := marshalObject(s.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	query := `
		INSERT INTO suggestions (id, name, brand, image_url, license_url, classification_id, category_id,
			attributes, seller_id, seller_name, approval_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Brand,
		s.ImageURL,
		s.LicenseURL,
		s.ClassificationID,
		s.CategoryID,
		attrs,
		s.SellerID,
		s.SellerName,
		s.ApprovalStatus,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput("classification or category does not exist")
		}
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

// GetByID retrieves a suggestion by its ID.
func (r *SuggestionRepository) GetByID(ctx context.Context, id string) (*domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = $1`

	s, err := scanSuggestion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("suggestion", id)
		}
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return s, nil
}

// List returns suggestions matching the filter with the total count.
func (r *SuggestionRepository) List(ctx context.Context, filter repository.SuggestionFilter) ([]domain.Suggestion, int, error) {
	var w where
	if filter.SellerID != nil {
		w.add("seller_id = ?", *filter.SellerID)
	}
	if filter.ApprovalStatus != nil {
		w.add("approval_status = ?", *filter.ApprovalStatus)
	}

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM suggestions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		suggestionColumns, w.clause(), w.next(), w.next()+1,
	)
	args := append(w.args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var (
		suggestions = []domain.Suggestion{}
		totalCount  int
	)
	for rows.Next() {
		s, err := scanSuggestion(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan suggestion row: %w", err)
		}
		suggestions = append(suggestions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate suggestion rows: %w", err)
	}
	return suggestions, totalCount, nil
}

// Update modifies a suggestion that is still pending.
func (r *SuggestionRepository) Update(ctx context.Context, s *domain.Suggestion) error {
	attrs, err := marshalObject(s.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE suggestions
		SET name = $1, brand = $2, image_url = $3, license_url = $4, classification_id = $5,
		    category_id = $6, attributes = $7, updated_at = $8
		WHERE id = $9 AND approval_status = 'pending'`

	ct, err := r.db.Exec(ctx, query,
		s.Name,
		s.Brand,
		s.ImageURL,
		s.LicenseURL,
		s.ClassificationID,
		s.CategoryID,
		attrs,
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput("classification or category does not exist")
		}
		return fmt.Errorf("update suggestion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("only pending suggestions can be changed")
	}
	return nil
}

// Delete removes a suggestion.
func (r *SuggestionRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM suggestions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete suggestion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("suggestion", id)
	}
	return nil
}

// Respond records the decision on a pending suggestion and creates entry
// when it is not nil. Either both writes commit or neither does.
func (r *SuggestionRepository) Respond(ctx context.Context, id string, resp domain.SuggestionResponse, entry *domain.CatalogEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE suggestions
		SET approval_status = $1, response_message = $2, responded_at = $3, responded_by_id = $4,
		    responded_by_name = $5, updated_at = $3
		WHERE id = $6 AND approval_status = 'pending'`

	ct, err := tx.Exec(ctx, query,
		resp.Decision,
		resp.Message,
		resp.RespondedAt,
		resp.RespondedBy,
		resp.Responder,
		id,
	)
	if err != nil {
		return fmt.Errorf("update suggestion response: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("suggestion has already been answered")
	}

	if entry != nil {
		if err := insertCatalogEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanSuggestion scans the suggestionColumns followed by extra.
func scanSuggestion(row pgx.Row, extra ...any) (*domain.Suggestion, error) {
	var (
		s     domain.Suggestion
		attrs []byte
	)
	dest := []any{
		&s.ID, &s.Name, &s.Brand, &s.ImageURL, &s.LicenseURL, &s.ClassificationID, &s.CategoryID, &attrs,
		&s.SellerID, &s.SellerName, &s.ApprovalStatus, &s.ResponseMessage, &s.RespondedAt, &s.RespondedByID,
		&s.RespondedByName, &s.CreatedAt, &s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	attributes, err := unmarshalObject(attrs)
	if err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	s.Attributes = attributes
	return &s, nil
}
