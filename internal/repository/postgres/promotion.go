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

const promotionSelect = `
		SELECT p.id, p.template_id, t.name, p.seller_id, p.discount_type, p.value, p.start_date, p.end_date,
		       p.status, p.created_at, p.updated_at`

const promotionFrom = `
		FROM promotions p
		JOIN promotion_templates t ON t.id = p.template_id`

// PromotionRepository implements repository.PromotionRepository using PostgreSQL.
type PromotionRepository struct {
	db database.DBTX
}

// NewPromotionRepository creates a new PostgreSQL-backed promotion repository.
func NewPromotionRepository(db database.DBTX) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// ============================================================================
// Templates
// ============================================================================

// CreateTemplate inserts a new promotion template.
func (r *PromotionRepository) CreateTemplate(ctx context.Context, tpl *domain.PromotionTemplate) error {
	query := `
		INSERT INTO promotion_templates (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, tpl.ID, tpl.Name, tpl.Status, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion template", "name", tpl.Name)
		}
		return fmt.Errorf("insert promotion template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a promotion template by its ID.
func (r *PromotionRepository) GetTemplate(ctx context.Context, id string) (*domain.PromotionTemplate, error) {
	query := `SELECT id, name, status, created_at, updated_at FROM promotion_templates WHERE id = $1`

	var tpl domain.PromotionTemplate
	err := r.db.QueryRow(ctx, query, id).Scan(&tpl.ID, &tpl.Name, &tpl.Status, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promotion template", id)
		}
		return nil, fmt.Errorf("get promotion template: %w", err)
	}
	return &tpl, nil
}

// ListTemplates returns promotion templates, optionally filtered by status.
func (r *PromotionRepository) ListTemplates(ctx context.Context, status *string, page, perPage int) ([]domain.PromotionTemplate, int, error) {
	var w where
	if status != nil {
		w.add("status = ?", *status)
	}

	limit, offset := limitOffset(page, perPage)
	query := fmt.Sprintf(`
		SELECT id, name, status, created_at, updated_at,
			   count(*) OVER() AS total_count
		FROM promotion_templates
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		w.clause(), w.next(), w.next()+1,
	)
	args := append(w.args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotion templates: %w", err)
	}
	defer rows.Close()

	var (
		templates  = []domain.PromotionTemplate{}
		totalCount int
	)
	for rows.Next() {
		var tpl domain.PromotionTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Status, &tpl.CreatedAt, &tpl.UpdatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan promotion template row: %w", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promotion template rows: %w", err)
	}
	return templates, totalCount, nil
}

// UpdateTemplate renames a promotion template.
func (r *PromotionRepository) UpdateTemplate(ctx context.Context, tpl *domain.PromotionTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()

	query := `UPDATE promotion_templates SET name = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, tpl.Name, tpl.UpdatedAt, tpl.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion template", "name", tpl.Name)
		}
		return fmt.Errorf("update promotion template: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion template", tpl.ID)
	}
	return nil
}

// DeleteTemplate removes a promotion template that no seller instantiated.
func (r *PromotionRepository) DeleteTemplate(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM promotion_templates WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict("promotion template is used by seller promotions")
		}
		return fmt.Errorf("delete promotion template: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion template", id)
	}
	return nil
}

// SetTemplateStatus switches a promotion template on or off.
func (r *PromotionRepository) SetTemplateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE promotion_templates SET status = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set promotion template status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion template", id)
	}
	return nil
}

// ============================================================================
// Promotions
// ============================================================================

// Create inserts a new seller promotion.
func (r *PromotionRepository) Create(ctx context.Context, p *domain.Promotion) error {
	query := `
		INSERT INTO promotions (id, template_id, seller_id, discount_type, value, start_date, end_date, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.TemplateID,
		p.SellerID,
		p.DiscountType,
		p.Value,
		p.StartDate,
		p.EndDate,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion", "template_id", p.TemplateID)
		}
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput(fmt.Sprintf("promotion template %q does not exist", p.TemplateID))
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

// GetByID retrieves a promotion with its template name.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	query := promotionSelect + promotionFrom + `
		WHERE p.id = $1`

	p, err := scanPromotion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promotion", id)
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

// List returns promotions matching the filter with the total count.
func (r *PromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	var w where
	if filter.SellerID != nil {
		w.add("p.seller_id = ?", *filter.SellerID)
	}
	if filter.Status != nil {
		w.add("p.status = ?", *filter.Status)
	}

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`%s,
		       count(*) OVER() AS total_count
		%s
		%s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`,
		promotionSelect, promotionFrom, w.clause(), w.next(), w.next()+1,
	)
	args := append(w.args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var (
		promotions = []domain.Promotion{}
		totalCount int
	)
	for rows.Next() {
		p, err := scanPromotion(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan promotion row: %w", err)
		}
		promotions = append(promotions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promotion rows: %w", err)
	}
	return promotions, totalCount, nil
}

// Update modifies the discount terms and window of a promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *domain.Promotion) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE promotions
		SET discount_type = $1, value = $2, start_date = $3, end_date = $4, status = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.db.Exec(ctx, query,
		p.DiscountType,
		p.Value,
		p.StartDate,
		p.EndDate,
		p.Status,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", p.ID)
	}
	return nil
}

// Delete removes a promotion. Its assignments cascade.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", id)
	}
	return nil
}

// SetStatus switches a promotion on or off.
func (r *PromotionRepository) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE promotions SET status = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set promotion status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", id)
	}
	return nil
}

// ExpireActive deactivates the listed promotions that are still active but
// ended before now. Repeating it changes nothing.
func (r *PromotionRepository) ExpireActive(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	query := `
		UPDATE promotions
		SET status = 'inactive', updated_at = $2
		WHERE id = ANY($1) AND status = 'active' AND end_date < $2
		RETURNING id`

	return r.queryIDs(ctx, "expire promotions", query, ids, now)
}

// SweepExpired deactivates every active promotion that ended before now.
func (r *PromotionRepository) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE promotions
		SET status = 'inactive', updated_at = $1
		WHERE status = 'active' AND end_date < $1
		RETURNING id`

	return r.queryIDs(ctx, "sweep expired promotions", query, now)
}

// ============================================================================
// Assignments
// ============================================================================

// Assign attaches the seller's own listings among listingIDs to the
// promotion. Unknown ids, other sellers' listings and existing pairs are
// skipped. It returns the number of new assignments.
func (r *PromotionRepository) Assign(ctx context.Context, promotionID string, listingIDs []string) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO promotion_assignments (promotion_id, listing_id, created_at, updated_at)
		SELECT p.id, l.id, $3, $3
		FROM promotions p
		JOIN listings l ON l.seller_id = p.seller_id
		WHERE p.id = $1 AND l.id = ANY($2)
		ON CONFLICT (promotion_id, listing_id) DO NOTHING`

	ct, err := r.db.Exec(ctx, query, promotionID, listingIDs, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("assign listings: %w", err)
	}
	return ct.RowsAffected(), nil
}

// Unassign detaches listings from the promotion.
func (r *PromotionRepository) Unassign(ctx context.Context, promotionID string, listingIDs []string) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, nil
	}

	query := `DELETE FROM promotion_assignments WHERE promotion_id = $1 AND listing_id = ANY($2)`

	ct, err := r.db.Exec(ctx, query, promotionID, listingIDs)
	if err != nil {
		return 0, fmt.Errorf("unassign listings: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ListAssigned returns the listings in a promotion with their overrides.
func (r *PromotionRepository) ListAssigned(ctx context.Context, promotionID string) ([]domain.AssignedListing, error) {
	query := `
		SELECT a.id, a.promotion_id, a.listing_id, a.custom_value, a.custom_start_date, a.custom_end_date,
		       a.created_at, a.updated_at,
		       e.name, e.brand, e.image_url, l.retail_price, l.stock
		FROM promotion_assignments a
		JOIN listings l ON l.id = a.listing_id
		JOIN catalog_entries e ON e.id = l.catalog_entry_id
		WHERE a.promotion_id = $1
		ORDER BY a.created_at ASC`

	rows, err := r.db.Query(ctx, query, promotionID)
	if err != nil {
		return nil, fmt.Errorf("list assigned listings: %w", err)
	}
	defer rows.Close()

	assigned := []domain.AssignedListing{}
	for rows.Next() {
		var al domain.AssignedListing
		a := &al.Assignment
		if err := rows.Scan(
			&a.ID, &a.PromotionID, &a.ListingID, &a.CustomValue, &a.CustomStartDate, &a.CustomEndDate,
			&a.CreatedAt, &a.UpdatedAt,
			&al.Name, &al.Brand, &al.ImageURL, &al.RetailPrice, &al.Stock,
		); err != nil {
			return nil, fmt.Errorf("scan assigned listing: %w", err)
		}
		assigned = append(assigned, al)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assigned listings: %w", err)
	}
	return assigned, nil
}

// AssignedListingIDs returns the ids of the listings in a promotion.
func (r *PromotionRepository) AssignedListingIDs(ctx context.Context, promotionID string) ([]string, error) {
	query := `SELECT listing_id FROM promotion_assignments WHERE promotion_id = $1`
	return r.queryIDs(ctx, "list assigned listing ids", query, promotionID)
}

// SetOverride replaces the per-listing override of an assignment. Nil
// fields clear the override.
func (r *PromotionRepository) SetOverride(ctx context.Context, promotionID, listingID string, o repository.Override) error {
	query := `
		UPDATE promotion_assignments
		SET custom_value = $1, custom_start_date = $2, custom_end_date = $3, updated_at = $4
		WHERE promotion_id = $5 AND listing_id = $6`

	ct, err := r.db.Exec(ctx, query, o.Value, o.StartDate, o.EndDate, time.Now().UTC(), promotionID, listingID)
	if err != nil {
		return fmt.Errorf("set promotion override: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion assignment", listingID)
	}
	return nil
}

// Available returns the active promotions whose own window contains now, with
// their assigned listing ids. Template status is not consulted: a template is
// a label, and the pricing engine only looks at the promotion.
func (r *PromotionRepository) Available(ctx context.Context, now time.Time) (_ []domain.ActivePromotion, err error) {
	query := promotionSelect + `,
		       COALESCE(array_agg(a.listing_id::text ORDER BY a.created_at)
		                FILTER (WHERE a.listing_id IS NOT NULL), '{}') AS listing_ids` +
		promotionFrom + `
		LEFT JOIN promotion_assignments a ON a.promotion_id = p.id
		WHERE p.status = 'active'
		  AND (p.start_date IS NULL OR p.start_date <= $1)
		  AND (p.end_date IS NULL OR p.end_date >= $1)
		GROUP BY p.id, t.name
		ORDER BY t.name ASC, p.start_date ASC NULLS FIRST, p.created_at ASC`

	ctx, end := database.TraceQuery(ctx, "ListAvailablePromotions", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list available promotions: %w", err)
	}
	defer rows.Close()

	available := []domain.ActivePromotion{}
	for rows.Next() {
		var ap domain.ActivePromotion
		p, err := scanPromotion(rows, &ap.ListingIDs)
		if err != nil {
			return nil, fmt.Errorf("scan available promotion: %w", err)
		}
		ap.Promotion = *p
		available = append(available, ap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available promotions: %w", err)
	}
	return available, nil
}

func (r *PromotionRepository) queryIDs(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return ids, nil
}

// scanPromotion scans the promotionSelect columns followed by extra.
func scanPromotion(row pgx.Row, extra ...any) (*domain.Promotion, error) {
	var p domain.Promotion
	dest := []any{
		&p.ID, &p.TemplateID, &p.TemplateName, &p.SellerID, &p.DiscountType, &p.Value, &p.StartDate, &p.EndDate,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}
