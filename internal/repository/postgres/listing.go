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

const listingSelect = `
		SELECT l.id, l.catalog_entry_id, l.seller_id, l.seller_name, l.cost_price, l.retail_price, l.stock,
		       l.import_date, l.invoice_url, l.approval_status, l.seller_visibility, l.return_policy,
		       l.created_at, l.updated_at,
		       e.name, e.slug, e.brand, e.platform_visibility, e.classification_id, e.category_id,
		       e.attributes, e.image_url, e.license_url, e.created_at, e.updated_at`

const listingFrom = `
		FROM listings l
		JOIN catalog_entries e ON e.id = l.catalog_entry_id`

// Candidates come back in resolution order: the earliest-starting promotion
// first, open starts before dated ones.
const candidatesQuery = `
		SELECT a.id, a.promotion_id, a.listing_id, a.custom_value, a.custom_start_date, a.custom_end_date,
		       a.created_at, a.updated_at,
		       p.template_id, t.name, p.seller_id, p.discount_type, p.value, p.start_date, p.end_date,
		       p.status, p.created_at, p.updated_at
		FROM promotion_assignments a
		JOIN promotions p ON p.id = a.promotion_id
		JOIN promotion_templates t ON t.id = p.template_id
		WHERE a.listing_id = ANY($1)
		ORDER BY p.start_date ASC NULLS FIRST, p.created_at ASC, p.id ASC`

// ListingRepository implements repository.ListingRepository using PostgreSQL.
type ListingRepository struct {
	db              database.DBTX
	searchAttribute string
}

// NewListingRepository creates a new PostgreSQL-backed listing repository.
// Search matches the catalog entry name and its searchAttribute attribute.
func NewListingRepository(db database.DBTX, searchAttribute string) *ListingRepository {
	return &ListingRepository{db: db, searchAttribute: searchAttribute}
}

// Create inserts a new listing.
func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	policy, err := marshalObject(l.ReturnPolicy)
	if err != nil {
		return fmt.Errorf("marshal return policy: %w", err)
	}

	query := `
		INSERT INTO listings (id, catalog_entry_id, seller_id, seller_name, cost_price, retail_price, stock,
			import_date, invoice_url, approval_status, seller_visibility, return_policy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.Exec(ctx, query,
		l.ID,
		l.CatalogEntryID,
		l.SellerID,
		l.SellerName,
		l.CostPrice,
		l.RetailPrice,
		l.Stock,
		l.ImportDate,
		l.InvoiceURL,
		l.ApprovalStatus,
		l.SellerVisibility,
		policy,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput(fmt.Sprintf("catalog entry %q does not exist", l.CatalogEntryID))
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetDetail retrieves a listing with its catalog entry and candidates.
func (r *ListingRepository) GetDetail(ctx context.Context, id string) (_ *domain.ListingDetail, err error) {
	query := listingSelect + listingFrom + `
		WHERE l.id = $1`

	ctx, end := database.TraceQuery(ctx, "GetListingDetail", query)
	defer func() { end(err) }()

	d, err := scanListingDetail(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("listing", id)
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	details := []domain.ListingDetail{*d}
	if err := r.attachCandidates(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

// GetDetails retrieves the listings with the given ids in the order asked
// for. Unknown ids are skipped.
func (r *ListingRepository) GetDetails(ctx context.Context, ids []string) ([]domain.ListingDetail, error) {
	if len(ids) == 0 {
		return []domain.ListingDetail{}, nil
	}

	query := listingSelect + listingFrom + `
		WHERE l.id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get listings by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.ListingDetail, len(ids))
	for rows.Next() {
		d, err := scanListingDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		byID[d.Listing.ID] = *d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}

	details := make([]domain.ListingDetail, 0, len(byID))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if _, dup := seen[id]; !ok || dup {
			continue
		}
		seen[id] = struct{}{}
		details = append(details, d)
	}

	if err := r.attachCandidates(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}

// List returns listings matching the filter with the total count.
func (r *ListingRepository) List(ctx context.Context, filter repository.ListingFilter) (_ []domain.ListingDetail, _ int, err error) {
	var w where
	if filter.Search != nil {
		pattern := containsPattern(*filter.Search)
		w.add(`(e.name ILIKE ? ESCAPE '\' OR e.attributes->>? ILIKE ? ESCAPE '\')`, pattern, r.searchAttribute, pattern)
	}
	if filter.Brand != nil {
		w.add("e.brand = ?", *filter.Brand)
	}
	if filter.SellerID != nil {
		w.add("l.seller_id = ?", *filter.SellerID)
	}
	if filter.ClassificationID != nil {
		w.add("e.classification_id = ?", *filter.ClassificationID)
	}
	if filter.CategoryIDs != nil {
		w.add("e.category_id = ANY(?)", filter.CategoryIDs)
	}
	if filter.IDs != nil {
		w.add("l.id = ANY(?)", filter.IDs)
	}
	if filter.ApprovalStatus != nil {
		w.add("l.approval_status = ?", *filter.ApprovalStatus)
	}
	if filter.CustomerOnly {
		w.raw("l.approval_status = 'approved' AND l.seller_visibility = 'active' AND e.platform_visibility = 'active'")
	}
	if filter.NotInPromotionAt != nil {
		w.add(`NOT EXISTS (
			SELECT 1 FROM promotion_assignments a
			JOIN promotions p ON p.id = a.promotion_id
			WHERE a.listing_id = l.id AND p.status = 'active' AND (p.end_date IS NULL OR p.end_date >= ?))`,
			*filter.NotInPromotionAt)
	}

	orderBy := "l.created_at DESC"
	switch filter.SortPrice {
	case repository.SortPriceAsc:
		orderBy = "l.retail_price ASC, l.created_at DESC"
	case repository.SortPriceDesc:
		orderBy = "l.retail_price DESC, l.created_at DESC"
	}

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`%s,
		       count(*) OVER() AS total_count
		%s
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		listingSelect, listingFrom, w.clause(), orderBy, w.next(), w.next()+1,
	)
	args := append(w.args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListListings", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var (
		details    = []domain.ListingDetail{}
		totalCount int
	)
	for rows.Next() {
		d, err := scanListingDetail(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing row: %w", err)
		}
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listing rows: %w", err)
	}

	if err := r.attachCandidates(ctx, details); err != nil {
		return nil, 0, err
	}
	return details, totalCount, nil
}

// Update modifies the seller-editable fields of a listing.
func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	policy, err := marshalObject(l.ReturnPolicy)
	if err != nil {
		return fmt.Errorf("marshal return policy: %w", err)
	}

	l.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE listings
		SET seller_name = $1, cost_price = $2, retail_price = $3, stock = $4, import_date = $5,
		    invoice_url = $6, return_policy = $7, updated_at = $8
		WHERE id = $9`

	ct, err := r.db.Exec(ctx, query,
		l.SellerName,
		l.CostPrice,
		l.RetailPrice,
		l.Stock,
		l.ImportDate,
		l.InvoiceURL,
		policy,
		l.UpdatedAt,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", l.ID)
	}
	return nil
}

// Delete removes a listing. Its promotion assignments cascade.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", id)
	}
	return nil
}

// SetApproval stores the review decision and the resulting seller visibility.
func (r *ListingRepository) SetApproval(ctx context.Context, id, approvalStatus, sellerVisibility string) error {
	query := `
		UPDATE listings
		SET approval_status = $1, seller_visibility = $2, updated_at = $3
		WHERE id = $4`

	ct, err := r.db.Exec(ctx, query, approvalStatus, sellerVisibility, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set listing approval: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", id)
	}
	return nil
}

// SetVisibility switches the seller visibility of a listing.
func (r *ListingRepository) SetVisibility(ctx context.Context, id, visibility string) error {
	query := `UPDATE listings SET seller_visibility = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, visibility, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set listing visibility: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("listing", id)
	}
	return nil
}

// Brands returns the distinct non-empty brands of listed catalog entries.
func (r *ListingRepository) Brands(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT e.brand
		FROM catalog_entries e
		JOIN listings l ON l.catalog_entry_id = e.id
		WHERE e.brand <> ''
		ORDER BY e.brand`

	return r.queryStrings(ctx, "list brands", query)
}

// IDsByCatalogEntry returns the ids of the listings of a catalog entry.
func (r *ListingRepository) IDsByCatalogEntry(ctx context.Context, entryID string) ([]string, error) {
	return r.queryStrings(ctx, "list listing ids", `SELECT id FROM listings WHERE catalog_entry_id = $1`, entryID)
}

func (r *ListingRepository) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}

// attachCandidates loads the promotion candidates of every listing in one
// query and stores them on the matching detail.
func (r *ListingRepository) attachCandidates(ctx context.Context, details []domain.ListingDetail) (err error) {
	if len(details) == 0 {
		return nil
	}

	ids := make([]string, len(details))
	index := make(map[string]int, len(details))
	for i := range details {
		ids[i] = details[i].Listing.ID
		index[ids[i]] = i
		details[i].Candidates = []domain.PromotionCandidate{}
	}

	ctx, end := database.TraceQuery(ctx, "ListPromotionCandidates", candidatesQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, candidatesQuery, ids)
	if err != nil {
		return fmt.Errorf("list promotion candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.PromotionCandidate
		a, p := &c.Assignment, &c.Promotion
		if err := rows.Scan(
			&a.ID, &a.PromotionID, &a.ListingID, &a.CustomValue, &a.CustomStartDate, &a.CustomEndDate,
			&a.CreatedAt, &a.UpdatedAt,
			&p.TemplateID, &p.TemplateName, &p.SellerID, &p.DiscountType, &p.Value, &p.StartDate, &p.EndDate,
			&p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("scan promotion candidate: %w", err)
		}
		p.ID = a.PromotionID
		if i, ok := index[a.ListingID]; ok {
			details[i].Candidates = append(details[i].Candidates, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate promotion candidates: %w", err)
	}
	return nil
}

// scanListingDetail scans the listingSelect columns followed by extra.
func scanListingDetail(row pgx.Row, extra ...any) (*domain.ListingDetail, error) {
	var (
		d             domain.ListingDetail
		policy, attrs []byte
	)
	l, e := &d.Listing, &d.Entry
	dest := []any{
		&l.ID, &l.CatalogEntryID, &l.SellerID, &l.SellerName, &l.CostPrice, &l.RetailPrice, &l.Stock,
		&l.ImportDate, &l.InvoiceURL, &l.ApprovalStatus, &l.SellerVisibility, &policy,
		&l.CreatedAt, &l.UpdatedAt,
		&e.Name, &e.Slug, &e.Brand, &e.PlatformVisibility, &e.ClassificationID, &e.CategoryID,
		&attrs, &e.ImageURL, &e.LicenseURL, &e.CreatedAt, &e.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.ID = l.CatalogEntryID

	var err error
	if l.ReturnPolicy, err = unmarshalObject(policy); err != nil {
		return nil, fmt.Errorf("unmarshal return policy: %w", err)
	}
	if e.Attributes, err = unmarshalObject(attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	return &d, nil
}
