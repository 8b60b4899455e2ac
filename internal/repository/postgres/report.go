package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/pkg/database"
)

// ReportRepository implements repository.ReportRepository using PostgreSQL.
type ReportRepository struct {
	db database.DBTX
}

// NewReportRepository creates a new PostgreSQL-backed report repository.
func NewReportRepository(db database.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// ListingSales aggregates a seller's completed purchases whose last update
// falls within [from, to], one row per listing, best sellers first.
func (r *ReportRepository) ListingSales(ctx context.Context, sellerID string, from, to time.Time) (_ []domain.ListingSales, err error) {
	query := `
		SELECT l.id, e.name, e.image_url, l.seller_id, l.cost_price,
		       SUM(pi.quantity)::int AS quantity_sold,
		       SUM(pi.total_price) AS revenue
		FROM purchased_items pi
		JOIN listings l ON l.id = pi.listing_id
		JOIN catalog_entries e ON e.id = l.catalog_entry_id
		WHERE pi.seller_id = $1
		  AND pi.status = 'completed'
		  AND pi.updated_at BETWEEN $2 AND $3
		GROUP BY l.id, e.name, e.image_url, l.seller_id, l.cost_price
		ORDER BY revenue DESC, e.name ASC`

	ctx, end := database.TraceQuery(ctx, "ListingSalesReport", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, sellerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing sales report: %w", err)
	}
	defer rows.Close()

	sales := []domain.ListingSales{}
	for rows.Next() {
		var s domain.ListingSales
		if err := rows.Scan(&s.ListingID, &s.Name, &s.ImageURL, &s.SellerID, &s.CostPrice, &s.QuantitySold, &s.Revenue); err != nil {
			return nil, fmt.Errorf("scan listing sales: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing sales: %w", err)
	}
	return sales, nil
}
