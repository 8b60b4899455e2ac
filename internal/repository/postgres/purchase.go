package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/pkg/database"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

const purchaseColumns = `id, user_id, order_id, seller_id, listing_id, quantity, total_price, status, created_at, updated_at`

const restockQuery = `UPDATE listings SET stock = stock + $1, updated_at = $2 WHERE id = $3`

// PurchaseRepository implements repository.PurchaseRepository using PostgreSQL.
type PurchaseRepository struct {
	db database.DBTX
}

// NewPurchaseRepository creates a new PostgreSQL-backed purchase repository.
func NewPurchaseRepository(db database.DBTX) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Record inserts the purchased items and takes their quantities out of stock
// in one transaction. Stock never goes below zero.
func (r *PurchaseRepository) Record(ctx context.Context, items []domain.PurchasedItem) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `
		INSERT INTO purchased_items (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	decrement := `UPDATE listings SET stock = GREATEST(stock - $1, 0), updated_at = $2 WHERE id = $3`

	for i := range items {
		it := &items[i]

		ct, err := tx.Exec(ctx, decrement, it.Quantity, it.UpdatedAt, it.ListingID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("listing", it.ListingID)
		}

		if _, err := tx.Exec(ctx, insert,
			it.ID,
			it.UserID,
			it.OrderID,
			it.SellerID,
			it.ListingID,
			it.Quantity,
			it.TotalPrice,
			it.Status,
			it.CreatedAt,
			it.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert purchased item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListByOrder returns the purchased items of an order.
func (r *PurchaseRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PurchasedItem, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchased_items WHERE order_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list purchased items: %w", err)
	}
	defer rows.Close()

	return collectPurchasedItems(rows)
}

// SetOrderStatus sets the status of every item of an order.
func (r *PurchaseRepository) SetOrderStatus(ctx context.Context, orderID, status string) error {
	query := `UPDATE purchased_items SET status = $1, updated_at = $2 WHERE order_id = $3`

	ct, err := r.db.Exec(ctx, query, status, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", orderID)
	}
	return nil
}

// CancelOrder deletes the items of an order and puts their quantities back
// in stock. It returns the deleted items.
func (r *PurchaseRepository) CancelOrder(ctx context.Context, orderID string) ([]domain.PurchasedItem, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `DELETE FROM purchased_items WHERE order_id = $1 RETURNING `+purchaseColumns, orderID)
	if err != nil {
		return nil, fmt.Errorf("delete purchased items: %w", err)
	}
	items, err := collectPurchasedItems(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.NotFound("order", orderID)
	}

	now := time.Now().UTC()
	for _, it := range items {
		if _, err := tx.Exec(ctx, restockQuery, it.Quantity, now, it.ListingID); err != nil {
			return nil, fmt.Errorf("restock listing: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return items, nil
}

// ReturnItems takes returned quantities off an order. Each line reduces the
// quantity and the total price proportionally; lines that reach zero are
// deleted. Returned units go back in stock.
func (r *PurchaseRepository) ReturnItems(ctx context.Context, orderID string, lines []domain.ReturnLine) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	selectItem := `
		SELECT id, quantity, total_price
		FROM purchased_items
		WHERE order_id = $1 AND listing_id = $2
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE`

	now := time.Now().UTC()
	for _, line := range lines {
		var (
			id       string
			quantity int
			total    decimal.Decimal
		)
		if err := tx.QueryRow(ctx, selectItem, orderID, line.ListingID).Scan(&id, &quantity, &total); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("purchased item", line.ListingID)
			}
			return fmt.Errorf("get purchased item: %w", err)
		}
		if line.Quantity > quantity {
			return apperrors.InvalidInput(fmt.Sprintf(
				"cannot return %d of listing %s, only %d purchased", line.Quantity, line.ListingID, quantity))
		}

		remaining := quantity - line.Quantity
		if remaining == 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM purchased_items WHERE id = $1`, id); err != nil {
				return fmt.Errorf("delete purchased item: %w", err)
			}
		} else {
			newTotal := total.Mul(decimal.NewFromInt(int64(remaining))).
				Div(decimal.NewFromInt(int64(quantity))).
				Round(2)
			update := `UPDATE purchased_items SET quantity = $1, total_price = $2, updated_at = $3 WHERE id = $4`
			if _, err := tx.Exec(ctx, update, remaining, newTotal, now, id); err != nil {
				return fmt.Errorf("reduce purchased item: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, restockQuery, line.Quantity, now, line.ListingID); err != nil {
			return fmt.Errorf("restock listing: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func collectPurchasedItems(rows pgx.Rows) ([]domain.PurchasedItem, error) {
	items := []domain.PurchasedItem{}
	for rows.Next() {
		var it domain.PurchasedItem
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.OrderID, &it.SellerID, &it.ListingID,
			&it.Quantity, &it.TotalPrice, &it.Status, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchased item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchased items: %w", err)
	}
	return items, nil
}
