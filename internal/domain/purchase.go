package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase status constants.
const (
	PurchaseProcessing = "processing"
	PurchaseCompleted  = "completed"
	PurchaseReturned   = "returned"
)

// PurchasedItem records the quantity of one listing bought in one order.
// TotalPrice is the snapshot taken at purchase time.
type PurchasedItem struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	OrderID    string          `json:"order_id"`
	SellerID   string          `json:"seller_id"`
	ListingID  string          `json:"listing_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ReturnLine is the quantity of a listing returned from an order.
type ReturnLine struct {
	ListingID string `json:"listing_id"`
	Quantity  int    `json:"quantity"`
}

// ValidPurchaseStatuses returns the set of valid purchase statuses.
func ValidPurchaseStatuses() []string {
	return []string{PurchaseProcessing, PurchaseCompleted, PurchaseReturned}
}

// IsValidPurchaseStatus checks whether s is a valid purchase status.
func IsValidPurchaseStatus(s string) bool {
	for _, v := range ValidPurchaseStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// UnitPrice is the per-unit price paid, derived from the stored total.
func (p *PurchasedItem) UnitPrice() decimal.Decimal {
	if p.Quantity == 0 {
		return decimal.Zero
	}
	return p.TotalPrice.Div(decimal.NewFromInt(int64(p.Quantity)))
}
