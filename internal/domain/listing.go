package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a seller's sellable instance of a CatalogEntry. Promotion-derived
// pricing is never stored on it; see pricing.Resolve.
type Listing struct {
	ID               string          `json:"id"`
	CatalogEntryID   string          `json:"catalog_entry_id"`
	SellerID         string          `json:"seller_id"`
	SellerName       string          `json:"seller_name"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	RetailPrice      decimal.Decimal `json:"retail_price"`
	Stock            int             `json:"stock"`
	ImportDate       *time.Time      `json:"import_date,omitempty"`
	InvoiceURL       string          `json:"invoice_url,omitempty"`
	ApprovalStatus   string          `json:"approval_status"`
	SellerVisibility string          `json:"seller_visibility"`
	ReturnPolicy     map[string]any  `json:"return_policy"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ListingDetail is a listing joined with its catalog entry and every
// promotion assigned to it, in resolution order.
type ListingDetail struct {
	Listing    Listing              `json:"listing"`
	Entry      CatalogEntry         `json:"entry"`
	Candidates []PromotionCandidate `json:"candidates"`
}

// CustomerVisible reports whether customers may see the listing: it must be
// approved and both the seller and the platform must have it switched on.
func (d *ListingDetail) CustomerVisible() bool {
	return d.Listing.ApprovalStatus == ApprovalApproved &&
		d.Listing.SellerVisibility == StatusActive &&
		d.Entry.IsActive()
}

// StockCheck is the outcome of checking one requested quantity against a listing.
type StockCheck struct {
	ListingID   string          `json:"listing_id"`
	Requested   int             `json:"requested"`
	Available   int             `json:"available"`
	InStock     bool            `json:"in_stock"`
	ActualPrice decimal.Decimal `json:"actual_price"`
}
