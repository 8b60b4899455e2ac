package domain

import "github.com/shopspring/decimal"

// ListingSales aggregates completed purchases of one listing.
type ListingSales struct {
	ListingID    string          `json:"listing_id"`
	Name         string          `json:"name"`
	ImageURL     string          `json:"image_url"`
	SellerID     string          `json:"seller_id"`
	CostPrice    decimal.Decimal `json:"-"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// ListingReport is one row of the seller sales report.
type ListingReport struct {
	ListingID    string          `json:"listing_id"`
	Name         string          `json:"name"`
	ImageURL     string          `json:"image_url"`
	SellerID     string          `json:"seller_id"`
	QuantitySold int             `json:"quantity_sold"`
	Cost         decimal.Decimal `json:"cost"`
	Revenue      decimal.Decimal `json:"revenue"`
	Profit       decimal.Decimal `json:"profit"`
	ProfitMargin string          `json:"profit_margin"`
}

var hundred = decimal.NewFromInt(100)

// NewListingReport derives cost, profit and margin from the sales aggregate.
// The margin is a percentage with two decimals, or "0" when nothing was earned.
func NewListingReport(s ListingSales) ListingReport {
	cost := s.CostPrice.Mul(decimal.NewFromInt(int64(s.QuantitySold)))
	profit := s.Revenue.Sub(cost)

	margin := "0"
	if !s.Revenue.IsZero() {
		margin = profit.Div(s.Revenue).Mul(hundred).StringFixed(2)
	}

	return ListingReport{
		ListingID:    s.ListingID,
		Name:         s.Name,
		ImageURL:     s.ImageURL,
		SellerID:     s.SellerID,
		QuantitySold: s.QuantitySold,
		Cost:         cost,
		Revenue:      s.Revenue,
		Profit:       profit,
		ProfitMargin: margin,
	}
}
