// Package presenter shapes a resolved listing for the audience reading it.
package presenter

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/pricing"
)

// Audience selects which listing fields a reader may see.
type Audience int

const (
	// AudienceInternal sees every field, including cost price.
	AudienceInternal Audience = iota
	// AudienceSeller sees its own import paperwork but not cost price.
	AudienceSeller
	// AudienceCustomer sees only customer-visible listings and no paperwork.
	AudienceCustomer
)

// ListingView is a listing merged with its catalog entry and pricing.
type ListingView struct {
	ID                 string         `json:"id"`
	CatalogEntryID     string         `json:"catalog_entry_id"`
	SellerID           string         `json:"seller_id"`
	SellerName         string         `json:"seller_name"`
	Name               string         `json:"name"`
	Slug               string         `json:"slug"`
	Brand              string         `json:"brand"`
	PlatformVisibility string         `json:"platform_visibility"`
	ClassificationID   string         `json:"classification_id"`
	CategoryID         string         `json:"category_id"`
	Attributes         map[string]any `json:"attributes"`
	ImageURL           string         `json:"image_url"`
	LicenseURL         string         `json:"license_url"`

	CostPrice        *decimal.Decimal `json:"cost_price,omitempty"`
	RetailPrice      decimal.Decimal  `json:"retail_price"`
	Stock            int              `json:"stock"`
	ImportDate       *time.Time       `json:"import_date,omitempty"`
	InvoiceURL       string           `json:"invoice_url,omitempty"`
	ApprovalStatus   string           `json:"approval_status"`
	SellerVisibility string           `json:"seller_visibility"`
	ReturnPolicy     map[string]any   `json:"return_policy"`

	pricing.Resolution

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Present builds the view of detail for audience. It returns false when a
// customer may not see the listing at all.
func Present(detail *domain.ListingDetail, res pricing.Resolution, audience Audience) (*ListingView, bool) {
	if audience == AudienceCustomer && !detail.CustomerVisible() {
		return nil, false
	}

	l, e := &detail.Listing, &detail.Entry
	v := &ListingView{
		ID:                 l.ID,
		CatalogEntryID:     l.CatalogEntryID,
		SellerID:           l.SellerID,
		SellerName:         l.SellerName,
		Name:               e.Name,
		Slug:               e.Slug,
		Brand:              e.Brand,
		PlatformVisibility: e.PlatformVisibility,
		ClassificationID:   e.ClassificationID,
		CategoryID:         e.CategoryID,
		Attributes:         maps.Clone(e.Attributes),
		ImageURL:           e.ImageURL,
		LicenseURL:         e.LicenseURL,
		RetailPrice:        l.RetailPrice,
		Stock:              l.Stock,
		ApprovalStatus:     l.ApprovalStatus,
		SellerVisibility:   l.SellerVisibility,
		ReturnPolicy:       maps.Clone(l.ReturnPolicy),
		Resolution:         res,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}

	if audience == AudienceInternal {
		cost := l.CostPrice
		v.CostPrice = &cost
	}
	if audience != AudienceCustomer {
		if l.ImportDate != nil {
			d := *l.ImportDate
			v.ImportDate = &d
		}
		v.InvoiceURL = l.InvoiceURL
	}
	return v, true
}
