package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discount type constants.
const (
	DiscountTypeFixed           = "fixed"
	DiscountTypePercent         = "percent"
	DiscountTypeFixedFinalPrice = "fixed-final-price"
)

// NoPromotion is the promotion name reported when nothing applies.
const NoPromotion = "none"

// PromotionTemplate is a platform-level named promotion that sellers instantiate.
type PromotionTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Promotion is a seller's instance of a PromotionTemplate with its own
// discount terms and date window. A seller holds at most one per template.
type Promotion struct {
	ID           string          `json:"id"`
	TemplateID   string          `json:"template_id"`
	TemplateName string          `json:"template_name,omitempty"`
	SellerID     string          `json:"seller_id"`
	DiscountType string          `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	StartDate    *time.Time      `json:"start_date"`
	EndDate      *time.Time      `json:"end_date"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PromotionAssignment attaches a Promotion to a Listing. The custom fields,
// when set, replace the promotion's value or window for this listing only.
type PromotionAssignment struct {
	ID              string           `json:"id"`
	PromotionID     string           `json:"promotion_id"`
	ListingID       string           `json:"listing_id"`
	CustomValue     *decimal.Decimal `json:"custom_value"`
	CustomStartDate *time.Time       `json:"custom_start_date"`
	CustomEndDate   *time.Time       `json:"custom_end_date"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// PromotionCandidate is one promotion that may apply to a listing, joined
// with its template name and the listing's assignment.
type PromotionCandidate struct {
	Promotion  Promotion           `json:"promotion"`
	Assignment PromotionAssignment `json:"assignment"`
}

// ActivePromotion is a running promotion with the listings assigned to it.
type ActivePromotion struct {
	Promotion
	ListingIDs []string `json:"listing_ids"`
}

// AssignedListing is a listing inside a promotion together with its override.
type AssignedListing struct {
	Assignment  PromotionAssignment `json:"assignment"`
	Name        string              `json:"name"`
	Brand       string              `json:"brand"`
	ImageURL    string              `json:"image_url"`
	RetailPrice decimal.Decimal     `json:"retail_price"`
	Stock       int                 `json:"stock"`
}

// ValidDiscountTypes returns the set of valid discount types.
func ValidDiscountTypes() []string {
	return []string{
		DiscountTypeFixed,
		DiscountTypePercent,
		DiscountTypeFixedFinalPrice,
	}
}

// IsValidDiscountType checks whether the given string is a valid discount type.
func IsValidDiscountType(t string) bool {
	for _, v := range ValidDiscountTypes() {
		if v == t {
			return true
		}
	}
	return false
}
