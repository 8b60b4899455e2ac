// Package pricing selects the promotion that applies to a listing at a given
// instant and derives the listing's selling price from it. Everything here is
// a pure function over already-loaded data.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/domain"
)

// Precondition violations. Validation at the write boundary keeps them out of
// storage, so seeing one means the stored data is corrupt.
var (
	ErrUnknownDiscountType = errors.New("unknown discount type")
	ErrZeroRetailPrice     = errors.New("retail price must be positive for fixed discounts")
)

var hundred = decimal.NewFromInt(100)

// Resolution is the promotion-derived pricing of a listing.
type Resolution struct {
	PromotionID           string          `json:"-"`
	PromotionName         string          `json:"promotion_name"`
	PromotionValuePercent decimal.Decimal `json:"promotion_value_percent"`
	PromotionStartDate    *time.Time      `json:"promotion_start_date"`
	PromotionEndDate      *time.Time      `json:"promotion_end_date"`
	ActualPrice           decimal.Decimal `json:"actual_price"`
}

// Applied reports whether a promotion was selected.
func (r Resolution) Applied() bool {
	return r.PromotionID != ""
}

// None is the resolution of a listing without an applicable promotion.
func None(retailPrice decimal.Decimal) Resolution {
	return Resolution{
		PromotionName:         domain.NoPromotion,
		PromotionValuePercent: decimal.Zero,
		ActualPrice:           retailPrice,
	}
}

// Window returns the candidate's effective date window: the assignment's
// custom dates where set, the promotion's own dates otherwise.
func Window(c *domain.PromotionCandidate) (start, end *time.Time) {
	start, end = c.Promotion.StartDate, c.Promotion.EndDate
	if c.Assignment.CustomStartDate != nil {
		start = c.Assignment.CustomStartDate
	}
	if c.Assignment.CustomEndDate != nil {
		end = c.Assignment.CustomEndDate
	}
	return start, end
}

// Value returns the assignment's custom value if set, else the promotion's.
func Value(c *domain.PromotionCandidate) decimal.Decimal {
	if c.Assignment.CustomValue != nil {
		return *c.Assignment.CustomValue
	}
	return c.Promotion.Value
}

// Eligible reports whether the candidate applies at now. Only a manual
// deactivation is read from the stored status; expiry is decided from the
// effective window alone, so an expired row still marked active is skipped.
func Eligible(c *domain.PromotionCandidate, now time.Time) bool {
	if c.Promotion.Status != domain.StatusActive {
		return false
	}
	start, end := Window(c)
	if start != nil && start.After(now) {
		return false
	}
	if end != nil && end.Before(now) {
		return false
	}
	return true
}

// Resolve picks the first eligible candidate in the order given and prices
// the listing with it. Callers pass candidates in SortCandidates order.
func Resolve(retailPrice decimal.Decimal, candidates []domain.PromotionCandidate, now time.Time) (Resolution, error) {
	for i := range candidates {
		c := &candidates[i]
		if !Eligible(c, now) {
			continue
		}
		return apply(retailPrice, c)
	}
	return None(retailPrice), nil
}

// apply prices the listing exactly: percent gives p*(1-v/100), fixed gives
// p-v and fixed-final-price gives v. The percent for the fixed types is the
// implied ratio at decimal.DivisionPrecision. Nothing is rounded here.
func apply(retailPrice decimal.Decimal, c *domain.PromotionCandidate) (Resolution, error) {
	value := Value(c)

	var percent, price decimal.Decimal
	switch c.Promotion.DiscountType {
	case domain.DiscountTypePercent:
		percent = value
		price = retailPrice.Sub(retailPrice.Mul(value).Div(hundred))
	case domain.DiscountTypeFixed:
		if !retailPrice.IsPositive() {
			return Resolution{}, fmt.Errorf("promotion %s: %w", c.Promotion.ID, ErrZeroRetailPrice)
		}
		percent = value.Div(retailPrice).Mul(hundred)
		price = retailPrice.Sub(value)
	case domain.DiscountTypeFixedFinalPrice:
		if !retailPrice.IsPositive() {
			return Resolution{}, fmt.Errorf("promotion %s: %w", c.Promotion.ID, ErrZeroRetailPrice)
		}
		percent = retailPrice.Sub(value).Div(retailPrice).Mul(hundred)
		price = value
	default:
		return Resolution{}, fmt.Errorf("promotion %s: %w %q", c.Promotion.ID, ErrUnknownDiscountType, c.Promotion.DiscountType)
	}

	// A discount larger than the price floors the price at zero.
	if percent.GreaterThan(hundred) || price.IsNegative() {
		percent, price = hundred, decimal.Zero
	}

	start, end := Window(c)
	return Resolution{
		PromotionID:           c.Promotion.ID,
		PromotionName:         c.Promotion.TemplateName,
		PromotionValuePercent: percent,
		PromotionStartDate:    start,
		PromotionEndDate:      end,
		ActualPrice:           price,
	}, nil
}
