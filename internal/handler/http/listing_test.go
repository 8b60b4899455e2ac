package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/presenter"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

const (
	listingID = "3d6f0a8e-9c1b-4e2a-8f5d-7b6c5a4e3d21"
	entryID   = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
)

// ============================================================================
// Helpers
// ============================================================================

func testDetail(retail string, candidates ...domain.PromotionCandidate) *domain.ListingDetail {
	created := time.Now().UTC().Add(-48 * time.Hour)
	return &domain.ListingDetail{
		Listing: domain.Listing{
			ID:               listingID,
			CatalogEntryID:   entryID,
			SellerID:         "seller-1",
			SellerName:       "Nha thuoc An Khang",
			CostPrice:        decimal.RequireFromString("30"),
			RetailPrice:      decimal.RequireFromString(retail),
			Stock:            10,
			InvoiceURL:       "https://cdn.example.com/invoice.pdf",
			ApprovalStatus:   domain.ApprovalApproved,
			SellerVisibility: domain.StatusActive,
			ReturnPolicy:     map[string]any{},
			CreatedAt:        created,
			UpdatedAt:        created,
		},
		Entry: domain.CatalogEntry{
			ID:                 entryID,
			Name:               "Panadol Extra",
			Slug:               "panadol-extra",
			Brand:              "GSK",
			PlatformVisibility: domain.StatusActive,
			Attributes:         map[string]any{},
		},
		Candidates: candidates,
	}
}

// runningPromotion is an active promotion that started an hour ago and ends tomorrow.
func runningPromotion(discountType, value string) domain.PromotionCandidate {
	start := time.Now().UTC().Add(-time.Hour)
	end := start.Add(25 * time.Hour)
	return domain.PromotionCandidate{
		Promotion: domain.Promotion{
			ID:           "promo-1",
			TemplateID:   "tpl-1",
			TemplateName: "Tet Sale",
			SellerID:     "seller-1",
			DiscountType: discountType,
			Value:        decimal.RequireFromString(value),
			StartDate:    &start,
			EndDate:      &end,
			Status:       domain.StatusActive,
			CreatedAt:    start,
		},
		Assignment: domain.PromotionAssignment{ID: "pa-1", PromotionID: "promo-1", ListingID: listingID},
	}
}

func decodeView(t *testing.T, raw json.RawMessage) presenter.ListingView {
	t.Helper()
	var v presenter.ListingView
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// ============================================================================
// GetListing Tests
// ============================================================================

func TestGetListing_ResolvesPromotion(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.On("GetDetail", mock.Anything, listingID).
		Return(testDetail("100", runningPromotion(domain.DiscountTypePercent, "20")), nil).Once()

	rec := ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, decodeEnvelope(t, rec).Data)
	assert.True(t, decimal.RequireFromString("80").Equal(v.ActualPrice), "actual price %s", v.ActualPrice)
	assert.True(t, decimal.RequireFromString("20").Equal(v.PromotionValuePercent))
	assert.Equal(t, "Tet Sale", v.PromotionName)
	require.NotNil(t, v.CostPrice)
	assert.True(t, ts.redis.Exists("catalog:listing:"+listingID), "snapshot should be cached")

	// Second read is served from the cache.
	rec = ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.assertExpectations(t)
}

func TestGetCustomerListing_HidesInvisible(t *testing.T) {
	ts := newTestServer(t)
	d := testDetail("100")
	d.Listing.SellerVisibility = domain.StatusInactive
	ts.listings.On("GetDetail", mock.Anything, listingID).Return(d, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID+"/customer", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}

func TestGetCustomerListing_OmitsCost(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.On("GetDetail", mock.Anything, listingID).Return(testDetail("100"), nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID+"/customer", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, decodeEnvelope(t, rec).Data)
	assert.Nil(t, v.CostPrice)
	assert.Empty(t, v.InvoiceURL)
	assert.True(t, decimal.RequireFromString("100").Equal(v.ActualPrice))
}

func TestGetListing_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.On("GetDetail", mock.Anything, listingID).Return(nil, apperrors.NotFound("listing", listingID))

	rec := ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// ListListings Tests
// ============================================================================

func TestListListings_CustomerFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.On("List", mock.Anything, mock.MatchedBy(func(f repository.ListingFilter) bool {
		return f.CustomerOnly && f.Brand != nil && *f.Brand == "GSK" && f.Page == 2 && f.PerPage == 1
	})).Return([]domain.ListingDetail{*testDetail("100")}, 3, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/listings?brand=GSK&for_customer=true&page=2&limit=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	p := decodePaginated(t, rec)
	assert.Equal(t, 3, p.TotalCount)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 1, p.PerPage)
	assert.True(t, p.HasNext)

	var views []presenter.ListingView
	require.NoError(t, json.Unmarshal(p.Data, &views))
	require.Len(t, views, 1)
	assert.Nil(t, views[0].CostPrice)
	ts.assertExpectations(t)
}

func TestListListings_InvalidForCustomer(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/listings?for_customer=maybe", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeEnvelope(t, rec).Error.Code)
}

func TestListListings_InvalidSort(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/listings?sort_price=sideways", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ts.assertExpectations(t)
}

func TestListByCategories_UnknownNamesGiveEmptyPage(t *testing.T) {
	ts := newTestServer(t)
	ts.taxonomy.On("CategoryIDsByNames", mock.Anything, []string{"Vitamin"}).Return([]string{}, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/listings/by-categories", ByCategoriesRequest{Categories: []string{"Vitamin"}})

	require.Equal(t, http.StatusOK, rec.Code)
	p := decodePaginated(t, rec)
	assert.Equal(t, 0, p.TotalCount)
	assert.JSONEq(t, "[]", string(p.Data))
	ts.assertExpectations(t)
}

// ============================================================================
// Write Tests
// ============================================================================

func TestCreateListing(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.On("Create", mock.Anything, mock.AnythingOfType("*domain.Listing")).Return(nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/listings", CreateListingRequest{
		CatalogEntryID: entryID,
		SellerID:       "seller-1",
		CostPrice:      decimal.RequireFromString("30"),
		RetailPrice:    decimal.RequireFromString("49.90"),
		Stock:          5,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var l domain.Listing
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &l))
	assert.Equal(t, domain.ApprovalPending, l.ApprovalStatus)
	assert.Equal(t, []string{event.TopicListingCreated}, ts.publisher.topics)
	ts.assertExpectations(t)
}

func TestCreateListing_ZeroRetailPrice(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/listings", CreateListingRequest{
		CatalogEntryID: entryID,
		SellerID:       "seller-1",
		RetailPrice:    decimal.Zero,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, rec).Error.Code)
	ts.assertExpectations(t)
}

func TestSetApproval_InvalidDecision(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/v1/listings/"+listingID+"/approval", ApprovalRequest{ApprovalStatus: "pending"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
}

func TestCheckStock(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.On("GetDetails", mock.Anything, []string{listingID}).
		Return([]domain.ListingDetail{*testDetail("50", runningPromotion(domain.DiscountTypeFixed, "10"))}, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/listings/check-stock", CheckStockRequest{
		Items: []CheckStockItem{{ListingID: listingID, Quantity: 12}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var checks []domain.StockCheck
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &checks))
	require.Len(t, checks, 1)
	assert.Equal(t, 10, checks[0].Available)
	assert.False(t, checks[0].InStock)
	assert.True(t, decimal.RequireFromString("40").Equal(checks[0].ActualPrice))
	ts.assertExpectations(t)
}
