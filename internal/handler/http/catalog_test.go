package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

func TestGetEntry_NotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.On("GetByID", mock.Anything, entryID).Return(nil, apperrors.NotFound("catalog entry", entryID))

	rec := ts.do(t, http.MethodGet, "/api/v1/catalog-entries/"+entryID, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	ts.assertExpectations(t)
}

func TestListEntries_InvalidVisibility(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/catalog-entries?visibility=hidden", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ts.assertExpectations(t)
}

func TestSetEntryVisibility_InvalidatesListings(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.cache.Set(context.Background(), testDetail("100"), 0))

	ts.catalog.On("SetVisibility", mock.Anything, entryID, domain.StatusInactive).Return(nil)
	ts.listings.On("IDsByCatalogEntry", mock.Anything, entryID).Return([]string{listingID}, nil)

	rec := ts.do(t, http.MethodPut, "/api/v1/catalog-entries/"+entryID+"/visibility", VisibilityRequest{Visibility: domain.StatusInactive})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+entryID+`","visibility":"inactive"}`, string(decodeEnvelope(t, rec).Data))
	assert.False(t, ts.redis.Exists("catalog:listing:"+listingID))
	ts.assertExpectations(t)
}

func TestDeleteEntry(t *testing.T) {
	ts := newTestServer(t)
	ts.listings.On("IDsByCatalogEntry", mock.Anything, entryID).Return([]string{listingID}, nil)
	ts.catalog.On("Delete", mock.Anything, entryID).Return(nil)

	rec := ts.do(t, http.MethodDelete, "/api/v1/catalog-entries/"+entryID, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	ts.assertExpectations(t)
}
