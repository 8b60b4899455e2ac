package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/media"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

func newTestCatalogService(deps *testDeps) (*CatalogService, *mockCatalogRepository) {
	repo := &mockCatalogRepository{}
	svc := NewCatalogService(repo, deps.listings, deps.cache, deps.producer, deps.cleaner, newTestLogger())
	svc.now = fixedClock
	return svc, repo
}

func TestCreateEntry_GeneratesSlug(t *testing.T) {
	deps := newTestDeps()
	svc, repo := newTestCatalogService(deps)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*domain.CatalogEntry")).Return(nil)

	entry, err := svc.CreateEntry(ctx, &CreateEntryInput{
		Name:             "Thuốc Ho Bổ Phế",
		ClassificationID: "cls-1",
		CategoryID:       "cat-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "thuoc-ho-bo-phe", entry.Slug)
	assert.Equal(t, domain.StatusActive, entry.PlatformVisibility)
	assert.Equal(t, []string{event.TopicEntryCreated}, deps.publisher.sent())
}

func TestCreateEntry_Duplicate(t *testing.T) {
	deps := newTestDeps()
	svc, repo := newTestCatalogService(deps)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(apperrors.AlreadyExists("catalog entry", "name", "Panadol"))

	_, err := svc.CreateEntry(ctx, &CreateEntryInput{Name: "Panadol", ClassificationID: "c", CategoryID: "c"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Empty(t, deps.publisher.sent())
}

func TestUpdateEntry_InvalidatesListings(t *testing.T) {
	deps := newTestDeps()
	svc, repo := newTestCatalogService(deps)
	ctx := context.Background()

	repo.On("GetByID", ctx, "entry-1").Return(&domain.CatalogEntry{ID: "entry-1", Name: "Old", Slug: "old"}, nil)
	repo.On("Update", ctx, mock.MatchedBy(func(e *domain.CatalogEntry) bool {
		return e.Name == "Panadol Extra" && e.Slug == "panadol-extra"
	})).Return(nil)
	deps.listings.On("IDsByCatalogEntry", ctx, "entry-1").Return([]string{"l-1", "l-2"}, nil)

	entry, err := svc.UpdateEntry(ctx, "entry-1", &UpdateEntryInput{Name: strPtr("Panadol Extra")})
	require.NoError(t, err)
	assert.Equal(t, "panadol-extra", entry.Slug)
	assert.ElementsMatch(t, []string{"l-1", "l-2"}, deps.cache.deleted)
}

func TestDeleteEntry(t *testing.T) {
	deps := newTestDeps()
	svc, repo := newTestCatalogService(deps)
	ctx := context.Background()

	deps.listings.On("IDsByCatalogEntry", ctx, "entry-1").Return([]string{"l-1"}, nil)
	repo.On("Delete", ctx, "entry-1").Return(nil)

	require.NoError(t, svc.DeleteEntry(ctx, "entry-1"))
	assert.Equal(t, []string{"l-1"}, deps.cache.deleted)
	assert.Equal(t, []string{media.OwnerCatalogEntry + "/entry-1"}, deps.cleaner.calls)
}

func TestSetEntryVisibility(t *testing.T) {
	deps := newTestDeps()
	svc, repo := newTestCatalogService(deps)
	ctx := context.Background()

	repo.On("SetVisibility", ctx, "entry-1", domain.StatusInactive).Return(nil)
	deps.listings.On("IDsByCatalogEntry", ctx, "entry-1").Return([]string{"l-1"}, nil)

	require.NoError(t, svc.SetVisibility(ctx, "entry-1", domain.StatusInactive))
	assert.Equal(t, []string{"l-1"}, deps.cache.deleted)
	assert.ErrorIs(t, svc.SetVisibility(ctx, "entry-1", "hidden"), apperrors.ErrInvalidInput)
}

func TestListEntries_NormalizesPaging(t *testing.T) {
	deps := newTestDeps()
	svc, repo := newTestCatalogService(deps)
	ctx := context.Background()

	repo.On("List", ctx, repository.CatalogFilter{Page: 1, PerPage: maxPerPage}).
		Return([]domain.CatalogEntry{}, 0, nil)

	_, _, err := svc.ListEntries(ctx, repository.CatalogFilter{PerPage: 1000})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
