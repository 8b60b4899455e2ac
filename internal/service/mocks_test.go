package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
)

// --- Mock Repositories ---

type mockListingRepository struct {
	mock.Mock
}

func (m *mockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *mockListingRepository) GetDetail(ctx context.Context, id string) (*domain.ListingDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ListingDetail), args.Error(1)
}

func (m *mockListingRepository) GetDetails(ctx context.Context, ids []string) ([]domain.ListingDetail, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.ListingDetail), args.Error(1)
}

func (m *mockListingRepository) List(ctx context.Context, filter repository.ListingFilter) ([]domain.ListingDetail, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.ListingDetail), args.Int(1), args.Error(2)
}

func (m *mockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *mockListingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockListingRepository) SetApproval(ctx context.Context, id, approvalStatus, sellerVisibility string) error {
	args := m.Called(ctx, id, approvalStatus, sellerVisibility)
	return args.Error(0)
}

func (m *mockListingRepository) SetVisibility(ctx context.Context, id, visibility string) error {
	args := m.Called(ctx, id, visibility)
	return args.Error(0)
}

func (m *mockListingRepository) Brands(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockListingRepository) IDsByCatalogEntry(ctx context.Context, entryID string) ([]string, error) {
	args := m.Called(ctx, entryID)
	return args.Get(0).([]string), args.Error(1)
}

type mockTaxonomyRepository struct {
	mock.Mock
}

func (m *mockTaxonomyRepository) ListClassifications(ctx context.Context) ([]domain.Classification, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Classification), args.Error(1)
}

func (m *mockTaxonomyRepository) CreateClassification(ctx context.Context, c *domain.Classification) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockTaxonomyRepository) DeleteClassification(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTaxonomyRepository) ClassificationIDByName(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *mockTaxonomyRepository) ListCategories(ctx context.Context, classificationID string) ([]domain.Category, error) {
	args := m.Called(ctx, classificationID)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockTaxonomyRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockTaxonomyRepository) DeleteCategory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTaxonomyRepository) CategoryIDsByNames(ctx context.Context, names []string) ([]string, error) {
	args := m.Called(ctx, names)
	return args.Get(0).([]string), args.Error(1)
}

type mockPromotionRepository struct {
	mock.Mock
}

func (m *mockPromotionRepository) CreateTemplate(ctx context.Context, tpl *domain.PromotionTemplate) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}

func (m *mockPromotionRepository) GetTemplate(ctx context.Context, id string) (*domain.PromotionTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromotionTemplate), args.Error(1)
}

func (m *mockPromotionRepository) ListTemplates(ctx context.Context, status *string, page, perPage int) ([]domain.PromotionTemplate, int, error) {
	args := m.Called(ctx, status, page, perPage)
	return args.Get(0).([]domain.PromotionTemplate), args.Int(1), args.Error(2)
}

func (m *mockPromotionRepository) UpdateTemplate(ctx context.Context, tpl *domain.PromotionTemplate) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}

func (m *mockPromotionRepository) DeleteTemplate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPromotionRepository) SetTemplateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockPromotionRepository) Create(ctx context.Context, p *domain.Promotion) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPromotionRepository) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Promotion), args.Error(1)
}

func (m *mockPromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Promotion), args.Int(1), args.Error(2)
}

func (m *mockPromotionRepository) Update(ctx context.Context, p *domain.Promotion) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPromotionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPromotionRepository) SetStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockPromotionRepository) ExpireActive(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	args := m.Called(ctx, ids, now)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockPromotionRepository) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockPromotionRepository) Assign(ctx context.Context, promotionID string, listingIDs []string) (int64, error) {
	args := m.Called(ctx, promotionID, listingIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPromotionRepository) Unassign(ctx context.Context, promotionID string, listingIDs []string) (int64, error) {
	args := m.Called(ctx, promotionID, listingIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPromotionRepository) ListAssigned(ctx context.Context, promotionID string) ([]domain.AssignedListing, error) {
	args := m.Called(ctx, promotionID)
	return args.Get(0).([]domain.AssignedListing), args.Error(1)
}

func (m *mockPromotionRepository) AssignedListingIDs(ctx context.Context, promotionID string) ([]string, error) {
	args := m.Called(ctx, promotionID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockPromotionRepository) SetOverride(ctx context.Context, promotionID, listingID string, o repository.Override) error {
	args := m.Called(ctx, promotionID, listingID, o)
	return args.Error(0)
}

func (m *mockPromotionRepository) Available(ctx context.Context, now time.Time) ([]domain.ActivePromotion, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.ActivePromotion), args.Error(1)
}

type mockPurchaseRepository struct {
	mock.Mock
}

func (m *mockPurchaseRepository) Record(ctx context.Context, items []domain.PurchasedItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *mockPurchaseRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PurchasedItem, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]domain.PurchasedItem), args.Error(1)
}

func (m *mockPurchaseRepository) SetOrderStatus(ctx context.Context, orderID, status string) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *mockPurchaseRepository) CancelOrder(ctx context.Context, orderID string) ([]domain.PurchasedItem, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]domain.PurchasedItem), args.Error(1)
}

func (m *mockPurchaseRepository) ReturnItems(ctx context.Context, orderID string, lines []domain.ReturnLine) error {
	args := m.Called(ctx, orderID, lines)
	return args.Error(0)
}

type mockSuggestionRepository struct {
	mock.Mock
}

func (m *mockSuggestionRepository) Create(ctx context.Context, s *domain.Suggestion) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSuggestionRepository) GetByID(ctx context.Context, id string) (*domain.Suggestion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Suggestion), args.Error(1)
}

func (m *mockSuggestionRepository) List(ctx context.Context, filter repository.SuggestionFilter) ([]domain.Suggestion, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Suggestion), args.Int(1), args.Error(2)
}

func (m *mockSuggestionRepository) Update(ctx context.Context, s *domain.Suggestion) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSuggestionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSuggestionRepository) Respond(ctx context.Context, id string, resp domain.SuggestionResponse, entry *domain.CatalogEntry) error {
	args := m.Called(ctx, id, resp, entry)
	return args.Error(0)
}

type mockCatalogRepository struct {
	mock.Mock
}

func (m *mockCatalogRepository) Create(ctx context.Context, entry *domain.CatalogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockCatalogRepository) GetByID(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CatalogEntry), args.Error(1)
}

func (m *mockCatalogRepository) List(ctx context.Context, filter repository.CatalogFilter) ([]domain.CatalogEntry, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.CatalogEntry), args.Int(1), args.Error(2)
}

func (m *mockCatalogRepository) Update(ctx context.Context, entry *domain.CatalogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockCatalogRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCatalogRepository) SetVisibility(ctx context.Context, id, visibility string) error {
	args := m.Called(ctx, id, visibility)
	return args.Error(0)
}

type mockReportRepository struct {
	mock.Mock
}

func (m *mockReportRepository) ListingSales(ctx context.Context, sellerID string, from, to time.Time) ([]domain.ListingSales, error) {
	args := m.Called(ctx, sellerID, from, to)
	return args.Get(0).([]domain.ListingSales), args.Error(1)
}

// --- Fakes ---

// memoryCache is an in-process repository.ListingCache that records deletes.
type memoryCache struct {
	mu      sync.Mutex
	items   map[string]domain.ListingDetail
	gens    map[string]int64
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		items: make(map[string]domain.ListingDetail),
		gens:  make(map[string]int64),
	}
}

func (c *memoryCache) Get(_ context.Context, id string) (*domain.ListingDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.items[id]
	if !ok {
		return nil, apperrors.NotFound("cached listing", id)
	}
	return &d, nil
}

func (c *memoryCache) Generation(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], nil
}

func (c *memoryCache) Set(_ context.Context, detail *domain.ListingDetail, gen int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[detail.Listing.ID] != gen {
		return nil
	}
	c.items[detail.Listing.ID] = *detail
	return nil
}

func (c *memoryCache) Delete(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
		c.gens[id]++
	}
	c.deleted = append(c.deleted, ids...)
	return nil
}

func (c *memoryCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type recordingCleaner struct {
	calls []string
	err   error
}

func (c *recordingCleaner) DeleteByOwner(_ context.Context, ownerType, ownerID string) (int, error) {
	c.calls = append(c.calls, ownerType+"/"+ownerID)
	return 1, c.err
}

// --- Test Helpers ---

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testDeps struct {
	listings   *mockListingRepository
	taxonomy   *mockTaxonomyRepository
	promotions *mockPromotionRepository
	cache      *memoryCache
	publisher  *recordingPublisher
	cleaner    *recordingCleaner
	producer   *event.Producer
	reconciler *Reconciler
}

func newTestDeps() *testDeps {
	logger := newTestLogger()
	d := &testDeps{
		listings:   &mockListingRepository{},
		taxonomy:   &mockTaxonomyRepository{},
		promotions: &mockPromotionRepository{},
		cache:      newMemoryCache(),
		publisher:  &recordingPublisher{},
		cleaner:    &recordingCleaner{},
	}
	d.producer = event.NewProducer(d.publisher, logger)
	d.reconciler = NewReconciler(d.promotions, d.cache, d.producer, logger)
	d.reconciler.now = fixedClock
	return d
}

func (d *testDeps) listingService() *ListingService {
	svc := NewListingService(d.listings, d.taxonomy, d.cache, d.reconciler, d.producer, d.cleaner, newTestLogger())
	svc.now = fixedClock
	return svc
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// sampleDetail returns an approved, customer-visible listing priced at retail.
func sampleDetail(id, retail string, candidates ...domain.PromotionCandidate) domain.ListingDetail {
	return domain.ListingDetail{
		Listing: domain.Listing{
			ID:               id,
			CatalogEntryID:   "entry-1",
			SellerID:         "seller-1",
			SellerName:       "Nha thuoc An Khang",
			CostPrice:        dec("30"),
			RetailPrice:      dec(retail),
			Stock:            10,
			InvoiceURL:       "https://cdn.example.com/invoice.pdf",
			ApprovalStatus:   domain.ApprovalApproved,
			SellerVisibility: domain.StatusActive,
			ReturnPolicy:     map[string]any{},
			CreatedAt:        testNow.Add(-48 * time.Hour),
			UpdatedAt:        testNow.Add(-48 * time.Hour),
		},
		Entry: domain.CatalogEntry{
			ID:                 "entry-1",
			Name:               "Panadol Extra",
			Slug:               "panadol-extra",
			Brand:              "GSK",
			PlatformVisibility: domain.StatusActive,
			Attributes:         map[string]any{},
		},
		Candidates: candidates,
	}
}

// candidate builds an active promotion on the listing running between start
// and end, relative to testNow.
func candidate(id, discountType, value string, start, end time.Duration) domain.PromotionCandidate {
	s, e := testNow.Add(start), testNow.Add(end)
	return domain.PromotionCandidate{
		Promotion: domain.Promotion{
			ID:           id,
			TemplateID:   "tpl-" + id,
			TemplateName: "Sale " + id,
			SellerID:     "seller-1",
			DiscountType: discountType,
			Value:        dec(value),
			StartDate:    &s,
			EndDate:      &e,
			Status:       domain.StatusActive,
			CreatedAt:    testNow.Add(start),
		},
		Assignment: domain.PromotionAssignment{
			ID:          "pa-" + id,
			PromotionID: id,
		},
	}
}
