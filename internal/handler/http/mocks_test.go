package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/repository"
	redisrepo "github.com/utafrali/catalog/internal/repository/redis"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/health"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
	"github.com/utafrali/catalog/pkg/middleware"
)

// ============================================================================
// Mock Repositories
// ============================================================================

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


// ============================================================================
// Test Helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

type noopCleaner struct{}

func (noopCleaner) DeleteByOwner(context.Context, string, string) (int, error) { return 0, nil }

// testServer wires real services over mocked repositories and a miniredis
// backed listing cache behind the production router.
type testServer struct {
	listings    *mockListingRepository
	taxonomy    *mockTaxonomyRepository
	promotions  *mockPromotionRepository
	purchases   *mockPurchaseRepository
	suggestions *mockSuggestionRepository
	catalog     *mockCatalogRepository
	reports     *mockReportRepository
	cache       *redisrepo.ListingCache
	publisher   *recordingPublisher
	redis       *miniredis.Miniredis
	router      http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := testLogger()
	ts := &testServer{
		listings:    &mockListingRepository{},
		taxonomy:    &mockTaxonomyRepository{},
		promotions:  &mockPromotionRepository{},
		purchases:   &mockPurchaseRepository{},
		suggestions: &mockSuggestionRepository{},
		catalog:     &mockCatalogRepository{},
		reports:     &mockReportRepository{},
		cache:       redisrepo.NewListingCache(client, time.Minute),
		publisher:   &recordingPublisher{},
		redis:       mr,
	}

	producer := event.NewProducer(ts.publisher, logger)
	reconciler := service.NewReconciler(ts.promotions, ts.cache, producer, logger)
	listingSvc := service.NewListingService(ts.listings, ts.taxonomy, ts.cache, reconciler, producer, noopCleaner{}, logger)

	svcs := Services{
		Listings:    listingSvc,
		Catalog:     service.NewCatalogService(ts.catalog, ts.listings, ts.cache, producer, noopCleaner{}, logger),
		Promotions:  service.NewPromotionService(ts.promotions, listingSvc, reconciler, logger),
		Suggestions: service.NewSuggestionService(ts.suggestions, producer, noopCleaner{}, logger),
		Purchases:   service.NewPurchaseService(ts.purchases, listingSvc, logger),
		Reports:     service.NewReportService(ts.reports, logger),
		Taxonomy:    service.NewTaxonomyService(ts.taxonomy, logger),
	}
	ts.router = NewRouter(svcs, health.NewHandler(), logger, RouterConfig{CORS: middleware.DefaultCORSConfig()})
	return ts
}

func (ts *testServer) assertExpectations(t *testing.T) {
	t.Helper()
	ts.listings.AssertExpectations(t)
	ts.taxonomy.AssertExpectations(t)
	ts.promotions.AssertExpectations(t)
	ts.purchases.AssertExpectations(t)
	ts.suggestions.AssertExpectations(t)
	ts.catalog.AssertExpectations(t)
	ts.reports.AssertExpectations(t)
}

// do sends a request through the router. A non-nil body is JSON encoded.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

type paginated struct {
	Data       json.RawMessage `json:"data"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalPages int             `json:"total_pages"`
	HasNext    bool            `json:"has_next"`
}

func decodePaginated(t *testing.T, rec *httptest.ResponseRecorder) paginated {
	t.Helper()
	var p paginated
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}
