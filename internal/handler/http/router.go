package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/health"
	"github.com/utafrali/catalog/pkg/middleware"
)

// brandsMaxAge is the client cache lifetime of the brand list.
const brandsMaxAge = 5 * time.Minute

// Services groups the application services exposed over HTTP.
type Services struct {
	Listings    *service.ListingService
	Catalog     *service.CatalogService
	Promotions  *service.PromotionService
	Suggestions *service.SuggestionService
	Purchases   *service.PurchaseService
	Reports     *service.ReportService
	Taxonomy    *service.TaxonomyService
}

// RouterConfig holds the transport-level settings of the router.
type RouterConfig struct {
	PprofCIDRs []string
	CORS       middleware.CORSConfig
}

// NewRouter creates a chi router with all catalog service routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("catalog"))
	r.Use(middleware.Tracing("catalog"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireJSON)

		mountListings(r, NewListingHandler(svcs.Listings, logger))
		mountCatalog(r, NewCatalogHandler(svcs.Catalog, logger))
		mountPromotions(r, NewPromotionHandler(svcs.Promotions, logger))
		mountSuggestions(r, NewSuggestionHandler(svcs.Suggestions, logger))
		mountPurchases(r, NewPurchaseHandler(svcs.Purchases, logger))
		mountTaxonomy(r, NewTaxonomyHandler(svcs.Taxonomy, logger))

		reports := NewReportHandler(svcs.Reports, logger)
		r.Get("/reports/listings", reports.ListingReport)
	})

	return r
}

func mountListings(r chi.Router, h *ListingHandler) {
	r.Route("/listings", func(r chi.Router) {
		r.Get("/", h.ListListings)
		r.Post("/", h.CreateListing)
		r.Post("/by-categories", h.ListByCategories)
		r.With(middleware.CacheControl(brandsMaxAge)).Get("/brands", h.ListBrands)
		r.Post("/by-ids", h.GetByIDs)
		r.Post("/check-stock", h.CheckStock)
		r.Get("/{id}", h.GetListing)
		r.Get("/{id}/customer", h.GetCustomerListing)
		r.Put("/{id}", h.UpdateListing)
		r.Delete("/{id}", h.DeleteListing)
		r.Put("/{id}/approval", h.SetApproval)
		r.Put("/{id}/visibility", h.SetVisibility)
	})
}

func mountCatalog(r chi.Router, h *CatalogHandler) {
	r.Route("/catalog-entries", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Post("/", h.CreateEntry)
		r.Get("/{id}", h.GetEntry)
		r.Put("/{id}", h.UpdateEntry)
		r.Delete("/{id}", h.DeleteEntry)
		r.Put("/{id}/visibility", h.SetVisibility)
	})
}

func mountPromotions(r chi.Router, h *PromotionHandler) {
	r.Route("/promotion-templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Post("/", h.CreateTemplate)
		r.Get("/{id}", h.GetTemplate)
		r.Put("/{id}", h.UpdateTemplate)
		r.Delete("/{id}", h.DeleteTemplate)
		r.Put("/{id}/status", h.SetTemplateStatus)
	})

	r.Route("/promotions", func(r chi.Router) {
		r.Get("/", h.ListPromotions)
		r.Post("/", h.CreatePromotion)
		r.Get("/available", h.Available)
		r.Get("/available/listings", h.AvailableListings)
		r.Get("/not-in-promotion", h.NotInPromotion)
		r.Get("/{id}", h.GetPromotion)
		r.Put("/{id}", h.UpdatePromotion)
		r.Delete("/{id}", h.DeletePromotion)
		r.Put("/{id}/status", h.SetPromotionStatus)
		r.Post("/{id}/listings", h.AssignListings)
		r.Delete("/{id}/listings", h.UnassignListings)
		r.Get("/{id}/listings", h.ListAssigned)
		r.Put("/{id}/listings/custom", h.SetOverride)
	})
}

func mountSuggestions(r chi.Router, h *SuggestionHandler) {
	r.Route("/suggestions", func(r chi.Router) {
		r.Get("/", h.ListSuggestions)
		r.Post("/", h.CreateSuggestion)
		r.Get("/{id}", h.GetSuggestion)
		r.Put("/{id}", h.UpdateSuggestion)
		r.Delete("/{id}", h.DeleteSuggestion)
		r.Put("/{id}/response", h.Respond)
	})
}

func mountPurchases(r chi.Router, h *PurchaseHandler) {
	r.Route("/purchases", func(r chi.Router) {
		r.Post("/", h.RecordPurchase)
		r.Put("/status", h.SetOrderStatus)
		r.Get("/orders/{orderId}", h.GetOrder)
		r.Delete("/orders/{orderId}", h.CancelOrder)
		r.Put("/orders/{orderId}/return", h.ReturnItems)
	})
}

func mountTaxonomy(r chi.Router, h *TaxonomyHandler) {
	r.Route("/classifications", func(r chi.Router) {
		r.Get("/", h.ListClassifications)
		r.Post("/", h.CreateClassification)
		r.Delete("/categories/{id}", h.DeleteCategory)
		r.Delete("/{id}", h.DeleteClassification)
		r.Get("/{id}/categories", h.ListCategories)
		r.Post("/{id}/categories", h.CreateCategory)
	})
}
