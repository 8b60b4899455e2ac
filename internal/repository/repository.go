package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/domain"
)

// Price sort directions accepted by ListingFilter.SortPrice.
const (
	SortPriceAsc  = "asc"
	SortPriceDesc = "desc"
)

// ListingFilter defines filter criteria for listing queries.
type ListingFilter struct {
	Search           *string
	Brand            *string
	SellerID         *string
	ClassificationID *string
	CategoryIDs      []string
	IDs              []string
	ApprovalStatus   *string
	CustomerOnly     bool
	// NotInPromotionAt keeps only listings without a promotion that is
	// active and not yet ended at the given instant.
	NotInPromotionAt *time.Time
	SortPrice        string
	Page             int
	PerPage          int
}

// CatalogFilter defines filter criteria for listing catalog entries.
type CatalogFilter struct {
	Search     *string
	Brand      *string
	Visibility *string
	Page       int
	PerPage    int
}

// PromotionFilter defines filter criteria for listing promotions.
type PromotionFilter struct {
	SellerID *string
	Status   *string
	Page     int
	PerPage  int
}

// SuggestionFilter defines filter criteria for listing suggestions.
type SuggestionFilter struct {
	SellerID       *string
	ApprovalStatus *string
	Page           int
	PerPage        int
}

// Override is the per-listing replacement of a promotion's terms. Nil fields
// fall back to the promotion.
type Override struct {
	Value     *decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
}

// CatalogRepository defines the interface for catalog entry persistence.
type CatalogRepository interface {
	Create(ctx context.Context, entry *domain.CatalogEntry) error
	GetByID(ctx context.Context, id string) (*domain.CatalogEntry, error)
	List(ctx context.Context, filter CatalogFilter) ([]domain.CatalogEntry, int, error)
	Update(ctx context.Context, entry *domain.CatalogEntry) error
	Delete(ctx context.Context, id string) error
	SetVisibility(ctx context.Context, id, visibility string) error
}

// ListingRepository defines the interface for listing persistence. Reads
// return listings joined with their catalog entry and promotion candidates
// in resolution order.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	GetDetail(ctx context.Context, id string) (*domain.ListingDetail, error)
	GetDetails(ctx context.Context, ids []string) ([]domain.ListingDetail, error)
	List(ctx context.Context, filter ListingFilter) ([]domain.ListingDetail, int, error)
	Update(ctx context.Context, listing *domain.Listing) error
	Delete(ctx context.Context, id string) error

	// SetApproval records the review decision together with the seller
	// visibility that follows from it.
	SetApproval(ctx context.Context, id, approvalStatus, sellerVisibility string) error
	SetVisibility(ctx context.Context, id, visibility string) error

	// Brands returns the distinct brands of catalog entries with listings.
	Brands(ctx context.Context) ([]string, error)

	// IDsByCatalogEntry returns the ids of every listing of the entry.
	IDsByCatalogEntry(ctx context.Context, entryID string) ([]string, error)
}

// PromotionRepository defines the interface for promotion templates,
// seller promotions and their listing assignments.
type PromotionRepository interface {
	CreateTemplate(ctx context.Context, tpl *domain.PromotionTemplate) error
	GetTemplate(ctx context.Context, id string) (*domain.PromotionTemplate, error)
	ListTemplates(ctx context.Context, status *string, page, perPage int) ([]domain.PromotionTemplate, int, error)
	UpdateTemplate(ctx context.Context, tpl *domain.PromotionTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	SetTemplateStatus(ctx context.Context, id, status string) error

	Create(ctx context.Context, p *domain.Promotion) error
	GetByID(ctx context.Context, id string) (*domain.Promotion, error)
	List(ctx context.Context, filter PromotionFilter) ([]domain.Promotion, int, error)
	Update(ctx context.Context, p *domain.Promotion) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error

	// ExpireActive flips the given promotions to inactive when they are
	// still active and ended before now. It returns the ids it changed.
	ExpireActive(ctx context.Context, ids []string, now time.Time) ([]string, error)
	// SweepExpired flips every active promotion that ended before now.
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)

	Assign(ctx context.Context, promotionID string, listingIDs []string) (int64, error)
	Unassign(ctx context.Context, promotionID string, listingIDs []string) (int64, error)
	ListAssigned(ctx context.Context, promotionID string) ([]domain.AssignedListing, error)
	AssignedListingIDs(ctx context.Context, promotionID string) ([]string, error)
	SetOverride(ctx context.Context, promotionID, listingID string, o Override) error

	// Available returns active promotions whose window contains now.
	Available(ctx context.Context, now time.Time) ([]domain.ActivePromotion, error)
}

// PurchaseRepository defines the interface for purchased item persistence.
// Every write adjusts listing stock in the same transaction.
type PurchaseRepository interface {
	Record(ctx context.Context, items []domain.PurchasedItem) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.PurchasedItem, error)
	SetOrderStatus(ctx context.Context, orderID, status string) error
	CancelOrder(ctx context.Context, orderID string) ([]domain.PurchasedItem, error)
	ReturnItems(ctx context.Context, orderID string, lines []domain.ReturnLine) error
}

// SuggestionRepository defines the interface for suggestion persistence.
type SuggestionRepository interface {
	Create(ctx context.Context, s *domain.Suggestion) error
	GetByID(ctx context.Context, id string) (*domain.Suggestion, error)
	List(ctx context.Context, filter SuggestionFilter) ([]domain.Suggestion, int, error)
	Update(ctx context.Context, s *domain.Suggestion) error
	Delete(ctx context.Context, id string) error

	// Respond records the decision on a pending suggestion and, when entry
	// is not nil, creates it. Both writes commit together.
	Respond(ctx context.Context, id string, resp domain.SuggestionResponse, entry *domain.CatalogEntry) error
}

// TaxonomyRepository defines the interface for classifications and categories.
type TaxonomyRepository interface {
	ListClassifications(ctx context.Context) ([]domain.Classification, error)
	CreateClassification(ctx context.Context, c *domain.Classification) error
	DeleteClassification(ctx context.Context, id string) error
	ClassificationIDByName(ctx context.Context, name string) (string, error)

	ListCategories(ctx context.Context, classificationID string) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CategoryIDsByNames(ctx context.Context, names []string) ([]string, error)
}

// ReportRepository defines the interface for sales aggregation.
type ReportRepository interface {
	ListingSales(ctx context.Context, sellerID string, from, to time.Time) ([]domain.ListingSales, error)
}

// ListingCache stores listing snapshots keyed by listing id.
type ListingCache interface {
	Get(ctx context.Context, id string) (*domain.ListingDetail, error)
	Generation(ctx context.Context, id string) (int64, error)
	Set(ctx context.Context, detail *domain.ListingDetail, gen int64) error
	Delete(ctx context.Context, ids ...string) error
}
