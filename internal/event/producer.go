package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog/internal/domain"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
)

// Kafka topic constants for catalog domain events.
const (
	TopicListingCreated         = "ecommerce.catalog.listing_created"
	TopicListingUpdated         = "ecommerce.catalog.listing_updated"
	TopicListingDeleted         = "ecommerce.catalog.listing_deleted"
	TopicListingApprovalChanged = "ecommerce.catalog.listing_approval_changed"
	TopicEntryCreated           = "ecommerce.catalog.entry_created"
	TopicPromotionExpired       = "ecommerce.catalog.promotion_expired"
	TopicPurchaseRecorded       = "ecommerce.catalog.purchase_recorded"
)

// Aggregate type constants.
const (
	AggregateTypeListing   = "listing"
	AggregateTypeEntry     = "catalog_entry"
	AggregateTypePromotion = "promotion"
	AggregateTypeOrder     = "order"
)

// SourceCatalogService identifies events originating from the catalog service.
const SourceCatalogService = "catalog-service"

// Publisher sends an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// ListingData is the payload for listing created and updated events.
type ListingData struct {
	ID               string          `json:"id"`
	CatalogEntryID   string          `json:"catalog_entry_id"`
	SellerID         string          `json:"seller_id"`
	RetailPrice      decimal.Decimal `json:"retail_price"`
	Stock            int             `json:"stock"`
	ApprovalStatus   string          `json:"approval_status"`
	SellerVisibility string          `json:"seller_visibility"`
}

// ListingDeletedData is the payload for a listing_deleted event.
type ListingDeletedData struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
}

// EntryCreatedData is the payload for an entry_created event.
type EntryCreatedData struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	Brand            string `json:"brand"`
	ClassificationID string `json:"classification_id"`
	CategoryID       string `json:"category_id"`
}

// PromotionExpiredData is the payload for a promotion_expired event.
type PromotionExpiredData struct {
	ID        string    `json:"id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// PurchaseRecordedData is the payload for a purchase_recorded event.
type PurchaseRecordedData struct {
	OrderID string                 `json:"order_id"`
	UserID  string                 `json:"user_id"`
	Items   []PurchaseRecordedItem `json:"items"`
}

// PurchaseRecordedItem is one line of a recorded purchase.
type PurchaseRecordedItem struct {
	ListingID  string          `json:"listing_id"`
	SellerID   string          `json:"seller_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Producer publishes catalog domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the catalog service.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

func listingData(l *domain.Listing) ListingData {
	return ListingData{
		ID:               l.ID,
		CatalogEntryID:   l.CatalogEntryID,
		SellerID:         l.SellerID,
		RetailPrice:      l.RetailPrice,
		Stock:            l.Stock,
		ApprovalStatus:   l.ApprovalStatus,
		SellerVisibility: l.SellerVisibility,
	}
}

// PublishListingCreated publishes a listing_created event.
func (p *Producer) PublishListingCreated(ctx context.Context, l *domain.Listing) error {
	return p.publish(ctx, TopicListingCreated, l.ID, AggregateTypeListing, listingData(l))
}

// PublishListingUpdated publishes a listing_updated event.
func (p *Producer) PublishListingUpdated(ctx context.Context, l *domain.Listing) error {
	return p.publish(ctx, TopicListingUpdated, l.ID, AggregateTypeListing, listingData(l))
}

// PublishListingApprovalChanged publishes a listing_approval_changed event.
func (p *Producer) PublishListingApprovalChanged(ctx context.Context, l *domain.Listing) error {
	return p.publish(ctx, TopicListingApprovalChanged, l.ID, AggregateTypeListing, listingData(l))
}

// PublishListingDeleted publishes a listing_deleted event.
func (p *Producer) PublishListingDeleted(ctx context.Context, id, sellerID string) error {
	data := ListingDeletedData{ID: id, SellerID: sellerID}
	return p.publish(ctx, TopicListingDeleted, id, AggregateTypeListing, data)
}

// PublishEntryCreated publishes an entry_created event.
func (p *Producer) PublishEntryCreated(ctx context.Context, e *domain.CatalogEntry) error {
	data := EntryCreatedData{
		ID:               e.ID,
		Name:             e.Name,
		Slug:             e.Slug,
		Brand:            e.Brand,
		ClassificationID: e.ClassificationID,
		CategoryID:       e.CategoryID,
	}
	return p.publish(ctx, TopicEntryCreated, e.ID, AggregateTypeEntry, data)
}

// PublishPromotionExpired publishes one promotion_expired event per id.
// It stops at the first failure.
func (p *Producer) PublishPromotionExpired(ctx context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		data := PromotionExpiredData{ID: id, ExpiredAt: at}
		if err := p.publish(ctx, TopicPromotionExpired, id, AggregateTypePromotion, data); err != nil {
			return err
		}
	}
	return nil
}

// PublishPurchaseRecorded publishes a purchase_recorded event keyed by order.
func (p *Producer) PublishPurchaseRecorded(ctx context.Context, orderID, userID string, items []domain.PurchasedItem) error {
	data := PurchaseRecordedData{
		OrderID: orderID,
		UserID:  userID,
		Items:   make([]PurchaseRecordedItem, len(items)),
	}
	for i, item := range items {
		data.Items[i] = PurchaseRecordedItem{
			ListingID:  item.ListingID,
			SellerID:   item.SellerID,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
		}
	}
	return p.publish(ctx, TopicPurchaseRecorded, orderID, AggregateTypeOrder, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, aggregateID, aggregateType, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
