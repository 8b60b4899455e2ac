package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type recordingPublisher struct {
	sent []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, event: event})
	return nil
}

func TestProducer_PublishListingCreated(t *testing.T) {
	pub := &recordingPublisher{}
	producer := NewProducer(pub, newTestLogger())

	l := &domain.Listing{
		ID:             "listing-1",
		CatalogEntryID: "entry-1",
		SellerID:       "seller-1",
		RetailPrice:    decimal.RequireFromString("49.90"),
		Stock:          3,
		ApprovalStatus: domain.ApprovalPending,
	}
	require.NoError(t, producer.PublishListingCreated(context.Background(), l))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicListingCreated, pub.sent[0].topic)
	assert.Equal(t, "listing-1", pub.sent[0].event.AggregateID)
	assert.Equal(t, SourceCatalogService, pub.sent[0].event.Source)

	var data ListingData
	require.NoError(t, json.Unmarshal(pub.sent[0].event.Data, &data))
	assert.Equal(t, "entry-1", data.CatalogEntryID)
	assert.True(t, l.RetailPrice.Equal(data.RetailPrice))
}

func TestProducer_PublishPromotionExpired_OnePerID(t *testing.T) {
	pub := &recordingPublisher{}
	producer := NewProducer(pub, newTestLogger())
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, producer.PublishPromotionExpired(context.Background(), []string{"p-1", "p-2"}, at))

	require.Len(t, pub.sent, 2)
	assert.Equal(t, "p-2", pub.sent[1].event.AggregateID)
	assert.Equal(t, TopicPromotionExpired, pub.sent[1].topic)
}

func TestProducer_PublishPurchaseRecorded(t *testing.T) {
	pub := &recordingPublisher{}
	producer := NewProducer(pub, newTestLogger())

	items := []domain.PurchasedItem{
		{ListingID: "listing-1", SellerID: "seller-1", Quantity: 2, TotalPrice: decimal.NewFromInt(90)},
		{ListingID: "listing-2", SellerID: "seller-2", Quantity: 1, TotalPrice: decimal.NewFromInt(15)},
	}
	require.NoError(t, producer.PublishPurchaseRecorded(context.Background(), "order-1", "user-1", items))

	require.Len(t, pub.sent, 1)
	var data PurchaseRecordedData
	require.NoError(t, json.Unmarshal(pub.sent[0].event.Data, &data))
	assert.Equal(t, "order-1", data.OrderID)
	require.Len(t, data.Items, 2)
	assert.Equal(t, "seller-2", data.Items[1].SellerID)
}

func TestProducer_PublishError(t *testing.T) {
	producer := NewProducer(&recordingPublisher{err: errors.New("broker down")}, newTestLogger())

	err := producer.PublishListingDeleted(context.Background(), "listing-1", "seller-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicListingDeleted)
}
