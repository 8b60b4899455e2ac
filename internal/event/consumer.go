package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
)

// Kafka topics consumed by the catalog service.
const (
	TopicOrderStatusChanged = "ecommerce.order.status_changed"
	TopicOrderCanceled      = "ecommerce.order.canceled"
)

// PurchaseService defines the operations the order consumers drive.
type PurchaseService interface {
	SetOrderStatus(ctx context.Context, orderID, status string) error
	CancelOrder(ctx context.Context, orderID string) error
}

// OrderStatusChangedData is the expected payload of an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderCanceledData is the expected payload of an order.canceled event.
type OrderCanceledData struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// Consumer processes order events for the catalog service.
type Consumer struct {
	logger  *slog.Logger
	service PurchaseService
}

// NewConsumer creates a new order event consumer.
func NewConsumer(service PurchaseService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleOrderStatusChanged mirrors the order status onto its purchased items.
// Statuses with no purchase counterpart are ignored.
func (c *Consumer) HandleOrderStatusChanged(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderStatusChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.status_changed data: %w", err)
	}
	if data.OrderID == "" {
		c.logger.WarnContext(ctx, "order.status_changed without order id",
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	if !domain.IsValidPurchaseStatus(data.NewStatus) {
		c.logger.DebugContext(ctx, "ignoring order status",
			slog.String("order_id", data.OrderID),
			slog.String("new_status", data.NewStatus),
		)
		return nil
	}

	if err := c.service.SetOrderStatus(ctx, data.OrderID, data.NewStatus); err != nil {
		// Orders without catalog purchases are not ours to track.
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("set purchase status for order %s: %w", data.OrderID, err)
	}

	c.logger.InfoContext(ctx, "purchase status updated from order event",
		slog.String("order_id", data.OrderID),
		slog.String("status", data.NewStatus),
	)
	return nil
}

// HandleOrderCanceled removes the order's purchased items and restocks them.
func (c *Consumer) HandleOrderCanceled(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCanceledData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.canceled data: %w", err)
	}
	if data.OrderID == "" {
		c.logger.WarnContext(ctx, "order.canceled without order id",
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	if err := c.service.CancelOrder(ctx, data.OrderID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("cancel purchases for order %s: %w", data.OrderID, err)
	}

	c.logger.InfoContext(ctx, "purchases canceled and restocked",
		slog.String("order_id", data.OrderID),
		slog.String("reason", data.Reason),
	)
	return nil
}
