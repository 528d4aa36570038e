package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/DeliveryGo/internal/domain"
	pkgkafka "github.com/utafrali/DeliveryGo/pkg/kafka"
	"github.com/utafrali/DeliveryGo/pkg/logger"
)

// Kafka topics for delivery domain events.
const (
	TopicOrderCreated        = "delivery.order.created"
	TopicOrderStatusChanged  = "delivery.order.status_changed"
	TopicOrderCancelled      = "delivery.order.cancelled"
	TopicProductStockUpdated = "delivery.product.stock_updated"
)

// Aggregate types.
const (
	AggregateTypeOrder   = "order"
	AggregateTypeProduct = "product"
)

// Source identifies events emitted by this API.
const Source = "delivery-api"

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AddressID   string          `json:"address_id"`
	Status      string          `json:"status"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderItemData is one line of OrderCreatedData.
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderCancelledData is the payload for an order.cancelled event.
type OrderCancelledData struct {
	OrderID        string `json:"order_id"`
	PreviousStatus string `json:"previous_status"`
}

// StockUpdatedData is the payload for a product.stock_updated event.
type StockUpdatedData struct {
	ProductID     string `json:"product_id"`
	Delta         int    `json:"delta"`
	StockQuantity int    `json:"stock_quantity"`
}

// Publisher is the part of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes delivery domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishOrderCreated publishes an order.created event with the priced lines.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	return p.publish(ctx, TopicOrderCreated, order.ID, AggregateTypeOrder, OrderCreatedData{
		ID:          order.ID,
		UserID:      order.UserID,
		AddressID:   order.AddressID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Items:       items,
	})
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error {
	return p.publish(ctx, TopicOrderStatusChanged, orderID, AggregateTypeOrder, OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
}

// PublishOrderCancelled publishes an order.cancelled event.
func (p *Producer) PublishOrderCancelled(ctx context.Context, orderID, previousStatus string) error {
	return p.publish(ctx, TopicOrderCancelled, orderID, AggregateTypeOrder, OrderCancelledData{
		OrderID:        orderID,
		PreviousStatus: previousStatus,
	})
}

// PublishStockUpdated publishes a product.stock_updated event.
func (p *Producer) PublishStockUpdated(ctx context.Context, product *domain.Product, delta int) error {
	return p.publish(ctx, TopicProductStockUpdated, product.ID, AggregateTypeProduct, StockUpdatedData{
		ProductID:     product.ID,
		Delta:         delta,
		StockQuantity: product.StockQuantity,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.CorrelationID = logger.CorrelationIDFromContext(ctx)

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
