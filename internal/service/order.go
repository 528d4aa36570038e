package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

// OrderEvents publishes order lifecycle events.
type OrderEvents interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error
	PublishOrderCancelled(ctx context.Context, orderID, previousStatus string) error
}

// OrderService implements the order workflow: pricing and creation, status
// transitions and the details projection.
type OrderService struct {
	repo    repository.OrderRepository
	events  OrderEvents
	metrics *OrderMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, events OrderEvents, metrics *OrderMetrics, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:    repo,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderInput holds the parameters for creating an order. AddressID is
// taken as given; the caller checks that it belongs to UserID.
type CreateOrderInput struct {
	UserID                string
	AddressID             string
	Items                 []domain.LineItem
	PaymentMethod         string
	SpecialInstructions   string
	DeliveryFee           int64
	EstimatedDeliveryTime *time.Time
}

// CreateOrder prices every line against the current product price and stores
// the order with its items atomically. A missing product yields NotFound and
// nothing is persisted. Stock is left untouched.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if input.UserID == "" {
		return nil, apperrors.Validation("user_id is required")
	}
	if input.AddressID == "" {
		return nil, apperrors.Validation("address_id is required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.Validation("order must contain at least one item")
	}
	for i, item := range input.Items {
		if item.ProductID == "" {
			return nil, apperrors.Validation(fmt.Sprintf("items[%d].product_id is required", i))
		}
		if item.Quantity <= 0 {
			return nil, apperrors.Validation(fmt.Sprintf("items[%d].quantity must be greater than 0", i))
		}
		if item.Quantity > domain.MaxItemQuantity {
			return nil, apperrors.Validation(fmt.Sprintf("items[%d].quantity must not exceed %d", i, domain.MaxItemQuantity))
		}
	}
	if input.DeliveryFee < 0 {
		return nil, apperrors.Validation("delivery_fee must not be negative")
	}

	now := s.now()
	order := &domain.Order{
		ID:                    uuid.New().String(),
		UserID:                input.UserID,
		AddressID:             input.AddressID,
		Status:                domain.OrderStatusPending,
		DeliveryFee:           input.DeliveryFee,
		PaymentMethod:         input.PaymentMethod,
		SpecialInstructions:   input.SpecialInstructions,
		EstimatedDeliveryTime: input.EstimatedDeliveryTime,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Create(ctx, order, input.Items); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.metrics.ordersCreated.Inc()
	s.metrics.orderValue.Observe(float64(order.TotalAmount))

	if err := s.events.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.Int("items", len(order.Items)),
		slog.Int64("total_amount", order.TotalAmount),
	)

	return order, nil
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// GetOrderDetails returns the order, its address and the per-item breakdown.
func (s *OrderService) GetOrderDetails(ctx context.Context, id string) (*domain.OrderDetails, error) {
	details, err := s.repo.GetDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order details: %w", err)
	}
	return details, nil
}

// ListOrdersInput holds the filters for listing orders. RecentDays > 0 keeps
// orders created within that many days.
type ListOrdersInput struct {
	UserID     string
	Status     string
	RecentDays int
	Skip       int
	Limit      int
}

// ListOrders returns one window of orders and the total count.
func (s *OrderService) ListOrders(ctx context.Context, input ListOrdersInput) ([]domain.Order, int, error) {
	filter := repository.OrderFilter{
		ListParams: repository.ListParams{Skip: input.Skip, Limit: input.Limit},
	}
	if input.UserID != "" {
		filter.UserID = &input.UserID
	}
	if input.Status != "" {
		if !domain.IsValidStatus(input.Status) {
			return nil, 0, apperrors.Validation(fmt.Sprintf("invalid order status: %s", input.Status))
		}
		filter.Status = &input.Status
	}
	if input.RecentDays < 0 {
		return nil, 0, apperrors.Validation("days must not be negative")
	}
	if input.RecentDays > 0 {
		since := s.now().AddDate(0, 0, -input.RecentDays)
		filter.Since = &since
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// CancelOrder moves the order to cancelled. Delivered orders are rejected with
// InvalidTransition; cancelling a cancelled order succeeds without a write.
func (s *OrderService) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, previous, err := s.repo.TransitionStatus(ctx, id, func(current *domain.Order) (string, error) {
		if !current.CanCancel() {
			return "", apperrors.InvalidTransition(current.Status, domain.OrderStatusCancelled)
		}
		return domain.OrderStatusCancelled, nil
	})
	if err != nil {
		s.countRejected(err, domain.OrderStatusCancelled)
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if previous == order.Status {
		return order, nil
	}
	s.metrics.transitions.WithLabelValues(previous, order.Status).Inc()

	if err := s.events.PublishOrderCancelled(ctx, order.ID, previous); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.cancelled event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order cancelled",
		slog.String("order_id", order.ID),
		slog.String("previous_status", previous),
	)

	return order, nil
}

// UpdateOrderStatus sets a new status. Delivered and cancelled orders keep
// their status; every other status accepts any valid target, forward skips
// included.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	if !domain.IsValidStatus(status) {
		return nil, apperrors.Validation(fmt.Sprintf("invalid order status: %s", status))
	}

	order, previous, err := s.repo.TransitionStatus(ctx, id, transitionTo(status))
	if err != nil {
		s.countRejected(err, status)
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.recordTransition(ctx, order, previous)
	return order, nil
}

// UpdateOrder applies an optional status change together with field edits.
// Both are written under one row lock, so a rejected transition leaves the
// fields untouched too.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, status *string, upd domain.OrderFieldsUpdate) (*domain.Order, error) {
	if upd.DeliveryFee != nil && *upd.DeliveryFee < 0 {
		return nil, apperrors.Validation("delivery_fee must not be negative")
	}
	if status == nil && upd.IsEmpty() {
		return s.GetOrder(ctx, id)
	}

	var decide repository.StatusDecider
	if status != nil {
		if !domain.IsValidStatus(*status) {
			return nil, apperrors.Validation(fmt.Sprintf("invalid order status: %s", *status))
		}
		decide = transitionTo(*status)
	}

	order, previous, err := s.repo.UpdateFields(ctx, id, upd, decide)
	if err != nil {
		if status != nil {
			s.countRejected(err, *status)
		}
		return nil, fmt.Errorf("update order: %w", err)
	}

	s.recordTransition(ctx, order, previous)
	if !upd.IsEmpty() {
		s.logger.InfoContext(ctx, "order updated", slog.String("order_id", order.ID))
	}
	return order, nil
}

func transitionTo(status string) repository.StatusDecider {
	return func(current *domain.Order) (string, error) {
		if !current.CanTransitionTo(status) {
			return "", apperrors.InvalidTransition(current.Status, status)
		}
		return status, nil
	}
}

// recordTransition counts and publishes a status change. Unchanged statuses
// are ignored.
func (s *OrderService) recordTransition(ctx context.Context, order *domain.Order, previous string) {
	if previous == order.Status {
		return
	}
	s.metrics.transitions.WithLabelValues(previous, order.Status).Inc()

	if err := s.events.PublishOrderStatusChanged(ctx, order.ID, previous, order.Status); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("old_status", previous),
		slog.String("new_status", order.Status),
	)
}

func (s *OrderService) countRejected(err error, target string) {
	if errors.Is(err, apperrors.ErrInvalidTransition) {
		s.metrics.rejected.WithLabelValues(target).Inc()
	}
}
