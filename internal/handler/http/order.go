package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/DeliveryGo/internal/authz"
	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/service"
	"github.com/utafrali/DeliveryGo/pkg/httputil"
	"github.com/utafrali/DeliveryGo/pkg/pagination"
	"github.com/utafrali/DeliveryGo/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orders    *service.OrderService
	addresses *service.AddressService
	logger    *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, addresses *service.AddressService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, addresses: addresses, logger: logger}
}

// --- Request DTOs ---

// OrderItemRequest is one line of CreateOrderRequest.
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=10000"`
}

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	AddressID             string             `json:"address_id" validate:"required,uuid"`
	Items                 []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod         string             `json:"payment_method" validate:"max=50"`
	SpecialInstructions   string             `json:"special_instructions" validate:"max=1000"`
	DeliveryFee           int64              `json:"delivery_fee" validate:"gte=0"`
	EstimatedDeliveryTime *time.Time         `json:"estimated_delivery_time"`
}

// UpdateOrderRequest is the JSON request body for PUT /orders/{id}. Changing
// the status is reserved to admins.
type UpdateOrderRequest struct {
	Status                *string    `json:"status" validate:"omitempty,oneof=pending confirmed preparing delivering delivered cancelled"`
	IsPaid                *bool      `json:"is_paid"`
	PaymentMethod         *string    `json:"payment_method" validate:"omitempty,max=50"`
	SpecialInstructions   *string    `json:"special_instructions" validate:"omitempty,max=1000"`
	DeliveryFee           *int64     `json:"delivery_fee" validate:"omitempty,gte=0"`
	DeliveryTime          *time.Time `json:"delivery_time"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time"`
}

// UpdateStatusRequest is the JSON request body for PATCH /orders/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing delivering delivered cancelled"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders. The order belongs to the owner of
// the delivery address, which must be the caller unless the caller is admin.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	address, err := h.addresses.GetAddress(r.Context(), req.AddressID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := authz.CanAct(actorFrom(r), address.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	items := make([]domain.LineItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.orders.CreateOrder(r.Context(), service.CreateOrderInput{
		UserID:                address.UserID,
		AddressID:             address.ID,
		Items:                 items,
		PaymentMethod:         req.PaymentMethod,
		SpecialInstructions:   req.SpecialInstructions,
		DeliveryFee:           req.DeliveryFee,
		EstimatedDeliveryTime: req.EstimatedDeliveryTime,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders. Filters: status, days (created
// within the last N days) and, for admins, user_id.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	input := service.ListOrdersInput{
		UserID: authz.ScopeUserID(actorFrom(r)),
		Status: q.Get("status"),
		Skip:   params.Skip,
		Limit:  params.Limit,
	}
	if input.UserID == "" {
		userID, ok := httputil.ParseOptionalUUID(w, q.Get("user_id"))
		if !ok {
			return
		}
		input.UserID = userID
	}
	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "days must be a positive integer"},
			})
			return
		}
		input.RecentDays = days
	}

	orders, total, err := h.orders.ListOrders(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, pagination.NewResult(orders, total, params))
}

// GetOrder handles GET /api/v1/orders/{id} and returns the details projection.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	details, err := h.orders.GetOrderDetails(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := authz.CanAct(actorFrom(r), details.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, details)
}

// UpdateOrder handles PUT /api/v1/orders/{id}
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if req.Status != nil {
		if err := authz.RequireAdmin(actorFrom(r)); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	upd := domain.OrderFieldsUpdate{
		IsPaid:                req.IsPaid,
		PaymentMethod:         req.PaymentMethod,
		SpecialInstructions:   req.SpecialInstructions,
		DeliveryFee:           req.DeliveryFee,
		DeliveryTime:          req.DeliveryTime,
		EstimatedDeliveryTime: req.EstimatedDeliveryTime,
	}

	updated, err := h.orders.UpdateOrder(r.Context(), order.ID, req.Status, upd)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, updated)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/{id}/status (admin only)
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), id.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// CancelOrder handles DELETE /api/v1/orders/{id}. The order is kept and moved
// to cancelled.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	cancelled, err := h.orders.CancelOrder(r.Context(), order.ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, cancelled)
}

// loadOwned fetches the order named in the path and checks that the caller
// may act on it. On failure the response is written and ok is false.
func (h *OrderHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return nil, false
	}

	order, err := h.orders.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	if err := authz.CanAct(actorFrom(r), order.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return order, true
}
