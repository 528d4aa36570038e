package domain

import (
	"slices"
	"time"
)

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusPreparing  = "preparing"
	OrderStatusDelivering = "delivering"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order is a customer order. TotalAmount and item unit prices are fixed when
// the order is created.
type Order struct {
	ID                    string      `json:"id"`
	UserID                string      `json:"user_id"`
	AddressID             string      `json:"address_id"`
	Status                string      `json:"status"`
	TotalAmount           int64       `json:"total_amount"`
	DeliveryFee           int64       `json:"delivery_fee"`
	IsPaid                bool        `json:"is_paid"`
	PaymentMethod         string      `json:"payment_method,omitempty"`
	SpecialInstructions   string      `json:"special_instructions,omitempty"`
	DeliveryTime          *time.Time  `json:"delivery_time,omitempty"`
	EstimatedDeliveryTime *time.Time  `json:"estimated_delivery_time,omitempty"`
	Items                 []OrderItem `json:"items"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// ValidStatuses returns every order status in lifecycle order.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusDelivering,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), status)
}

// IsTerminalStatus reports whether status is delivered or cancelled.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// CanCancel reports whether the order may move to cancelled. Everything except
// a delivered order can, including an already cancelled one.
func (o *Order) CanCancel() bool {
	return o.Status != OrderStatusDelivered
}

// CanTransitionTo reports whether UpdateOrderStatus may set target.
// Terminal statuses only accept themselves; any other status accepts any
// valid target, so forward skips such as pending -> delivering are allowed.
func (o *Order) CanTransitionTo(target string) bool {
	if !IsValidStatus(target) {
		return false
	}
	if IsTerminalStatus(o.Status) {
		return target == o.Status
	}
	return true
}

// NextStatus returns the next status in the regular delivery progression
// pending -> confirmed -> preparing -> delivering -> delivered, or "" for
// terminal statuses.
func NextStatus(status string) string {
	switch status {
	case OrderStatusPending:
		return OrderStatusConfirmed
	case OrderStatusConfirmed:
		return OrderStatusPreparing
	case OrderStatusPreparing:
		return OrderStatusDelivering
	case OrderStatusDelivering:
		return OrderStatusDelivered
	default:
		return ""
	}
}

// OrderFieldsUpdate carries the mutable, non-status order fields. Nil fields
// are left unchanged.
type OrderFieldsUpdate struct {
	IsPaid                *bool
	PaymentMethod         *string
	SpecialInstructions   *string
	DeliveryTime          *time.Time
	EstimatedDeliveryTime *time.Time
	DeliveryFee           *int64
}

// IsEmpty reports whether no field is set.
func (u OrderFieldsUpdate) IsEmpty() bool {
	return u.IsPaid == nil && u.PaymentMethod == nil && u.SpecialInstructions == nil &&
		u.DeliveryTime == nil && u.EstimatedDeliveryTime == nil && u.DeliveryFee == nil
}

// Apply copies the set fields onto o.
func (u OrderFieldsUpdate) Apply(o *Order) {
	if u.IsPaid != nil {
		o.IsPaid = *u.IsPaid
	}
	if u.PaymentMethod != nil {
		o.PaymentMethod = *u.PaymentMethod
	}
	if u.SpecialInstructions != nil {
		o.SpecialInstructions = *u.SpecialInstructions
	}
	if u.DeliveryTime != nil {
		o.DeliveryTime = u.DeliveryTime
	}
	if u.EstimatedDeliveryTime != nil {
		o.EstimatedDeliveryTime = u.EstimatedDeliveryTime
	}
	if u.DeliveryFee != nil {
		o.DeliveryFee = *u.DeliveryFee
	}
}

// AddItem appends a line for p, snapshotting its current price, and adds the
// line total to TotalAmount. On ErrAmountOverflow the order is left unchanged.
func (o *Order) AddItem(itemID string, p *Product, quantity int) error {
	item := OrderItem{
		ID:        itemID,
		OrderID:   o.ID,
		ProductID: p.ID,
		Quantity:  quantity,
		UnitPrice: p.Price,
	}
	line, err := item.CheckedLineTotal()
	if err != nil {
		return err
	}
	total, err := addAmounts(o.TotalAmount, line)
	if err != nil {
		return err
	}
	o.Items = append(o.Items, item)
	o.TotalAmount = total
	return nil
}
