package domain

import (
	"errors"
	"math"
	"math/bits"
	"time"
)

// Bounds on order input. MaxItemQuantity fits the INTEGER quantity column and
// MaxProductPrice keeps a single line well inside int64.
const (
	MaxItemQuantity = 10000
	MaxProductPrice = 1_000_000_000_000
)

// ErrAmountOverflow is returned when a line or order total does not fit in int64.
var ErrAmountOverflow = errors.New("order amount overflows")

// OrderItem is one line of an order. UnitPrice is the product price copied at
// creation and never re-read from the product afterwards.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// LineTotal returns quantity × unit price.
func (i *OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// CheckedLineTotal is LineTotal with ErrAmountOverflow instead of wrapping.
// Negative operands are rejected the same way.
func (i *OrderItem) CheckedLineTotal() (int64, error) {
	if i.UnitPrice < 0 || i.Quantity < 0 {
		return 0, ErrAmountOverflow
	}
	hi, lo := bits.Mul64(uint64(i.UnitPrice), uint64(i.Quantity))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrAmountOverflow
	}
	return int64(lo), nil
}

func addAmounts(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// LineItem is a (product, quantity) pair submitted when creating an order.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderTotal sums the line totals of items.
func OrderTotal(items []OrderItem) int64 {
	var total int64
	for i := range items {
		total += items[i].LineTotal()
	}
	return total
}

// OrderDetails is the read-only view returned for a single order: order
// metadata, the delivery address and a per-item breakdown with product names.
type OrderDetails struct {
	OrderID               string             `json:"order_id"`
	UserID                string             `json:"user_id"`
	Status                string             `json:"status"`
	Total                 int64              `json:"total"`
	DeliveryFee           int64              `json:"delivery_fee"`
	IsPaid                bool               `json:"is_paid"`
	PaymentMethod         string             `json:"payment_method,omitempty"`
	SpecialInstructions   string             `json:"special_instructions,omitempty"`
	EstimatedDeliveryTime *time.Time         `json:"estimated_delivery_time,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
	Address               *Address           `json:"address"`
	Items                 []OrderItemDetails `json:"items"`
}

// OrderItemDetails is one line of OrderDetails.
type OrderItemDetails struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalPrice  int64  `json:"total_price"`
}
