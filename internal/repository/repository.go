package repository

import (
	"context"
	"time"

	"github.com/utafrali/DeliveryGo/internal/domain"
)

// ListParams bounds a listing query.
type ListParams struct {
	Skip  int
	Limit int
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A duplicate email yields AlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail looks the user up case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	List(ctx context.Context, params ListParams) ([]domain.User, int, error)

	// Update persists the mutable profile fields, flags and password hash.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes the user together with their addresses and orders.
	Delete(ctx context.Context, id string) error
}

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category *string
	// Search matches name or description, case-insensitively.
	Search *string
	// AvailableOnly keeps products that are flagged available and in stock.
	AvailableOnly bool
	ListParams
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByName(ctx context.Context, name string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	Delete(ctx context.Context, id string) error

	// Update applies upd to the product under a row lock and returns the
	// stored product. Unset fields, stock included, keep their current value.
	Update(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error)

	// UpdateStock adds delta to the stock quantity under a row lock, clamping
	// at zero, and returns the updated product.
	UpdateStock(ctx context.Context, id string, delta int) (*domain.Product, error)
}

// AddressFilter defines filter criteria for listing addresses.
type AddressFilter struct {
	UserID *string
	ListParams
}

// AddressRepository defines the interface for address persistence operations.
type AddressRepository interface {
	// Create inserts an address. When it is marked default, the owner's other
	// addresses lose the flag in the same transaction.
	Create(ctx context.Context, address *domain.Address) error

	GetByID(ctx context.Context, id string) (*domain.Address, error)
	List(ctx context.Context, filter AddressFilter) ([]domain.Address, int, error)

	// GetDefault returns the owner's default address or NotFound.
	GetDefault(ctx context.Context, userID string) (*domain.Address, error)

	// Update persists the postal fields. The default flag is managed by
	// SetDefault.
	Update(ctx context.Context, address *domain.Address) error

	Delete(ctx context.Context, id string) error

	// SetDefault locks every address of userID, clears their default flag and
	// sets it on addressID. NotFound if addressID is not one of them.
	SetDefault(ctx context.Context, userID, addressID string) (*domain.Address, error)
}

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID *string
	Status *string
	Since  *time.Time
	ListParams
}

// StatusDecider inspects the locked order and returns the status to store.
// Returning an error aborts the transition without writing.
type StatusDecider func(current *domain.Order) (string, error)

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create prices lines against the current product rows and inserts the
	// order and its items in one transaction. Products are read FOR SHARE; a
	// missing product yields NotFound and nothing is written. On success
	// order.Items and order.TotalAmount are populated.
	Create(ctx context.Context, order *domain.Order, lines []domain.LineItem) error

	// GetByID retrieves an order with its items in line order.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetDetails assembles the order, its address and the per-item
	// breakdown with product names.
	GetDetails(ctx context.Context, id string) (*domain.OrderDetails, error)

	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// TransitionStatus locks the order FOR UPDATE, asks decide for the new
	// status and stores it. It returns the updated order and the status it
	// had before.
	TransitionStatus(ctx context.Context, id string, decide StatusDecider) (*domain.Order, string, error)

	// UpdateFields applies the non-status fields under a row lock. A non-nil
	// decide also picks the status, so both land in the same write. It
	// returns the updated order and the status it had before.
	UpdateFields(ctx context.Context, id string, upd domain.OrderFieldsUpdate, decide StatusDecider) (*domain.Order, string, error)
}
