package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
)

// --- Mock Repositories ---

type mockOrderRepository struct {
	mock.Mock
}

// Create simulates pricing against the product prices passed via Return: the
// second Return value is a map of product ID to price.
func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order, lines []domain.LineItem) error {
	args := m.Called(ctx, order, lines)
	if err := args.Error(0); err != nil {
		return err
	}
	if prices, ok := args.Get(1).(map[string]int64); ok {
		for i, l := range lines {
			if err := order.AddItem(fmt.Sprintf("item-%d", i), &domain.Product{ID: l.ProductID, Price: prices[l.ProductID]}, l.Quantity); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetDetails(ctx context.Context, id string) (*domain.OrderDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderDetails), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

// TransitionStatus runs decide against the order passed via Return and
// mutates it in place, so consecutive calls observe earlier transitions.
func (m *mockOrderRepository) TransitionStatus(ctx context.Context, id string, decide repository.StatusDecider) (*domain.Order, string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, "", args.Error(1)
	}
	current := args.Get(0).(*domain.Order)
	previous := current.Status
	next, err := decide(current)
	if err != nil {
		return nil, "", err
	}
	current.Status = next
	return current, previous, nil
}

// UpdateFields returns the order passed via Return after running decide on
// it, mirroring TransitionStatus.
func (m *mockOrderRepository) UpdateFields(ctx context.Context, id string, upd domain.OrderFieldsUpdate, decide repository.StatusDecider) (*domain.Order, string, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, "", args.Error(1)
	}
	current := args.Get(0).(*domain.Order)
	previous := current.Status
	if decide != nil {
		next, err := decide(current)
		if err != nil {
			return nil, "", err
		}
		current.Status = next
	}
	return current, previous, args.Error(1)
}

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProductRepository) UpdateStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	args := m.Called(ctx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type mockAddressRepository struct {
	mock.Mock
}

func (m *mockAddressRepository) Create(ctx context.Context, a *domain.Address) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAddressRepository) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *mockAddressRepository) List(ctx context.Context, filter repository.AddressFilter) ([]domain.Address, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Address), args.Int(1), args.Error(2)
}

func (m *mockAddressRepository) GetDefault(ctx context.Context, userID string) (*domain.Address, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *mockAddressRepository) Update(ctx context.Context, a *domain.Address) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAddressRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAddressRepository) SetDefault(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	args := m.Called(ctx, userID, addressID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, params repository.ListParams) ([]domain.User, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

func (m *mockUserRepository) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Collaborators ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockEvents) PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error {
	args := m.Called(ctx, orderID, oldStatus, newStatus)
	return args.Error(0)
}

func (m *mockEvents) PublishOrderCancelled(ctx context.Context, orderID, previousStatus string) error {
	args := m.Called(ctx, orderID, previousStatus)
	return args.Error(0)
}

func (m *mockEvents) PublishStockUpdated(ctx context.Context, product *domain.Product, delta int) error {
	args := m.Called(ctx, product, delta)
	return args.Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, id string) (*domain.Product, bool) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.Product), args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, p *domain.Product) {
	m.Called(ctx, p)
}

func (m *mockCache) Invalidate(ctx context.Context, id string) {
	m.Called(ctx, id)
}

type stubIssuer struct {
	token string
	err   error
}

func (s stubIssuer) Issue(userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token + ":" + userID, nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}
