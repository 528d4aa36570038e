package http

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

// memStore is an in-memory stand-in for the PostgreSQL repositories. One mutex
// serializes every call, which gives each multi-step operation the same
// all-or-nothing behaviour as a transaction.
type memStore struct {
	mu        sync.Mutex
	users     map[string]domain.User
	products  map[string]domain.Product
	addresses map[string]domain.Address
	orders    map[string]domain.Order
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]domain.User),
		products:  make(map[string]domain.Product),
		addresses: make(map[string]domain.Address),
		orders:    make(map[string]domain.Order),
	}
}

func window[T any](items []T, p repository.ListParams) []T {
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	start := min(max(p.Skip, 0), len(items))
	end := min(start+limit, len(items))
	return items[start:end]
}

// --- users ---

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

func (r memUsers) List(_ context.Context, p repository.ListParams) ([]domain.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.User
	for _, u := range r.s.users {
		all = append(all, u)
	}
	slices.SortFunc(all, func(a, b domain.User) int { return strings.Compare(a.Email, b.Email) })
	return window(all, p), len(all), nil
}

func (r memUsers) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return apperrors.NotFound("user", u.ID)
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return apperrors.NotFound("user", id)
	}
	delete(r.s.users, id)
	for aid, a := range r.s.addresses {
		if a.UserID == id {
			delete(r.s.addresses, aid)
		}
	}
	for oid, o := range r.s.orders {
		if o.UserID == id {
			delete(r.s.orders, oid)
		}
	}
	return nil
}

// --- products ---

type memProducts struct{ s *memStore }

func (r memProducts) Create(_ context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.products[p.ID] = *p
	return nil
}

func (r memProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

func (r memProducts) GetByName(_ context.Context, name string) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("product", name)
}

func (r memProducts) List(_ context.Context, f repository.ProductFilter) ([]domain.Product, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Product
	for _, p := range r.s.products {
		if f.Category != nil && p.Category != *f.Category {
			continue
		}
		if f.Search != nil {
			q := strings.ToLower(*f.Search)
			if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
				continue
			}
		}
		if f.AvailableOnly && !p.InStock() {
			continue
		}
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return window(all, f.ListParams), len(all), nil
}

func (r memProducts) Update(_ context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	upd.Apply(&p)
	p.UpdatedAt = time.Now().UTC()
	r.s.products[id] = p
	return &p, nil
}

func (r memProducts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return apperrors.NotFound("product", id)
	}
	for _, o := range r.s.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return apperrors.Validation("product is referenced by existing orders")
			}
		}
	}
	delete(r.s.products, id)
	return nil
}

func (r memProducts) UpdateStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	p.ApplyStockDelta(delta)
	r.s.products[id] = p
	return &p, nil
}

// --- addresses ---

type memAddresses struct{ s *memStore }

func (r memAddresses) Create(_ context.Context, a *domain.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[a.UserID]; !ok {
		return apperrors.NotFound("user", a.UserID)
	}
	if a.IsDefault {
		r.clearDefault(a.UserID)
	}
	r.s.addresses[a.ID] = *a
	return nil
}

func (r memAddresses) clearDefault(userID string) {
	for id, a := range r.s.addresses {
		if a.UserID == userID && a.IsDefault {
			a.IsDefault = false
			r.s.addresses[id] = a
		}
	}
}

func (r memAddresses) GetByID(_ context.Context, id string) (*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.addresses[id]
	if !ok {
		return nil, apperrors.NotFound("address", id)
	}
	return &a, nil
}

func (r memAddresses) List(_ context.Context, f repository.AddressFilter) ([]domain.Address, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Address
	for _, a := range r.s.addresses {
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		all = append(all, a)
	}
	slices.SortFunc(all, func(a, b domain.Address) int { return strings.Compare(a.ID, b.ID) })
	return window(all, f.ListParams), len(all), nil
}

func (r memAddresses) GetDefault(_ context.Context, userID string) (*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.addresses {
		if a.UserID == userID && a.IsDefault {
			return &a, nil
		}
	}
	return nil, apperrors.NotFound("default address", userID)
}

func (r memAddresses) Update(_ context.Context, a *domain.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.addresses[a.ID]
	if !ok {
		return apperrors.NotFound("address", a.ID)
	}
	updated := *a
	updated.IsDefault = existing.IsDefault
	r.s.addresses[a.ID] = updated
	return nil
}

func (r memAddresses) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.addresses[id]; !ok {
		return apperrors.NotFound("address", id)
	}
	delete(r.s.addresses, id)
	return nil
}

func (r memAddresses) SetDefault(_ context.Context, userID, addressID string) (*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	target, ok := r.s.addresses[addressID]
	if !ok || target.UserID != userID {
		return nil, apperrors.NotFound("address", addressID)
	}
	r.clearDefault(userID)
	target.IsDefault = true
	r.s.addresses[addressID] = target
	return &target, nil
}

// --- orders ---

type memOrders struct{ s *memStore }

func (r memOrders) Create(_ context.Context, o *domain.Order, lines []domain.LineItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.addresses[o.AddressID]; !ok {
		return apperrors.NotFound("address", o.AddressID)
	}
	for _, l := range lines {
		p, ok := r.s.products[l.ProductID]
		if !ok {
			o.Items, o.TotalAmount = nil, 0
			return apperrors.NotFound("product", l.ProductID)
		}
		if err := o.AddItem(uuid.NewString(), &p, l.Quantity); err != nil {
			o.Items, o.TotalAmount = nil, 0
			return apperrors.Validation("order total exceeds the maximum amount")
		}
	}
	stored := *o
	stored.Items = slices.Clone(o.Items)
	r.s.orders[o.ID] = stored
	return nil
}

func (r memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return &o, nil
}

func (r memOrders) GetDetails(_ context.Context, id string) (*domain.OrderDetails, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	d := &domain.OrderDetails{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Total:     o.TotalAmount,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if a, ok := r.s.addresses[o.AddressID]; ok {
		d.Address = &a
	}
	for _, it := range o.Items {
		d.Items = append(d.Items, domain.OrderItemDetails{
			ProductID:   it.ProductID,
			ProductName: r.s.products[it.ProductID].Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.LineTotal(),
		})
	}
	return d, nil
}

func (r memOrders) List(_ context.Context, f repository.OrderFilter) ([]domain.Order, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Order
	for _, o := range r.s.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		if f.Since != nil && o.CreatedAt.Before(*f.Since) {
			continue
		}
		all = append(all, o)
	}
	slices.SortFunc(all, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return window(all, f.ListParams), len(all), nil
}

func (r memOrders) TransitionStatus(_ context.Context, id string, decide repository.StatusDecider) (*domain.Order, string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, "", apperrors.NotFound("order", id)
	}
	previous := o.Status
	next, err := decide(&o)
	if err != nil {
		return nil, "", err
	}
	o.Status = next
	r.s.orders[id] = o
	return &o, previous, nil
}

func (r memOrders) UpdateFields(_ context.Context, id string, upd domain.OrderFieldsUpdate, decide repository.StatusDecider) (*domain.Order, string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, "", apperrors.NotFound("order", id)
	}
	previous := o.Status
	if decide != nil {
		next, err := decide(&o)
		if err != nil {
			return nil, "", err
		}
		o.Status = next
	}
	upd.Apply(&o)
	r.s.orders[id] = o
	return &o, previous, nil
}
