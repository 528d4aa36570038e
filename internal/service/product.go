package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

// ProductCache is the read-through cache in front of product lookups.
type ProductCache interface {
	Get(ctx context.Context, id string) (*domain.Product, bool)
	Set(ctx context.Context, p *domain.Product)
	Invalidate(ctx context.Context, id string)
}

// StockEvents publishes stock change events.
type StockEvents interface {
	PublishStockUpdated(ctx context.Context, product *domain.Product, delta int) error
}

// ProductService implements the business logic for the product catalogue.
type ProductService struct {
	repo   repository.ProductRepository
	cache  ProductCache
	events StockEvents
	logger *slog.Logger
}

// NewProductService creates a new product service. cache may be nil.
func NewProductService(repo repository.ProductRepository, cache ProductCache, events StockEvents, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		cache:  cache,
		events: events,
		logger: logger,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name          string
	Description   string
	Price         int64
	ImageURL      string
	Category      string
	IsAvailable   *bool
	StockQuantity int
}

// UpdateProductInput holds the parameters for updating a product. Nil fields
// are left unchanged.
type UpdateProductInput struct {
	Name          *string
	Description   *string
	Price         *int64
	ImageURL      *string
	Category      *string
	IsAvailable   *bool
	StockQuantity *int
}

// ListProductsInput holds the filters for listing products.
type ListProductsInput struct {
	Category      string
	Search        string
	AvailableOnly bool
	Skip          int
	Limit         int
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.StockQuantity < 0 {
		return nil, apperrors.Validation("stock_quantity must not be negative")
	}

	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:            uuid.New().String(),
		Name:          name,
		Description:   input.Description,
		Price:         input.Price,
		ImageURL:      input.ImageURL,
		Category:      input.Category,
		IsAvailable:   available,
		StockQuantity: input.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("name", product.Name),
	)

	return product, nil
}

// GetProduct returns a product, serving it from the cache when possible.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(ctx, id); ok {
			return p, nil
		}
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, product)
	}
	return product, nil
}

// GetProductByName looks a product up by its exact name.
func (s *ProductService) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	product, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get product by name: %w", err)
	}
	return product, nil
}

// ListProducts returns one window of products and the total count.
func (s *ProductService) ListProducts(ctx context.Context, input ListProductsInput) ([]domain.Product, int, error) {
	filter := repository.ProductFilter{
		AvailableOnly: input.AvailableOnly,
		ListParams:    repository.ListParams{Skip: input.Skip, Limit: input.Limit},
	}
	if input.Category != "" {
		filter.Category = &input.Category
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		filter.Search = &search
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// UpdateProduct applies the set fields. Existing orders keep their price
// snapshot regardless of a price change here.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input UpdateProductInput) (*domain.Product, error) {
	upd := domain.ProductUpdate{
		Description:   input.Description,
		Price:         input.Price,
		ImageURL:      input.ImageURL,
		Category:      input.Category,
		IsAvailable:   input.IsAvailable,
		StockQuantity: input.StockQuantity,
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.Validation("name must not be empty")
		}
		upd.Name = &name
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
	}
	if input.StockQuantity != nil && *input.StockQuantity < 0 {
		return nil, apperrors.Validation("stock_quantity must not be negative")
	}

	product, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx, product.ID)

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", product.ID))
	return product, nil
}

// DeleteProduct removes a product and returns it. Products referenced by an
// order cannot be deleted.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete product: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return product, nil
}

// UpdateStock adds delta to the stock quantity, clamping at zero. It is the
// only path that changes stock; order creation does not.
func (s *ProductService) UpdateStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	product, err := s.repo.UpdateStock(ctx, id, delta)
	if err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}
	s.invalidate(ctx, id)

	if err := s.events.PublishStockUpdated(ctx, product, delta); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.stock_updated event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product stock updated",
		slog.String("product_id", id),
		slog.Int("delta", delta),
		slog.Int("stock_quantity", product.StockQuantity),
	)
	return product, nil
}

func (s *ProductService) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
}

func validatePrice(price int64) error {
	if price <= 0 {
		return apperrors.Validation("price must be greater than 0")
	}
	if price > domain.MaxProductPrice {
		return apperrors.Validation(fmt.Sprintf("price must not exceed %d", int64(domain.MaxProductPrice)))
	}
	return nil
}
