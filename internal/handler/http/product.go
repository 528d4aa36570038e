package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/DeliveryGo/internal/authz"
	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/service"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
	"github.com/utafrali/DeliveryGo/pkg/httputil"
	"github.com/utafrali/DeliveryGo/pkg/pagination"
	"github.com/utafrali/DeliveryGo/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	products *service.ProductService
	logger   *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(products *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	Name          string `json:"name" validate:"required,max=255"`
	Description   string `json:"description"`
	Price         int64  `json:"price" validate:"required,gt=0,lte=1000000000000"`
	ImageURL      string `json:"image_url" validate:"omitempty,url"`
	Category      string `json:"category" validate:"max=100"`
	IsAvailable   *bool  `json:"is_available"`
	StockQuantity int    `json:"stock_quantity" validate:"gte=0,lte=2147483647"`
}

// UpdateProductRequest is the JSON request body for updating a product.
type UpdateProductRequest struct {
	Name          *string `json:"name" validate:"omitempty,max=255"`
	Description   *string `json:"description"`
	Price         *int64  `json:"price" validate:"omitempty,gt=0,lte=1000000000000"`
	ImageURL      *string `json:"image_url" validate:"omitempty,url"`
	Category      *string `json:"category" validate:"omitempty,max=100"`
	IsAvailable   *bool   `json:"is_available"`
	StockQuantity *int    `json:"stock_quantity" validate:"omitempty,gte=0,lte=2147483647"`
}

// UpdateStockRequest is the JSON request body for PATCH /products/{id}/stock.
type UpdateStockRequest struct {
	Delta *int `json:"delta" validate:"required,gte=-2147483647,lte=2147483647"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products. Supported filters: category,
// search, available and name (exact match).
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	if name := q.Get("name"); name != "" {
		h.listByName(w, r, name, params)
		return
	}

	input := service.ListProductsInput{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Skip:     params.Skip,
		Limit:    params.Limit,
	}
	if v := q.Get("available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "available must be a boolean"},
			})
			return
		}
		input.AvailableOnly = available
	}

	products, total, err := h.products.ListProducts(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, pagination.NewResult(products, total, params))
}

func (h *ProductHandler) listByName(w http.ResponseWriter, r *http.Request, name string, params pagination.Params) {
	var products []domain.Product
	p, err := h.products.GetProductByName(r.Context(), name)
	switch {
	case err == nil:
		products = append(products, *p)
	case apperrors.HTTPStatus(err) != http.StatusNotFound:
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.NewResult(products, len(products), params))
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.products.GetProduct(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/products (admin only)
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req CreateProductRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.products.CreateProduct(r.Context(), service.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		ImageURL:      req.ImageURL,
		Category:      req.Category,
		IsAvailable:   req.IsAvailable,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/products/{id} (admin only)
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateProductRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), id.String(), service.UpdateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		ImageURL:      req.ImageURL,
		Category:      req.Category,
		IsAvailable:   req.IsAvailable,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/{id} (admin only)
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.products.DeleteProduct(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// UpdateStock handles PATCH /api/v1/products/{id}/stock (admin only)
func (h *ProductHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateStockRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.products.UpdateStock(r.Context(), id.String(), *req.Delta)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}
