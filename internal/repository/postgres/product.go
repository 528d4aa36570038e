package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	"github.com/utafrali/DeliveryGo/pkg/database"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

const productColumns = `id, name, description, price, image_url, category, is_available, stock_quantity, created_at, updated_at`

const (
	insertProductSQL = `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	selectProductByNameSQL = `SELECT ` + productColumns + ` FROM products WHERE name = $1 LIMIT 1`

	updateProductSQL = `
		UPDATE products
		SET name = $1, description = $2, price = $3, image_url = $4, category = $5,
		    is_available = $6, stock_quantity = $7, updated_at = $8
		WHERE id = $9`

	lockProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	lockProductStockSQL = `SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`

	updateProductStockSQL = `
		UPDATE products
		SET stock_quantity = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + productColumns
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateProduct", insertProductSQL)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, insertProductSQL,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.ImageURL,
		p.Category,
		p.IsAvailable,
		p.StockQuantity,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (p *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProductByID", selectProductByIDSQL)
	defer func() { end(err) }()

	p, err = scanProduct(r.pool.QueryRow(ctx, selectProductByIDSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("product", id)
	}
	return p, err
}

// GetByName retrieves the first product with exactly this name.
func (r *ProductRepository) GetByName(ctx context.Context, name string) (p *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProductByName", selectProductByNameSQL)
	defer func() { end(err) }()

	p, err = scanProduct(r.pool.QueryRow(ctx, selectProductByNameSQL, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("product", name)
	}
	return p, err
}

// List returns products matching the filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+escapeLike(*filter.Search)+"%")
		argIndex++
	}

	if filter.AvailableOnly {
		conditions = append(conditions, "is_available AND stock_quantity > 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY name, id
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argIndex, argIndex+1,
	)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	skip, limit := clampList(filter.Skip, filter.Limit)
	args = append(args, limit, skip)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category,
			&p.IsAvailable, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, total, nil
}

// Update locks the product row, applies upd and writes it back in one
// transaction, so concurrent stock adjustments are not overwritten.
func (r *ProductRepository) Update(ctx context.Context, id string, upd domain.ProductUpdate) (p *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateProduct", updateProductSQL)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanProduct(tx.QueryRow(ctx, lockProductSQL, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("product", id)
			}
			return fmt.Errorf("lock product: %w", err)
		}

		upd.Apply(current)
		current.UpdatedAt = time.Now().UTC()
		if _, err := tx.Exec(ctx, updateProductSQL,
			current.Name,
			current.Description,
			current.Price,
			current.ImageURL,
			current.Category,
			current.IsAvailable,
			current.StockQuantity,
			current.UpdatedAt,
			id,
		); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		p = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a product. Products referenced by order items cannot be
// removed and yield a validation error.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteProduct", deleteProductSQL)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Validation("product is referenced by existing orders")
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// UpdateStock adjusts the stock quantity by delta, clamping at zero.
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, delta int) (p *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateProductStock", updateProductStockSQL)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current := domain.Product{ID: id}
		if err := tx.QueryRow(ctx, lockProductStockSQL, id).Scan(&current.StockQuantity); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("product", id)
			}
			return fmt.Errorf("lock product stock: %w", err)
		}
		current.ApplyStockDelta(delta)

		updated, err := scanProduct(tx.QueryRow(ctx, updateProductStockSQL, current.StockQuantity, time.Now().UTC(), id))
		if err != nil {
			return fmt.Errorf("update product stock: %w", err)
		}
		p = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category,
		&p.IsAvailable, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
