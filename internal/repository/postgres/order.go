package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	"github.com/utafrali/DeliveryGo/pkg/database"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

const orderColumns = `id, user_id, address_id, status, total_amount, delivery_fee, is_paid, payment_method, special_instructions, delivery_time, estimated_delivery_time, created_at, updated_at`

const (
	selectProductPriceSQL = `SELECT id, price FROM products WHERE id = $1 FOR SHARE`

	insertOrderSQL = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertOrderItemSQL = `
		INSERT INTO order_items (id, order_id, product_id, position, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lockOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	selectOrderItemsSQL = `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`

	selectOrderItemsBatchSQL = `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	updateOrderStatusSQL = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	updateOrderFieldsSQL = `
		UPDATE orders
		SET is_paid = $1, payment_method = $2, special_instructions = $3, delivery_time = $4,
		    estimated_delivery_time = $5, delivery_fee = $6, status = $7, updated_at = $8
		WHERE id = $9`

	selectOrderDetailsSQL = `
		SELECT o.id, o.user_id, o.status, o.total_amount, o.delivery_fee, o.is_paid,
		       o.payment_method, o.special_instructions, o.estimated_delivery_time,
		       o.created_at, o.updated_at,
		       a.id, a.user_id, a.street, a.city, a.state, a.postal_code, a.country,
		       a.apartment, a.floor, a.entrance, a.notes, a.is_default, a.created_at
		FROM orders o
		JOIN addresses a ON a.id = o.address_id
		WHERE o.id = $1`

	selectOrderItemDetailsSQL = `
		SELECT oi.product_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.position`
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create prices every line from the current product row and inserts the order
// and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order, lines []domain.LineItem) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", insertOrderSQL)
	defer func() { end(err) }()

	o.Items = make([]domain.OrderItem, 0, len(lines))
	o.TotalAmount = 0

	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, line := range lines {
			var p domain.Product
			if err := tx.QueryRow(ctx, selectProductPriceSQL, line.ProductID).Scan(&p.ID, &p.Price); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NotFound("product", line.ProductID)
				}
				return fmt.Errorf("load product %s: %w", line.ProductID, err)
			}
			if err := o.AddItem(uuid.NewString(), &p, line.Quantity); err != nil {
				if errors.Is(err, domain.ErrAmountOverflow) {
					return apperrors.Validation("order total exceeds the maximum amount")
				}
				return err
			}
		}

		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID,
			o.UserID,
			o.AddressID,
			o.Status,
			o.TotalAmount,
			o.DeliveryFee,
			o.IsPaid,
			o.PaymentMethod,
			o.SpecialInstructions,
			o.DeliveryTime,
			o.EstimatedDeliveryTime,
			o.CreatedAt,
			o.UpdatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.NotFound("address", o.AddressID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range o.Items {
			if _, err := tx.Exec(ctx, insertOrderItemSQL,
				item.ID,
				item.OrderID,
				item.ProductID,
				i,
				item.Quantity,
				item.UnitPrice,
			); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		o.Items = nil
		o.TotalAmount = 0
		return err
	}
	return nil
}

// GetByID retrieves an order by its ID, including its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrderByID", selectOrderByIDSQL)
	defer func() { end(err) }()

	o, err = scanOrder(r.pool.QueryRow(ctx, selectOrderByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, err
	}

	if o.Items, err = loadOrderItems(ctx, r.pool, id); err != nil {
		return nil, err
	}
	return o, nil
}

// GetDetails assembles the read-only order projection.
func (r *OrderRepository) GetDetails(ctx context.Context, id string) (d *domain.OrderDetails, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrderDetails", selectOrderDetailsSQL)
	defer func() { end(err) }()

	d = &domain.OrderDetails{Address: &domain.Address{}}
	a := d.Address
	err = r.pool.QueryRow(ctx, selectOrderDetailsSQL, id).Scan(
		&d.OrderID, &d.UserID, &d.Status, &d.Total, &d.DeliveryFee, &d.IsPaid,
		&d.PaymentMethod, &d.SpecialInstructions, &d.EstimatedDeliveryTime,
		&d.CreatedAt, &d.UpdatedAt,
		&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.PostalCode, &a.Country,
		&a.Apartment, &a.Floor, &a.Entrance, &a.Notes, &a.IsDefault, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order details: %w", err)
	}

	rows, err := r.pool.Query(ctx, selectOrderItemDetailsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("query order item details: %w", err)
	}
	defer rows.Close()

	d.Items = make([]domain.OrderItemDetails, 0)
	for rows.Next() {
		var it domain.OrderItemDetails
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item details: %w", err)
		}
		it.TotalPrice = it.UnitPrice * int64(it.Quantity)
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item details: %w", err)
	}
	return d, nil
}

// List returns orders matching the given filter with the total count, newest
// first.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) (orders []domain.Order, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.Since)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	defer func() { end(err) }()

	skip, limit := clampList(filter.Skip, filter.Limit)
	args = append(args, limit, skip)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders = make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.AddressID, &o.Status, &o.TotalAmount, &o.DeliveryFee,
			&o.IsPaid, &o.PaymentMethod, &o.SpecialInstructions, &o.DeliveryTime,
			&o.EstimatedDeliveryTime, &o.CreatedAt, &o.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	rows.Close()

	if len(orders) == 0 {
		return orders, total, nil
	}

	// Batch-load items for all orders in a single query.
	orderIDs := make([]string, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	itemRows, err := r.pool.Query(ctx, selectOrderItemsBatchSQL, orderIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("batch load order items: %w", err)
	}
	defer itemRows.Close()

	itemsByOrderID := make(map[string][]domain.OrderItem, len(orders))
	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, 0, fmt.Errorf("scan order item: %w", err)
		}
		itemsByOrderID[item.OrderID] = append(itemsByOrderID[item.OrderID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate batch order item rows: %w", err)
	}

	for i := range orders {
		if items, ok := itemsByOrderID[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return orders, total, nil
}

// TransitionStatus locks the order row, lets decide pick the new status and
// stores it. An unchanged status is not rewritten.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, decide repository.StatusDecider) (o *domain.Order, previous string, err error) {
	ctx, end := database.TraceQuery(ctx, "TransitionOrderStatus", updateOrderStatusSQL)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		previous = current.Status

		next, err := decide(current)
		if err != nil {
			return err
		}

		if next != current.Status {
			now := time.Now().UTC()
			if _, err := tx.Exec(ctx, updateOrderStatusSQL, next, now, id); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
			current.Status = next
			current.UpdatedAt = now
		}

		if current.Items, err = loadOrderItems(ctx, tx, id); err != nil {
			return err
		}
		o = current
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return o, previous, nil
}

// UpdateFields applies the non-status fields of upd under a row lock. When
// decide is set the status it returns is written by the same statement.
func (r *OrderRepository) UpdateFields(ctx context.Context, id string, upd domain.OrderFieldsUpdate, decide repository.StatusDecider) (o *domain.Order, previous string, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateOrderFields", updateOrderFieldsSQL)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		previous = current.Status

		if decide != nil {
			if current.Status, err = decide(current); err != nil {
				return err
			}
		}
		upd.Apply(current)
		current.UpdatedAt = time.Now().UTC()
		if _, err := tx.Exec(ctx, updateOrderFieldsSQL,
			current.IsPaid,
			current.PaymentMethod,
			current.SpecialInstructions,
			current.DeliveryTime,
			current.EstimatedDeliveryTime,
			current.DeliveryFee,
			current.Status,
			current.UpdatedAt,
			id,
		); err != nil {
			return fmt.Errorf("update order fields: %w", err)
		}

		if current.Items, err = loadOrderItems(ctx, tx, id); err != nil {
			return err
		}
		o = current
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return o, previous, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, lockOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, err
	}
	return o, nil
}

// loadOrderItems retrieves all items belonging to a given order in line order.
func loadOrderItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, selectOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.Status, &o.TotalAmount, &o.DeliveryFee,
		&o.IsPaid, &o.PaymentMethod, &o.SpecialInstructions, &o.DeliveryTime,
		&o.EstimatedDeliveryTime, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}
