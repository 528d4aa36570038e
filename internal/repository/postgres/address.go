package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	"github.com/utafrali/DeliveryGo/pkg/database"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

const addressColumns = `id, user_id, street, city, state, postal_code, country, apartment, floor, entrance, notes, is_default, created_at`

const (
	insertAddressSQL = `
		INSERT INTO addresses (` + addressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	selectAddressByIDSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	selectDefaultAddressSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 AND is_default`

	updateAddressSQL = `
		UPDATE addresses
		SET street = $1, city = $2, state = $3, postal_code = $4, country = $5,
		    apartment = $6, floor = $7, entrance = $8, notes = $9
		WHERE id = $10`

	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1`

	lockUserAddressesSQL = `SELECT id FROM addresses WHERE user_id = $1 ORDER BY id FOR UPDATE`

	clearDefaultAddressSQL = `UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`

	setDefaultAddressSQL = `UPDATE addresses SET is_default = TRUE WHERE id = $1 RETURNING ` + addressColumns
)

// AddressRepository implements repository.AddressRepository using PostgreSQL.
type AddressRepository struct {
	pool database.DBTX
}

// NewAddressRepository creates a new PostgreSQL-backed address repository.
func NewAddressRepository(pool database.DBTX) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Create inserts an address, clearing the owner's other default flag first
// when the new address is the default.
func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateAddress", insertAddressSQL)
	defer func() { end(err) }()

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if a.IsDefault {
			if _, err := tx.Exec(ctx, lockUserAddressesSQL, a.UserID); err != nil {
				return fmt.Errorf("lock user addresses: %w", err)
			}
			if _, err := tx.Exec(ctx, clearDefaultAddressSQL, a.UserID); err != nil {
				return fmt.Errorf("clear default address: %w", err)
			}
		}

		_, err := tx.Exec(ctx, insertAddressSQL,
			a.ID,
			a.UserID,
			a.Street,
			a.City,
			a.State,
			a.PostalCode,
			a.Country,
			a.Apartment,
			a.Floor,
			a.Entrance,
			a.Notes,
			a.IsDefault,
			a.CreatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.NotFound("user", a.UserID)
			}
			return fmt.Errorf("insert address: %w", err)
		}
		return nil
	})
}

// GetByID retrieves an address by its ID.
func (r *AddressRepository) GetByID(ctx context.Context, id string) (a *domain.Address, err error) {
	ctx, end := database.TraceQuery(ctx, "GetAddressByID", selectAddressByIDSQL)
	defer func() { end(err) }()

	a, err = scanAddress(r.pool.QueryRow(ctx, selectAddressByIDSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("address", id)
	}
	return a, err
}

// List returns addresses matching the filter with the total count.
func (r *AddressRepository) List(ctx context.Context, filter repository.AddressFilter) (addresses []domain.Address, total int, err error) {
	args := []any{}
	whereClause := ""
	if filter.UserID != nil {
		whereClause = "WHERE user_id = $1"
		args = append(args, *filter.UserID)
	}
	n := len(args)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM addresses
		%s
		ORDER BY created_at, id
		LIMIT $%d OFFSET $%d`,
		addressColumns, whereClause, n+1, n+2,
	)

	ctx, end := database.TraceQuery(ctx, "ListAddresses", query)
	defer func() { end(err) }()

	skip, limit := clampList(filter.Skip, filter.Limit)
	args = append(args, limit, skip)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses = make([]domain.Address, 0)
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.PostalCode, &a.Country,
			&a.Apartment, &a.Floor, &a.Entrance, &a.Notes, &a.IsDefault, &a.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate address rows: %w", err)
	}
	return addresses, total, nil
}

// GetDefault retrieves the user's default address.
func (r *AddressRepository) GetDefault(ctx context.Context, userID string) (a *domain.Address, err error) {
	ctx, end := database.TraceQuery(ctx, "GetDefaultAddress", selectDefaultAddressSQL)
	defer func() { end(err) }()

	a, err = scanAddress(r.pool.QueryRow(ctx, selectDefaultAddressSQL, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("default address", userID)
	}
	return a, err
}

// Update modifies the postal fields of an address.
func (r *AddressRepository) Update(ctx context.Context, a *domain.Address) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateAddress", updateAddressSQL)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, updateAddressSQL,
		a.Street,
		a.City,
		a.State,
		a.PostalCode,
		a.Country,
		a.Apartment,
		a.Floor,
		a.Entrance,
		a.Notes,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("address", a.ID)
	}
	return nil
}

// Delete removes an address. Addresses referenced by orders cannot be removed.
func (r *AddressRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteAddress", deleteAddressSQL)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, deleteAddressSQL, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Validation("address is referenced by existing orders")
		}
		return fmt.Errorf("delete address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("address", id)
	}
	return nil
}

// SetDefault makes addressID the only default address of userID.
func (r *AddressRepository) SetDefault(ctx context.Context, userID, addressID string) (a *domain.Address, err error) {
	ctx, end := database.TraceQuery(ctx, "SetDefaultAddress", setDefaultAddressSQL)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockUserAddressesSQL, userID)
		if err != nil {
			return fmt.Errorf("lock user addresses: %w", err)
		}
		owned := false
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan address id: %w", err)
			}
			if id == addressID {
				owned = true
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate address ids: %w", err)
		}
		if !owned {
			return apperrors.NotFound("address", addressID)
		}

		if _, err := tx.Exec(ctx, clearDefaultAddressSQL, userID); err != nil {
			return fmt.Errorf("clear default address: %w", err)
		}
		updated, err := scanAddress(tx.QueryRow(ctx, setDefaultAddressSQL, addressID))
		if err != nil {
			return fmt.Errorf("set default address: %w", err)
		}
		a = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	if err := row.Scan(
		&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.PostalCode, &a.Country,
		&a.Apartment, &a.Floor, &a.Entrance, &a.Notes, &a.IsDefault, &a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan address: %w", err)
	}
	return &a, nil
}
