package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	"github.com/utafrali/DeliveryGo/pkg/database"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

const userColumns = `id, email, hashed_password, full_name, phone, is_active, is_superuser, created_at, updated_at`

const (
	insertUserSQL = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	selectUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	selectUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	listUsersSQL = `
		SELECT ` + userColumns + `, count(*) OVER() AS total_count
		FROM users
		ORDER BY created_at
		LIMIT $1 OFFSET $2`

	updateUserSQL = `
		UPDATE users
		SET email = $1, hashed_password = $2, full_name = $3, phone = $4,
		    is_active = $5, is_superuser = $6, updated_at = $7
		WHERE id = $8`

	deleteUserSQL = `DELETE FROM users WHERE id = $1`
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", insertUserSQL)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, insertUserSQL,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FullName,
		u.Phone,
		u.IsActive,
		u.IsSuperuser,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "GetUserByID", selectUserByIDSQL)
	defer func() { end(err) }()

	u, err = scanUser(r.pool.QueryRow(ctx, selectUserByIDSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", id)
	}
	return u, err
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "GetUserByEmail", selectUserByEmailSQL)
	defer func() { end(err) }()

	u, err = scanUser(r.pool.QueryRow(ctx, selectUserByEmailSQL, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", email)
	}
	return u, err
}

// List returns a page of users ordered by creation time.
func (r *UserRepository) List(ctx context.Context, params repository.ListParams) (users []domain.User, total int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListUsers", listUsersSQL)
	defer func() { end(err) }()

	skip, limit := clampList(params.Skip, params.Limit)
	rows, err := r.pool.Query(ctx, listUsersSQL, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users = make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone,
			&u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, total, nil
}

// Update modifies an existing user in the database.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateUser", updateUserSQL)
	defer func() { end(err) }()

	u.UpdatedAt = time.Now().UTC()
	ct, err := r.pool.Exec(ctx, updateUserSQL,
		u.Email,
		u.PasswordHash,
		u.FullName,
		u.Phone,
		u.IsActive,
		u.IsSuperuser,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

// Delete removes a user. Addresses and orders go with it via ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteUser", deleteUserSQL)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone,
		&u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
