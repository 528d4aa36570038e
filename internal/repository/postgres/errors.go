package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	return pgCode(err) == uniqueViolation
}

// isForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isForeignKeyViolation(err error) bool {
	return pgCode(err) == foreignKeyViolation
}

// clampList normalizes skip/limit for SQL OFFSET/LIMIT.
func clampList(skip, limit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return max(skip, 0), limit
}
