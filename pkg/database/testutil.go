package database

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool returns a pgxmock pool usable wherever a DBTX is expected. The
// pool is closed when tb finishes; asserting expectations stays with the test.
func NewMockPool(tb testing.TB) pgxmock.PgxPoolIface {
	tb.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		tb.Fatalf("create pgxmock pool: %v", err)
	}
	tb.Cleanup(mock.Close)
	return mock
}
