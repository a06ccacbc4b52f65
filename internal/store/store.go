// Package store persists deals, inventory and audit rows in Postgres.
//
// Money columns are numeric and travel as text so values round-trip exactly
// through decimal.Decimal.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// DBTX is the subset of pgx used by Store. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store runs handwritten SQL against Postgres.
type Store struct {
	db DBTX
}

// New wraps a pgx connection or pool.
func New(db DBTX) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// IsForeignKeyViolation reports whether err is a Postgres FK violation, which
// the deal writes surface when the vehicle or sales rep no longer exists.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
