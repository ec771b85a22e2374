package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoURL     = errors.New("pg: DATABASE_URL is empty")
	ErrBadConfig = errors.New("pg: invalid connection config")
	ErrConnect   = errors.New("pg: cannot connect")
	ErrUnhealthy = errors.New("pg: ping failed")
	ErrMigrate   = errors.New("pg: migration failed")
)

// SQLSTATE codes the stores branch on.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// DB is the subset of *pgxpool.Pool the stores use. pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// InTx commits when fn succeeds and rolls back otherwise.
func InTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Healthcheck returns a probe for the /health endpoint.
func Healthcheck(db Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	return code(err) == CodeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return code(err) == CodeForeignKeyViolation
}

// ConstraintName returns the violated constraint when err carries the given
// SQLSTATE, or "".
func ConstraintName(err error, sqlstate string) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstate {
		return pgErr.ConstraintName
	}
	return ""
}

func code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
