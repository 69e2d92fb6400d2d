// Package postgres implements the engine's storage layer on PostgreSQL. All
// composite operations run through the DB transaction runners, which hand
// the domain services repositories bound to one pgx transaction.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanpos/hanpos/db"
	"github.com/hanpos/hanpos/internal/domain/catalog"
	"github.com/hanpos/hanpos/internal/domain/order"
	"github.com/hanpos/hanpos/internal/domain/payment"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "running migrations")
	}
	return nil
}

// querier is the subset of pgx operations the repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the transactional entry point handed to the domain services.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB wraps the pool.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// inTx runs fn inside a single transaction. fn returning nil commits; any
// error (or panic) rolls back.
func (d *DB) inTx(ctx context.Context, fn func(t pgTx) error) error {
	return pgx.BeginFunc(ctx, d.pool, func(t pgx.Tx) error {
		return fn(pgTx{q: t})
	})
}

// OrderRunner exposes the pool as the order service's transaction runner.
func (d *DB) OrderRunner() order.Runner { return orderRunner{db: d} }

// PaymentRunner exposes the pool as the payment service's transaction runner.
func (d *DB) PaymentRunner() payment.Runner { return paymentRunner{db: d} }

type orderRunner struct {
	db *DB
}

func (r orderRunner) RunInTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return r.db.inTx(ctx, func(t pgTx) error { return fn(t) })
}

type paymentRunner struct {
	db *DB
}

func (r paymentRunner) RunInTx(ctx context.Context, fn func(tx payment.Tx) error) error {
	return r.db.inTx(ctx, func(t pgTx) error { return fn(t) })
}

// pgTx binds the repositories to one pgx transaction.
type pgTx struct {
	q pgx.Tx
}

func (t pgTx) Catalog() catalog.Reader      { return &CatalogReader{q: t.q} }
func (t pgTx) Orders() order.Repository     { return &OrderRepository{q: t.q} }
func (t pgTx) Payments() payment.Repository { return &PaymentRepository{q: t.q} }

// isUniqueViolation reports whether err is a unique-constraint break on the
// named constraint (any constraint when name is empty).
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
