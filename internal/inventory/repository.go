package inventory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitestock/sitestock/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	store *Store
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, store *Store) *Repository {
	return &Repository{pool: pool, store: store}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	WarehouseExists(ctx context.Context, id int64) (bool, error)
	ApplyMovement(ctx context.Context, m Movement) (Stock, Movement, error)
}

type txRepo struct {
	q     db.Querier
	store *Store
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx, store: r.store})
	})
}

// ListStock returns the stock snapshot of a warehouse.
func (r *Repository) ListStock(ctx context.Context, filter StockFilter) ([]Stock, error) {
	return ListStock(ctx, r.pool, filter)
}

// ListMovements returns ledger entries.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return ListMovements(ctx, r.pool, filter)
}

// WarehouseExists reports whether the warehouse is registered.
func (r *Repository) WarehouseExists(ctx context.Context, id int64) (bool, error) {
	return WarehouseExists(ctx, r.pool, id)
}

func (t *txRepo) WarehouseExists(ctx context.Context, id int64) (bool, error) {
	return WarehouseExists(ctx, t.q, id)
}

func (t *txRepo) ApplyMovement(ctx context.Context, m Movement) (Stock, Movement, error) {
	return t.store.Apply(ctx, t.q, m)
}
