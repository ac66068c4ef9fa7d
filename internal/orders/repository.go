package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitestock/sitestock/internal/platform/db"
	"github.com/sitestock/sitestock/internal/purchasing"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockLines(ctx context.Context, ids []int64) (map[int64]purchasing.Line, error)
	CreateOrder(ctx context.Context, order Order) (Order, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	LockOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status Status) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, number, project_id, supplier_id, created_by, currency, note, status, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.Number, &o.ProjectID, &o.SupplierID, &o.CreatedBy, &o.Currency, &o.Note, &status, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

// LoadItems returns the items of an order in insertion order.
func LoadItems(ctx context.Context, q db.Querier, orderID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, request_item_id, material_id, unit_id, quantity, price, sum, status, delivered_quantity
FROM purchase_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		var status string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.RequestItemID, &item.MaterialID, &item.UnitID,
			&item.Quantity, &item.Price, &item.Sum, &status, &item.DeliveredQuantity); err != nil {
			return nil, err
		}
		item.Status = ItemStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

func getOrder(ctx context.Context, q db.Querier, id int64, lock bool) (Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound.With("order_id", id)
		}
		return Order{}, err
	}
	if o.Items, err = LoadItems(ctx, q, id); err != nil {
		return Order{}, err
	}
	o.Total = orderTotal(o.Items)
	return o, nil
}

// GetOrder returns an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// ListOrders returns orders of a project, newest first, with items.
func (r *Repository) ListOrders(ctx context.Context, projectID int64, filters ListFilters) ([]Order, int, error) {
	args := []any{projectID}
	where := "project_id = $1"
	if filters.SupplierID > 0 {
		args = append(args, filters.SupplierID)
		where += fmt.Sprintf(" AND supplier_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if out[i].Items, err = LoadItems(ctx, r.pool, out[i].ID); err != nil {
			return nil, 0, err
		}
		out[i].Total = orderTotal(out[i].Items)
	}
	return out, total, nil
}

func (t *txRepo) LockLines(ctx context.Context, ids []int64) (map[int64]purchasing.Line, error) {
	return purchasing.LockLines(ctx, t.tx, ids)
}

func (t *txRepo) CreateOrder(ctx context.Context, o Order) (Order, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, project_id, supplier_id, created_by, currency, note, status)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		o.Number, o.ProjectID, o.SupplierID, o.CreatedBy, o.Currency, o.Note, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	return o, db.UniqueAsConflict(err, "purchase_orders_number_key")
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (order_id, request_item_id, material_id, unit_id, quantity, price, sum, status, delivered_quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		item.OrderID, item.RequestItemID, item.MaterialID, item.UnitID, item.Quantity, item.Price, item.Sum,
		string(item.Status), item.DeliveredQuantity,
	).Scan(&item.ID)
	return item, err
}

func (t *txRepo) LockOrder(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *txRepo) UpdateOrderStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}
