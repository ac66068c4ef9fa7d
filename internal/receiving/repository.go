package receiving

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/orders"
	"github.com/sitestock/sitestock/internal/platform/db"
	"github.com/sitestock/sitestock/internal/requests"
)

// Repository persists receipts in PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	store *inventory.Store
}

// NewRepository constructs Repository. store applies the stock side of a receipt.
func NewRepository(pool *pgxpool.Pool, store *inventory.Store) *Repository {
	return &Repository{pool: pool, store: store}
}

// TxRepository exposes the operations of one receipt transaction.
type TxRepository interface {
	WarehouseExists(ctx context.Context, id int64) (bool, error)
	LockItems(ctx context.Context, ids []int64) (map[int64]LockedItem, error)
	UpdateItemDelivery(ctx context.Context, item orders.Item) error
	ApplyStock(ctx context.Context, m inventory.Movement) (inventory.Stock, inventory.Movement, error)
	InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error)
	LoadOrderItems(ctx context.Context, orderID int64) ([]orders.Item, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status orders.Status) error
	MarkFulfilled(ctx context.Context, requestIDs []int64) ([]int64, error)
}

type txRepo struct {
	tx    pgx.Tx
	store *inventory.Store
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, store: r.store})
	})
}

// ListReceipts returns receipts of a warehouse, newest first, with lines.
func (r *Repository) ListReceipts(ctx context.Context, warehouseID int64, limit, offset int) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, warehouse_id, actor_id, received_at FROM receipts
WHERE warehouse_id = $1 ORDER BY received_at DESC, id DESC LIMIT $2 OFFSET $3`, warehouseID, limit, offset)
	if err != nil {
		return nil, err
	}
	receipts := []Receipt{}
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.ID, &rc.Code, &rc.WarehouseID, &rc.ActorID, &rc.ReceivedAt); err != nil {
			rows.Close()
			return nil, err
		}
		receipts = append(receipts, rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range receipts {
		if receipts[i].Lines, err = loadLines(ctx, r.pool, receipts[i].ID); err != nil {
			return nil, err
		}
	}
	return receipts, nil
}

func loadLines(ctx context.Context, q db.Querier, receiptID int64) ([]ReceiptLine, error) {
	rows, err := q.Query(ctx, `SELECT id, receipt_id, order_item_id, material_id, unit_id, quantity, comment
FROM receipt_lines WHERE receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []ReceiptLine{}
	for rows.Next() {
		var l ReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.OrderItemID, &l.MaterialID, &l.UnitID, &l.Quantity, &l.Comment); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *txRepo) WarehouseExists(ctx context.Context, id int64) (bool, error) {
	return inventory.WarehouseExists(ctx, t.tx, id)
}

// LockItems row-locks the items and their orders in id order.
func (t *txRepo) LockItems(ctx context.Context, ids []int64) (map[int64]LockedItem, error) {
	rows, err := t.tx.Query(ctx, `SELECT poi.id, poi.order_id, poi.request_item_id, poi.material_id, poi.unit_id,
  poi.quantity, poi.price, poi.sum, poi.status, poi.delivered_quantity, po.status, mi.request_id
FROM purchase_order_items poi
JOIN purchase_orders po ON po.id = poi.order_id
JOIN material_request_items mi ON mi.id = poi.request_item_id
WHERE poi.id = ANY($1)
ORDER BY poi.id
FOR UPDATE OF poi, po`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]LockedItem, len(ids))
	for rows.Next() {
		var li LockedItem
		var itemStatus, orderStatus string
		if err := rows.Scan(&li.ID, &li.OrderID, &li.RequestItemID, &li.MaterialID, &li.UnitID,
			&li.Quantity, &li.Price, &li.Sum, &itemStatus, &li.DeliveredQuantity, &orderStatus, &li.RequestID); err != nil {
			return nil, err
		}
		li.Status = orders.ItemStatus(itemStatus)
		li.OrderStatus = orders.Status(orderStatus)
		out[li.ID] = li
	}
	return out, rows.Err()
}

func (t *txRepo) UpdateItemDelivery(ctx context.Context, item orders.Item) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET delivered_quantity = $2, status = $3 WHERE id = $1`,
		item.ID, item.DeliveredQuantity, string(item.Status))
	return err
}

func (t *txRepo) ApplyStock(ctx context.Context, m inventory.Movement) (inventory.Stock, inventory.Movement, error) {
	return t.store.Apply(ctx, t.tx, m)
}

func (t *txRepo) InsertReceipt(ctx context.Context, rc Receipt) (Receipt, error) {
	if err := t.tx.QueryRow(ctx, `INSERT INTO receipts (code, warehouse_id, actor_id, received_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		rc.Code, rc.WarehouseID, rc.ActorID, rc.ReceivedAt).Scan(&rc.ID); err != nil {
		return Receipt{}, err
	}
	for i := range rc.Lines {
		rc.Lines[i].ReceiptID = rc.ID
		l := rc.Lines[i]
		if err := t.tx.QueryRow(ctx, `INSERT INTO receipt_lines (receipt_id, order_item_id, material_id, unit_id, quantity, comment)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, l.ReceiptID, l.OrderItemID, l.MaterialID, l.UnitID, l.Quantity, l.Comment,
		).Scan(&rc.Lines[i].ID); err != nil {
			return Receipt{}, err
		}
	}
	return rc, nil
}

func (t *txRepo) LoadOrderItems(ctx context.Context, orderID int64) ([]orders.Item, error) {
	return orders.LoadItems(ctx, t.tx, orderID)
}

func (t *txRepo) UpdateOrderStatus(ctx context.Context, orderID int64, status orders.Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, string(status))
	return err
}

func (t *txRepo) MarkFulfilled(ctx context.Context, requestIDs []int64) ([]int64, error) {
	return requests.MarkFulfilled(ctx, t.tx, requestIDs)
}
