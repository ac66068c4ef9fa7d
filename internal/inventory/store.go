package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sitestock/sitestock/internal/platform/db"
)

// Store holds the transactional stock primitives. Every method runs on the
// caller's Querier so receipts and movements commit together with their
// business records.
type Store struct {
	allowNegative bool
}

// NewStore constructs a Store. allowNegative disables the negative stock guard.
func NewStore(allowNegative bool) *Store {
	return &Store{allowNegative: allowNegative}
}

// Apply adds the signed movement quantity to the stock row, creating it when
// absent, and appends the movement to the ledger.
func (s *Store) Apply(ctx context.Context, q db.Querier, m Movement) (Stock, Movement, error) {
	if m.PostedAt.IsZero() {
		m.PostedAt = time.Now().UTC()
	}
	if m.Code == "" {
		m.Code = fmt.Sprintf("MV-%d", m.PostedAt.UnixNano())
	}
	if m.RefID == uuid.Nil {
		m.RefID = uuid.New()
	}
	stock := Stock{WarehouseID: m.WarehouseID, MaterialID: m.MaterialID, UnitID: m.UnitID}
	err := q.QueryRow(ctx, `INSERT INTO warehouse_stock (warehouse_id, material_id, unit_id, quantity, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (warehouse_id, material_id, unit_id)
DO UPDATE SET quantity = warehouse_stock.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
RETURNING id, quantity, updated_at`, m.WarehouseID, m.MaterialID, m.UnitID, m.Quantity, m.PostedAt,
	).Scan(&stock.ID, &stock.Quantity, &stock.UpdatedAt)
	if err != nil {
		return Stock{}, Movement{}, err
	}
	if err := s.check(stock, m); err != nil {
		return Stock{}, Movement{}, err
	}
	m.Balance = stock.Quantity
	err = q.QueryRow(ctx, `INSERT INTO stock_movements (code, movement_type, warehouse_id, material_id, unit_id, quantity, balance, ref_module, ref_id, actor_id, note, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		m.Code, string(m.Type), m.WarehouseID, m.MaterialID, m.UnitID, m.Quantity, m.Balance,
		m.RefModule, m.RefID, m.ActorID, m.Note, m.PostedAt,
	).Scan(&m.ID)
	if err != nil {
		return Stock{}, Movement{}, err
	}
	return stock, m, nil
}

// check rejects a resulting negative balance unless negatives are allowed.
func (s *Store) check(stock Stock, m Movement) error {
	if s.allowNegative || !stock.Quantity.IsNegative() {
		return nil
	}
	return ErrNegativeStock.
		With("warehouse_id", m.WarehouseID).
		With("material_id", m.MaterialID).
		With("available", stock.Quantity.Sub(m.Quantity))
}

// WarehouseExists reports whether the warehouse is registered.
func WarehouseExists(ctx context.Context, q db.Querier, id int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warehouses WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// ListStock returns stock rows of a warehouse ordered by material and unit.
func ListStock(ctx context.Context, q db.Querier, filter StockFilter) ([]Stock, error) {
	args := []any{filter.WarehouseID}
	sql := `SELECT id, warehouse_id, material_id, unit_id, quantity, updated_at FROM warehouse_stock WHERE warehouse_id = $1`
	if filter.MaterialID > 0 {
		args = append(args, filter.MaterialID)
		sql += ` AND material_id = $2`
	}
	rows, err := q.Query(ctx, sql+` ORDER BY material_id, unit_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stock := []Stock{}
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.ID, &s.WarehouseID, &s.MaterialID, &s.UnitID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stock = append(stock, s)
	}
	return stock, rows.Err()
}

// ListMovements returns ledger entries of a warehouse, newest first.
func ListMovements(ctx context.Context, q db.Querier, filter MovementFilter) ([]Movement, error) {
	args := []any{filter.WarehouseID}
	sql := `SELECT id, code, movement_type, warehouse_id, material_id, unit_id, quantity, balance, ref_module, ref_id, actor_id, note, posted_at
FROM stock_movements WHERE warehouse_id = $1`
	if filter.MaterialID > 0 {
		args = append(args, filter.MaterialID)
		sql += fmt.Sprintf(` AND material_id = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		sql += fmt.Sprintf(` AND posted_at >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		sql += fmt.Sprintf(` AND posted_at < $%d`, len(args))
	}
	args = append(args, filter.Limit)
	sql += fmt.Sprintf(` ORDER BY posted_at DESC, id DESC LIMIT $%d`, len(args))
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.Code, &typ, &m.WarehouseID, &m.MaterialID, &m.UnitID, &m.Quantity, &m.Balance,
			&m.RefModule, &m.RefID, &m.ActorID, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
