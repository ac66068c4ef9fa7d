package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/platform/db"
)

// OrderedTotalSQL sums ordered quantities of a request item (aliased mi) over
// orders that were not cancelled. It is the single source of ordered totals.
const OrderedTotalSQL = `COALESCE((
  SELECT SUM(poi.quantity)
  FROM purchase_order_items poi
  JOIN purchase_orders po ON po.id = poi.order_id
  WHERE poi.request_item_id = mi.id AND po.status <> 'CANCELLED'), 0)`

const lineSelect = `SELECT mi.id, mi.request_id, r.project_id, r.status, mi.line_no, mi.material_type_id,
  mi.material_id, mi.unit_id, mi.quantity, mi.price, mi.currency, mi.comment, ` + OrderedTotalSQL + ` AS total_ordered
FROM material_request_items mi
JOIN material_requests r ON r.id = mi.request_id`

const approvedStatus = "APPROVED"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLine(row pgx.Row) (Line, error) {
	var line Line
	err := row.Scan(&line.ID, &line.RequestID, &line.ProjectID, &line.RequestStatus, &line.LineNo, &line.MaterialTypeID,
		&line.MaterialID, &line.UnitID, &line.RequestedQuantity, &line.Price, &line.Currency, &line.Comment, &line.TotalOrdered)
	if err != nil {
		return Line{}, err
	}
	line.derive()
	return line, nil
}

func queryLines(ctx context.Context, q db.Querier, sql string, args ...any) ([]Line, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListOrderableLines returns lines of approved requests with remaining quantity.
func (r *Repository) ListOrderableLines(ctx context.Context, projectID int64, filters ListFilters) ([]Line, error) {
	args := []any{projectID, approvedStatus}
	where := "r.project_id = $1 AND r.status = $2 AND mi.quantity > " + OrderedTotalSQL
	if filters.MaterialTypeID > 0 {
		args = append(args, filters.MaterialTypeID)
		where += fmt.Sprintf(" AND mi.material_type_id = $%d", len(args))
	}
	if filters.MaterialID > 0 {
		args = append(args, filters.MaterialID)
		where += fmt.Sprintf(" AND mi.material_id = $%d", len(args))
	}
	return queryLines(ctx, r.pool, lineSelect+" WHERE "+where+" ORDER BY mi.request_id, mi.line_no", args...)
}

// GetLine returns a line of an approved request.
func (r *Repository) GetLine(ctx context.Context, id int64) (Line, error) {
	line, err := scanLine(r.pool.QueryRow(ctx, lineSelect+" WHERE mi.id = $1 AND r.status = $2", id, approvedStatus))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, ErrLineNotFound.With("line_id", id)
		}
		return Line{}, err
	}
	return line, nil
}

// SetPrice stores price and currency on a line of an approved request.
func (r *Repository) SetPrice(ctx context.Context, id int64, price decimal.Decimal, currency string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE material_request_items mi
SET price = $2, currency = $3
FROM material_requests r
WHERE mi.id = $1 AND r.id = mi.request_id AND r.status = $4`, id, price, currency, approvedStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound.With("line_id", id)
	}
	return nil
}

// LockLines locks the given lines for the rest of the caller's transaction and
// returns them with ordered totals derived inside that transaction. Lines of
// any request status are returned; callers decide which are orderable. Missing
// ids are absent from the result.
//
// The lock_version bump turns a concurrent order on the same line into a
// serialization failure under repeatable read.
func LockLines(ctx context.Context, q db.Querier, ids []int64) (map[int64]Line, error) {
	if len(ids) == 0 {
		return map[int64]Line{}, nil
	}
	if _, err := q.Exec(ctx, `UPDATE material_request_items SET lock_version = lock_version + 1 WHERE id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	lines, err := queryLines(ctx, q, lineSelect+" WHERE mi.id = ANY($1) ORDER BY mi.id", ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Line, len(lines))
	for _, line := range lines {
		out[line.ID] = line
	}
	return out, nil
}
