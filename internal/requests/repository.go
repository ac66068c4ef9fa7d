package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitestock/sitestock/internal/platform/db"
	"github.com/sitestock/sitestock/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool      *pgxpool.Pool
	approvals *shared.ApprovalRecorder
}

// NewRepository constructs a repository. Approval history is written through
// approvals inside the same transaction as the slot change.
func NewRepository(pool *pgxpool.Pool, approvals *shared.ApprovalRecorder) *Repository {
	return &Repository{pool: pool, approvals: approvals}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateRequest(ctx context.Context, req Request) (Request, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	DeleteItems(ctx context.Context, requestID int64) error
	LockRequest(ctx context.Context, id int64) (Request, error)
	UpdateRequest(ctx context.Context, req Request) (Request, error)
	RecordApproval(ctx context.Context, log shared.ApprovalLog) error
}

type txRepo struct {
	tx        pgx.Tx
	approvals *shared.ApprovalRecorder
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, approvals: r.approvals})
	})
}

var slotColumns = func() string {
	cols := make([]string, 0, slotCount*3)
	for _, s := range Slots {
		cols = append(cols, "approved_by_"+string(s), string(s)+"_user_id", string(s)+"_approved_at")
	}
	return strings.Join(cols, ", ")
}()

var requestColumns = "id, project_id, created_by, note, status, version, " + slotColumns + ", created_at, updated_at"

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	dest := []any{&req.ID, &req.ProjectID, &req.CreatedBy, &req.Note, &status, &req.Version}
	for i := range req.Approvals {
		req.Approvals[i].Slot = Slots[i]
		dest = append(dest, &req.Approvals[i].Approved, &req.Approvals[i].ApproverUserID, &req.Approvals[i].ApprovedAt)
	}
	dest = append(dest, &req.CreatedAt, &req.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}
	req.Status = Status(status)
	return req, nil
}

func loadItems(ctx context.Context, q db.Querier, requestID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, request_id, line_no, material_type_id, material_id, unit_id, quantity, comment
FROM material_request_items WHERE request_id = $1 ORDER BY line_no, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.RequestID, &item.LineNo, &item.MaterialTypeID, &item.MaterialID, &item.UnitID, &item.Quantity, &item.Comment); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func getRequest(ctx context.Context, q db.Querier, id int64, lock bool) (Request, error) {
	sql := `SELECT ` + requestColumns + ` FROM material_requests WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	req, err := scanRequest(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return Request{}, ErrRequestNotFound.With("request_id", id)
		}
		return Request{}, err
	}
	if req.Items, err = loadItems(ctx, q, id); err != nil {
		return Request{}, err
	}
	return req, nil
}

// GetRequest returns a request with its items.
func (r *Repository) GetRequest(ctx context.Context, id int64) (Request, error) {
	return getRequest(ctx, r.pool, id, false)
}

// ListRequests returns requests of a project, newest first, without items.
func (r *Repository) ListRequests(ctx context.Context, projectID int64, filters ListFilters) ([]Request, int, error) {
	args := []any{projectID}
	where := "project_id = $1"
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM material_requests WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM material_requests WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func (t *txRepo) CreateRequest(ctx context.Context, req Request) (Request, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO material_requests (project_id, created_by, note, status, version,
  foreman_user_id, site_manager_user_id, purchasing_agent_user_id, planning_engineer_user_id, main_engineer_user_id)
VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $8, $9)
RETURNING id, version, created_at, updated_at`,
		req.ProjectID, req.CreatedBy, req.Note, string(req.Status),
		req.Approvals[0].ApproverUserID, req.Approvals[1].ApproverUserID, req.Approvals[2].ApproverUserID,
		req.Approvals[3].ApproverUserID, req.Approvals[4].ApproverUserID,
	).Scan(&req.ID, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	return req, err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO material_request_items (request_id, line_no, material_type_id, material_id, unit_id, quantity, comment)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		item.RequestID, item.LineNo, item.MaterialTypeID, item.MaterialID, item.UnitID, item.Quantity, item.Comment,
	).Scan(&item.ID)
	return item, err
}

func (t *txRepo) DeleteItems(ctx context.Context, requestID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM material_request_items WHERE request_id = $1`, requestID)
	return err
}

func (t *txRepo) LockRequest(ctx context.Context, id int64) (Request, error) {
	return getRequest(ctx, t.tx, id, true)
}

// UpdateRequest writes status, note and slot columns and bumps the version.
// The row must already be locked by LockRequest in the same transaction.
func (t *txRepo) UpdateRequest(ctx context.Context, req Request) (Request, error) {
	sets := []string{"status = $2", "note = $3"}
	args := []any{req.ID, string(req.Status), req.Note}
	for i, s := range Slots {
		a := req.Approvals[i]
		args = append(args, a.Approved, a.ApproverUserID, a.ApprovedAt)
		n := len(args)
		sets = append(sets,
			fmt.Sprintf("approved_by_%s = $%d", s, n-2),
			fmt.Sprintf("%s_user_id = $%d", s, n-1),
			fmt.Sprintf("%s_approved_at = $%d", s, n))
	}
	args = append(args, req.Version)
	sql := fmt.Sprintf(`UPDATE material_requests SET %s, version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $%d RETURNING version, updated_at`, strings.Join(sets, ", "), len(args))
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&req.Version, &req.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.ErrConcurrentUpdate.With("request_id", req.ID)
		}
		return Request{}, err
	}
	return req, nil
}

func (t *txRepo) RecordApproval(ctx context.Context, log shared.ApprovalLog) error {
	return t.approvals.RecordTx(ctx, t.tx, log)
}

// MarkFulfilled closes approved requests whose every item has been fully
// received across non-cancelled orders. It runs inside the receipt transaction.
func MarkFulfilled(ctx context.Context, q db.Querier, requestIDs []int64) ([]int64, error) {
	if len(requestIDs) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `UPDATE material_requests r
SET status = $2, version = version + 1, updated_at = $3
WHERE r.id = ANY($1) AND r.status = $4
  AND NOT EXISTS (
    SELECT 1 FROM material_request_items mi
    WHERE mi.request_id = r.id
      AND mi.quantity > COALESCE((
        SELECT SUM(poi.delivered_quantity)
        FROM purchase_order_items poi
        JOIN purchase_orders po ON po.id = poi.order_id
        WHERE poi.request_item_id = mi.id AND po.status <> 'CANCELLED'), 0)
  )
RETURNING r.id`, requestIDs, string(StatusFulfilled), time.Now(), string(StatusApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var closed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		closed = append(closed, id)
	}
	return closed, rows.Err()
}
