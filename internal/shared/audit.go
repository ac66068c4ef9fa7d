package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audited entity names.
const (
	EntityMaterialRequest     = "material_request"
	EntityMaterialRequestItem = "material_request_item"
	EntityPurchaseOrder       = "purchase_order"
	EntityReceipt             = "receipt"
	EntityStockMovement       = "stock_movement"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) validate() error {
	if l.ActorID <= 0 {
		return errors.New("audit log requires an actor")
	}
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// AuditLogger appends workflow events to audit_logs. Rows are never updated.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry outside any transaction, after the audited change committed.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	return l.RecordTx(ctx, l.pool, log)
}

// RecordTx persists the entry through exec so it commits with the caller's transaction.
func (l *AuditLogger) RecordTx(ctx context.Context, exec Execer, log AuditLog) error {
	if err := log.validate(); err != nil {
		return err
	}
	var meta []byte
	if len(log.Meta) > 0 {
		raw, err := json.Marshal(log.Meta)
		if err != nil {
			return err
		}
		meta = raw
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err := exec.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, meta, at)
	return err
}
