package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/sitestock/sitestock/internal/jobs"
)

// RowQuerier is satisfied by pgxpool.Pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IntegrityCheck is one read-only invariant check. Query returns a single
// count of offending rows.
type IntegrityCheck struct {
	Name  string
	Query string
}

// IntegrityChecks lists the invariants audited by the scan.
var IntegrityChecks = []IntegrityCheck{
	{
		Name:  "delivered_out_of_range",
		Query: `SELECT COUNT(*) FROM purchase_order_items WHERE delivered_quantity < 0 OR delivered_quantity > quantity`,
	},
	{
		Name: "item_status_mismatch",
		Query: `SELECT COUNT(*) FROM purchase_order_items WHERE status <> CASE
  WHEN delivered_quantity <= 0 THEN 'ORDERED'
  WHEN delivered_quantity < quantity THEN 'PARTIALLY_RECEIVED'
  ELSE 'RECEIVED' END`,
	},
	{
		Name: "over_ordered_lines",
		Query: `SELECT COUNT(*) FROM material_request_items mi
WHERE mi.quantity < (
  SELECT COALESCE(SUM(poi.quantity), 0) FROM purchase_order_items poi
  JOIN purchase_orders po ON po.id = poi.order_id
  WHERE poi.request_item_id = mi.id AND po.status <> 'CANCELLED')`,
	},
	{
		Name: "delivered_order_incomplete",
		Query: `SELECT COUNT(*) FROM purchase_orders po
WHERE po.status = 'DELIVERED' AND EXISTS (
  SELECT 1 FROM purchase_order_items poi WHERE poi.order_id = po.id AND poi.status <> 'RECEIVED')`,
	},
	{
		Name: "fulfilled_request_incomplete",
		Query: `SELECT COUNT(*) FROM material_requests r
WHERE r.status = 'FULFILLED' AND EXISTS (
  SELECT 1 FROM material_request_items mi WHERE mi.request_id = r.id AND mi.quantity > (
    SELECT COALESCE(SUM(poi.delivered_quantity), 0) FROM purchase_order_items poi
    JOIN purchase_orders po ON po.id = poi.order_id
    WHERE poi.request_item_id = mi.id AND po.status <> 'CANCELLED'))`,
	},
	{
		Name:  "negative_stock",
		Query: `SELECT COUNT(*) FROM warehouse_stock WHERE quantity < 0`,
	},
	{
		Name: "stock_ledger_drift",
		Query: `SELECT COUNT(*) FROM warehouse_stock ws
WHERE ws.quantity <> (
  SELECT COALESCE(SUM(sm.quantity), 0) FROM stock_movements sm
  WHERE sm.warehouse_id = ws.warehouse_id AND sm.material_id = ws.material_id AND sm.unit_id = ws.unit_id)`,
	},
}

// IntegrityReport maps check names to offending row counts.
type IntegrityReport map[string]int

// Violations sums offending rows over all checks.
func (r IntegrityReport) Violations() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// IntegrityScanJob audits the procurement and stock invariants without writing.
type IntegrityScanJob struct {
	DB      RowQuerier
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(db RowQuerier, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{DB: db, Logger: logger, Metrics: metrics}
}

// Handle executes the scan for an Asynq task.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload.Checks...)
	return err
}

// Run executes the selected checks concurrently. Unknown names are rejected.
func (j *IntegrityScanJob) Run(ctx context.Context, names ...string) (report IntegrityReport, err error) {
	if j.DB == nil {
		return nil, errors.New("integrity scan: database not configured")
	}
	checks, err := selectChecks(names)
	if err != nil {
		return nil, err
	}
	tracker := j.Metrics.Track(TaskIntegrityScan)
	defer func() {
		err = tracker.End(err)
	}()

	start := time.Now()
	logger := j.logger()
	logger.Info("starting integrity scan", slog.Int("checks", len(checks)))

	report = make(IntegrityReport, len(checks))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, check := range checks {
		check := check
		g.Go(func() error {
			var count int
			if err := j.DB.QueryRow(gctx, check.Query).Scan(&count); err != nil {
				return fmt.Errorf("integrity scan %s: %w", check.Name, err)
			}
			mu.Lock()
			report[check.Name] = count
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("integrity scan failed", slog.Any("error", err))
		return nil, err
	}

	for _, check := range checks {
		count := report[check.Name]
		j.Metrics.SetViolations(check.Name, count)
		if count > 0 {
			logger.Warn("integrity violation", slog.String("check", check.Name), slog.Int("rows", count))
		}
	}
	logger.Info("completed integrity scan",
		slog.Int("violations", report.Violations()),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func selectChecks(names []string) ([]IntegrityCheck, error) {
	if len(names) == 0 {
		return IntegrityChecks, nil
	}
	byName := make(map[string]IntegrityCheck, len(IntegrityChecks))
	for _, c := range IntegrityChecks {
		byName[c.Name] = c
	}
	seen := map[string]bool{}
	var out []IntegrityCheck
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("integrity scan: unknown check %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskIntegrityScan))
}
