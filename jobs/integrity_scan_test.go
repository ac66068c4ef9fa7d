package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/sitestock/sitestock/internal/jobs"
)

type countRow struct {
	count int
	err   error
}

func (r countRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int)) = r.count
	return nil
}

// fakeDB answers each check by matching a fragment of its query.
type fakeDB struct {
	mu      sync.Mutex
	counts  map[string]int
	fail    string
	queries []string
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, sql)
	if f.fail != "" && strings.Contains(sql, f.fail) {
		return countRow{err: errors.New("relation does not exist")}
	}
	for fragment, n := range f.counts {
		if strings.Contains(sql, fragment) {
			return countRow{count: n}
		}
	}
	return countRow{}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegrityScanReportsViolations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	db := &fakeDB{counts: map[string]int{"FROM warehouse_stock WHERE quantity < 0": 2}}
	job := NewIntegrityScanJob(db, quietLogger(), metrics)

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report, len(IntegrityChecks))
	require.Equal(t, 2, report["negative_stock"])
	require.Equal(t, 2, report.Violations())
	require.Len(t, db.queries, len(IntegrityChecks))

	count, err := testutil.GatherAndCount(registry, "sitestock_integrity_violations")
	require.NoError(t, err)
	require.Equal(t, len(IntegrityChecks), count)
}

func TestIntegrityScanSelectsChecks(t *testing.T) {
	db := &fakeDB{}
	job := NewIntegrityScanJob(db, quietLogger(), nil)

	report, err := job.Run(context.Background(), "negative_stock", "negative_stock", "item_status_mismatch")
	require.NoError(t, err)
	require.Len(t, report, 2)
	require.Len(t, db.queries, 2)

	_, err = job.Run(context.Background(), "no_such_check")
	require.Error(t, err)
}

func TestIntegrityScanFailsOnQueryError(t *testing.T) {
	db := &fakeDB{fail: "stock_movements"}
	job := NewIntegrityScanJob(db, quietLogger(), nil)

	_, err := job.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "stock_ledger_drift")
}

func TestIntegrityScanHandleTask(t *testing.T) {
	db := &fakeDB{}
	job := NewIntegrityScanJob(db, quietLogger(), nil)

	task, err := NewIntegrityScanTask("negative_stock")
	require.NoError(t, err)
	require.Equal(t, TaskIntegrityScan, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, db.queries, 1)

	err = job.Handle(context.Background(), asynq.NewTask(TaskIntegrityScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var nilJob *IntegrityScanJob
	require.Error(t, nilJob.Handle(context.Background(), task))
}
