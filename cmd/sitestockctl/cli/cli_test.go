package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/jobs"
)

type stubEnqueuer struct {
	checks []string
	err    error
}

func (s *stubEnqueuer) EnqueueIntegrityScan(ctx context.Context, checks ...string) (*asynq.TaskInfo, error) {
	s.checks = checks
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Type: jobs.TaskIntegrityScan, Queue: jobs.QueueDefault}, nil
}

type stubInspector struct{}

func (stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: 3, Active: 1}, nil
}

type stubScanner struct {
	report jobs.IntegrityReport
}

func (s stubScanner) Run(ctx context.Context, names ...string) (jobs.IntegrityReport, error) {
	return s.report, nil
}

func TestTriggerEnqueuesSelectedChecks(t *testing.T) {
	enq := &stubEnqueuer{}
	cli := NewJobsCLI(enq, nil, nil)
	stdout := new(bytes.Buffer)

	code := cli.Trigger(context.Background(), JobsOptions{Checks: ParseChecks("negative_stock, ,stock_ledger_drift"), Stdout: stdout})
	require.Equal(t, 0, code)
	require.Equal(t, []string{"negative_stock", "stock_ledger_drift"}, enq.checks)
	require.Contains(t, stdout.String(), "id=task-1")
}

func TestTriggerReportsEnqueueFailure(t *testing.T) {
	cli := NewJobsCLI(&stubEnqueuer{err: errors.New("redis down")}, nil, nil)
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, cli.Trigger(context.Background(), JobsOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "redis down")
}

func TestStatsJSON(t *testing.T) {
	cli := NewJobsCLI(nil, stubInspector{}, nil)
	stdout := new(bytes.Buffer)
	require.Equal(t, 0, cli.Stats(context.Background(), JobsOptions{JSONOutput: true, Stdout: stdout}))

	var stats jobs.QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, 3, stats.Pending)
	require.Equal(t, 1, stats.Active)
}

func TestScanExitCodes(t *testing.T) {
	clean := NewJobsCLI(nil, nil, stubScanner{report: jobs.IntegrityReport{"negative_stock": 0}})
	stdout := new(bytes.Buffer)
	require.Equal(t, 0, clean.Scan(context.Background(), JobsOptions{Stdout: stdout}))
	require.Contains(t, stdout.String(), "ok")

	dirty := NewJobsCLI(nil, nil, stubScanner{report: jobs.IntegrityReport{"negative_stock": 2, "stock_ledger_drift": 0}})
	stdout.Reset()
	require.Equal(t, 10, dirty.Scan(context.Background(), JobsOptions{JSONOutput: true, Stdout: stdout}))

	var summary ScanSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Equal(t, 2, summary.Violations)
}

func TestCommandsWithoutDependencies(t *testing.T) {
	cli := NewJobsCLI(nil, nil, nil)
	stderr := new(bytes.Buffer)
	opts := JobsOptions{Stdout: new(bytes.Buffer), Stderr: stderr}
	require.Equal(t, 1, cli.Trigger(context.Background(), opts))
	require.Equal(t, 1, cli.Stats(context.Background(), opts))
	require.Equal(t, 1, cli.Scan(context.Background(), opts))
}

func TestMigrateCommand(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := MigrateCommand(context.Background(), func(ctx context.Context) ([]string, error) {
		return []string{"0001_procurement"}, nil
	}, stdout, new(bytes.Buffer))
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "applied 0001_procurement")

	stdout.Reset()
	stderr := new(bytes.Buffer)
	code = MigrateCommand(context.Background(), func(ctx context.Context) ([]string, error) {
		return nil, errors.New("syntax error")
	}, stdout, stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "syntax error")
}
