package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/sitestock/sitestock/jobs"
)

// Enqueuer submits integrity scans to the queue.
type Enqueuer interface {
	EnqueueIntegrityScan(ctx context.Context, checks ...string) (*asynq.TaskInfo, error)
}

// Scanner runs integrity checks inline.
type Scanner interface {
	Run(ctx context.Context, names ...string) (jobs.IntegrityReport, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	enqueuer  Enqueuer
	inspector jobs.QueueInspector
	scanner   Scanner
}

// NewJobsCLI wires the helpers. Any dependency may be nil when the command
// using it is not invoked.
func NewJobsCLI(enqueuer Enqueuer, inspector jobs.QueueInspector, scanner Scanner) *JobsCLI {
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector, scanner: scanner}
}

// JobsOptions defines flags shared by the jobs commands.
type JobsOptions struct {
	Checks     []string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *JobsOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// Trigger enqueues an integrity scan and prints the task id.
func (c *JobsCLI) Trigger(ctx context.Context, opts JobsOptions) int {
	opts.defaults()
	if c == nil || c.enqueuer == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs trigger: client not configured")
		return 1
	}
	info, err := c.enqueuer.EnqueueIntegrityScan(ctx, opts.Checks...)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	if info != nil {
		_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	}
	return 0
}

// Stats prints counters of the default queue.
func (c *JobsCLI) Stats(ctx context.Context, opts JobsOptions) int {
	opts.defaults()
	if c == nil || c.inspector == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs stats: inspector not configured")
		return 1
	}
	stats, err := jobs.Stats(c.inspector, jobs.QueueDefault)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}

// ScanSummary is the JSON output of the scan command.
type ScanSummary struct {
	OK         bool           `json:"ok"`
	Violations int            `json:"violations"`
	Checks     map[string]int `json:"checks"`
}

// Scan runs the integrity checks inline. It exits 10 when violations exist.
func (c *JobsCLI) Scan(ctx context.Context, opts JobsOptions) int {
	opts.defaults()
	if c == nil || c.scanner == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "scan: database not configured")
		return 1
	}
	report, err := c.scanner.Run(ctx, opts.Checks...)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "scan: %v\n", err)
		return 1
	}
	violations := report.Violations()
	if opts.JSONOutput {
		summary := ScanSummary{OK: violations == 0, Violations: violations, Checks: report}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "scan: encode json: %v\n", err)
			return 1
		}
	} else {
		renderScanHuman(opts.Stdout, report)
	}
	if violations > 0 {
		return 10
	}
	return 0
}

func renderScanHuman(w io.Writer, report jobs.IntegrityReport) {
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state := "ok"
		if report[name] > 0 {
			state = fmt.Sprintf("%d violation(s)", report[name])
		}
		_, _ = fmt.Fprintf(w, "%-30s %s\n", name, state)
	}
}

// ParseChecks splits a comma separated check list.
func ParseChecks(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ErrUsage marks a malformed command line.
var ErrUsage = errors.New("usage: sitestockctl <migrate|scan|jobs trigger|jobs stats> [flags]")
