package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIntegrityScan audits procurement and stock invariants.
	TaskIntegrityScan = "sitestock:integrity_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "sitestock:idempotency_cleanup"
)

// IntegrityScanPayload selects the checks to run. Empty runs all of them.
type IntegrityScanPayload struct {
	Checks []string `json:"checks,omitempty"`
}

// NewIntegrityScanTask constructs an Asynq task.
func NewIntegrityScanTask(checks ...string) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityScanPayload{Checks: checks})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityScan, data, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the key retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}
