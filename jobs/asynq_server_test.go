package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func serveHealth(t *testing.T, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, quietLogger()).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rec
}

func TestJobsHealth(t *testing.T) {
	rec := serveHealth(t, fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Size: 3, Pending: 2, Retry: 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	var stats QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 1, stats.Retry)

	rec = serveHealth(t, fakeInspector{err: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serveHealth(t, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"queue":"default"`)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	task, err := NewIntegrityScanTask()
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    quietLogger(),
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	require.Error(t, err)
}
