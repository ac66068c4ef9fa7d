package app

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/observability"
	"github.com/sitestock/sitestock/internal/orders"
	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/purchasing"
	"github.com/sitestock/sitestock/internal/receiving"
	"github.com/sitestock/sitestock/internal/requests"
	"github.com/sitestock/sitestock/jobs"
)

// HealthCheck checks one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	RequestsHandler   *requests.Handler
	PurchasingHandler *purchasing.Handler
	OrdersHandler     *orders.Handler
	ReceivingHandler  *receiving.Handler
	InventoryHandler  *inventory.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	HealthChecks      map[string]HealthCheck
}

// NewRouter constructs the chi.Router with SiteStock defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthz(params.Logger, params.HealthChecks))

	r.Route("/api", func(r chi.Router) {
		if params.RequestsHandler != nil {
			params.RequestsHandler.MountRoutes(r)
		}
		if params.PurchasingHandler != nil {
			params.PurchasingHandler.MountRoutes(r)
		}
		if params.OrdersHandler != nil {
			params.OrdersHandler.MountRoutes(r)
		}
		if params.ReceivingHandler != nil {
			params.ReceivingHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func healthz(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for _, name := range names {
			if err := checks[name](r.Context()); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				result[name] = "down"
				result["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "up"
		}
		httpx.JSON(w, status, result)
	}
}
