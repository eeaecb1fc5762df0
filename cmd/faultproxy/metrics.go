package main

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/faultproxy/internal/health"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// newHealthChecker registers the checks reported on /health.
func newHealthChecker(app *application) *health.Checker {
	checker := health.NewChecker(version)

	checker.RegisterCheck("gateway", func() health.Check {
		status := health.StatusHealthy
		if !app.gateway.IsRunning() {
			status = health.StatusUnhealthy
		}
		return health.Check{
			Status:  status,
			Message: app.gateway.State().String(),
			Details: map[string]string{
				"address": app.gateway.Address(),
				"uptime":  app.gateway.Uptime().Round(time.Second).String(),
			},
		}
	})

	checker.RegisterCheck("config", func() health.Check {
		cfg := app.gateway.Snapshot()
		return health.Check{
			Status:  health.StatusHealthy,
			Message: cfg.TargetName,
			Details: map[string]any{
				"version":    app.gateway.Version(),
				"target_url": cfg.Target.URL,
				"endpoints":  len(cfg.Target.Endpoints),
			},
		}
	})

	checker.RegisterCheck("failures", func() health.Check {
		return health.Check{
			Status:  health.StatusHealthy,
			Details: app.injector.Stats(),
		}
	})

	return checker
}

// createMetricsServer creates the metrics HTTP server.
func createMetricsServer(addr, path string, app *application) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, app.metrics.Handler())
	mux.HandleFunc("/health", app.health.HealthHandler())
	mux.HandleFunc("/ready", app.health.ReadinessHandler())
	mux.HandleFunc("/live", app.health.LivenessHandler())

	app.logger.Info("metrics server configured",
		observability.String("address", addr),
		observability.String("metrics_path", path),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
