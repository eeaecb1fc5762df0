package gateway

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/faultproxy/internal/config"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// Reload loads and validates the configuration at path and, on success,
// makes it the current configuration. On failure the previous
// configuration stays in effect and the error is returned.
func (g *Gateway) Reload(path string) error {
	g.logger.Info("reloading configuration",
		observability.String("path", path),
	)

	next, err := config.LoadAndValidate(path)
	if err != nil {
		g.logger.Error("configuration reload failed, keeping previous configuration",
			observability.String("path", path),
			observability.Error(err),
		)
		g.metrics.RecordReload(false, 0)
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	g.mu.Lock()
	prev := g.current
	g.current = next
	g.version++
	version := g.version
	g.mu.Unlock()

	g.metrics.RecordReload(true, version)

	if err := g.logger.SetLevel(next.Logging.Level); err != nil {
		g.logger.Warn("failed to apply log level",
			observability.String("level", next.Logging.Level),
			observability.Error(err),
		)
	}

	g.warnRestartRequired(prev, next)

	g.logger.Info("configuration reloaded",
		observability.String("path", path),
		observability.Int64("version", version),
		observability.String("target", next.TargetName),
		observability.Int("endpoints", len(next.Target.Endpoints)),
	)

	return nil
}

// RunReloader reloads the configuration each time a value arrives on
// requests, until ctx is done or requests is closed. It is the only
// writer of the configuration, so reloads never overlap.
func (g *Gateway) RunReloader(ctx context.Context, requests <-chan struct{}, path string) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-requests:
			if !ok {
				return
			}
			// Failures are logged and counted by Reload.
			_ = g.Reload(path)
		}
	}
}

// warnRestartRequired logs settings that only take effect on restart.
func (g *Gateway) warnRestartRequired(prev, next *config.Config) {
	if prev.Server.ListenAddress() != next.Server.ListenAddress() {
		g.logger.Warn("listen address changed, restart required to apply",
			observability.String("current", prev.Server.ListenAddress()),
			observability.String("configured", next.Server.ListenAddress()),
		)
	}
	if prev.Server.MetricsAddress() != next.Server.MetricsAddress() {
		g.logger.Warn("metrics address changed, restart required to apply",
			observability.String("current", prev.Server.MetricsAddress()),
			observability.String("configured", next.Server.MetricsAddress()),
		)
	}
}
