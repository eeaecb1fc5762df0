package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/faultproxy/internal/config"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// runServe loads the configuration and runs the proxy until ctx is done.
func runServe(ctx context.Context, flags *cliFlags) error {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting faultproxy",
		observability.String("version", version),
		observability.String("config", path),
		observability.String("target", cfg.TargetName),
		observability.String("target_url", cfg.Target.URL),
		observability.Int("endpoints", len(cfg.Target.Endpoints)),
	)

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}

	return run(ctx, app, path)
}

// run starts every component and blocks until ctx is done or one of
// them fails, then shuts everything down.
func run(ctx context.Context, app *application, configPath string) error {
	logger := app.logger

	if err := app.gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	watcher, err := config.NewWatcher(configPath, config.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create config watcher, hot reload disabled", observability.Error(err))
	} else if err := watcher.Start(gctx); err != nil {
		logger.Error("failed to start config watcher, hot reload disabled", observability.Error(err))
		_ = watcher.Stop()
		watcher = nil
	} else {
		g.Go(func() error {
			app.gateway.RunReloader(gctx, watcher.Requests(), configPath)
			return nil
		})
	}

	if app.metricsServer != nil {
		g.Go(func() error {
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("received shutdown signal")
		}
		shutdown(app, watcher)
		return nil
	})

	return g.Wait()
}

// shutdown stops all components within the configured shutdown timeout.
func shutdown(app *application, watcher *config.Watcher) {
	logger := app.logger

	timeout := app.gateway.Snapshot().Server.ShutdownTimeout.Duration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error("failed to stop config watcher", observability.Error(err))
		}
	}

	if app.metricsServer != nil {
		logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := app.gateway.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("shutdown complete")
}
