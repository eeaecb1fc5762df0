package main

import (
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/faultproxy/internal/config"
	"github.com/vyrodovalexey/faultproxy/internal/fault"
	"github.com/vyrodovalexey/faultproxy/internal/gateway"
	"github.com/vyrodovalexey/faultproxy/internal/health"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// application holds all application components.
type application struct {
	gateway       *gateway.Gateway
	injector      *fault.Injector
	health        *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	metricsServer *http.Server
	logger        observability.Logger
}

// loadConfig resolves, loads and validates the configuration, then
// applies command line overrides.
func loadConfig(flags *cliFlags) (*config.Config, string, error) {
	path, err := config.ResolveConfigPath(flags.configPath, ".")
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration %s: %w", path, err)
	}

	if flags.logLevel == "" && flags.logFormat == "" {
		return cfg, path, nil
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, "", fmt.Errorf("invalid --log-level or --log-format: %w", err)
	}

	return cfg, path, nil
}

// initLogger initializes the logger from the logging section.
func initLogger(cfg *config.Config) (observability.Logger, error) {
	logCfg := observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if r := cfg.Logging.Rotation; r != nil {
		logCfg.Rotation = &observability.RotationConfig{
			MaxSizeMB:  r.MaxSizeMB,
			MaxBackups: r.MaxBackups,
			MaxAgeDays: r.MaxAgeDays,
			Compress:   r.Compress,
		}
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config) (*observability.Tracer, error) {
	t := cfg.Tracing
	if t == nil || !t.Enabled {
		return observability.NoopTracer(), nil
	}

	return observability.NewTracer(observability.TracerConfig{
		ServiceName:  t.ServiceName,
		OTLPEndpoint: t.OTLPEndpoint,
		SamplingRate: t.SamplingRate,
		Enabled:      true,
	})
}

// newApplication wires all components for cfg.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("faultproxy")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	injector := fault.NewInjector(fault.WithLogger(logger))

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics),
		gateway.WithTracer(tracer),
		gateway.WithInjector(injector),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	app := &application{
		gateway:  gw,
		injector: injector,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
	app.health = newHealthChecker(app)

	if addr := cfg.Server.MetricsAddress(); addr != "" {
		app.metricsServer = createMetricsServer(addr, cfg.Server.MetricsPath, app)
	}

	return app, nil
}
