// Package observability provides logging, metrics, and tracing
// for the proxy.
//
// # Logging
//
// The Logger interface wraps zap. All loggers derived from one NewLogger
// call share a level, so a configuration reload can change verbosity
// for the whole process:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "INFO",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	_ = logger.SetLevel("DEBUG")
//
// File output goes through lumberjack with optional rotation.
//
// # Metrics
//
// Prometheus counters and histograms for requests, injected failures,
// backend calls and configuration reloads, on a private registry:
//
//	metrics := observability.NewMetrics("faultproxy")
//	http.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// OpenTelemetry tracing with optional OTLP gRPC export. Disabled tracing
// falls back to the global no-op provider.
package observability
