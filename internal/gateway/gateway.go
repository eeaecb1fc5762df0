package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/faultproxy/internal/config"
	"github.com/vyrodovalexey/faultproxy/internal/fault"
	"github.com/vyrodovalexey/faultproxy/internal/middleware"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
	"github.com/vyrodovalexey/faultproxy/internal/proxy"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway owns the live configuration and the proxy listener.
//
// The configuration pointer is replaced wholesale on reload. Request
// handlers take one snapshot per request and never hold the lock while
// doing I/O.
type Gateway struct {
	mu      sync.RWMutex
	current *config.Config
	version int64

	logger   observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	injector *fault.Injector
	client   *http.Client

	handler   http.Handler
	engine    *gin.Engine
	listener  *Listener
	state     atomic.Int32
	startTime time.Time
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics sink shared with the proxy handler.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

// WithTracer sets the tracer used for server and backend spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// WithInjector sets the failure injector.
func WithInjector(injector *fault.Injector) Option {
	return func(g *Gateway) {
		g.injector = injector
	}
}

// WithClient sets the HTTP client used for backend calls.
func WithClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// New creates a new Gateway serving cfg.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	g := &Gateway{
		current: cfg,
		version: 1,
		logger:  observability.NopLogger(),
		tracer:  observability.NoopTracer(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.injector == nil {
		g.injector = fault.NewInjector(fault.WithLogger(g.logger))
	}

	proxyOpts := []proxy.Option{
		proxy.WithLogger(g.logger),
		proxy.WithMetrics(g.metrics),
		proxy.WithTracer(g.tracer),
		proxy.WithInjector(g.injector),
	}
	if g.client != nil {
		proxyOpts = append(proxyOpts, proxy.WithClient(g.client))
	}

	g.handler = wrapHandler(proxy.NewHandler(g.Snapshot, proxyOpts...), g.logger, g.tracer)

	g.metrics.SetConfigVersion(g.version)
	g.state.Store(int32(StateStopped))

	return g, nil
}

// Snapshot returns the current configuration. The returned value must be
// treated as read-only.
func (g *Gateway) Snapshot() *config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Version returns the configuration version, starting at 1 and
// incremented on each successful reload.
func (g *Gateway) Version() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// Handler returns the full request pipeline including middleware.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Injector returns the failure injector.
func (g *Gateway) Injector() *fault.Injector {
	return g.injector
}

// Start builds the HTTP engine and starts listening on the configured
// address.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	cfg := g.Snapshot()

	g.logger.Info("starting gateway",
		observability.String("address", cfg.Server.ListenAddress()),
		observability.String("target", cfg.TargetName),
	)

	g.engine = newEngine(cfg.Server.Debug, g.handler)

	listener, err := NewListener("proxy", cfg.Server.ListenAddress(), g.engine,
		WithListenerLogger(g.logger),
	)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to create listener: %w", err)
	}

	if err := listener.Start(ctx); err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to start listener %s: %w", listener.Name(), err)
	}
	g.listener = listener

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("address", listener.Address()),
	)

	return nil
}

// Stop stops the gateway gracefully. In-flight requests are given until
// the context deadline, or the configured shutdown timeout when ctx has
// none, to complete.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Snapshot().Server.ShutdownTimeout.Duration())
		defer cancel()
	}

	err := g.listener.Stop(ctx)

	g.state.Store(int32(StateStopped))

	if err != nil {
		return err
	}

	g.logger.Info("gateway stopped")
	return nil
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Address returns the address the proxy listener is bound to, or an
// empty string when not started.
func (g *Gateway) Address() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Address()
}

// Engine returns the gin engine.
func (g *Gateway) Engine() *gin.Engine {
	return g.engine
}

// wrapHandler applies the request middleware. Logging sits outside
// Recovery so requests that panic still get an access log line.
func wrapHandler(h http.Handler, logger observability.Logger, tracer *observability.Tracer) http.Handler {
	return middleware.Chain(h,
		middleware.RequestID(),
		observability.TracingMiddleware(tracer),
		middleware.Logging(logger),
		middleware.Recovery(logger),
	)
}

// newEngine returns a gin engine that sends every request to handler.
// No routes are registered, so method and path matching is left to the
// proxy handler.
func newEngine(debug bool, handler http.Handler) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.NoRoute(gin.WrapH(handler))
	return engine
}
