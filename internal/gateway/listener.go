package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	maxHeaderBytes    = 1 << 20
)

// Listener serves one handler on one TCP address.
type Listener struct {
	name    string
	addr    string
	handler http.Handler
	logger  observability.Logger

	mu     sync.Mutex
	server *http.Server
	bound  net.Addr
	done   chan struct{}
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener for addr. Nothing is bound until Start.
func NewListener(name, addr string, handler http.Handler, opts ...ListenerOption) (*Listener, error) {
	switch {
	case addr == "":
		return nil, fmt.Errorf("listener %s: address is required", name)
	case handler == nil:
		return nil, fmt.Errorf("listener %s: handler is required", name)
	}

	l := &Listener{
		name:    name,
		addr:    addr,
		handler: handler,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.name
}

// Address returns the bound address while running and the configured
// address otherwise. With port 0 the two differ.
func (l *Listener) Address() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bound != nil {
		return l.bound.String()
	}
	return l.addr
}

// IsRunning reports whether the listener is accepting connections.
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.server != nil
}

// Start binds the address and serves in the background. Binding errors
// are returned synchronously.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.server != nil {
		return fmt.Errorf("listener %s is already running", l.name)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}

	srv := &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
	done := make(chan struct{})

	l.server, l.bound, l.done = srv, ln.Addr(), done

	l.logger.Info("listener started",
		observability.String("name", l.name),
		observability.String("address", ln.Addr().String()),
	)

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("listener error",
				observability.String("name", l.name),
				observability.Error(err),
			)
		}
	}()

	return nil
}

// Stop drains in-flight requests until ctx expires, then closes whatever
// is left. Stopping an idle listener is a no-op.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	srv, done := l.server, l.done
	l.server, l.bound, l.done = nil, nil, nil
	l.mu.Unlock()

	if srv == nil {
		return nil
	}

	l.logger.Info("stopping listener", observability.String("name", l.name))

	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("listener %s did not drain in time: %w", l.name, err)
	}
	<-done

	l.logger.Info("listener stopped", observability.String("name", l.name))
	return nil
}
