// Package gateway owns the live configuration and serves the proxy.
//
// A Gateway holds the current configuration behind a read/write lock.
// Each request takes a snapshot once; Reload swaps in a freshly loaded
// and validated configuration without disturbing requests in flight.
// An invalid file is rejected and the previous configuration stays in
// effect.
//
// The HTTP side is a gin engine with no registered routes: every request
// falls through to the proxy pipeline wrapped, outermost first, in request
// ID, tracing, access-log and recovery middleware.
//
//	gw, err := gateway.New(cfg, gateway.WithLogger(logger))
//	go gw.RunReloader(ctx, watcher.Requests(), path)
//	err = gw.Start(ctx)
package gateway
