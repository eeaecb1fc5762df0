// Package middleware provides the HTTP middleware wrapped around the
// proxy handler.
//
//   - Recovery: converts a panic into a 500 for that request only
//   - RequestID: reuses or generates X-Request-ID
//   - Logging: one structured access log line per request
//
// Middleware functions follow the standard Go pattern and are composed
// with Chain, first argument outermost. Logging goes outside Recovery so
// the 500 written for a panic is logged:
//
//	handler := middleware.Chain(proxyHandler,
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	    middleware.Recovery(logger),
//	)
package middleware
