package middleware

import "net/http"

// Chain wraps handler with middlewares. The first middleware is the
// outermost, so Chain(h, a, b) serves a(b(h)).
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
