package middleware

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

const internalErrorBody = `{"detail":"Internal Server Error"}`

// Recovery returns a middleware that turns a panic in one request into
// a 500 response for that request only.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return RecoveryWithWriter(logger, nil)
}

// RecoveryWithWriter is Recovery that also writes the panic and stack
// to out when out is non-nil.
func RecoveryWithWriter(logger observability.Logger, out io.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
						panic(err)
					}

					stack := debug.Stack()

					logger.WithContext(r.Context()).Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("error", err),
						observability.String("stack", string(stack)),
					)

					if out != nil {
						_, _ = fmt.Fprintf(out, "panic: %v\n%s\n", err, stack)
					}

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = io.WriteString(w, internalErrorBody)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
