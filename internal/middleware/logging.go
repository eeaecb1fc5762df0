package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// accessWriter records what the handler sent so it can be logged.
type accessWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *accessWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *accessWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging writes one access log line per request once the handler returns.
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			aw := &accessWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(aw, r)

			fields := []observability.Field{
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", aw.status),
				observability.Int("size", aw.bytes),
				observability.Duration("duration", time.Since(start)),
				observability.String("remote_addr", r.RemoteAddr),
				observability.String("user_agent", r.UserAgent()),
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, observability.String("query", r.URL.RawQuery))
			}

			logger.WithContext(r.Context()).Info("http request", fields...)
		})
	}
}
