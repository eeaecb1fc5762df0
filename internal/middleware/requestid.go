package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// RequestIDHeader carries the request ID on inbound requests and responses.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with the client's X-Request-ID, or a fresh
// UUID when the client sent none. The ID goes into the request context
// and onto the response. Inbound headers are left alone, so the backend
// only sees an ID the client chose to send.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator is RequestID with a custom ID source.
func RequestIDWithGenerator(newID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = newID()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), id)))
		})
	}
}
