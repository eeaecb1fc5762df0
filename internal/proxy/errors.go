package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for proxy operations.
var (
	// ErrNoMatchingEndpoint indicates that no endpoint accepts the request.
	ErrNoMatchingEndpoint = errors.New("no matching endpoint found")

	// ErrBackendUnreachable indicates that the backend call failed or timed out.
	ErrBackendUnreachable = errors.New("backend unreachable")

	// ErrReadBody indicates that the inbound request body could not be read.
	ErrReadBody = errors.New("failed to read request body")

	// ErrDecodeBody indicates that the backend response could not be decoded.
	ErrDecodeBody = errors.New("failed to decode response body")
)

// ProxyError represents a proxy-related error with details.
type ProxyError struct {
	Op      string // Operation that failed
	Target  string // Target URL if applicable
	Message string // Human-readable message
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	switch {
	case e.Target != "" && e.Cause != nil:
		return fmt.Sprintf("proxy error [%s] target=%s: %s: %v", e.Op, e.Target, e.Message, e.Cause)
	case e.Target != "":
		return fmt.Sprintf("proxy error [%s] target=%s: %s", e.Op, e.Target, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("proxy error [%s]: %s: %v", e.Op, e.Message, e.Cause)
	default:
		return fmt.Sprintf("proxy error [%s]: %s", e.Op, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// NewBackendError wraps a failed backend call. Cause keeps the transport
// error so its text can be reported to the client.
func NewBackendError(target string, cause error) *ProxyError {
	return &ProxyError{
		Op:      "forward",
		Target:  target,
		Message: ErrBackendUnreachable.Error(),
		Cause:   errors.Join(ErrBackendUnreachable, cause),
	}
}

// NewDecodeError wraps a failure to decode a backend response body.
func NewDecodeError(target, encoding string, cause error) *ProxyError {
	return &ProxyError{
		Op:      "decode",
		Target:  target,
		Message: fmt.Sprintf("content-encoding %q", encoding),
		Cause:   errors.Join(ErrDecodeBody, cause),
	}
}

// IsBackendError reports whether err came from the backend call.
func IsBackendError(err error) bool {
	return errors.Is(err, ErrBackendUnreachable) || errors.Is(err, ErrDecodeBody)
}

// detailBody is the JSON error body returned to clients.
type detailBody struct {
	Detail string `json:"detail"`
}

// writeDetail writes {"detail": message} with the given status.
func writeDetail(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, detailBody{Detail: message}, nil)
}

// writeJSON encodes v as the response body. Extra headers are applied
// after Content-Type so they may override it. When v cannot be encoded
// the client gets a 500 detail body and the error is returned.
func writeJSON(w http.ResponseWriter, status int, v any, headers map[string]string) error {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"failed to encode response body"}`))
		return fmt.Errorf("encode response body: %w", err)
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	for name, value := range headers {
		h.Set(name, value)
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
	return nil
}
