package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/faultproxy/internal/config"
	"github.com/vyrodovalexey/faultproxy/internal/fault"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
	"github.com/vyrodovalexey/faultproxy/internal/router"
)

// Client-visible error messages.
const (
	msgNoMatchingEndpoint = "No matching endpoint found"
	msgBadGateway         = "Bad Gateway: "
)

// strippedResponseHeaders are dropped from relayed backend responses
// because the body is relayed decoded and re-framed.
var strippedResponseHeaders = []string{
	"Content-Encoding",
	"Transfer-Encoding",
	"Content-Length",
}

// SnapshotFunc returns the configuration to use for one request.
type SnapshotFunc func() *config.Config

// Handler is the forwarding pipeline. It resolves the endpoint, logs
// debug traffic, applies failure rules and relays the request to the
// active target.
type Handler struct {
	snapshot SnapshotFunc
	injector *fault.Injector
	client   *http.Client
	logger   observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// Option is a functional option for configuring the handler.
type Option func(*Handler)

// WithLogger sets the logger for the handler.
func WithLogger(logger observability.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithTracer sets the tracer used for backend spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(h *Handler) {
		h.tracer = tracer
	}
}

// WithInjector sets the failure injector. Counters live in the injector,
// so callers that rebuild the handler should pass the same one.
func WithInjector(injector *fault.Injector) Option {
	return func(h *Handler) {
		h.injector = injector
	}
}

// WithClient sets the HTTP client used for backend calls.
func WithClient(client *http.Client) Option {
	return func(h *Handler) {
		h.client = client
	}
}

// NewHandler creates a new forwarding handler.
func NewHandler(snapshot SnapshotFunc, opts ...Option) *Handler {
	h := &Handler{
		snapshot: snapshot,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.injector == nil {
		h.injector = fault.NewInjector(fault.WithLogger(h.logger))
	}
	if h.client == nil {
		h.client = NewClient()
	}
	if h.tracer == nil {
		h.tracer = observability.NoopTracer()
	}

	return h
}

// NewClient returns the HTTP client used for backend calls. Redirects
// are relayed to the caller rather than followed, and the transport
// does not negotiate compression on its own.
func NewClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Injector returns the failure injector.
func (h *Handler) Injector() *fault.Injector {
	return h.injector
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	method, path := r.Method, r.URL.Path

	cfg := h.snapshot()

	endpoint, ok := router.Match(cfg, path, method)
	if !ok {
		writeDetail(w, http.StatusNotFound, msgNoMatchingEndpoint)
		h.metrics.RecordRequest(method, observability.OutcomeRejected, time.Since(start))
		return
	}

	logger := h.logger.WithContext(ctx)
	target := cfg.Target

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read request body",
			observability.String("method", method),
			observability.String("path", path),
			observability.Error(err),
		)
		writeDetail(w, http.StatusBadRequest, ErrReadBody.Error()+": "+err.Error())
		h.metrics.RecordRequest(method, observability.OutcomeFailed, time.Since(start))
		return
	}

	if endpoint.Debug {
		logger.Info("[proxy] incoming request",
			observability.String("method", method),
			observability.String("path", path),
			observability.String("target_url", target.URL),
			observability.String("headers", formatHeaders(r.Header)),
			observability.String("body", PreviewBody(body)),
		)
	}

	if rule, fired := h.injector.Evaluate(ctx, endpoint.FailureRules, method, path); fired {
		h.writeInjected(w, logger, endpoint, rule, method, path)
		h.metrics.RecordRequest(method, observability.OutcomeInjected, time.Since(start))
		return
	}

	breq := &backendRequest{
		method:  method,
		url:     BuildTargetURL(target.URL, path),
		header:  BuildOutboundHeaders(r.Header, target.Headers),
		body:    body,
		query:   r.URL.Query(),
		debug:   endpoint.Debug,
		timeout: cfg.Server.UpstreamTimeout.Duration(),
	}
	if r.URL.RawQuery != "" {
		breq.url += "?" + r.URL.RawQuery
	}

	resp, err := h.forward(ctx, logger, breq)
	if err != nil {
		logger.Error("[proxy] request failed",
			observability.String("method", method),
			observability.String("url", breq.url),
			observability.Error(err),
		)
		writeDetail(w, http.StatusBadGateway, msgBadGateway+backendErrorText(err))
		h.metrics.RecordRequest(method, observability.OutcomeFailed, time.Since(start))
		return
	}

	relay(w, resp)
	h.metrics.RecordRequest(method, observability.OutcomeForwarded, time.Since(start))
}

// writeInjected returns the synthetic response of a fired rule.
func (h *Handler) writeInjected(
	w http.ResponseWriter,
	logger observability.Logger,
	endpoint *config.Endpoint,
	rule *config.FailureRule,
	method, path string,
) {
	logger.Warn("[proxy] injecting failure",
		observability.String("method", method),
		observability.String("path", path),
		observability.Int("status", rule.Response.StatusCode),
	)
	h.metrics.RecordInjection(endpoint.Path, rule.Response.StatusCode, rule.Condition.DelayDuration())

	var body any = map[string]any{}
	if rule.Response.Body != nil {
		body = rule.Response.Body
	}
	if err := writeJSON(w, rule.Response.StatusCode, body, rule.Response.Headers); err != nil {
		logger.Error("[proxy] failed to write injected response", observability.Error(err))
	}
}

// backendRequest is one outbound call to the target.
type backendRequest struct {
	method  string
	url     string
	header  http.Header
	body    []byte
	query   url.Values
	debug   bool
	timeout time.Duration
}

// backendResponse is a fully read and decoded backend response.
type backendResponse struct {
	status int
	header http.Header
	body   []byte
}

// forward sends the request to the backend and returns the decoded response.
func (h *Handler) forward(
	ctx context.Context,
	logger observability.Logger,
	breq *backendRequest,
) (*backendResponse, error) {
	if breq.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, breq.timeout)
		defer cancel()
	}

	ctx, span := h.tracer.StartSpan(ctx, "proxy.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", breq.method),
			attribute.String("url.full", breq.url),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, breq.method, breq.url, bytes.NewReader(breq.body))
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, NewBackendError(breq.url, err)
	}
	req.Header = breq.header
	observability.InjectTraceContext(ctx, req)

	if breq.debug {
		fields := []observability.Field{
			observability.String("method", breq.method),
			observability.String("url", breq.url),
			observability.String("headers", formatHeaders(req.Header)),
		}
		if len(breq.query) > 0 {
			fields = append(fields, observability.String("query", formatQuery(breq.query)))
		}
		logger.Info("[proxy] sending to backend", fields...)
	}

	started := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.metrics.RecordBackend(breq.method, 0, time.Since(started))
		observability.RecordSpanError(span, err)
		return nil, NewBackendError(breq.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	h.metrics.RecordBackend(breq.method, resp.StatusCode, time.Since(started))
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, NewBackendError(breq.url, err)
	}

	encoding := resp.Header.Get("Content-Encoding")
	decoded, err := decodeBody(raw, encoding)
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, NewDecodeError(breq.url, encoding, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if breq.debug {
		logger.Info("[proxy] backend response",
			observability.Int("status", resp.StatusCode),
			observability.String("headers", formatHeaders(resp.Header)),
			observability.String("body", PreviewBody(decoded)),
		)
	}

	return &backendResponse{status: resp.StatusCode, header: resp.Header, body: decoded}, nil
}

// relay writes the backend response to the client.
func relay(w http.ResponseWriter, resp *backendResponse) {
	dst := w.Header()
	for name, values := range resp.header {
		dst[name] = append([]string(nil), values...)
	}
	for _, name := range strippedResponseHeaders {
		dst.Del(name)
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}

// BuildTargetURL joins the target base URL and the request path.
// Trailing slashes on the base are dropped; the path is kept as given.
func BuildTargetURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// BuildOutboundHeaders returns the headers sent to the backend: a copy of
// the inbound headers overlaid with the target headers, target winning,
// without Host.
func BuildOutboundHeaders(inbound http.Header, target map[string]string) http.Header {
	out := inbound.Clone()
	if out == nil {
		out = make(http.Header)
	}
	for name, value := range target {
		out.Set(name, value)
	}
	out.Del("Host")
	return out
}

// backendErrorText returns the transport error text reported to clients.
func backendErrorText(err error) string {
	var perr *ProxyError
	if errors.As(err, &perr) && perr.Cause != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(perr.Cause, &joined) {
			errs := joined.Unwrap()
			return errs[len(errs)-1].Error()
		}
		return perr.Cause.Error()
	}
	return err.Error()
}
