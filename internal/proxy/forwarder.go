package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/loangw/internal/auth"
	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
	"github.com/vyrodovalexey/loangw/internal/router"
)

// SpanName is the span recorded around every forward call.
const SpanName = "gateway.forward"

// Forwarder sends requests to backend services.
type Forwarder struct {
	client  *http.Client
	tracer  *observability.Tracer
	metrics *observability.Metrics
	logger  observability.Logger
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics records outcomes in metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = metrics
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *observability.Tracer) Option {
	return func(f *Forwarder) {
		f.tracer = tracer
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(f *Forwarder) {
		f.client.Transport = transport
	}
}

// NewTransport returns the pooled transport used for backend calls.
// Responses are not decompressed so bodies pass through unchanged.
func NewTransport() *http.Transport {
	return &http.Transport{
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
}

// New creates a forwarder. Redirects are returned to the caller, not
// followed.
func New(opts ...Option) *Forwarder {
	f := &Forwarder{
		client: &http.Client{
			Transport: NewTransport(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		tracer: observability.NopTracer(),
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// hasBody reports whether the method carries a forwarded body.
func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// Forward sends r to svc and returns the classified outcome. The call is
// detached from cancellation of ctx and bounded by the service timeout.
func (f *Forwarder) Forward(ctx context.Context, svc config.ServiceDescriptor, r *http.Request, id *auth.Identity) Outcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), svc.Timeout)
	defer cancel()

	ctx, span := f.tracer.StartSpan(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service", svc.Name),
			attribute.String("http.method", r.Method),
		),
	)
	defer span.End()

	out := f.do(ctx, svc, r, id)

	span.SetAttributes(attribute.String("outcome", out.Kind.String()))
	if out.Response != nil {
		span.SetAttributes(attribute.Int("http.status_code", out.Response.StatusCode))
	}
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Kind.String())
	}

	if f.metrics != nil {
		f.metrics.RecordForwardOutcome(svc.Name, out.Kind.String())
	}
	switch {
	case out.Kind == InvalidRequest:
		f.logger.WithContext(ctx).Debug("request not forwarded",
			observability.String("service", svc.Name),
			observability.String("method", r.Method),
			observability.Error(out.Err),
		)
	case out.Kind.IsFailure():
		f.logger.WithContext(ctx).Warn("forward failed",
			observability.String("service", svc.Name),
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.String("outcome", out.Kind.String()),
			observability.Error(out.Err),
		)
	}

	return out
}

func (f *Forwarder) do(ctx context.Context, svc config.ServiceDescriptor, r *http.Request, id *auth.Identity) Outcome {
	// The escaped form keeps %2F, %3F, %23 and %25 as the client sent them.
	target := router.TargetURL(svc.BaseString(), r.URL.EscapedPath())
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	body := io.Reader(http.NoBody)
	if hasBody(r.Method) && r.Body != nil {
		body = r.Body
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return Outcome{Kind: InvalidRequest, Err: fmt.Errorf("failed to build request for %s: %w", svc.Name, err)}
	}
	if hasBody(r.Method) {
		out.ContentLength = r.ContentLength
	}

	copyHeaders(out.Header, r.Header, "Host", "Content-Length")
	if id != nil {
		out.Header.Set(HeaderUserID, id.UserID)
		out.Header.Set(HeaderUsername, id.Username)
	}
	observability.InjectTraceContext(ctx, out.Header)

	resp, err := f.client.Do(out)
	if err != nil {
		return Outcome{Kind: classify(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: classify(err), Err: fmt.Errorf("failed to read response from %s: %w", svc.Name, err)}
	}

	header := make(http.Header, len(resp.Header))
	copyHeaders(header, resp.Header, "Content-Length")

	return Outcome{
		Kind: Success,
		Response: &Response{
			StatusCode: resp.StatusCode,
			Header:     header,
			Body:       data,
		},
	}
}

// WriteResponse writes a backend response verbatim.
func WriteResponse(w http.ResponseWriter, resp *Response) {
	dst := w.Header()
	for name, values := range resp.Header {
		dst[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
