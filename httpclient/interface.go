package httpclient

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/gaborage/go-bricks-fetch/schema"
	fetchtrace "github.com/gaborage/go-bricks-fetch/trace"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = fetchtrace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = fetchtrace.HeaderTraceParent
	// HeaderTraceState is the W3C trace context "tracestate" header name
	HeaderTraceState = fetchtrace.HeaderTraceState
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *nethttp.Request) (*nethttp.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

// Uploader sends a request while reporting how many body bytes have been written.
// total is -1 when the body length is unknown.
type Uploader interface {
	Upload(req *nethttp.Request, onProgress func(loaded, total int64)) (*nethttp.Response, error)
}

// Request describes one logical call made by Execute or Stream. It is not modified.
type Request[T any] struct {
	// Method defaults to GET.
	Method string
	// URL is absolute, or relative to the client base URL. Target takes precedence when set.
	URL    string
	Target *url.URL
	// Headers override the client default headers.
	Headers map[string]string
	// Query entries are appended in order. Entries with a nil value are skipped.
	Query []QueryParam
	// Body is sent as is when it is []byte, io.Reader, url.Values or *FormData.
	// Any other value is encoded as JSON.
	Body any
	// Auth overrides the client basic auth credentials.
	Auth *BasicAuth
	// Timeout bounds each attempt; zero uses the client timeout.
	Timeout time.Duration
	// Retry overrides the client retry policy.
	Retry *RetryPolicy
	// Schema validates the decoded response body. Required.
	Schema schema.Schema[T]
}

// QueryParam is a single query string entry.
type QueryParam struct {
	Key   string
	Value any
}

// Param builds a QueryParam.
func Param(key string, value any) QueryParam {
	return QueryParam{Key: key, Value: value}
}

// Response is the raw HTTP exchange attached to errors.
type Response struct {
	StatusCode int
	// Status is the reason phrase, e.g. "Not Found".
	Status  string
	Body    []byte
	Headers nethttp.Header
	Stats   Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	// CallCount is the client-wide sequence number of the logical call.
	CallCount int64
	// Attempt is the 1-based attempt that produced the response.
	Attempt int
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the client configuration
type Config struct {
	BaseURL string
	// Timeout bounds each attempt (default 10s).
	Timeout time.Duration
	// Retry is the default retry policy; nil disables retries.
	Retry                *RetryPolicy
	UserAgent            string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// TraceIDHeader configures the header name used for trace ID propagation (default: X-Request-ID)
	TraceIDHeader string
	// NewTraceID generates a new trace ID when none is present (default: uuid)
	NewTraceID func() string
	// TraceIDExtractor allows advanced extraction of a trace ID from context; return ok=false to fallback to generator
	TraceIDExtractor func(ctx context.Context) (traceID string, ok bool)
	// EnableW3CTrace enables W3C Trace Context (traceparent/tracestate) propagation and generation
	EnableW3CTrace bool
}

// WithTraceID adds a trace ID to the context for HTTP client propagation
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return fetchtrace.WithTraceID(ctx, traceID)
}

// TraceIDFromContext returns a trace ID from context if present
func TraceIDFromContext(ctx context.Context) (string, bool) { return fetchtrace.IDFromContext(ctx) }

// EnsureTraceID returns an existing trace ID from context or generates a new one
func EnsureTraceID(ctx context.Context) string { return fetchtrace.EnsureTraceID(ctx) }

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return fetchtrace.WithTraceParent(ctx, traceParent)
}

// WithTraceState adds a W3C tracestate value to the context
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return fetchtrace.WithTraceState(ctx, traceState)
}

// NewTraceIDInterceptor creates a request interceptor that adds trace ID headers
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(HeaderXRequestID)
}

// NewTraceIDInterceptorFor creates an interceptor that uses a custom header name
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, EnsureTraceID(ctx))
		}
		return nil
	}
}
