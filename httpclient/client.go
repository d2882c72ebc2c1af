package httpclient

import (
	"context"
	"maps"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-fetch/config"
	"github.com/gaborage/go-bricks-fetch/logger"
)

const (
	tracerName = "go-bricks-fetch/httpclient"

	defaultMaxPayloadLogBytes = 1024
)

// Client executes validated requests. It is safe for concurrent use.
type Client struct {
	doer                 Doer
	uploader             Uploader
	logger               logger.Logger
	config               *Config
	limiter              *rate.Limiter
	tracer               oteltrace.Tracer
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	callCount            atomic.Int64
}

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
		MaxPayloadLogBytes:   defaultMaxPayloadLogBytes,
		TraceIDHeader:        HeaderXRequestID,
	}
}

// NewClient creates a client with default configuration backed by a plain http.Client.
func NewClient(log logger.Logger) *Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config         *Config
	logger         logger.Logger
	doer           Doer
	uploader       Uploader
	breaker        *BreakerSettings
	limiter        *rate.Limiter
	tracerProvider oteltrace.TracerProvider
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{config: defaultConfig(), logger: log}
}

// WithBaseURL sets the prefix for relative request URLs
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetry sets the default retry policy
func (b *Builder) WithRetry(policy RetryPolicy) *Builder {
	b.config.Retry = &policy
	return b
}

// WithRetries sets a linear retry policy with the given number of retries and delay
func (b *Builder) WithRetries(maxRetries int, retryDelay time.Duration) *Builder {
	return b.WithRetry(RetryPolicy{Attempts: maxRetries, Delay: retryDelay, Backoff: BackoffLinear})
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithUserAgent sets the User-Agent header for all requests
func (b *Builder) WithUserAgent(userAgent string) *Builder {
	b.config.UserAgent = userAgent
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithDoer replaces the transport used by Execute and Stream
func (b *Builder) WithDoer(doer Doer) *Builder {
	b.doer = doer
	return b
}

// WithHTTPClient uses hc for Execute and Stream. Its Timeout should be zero or larger than
// the per-attempt timeout.
func (b *Builder) WithHTTPClient(hc *nethttp.Client) *Builder {
	b.doer = hc
	return b
}

// WithTransport uses a plain http.Client over rt
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.doer = &nethttp.Client{Transport: rt}
	return b
}

// WithUploader replaces the progress-capable transport used by Upload
func (b *Builder) WithUploader(uploader Uploader) *Builder {
	b.uploader = uploader
	return b
}

// WithTraceIDHeader sets the header used for the request id
func (b *Builder) WithTraceIDHeader(header string) *Builder {
	b.config.TraceIDHeader = header
	return b
}

// WithTraceIDGenerator sets the function producing request ids when the context has none
func (b *Builder) WithTraceIDGenerator(gen func() string) *Builder {
	b.config.NewTraceID = gen
	return b
}

// WithTraceIDExtractor customizes how the request id is read from the context
func (b *Builder) WithTraceIDExtractor(extract func(ctx context.Context) (string, bool)) *Builder {
	b.config.TraceIDExtractor = extract
	return b
}

// WithW3CTrace enables traceparent/tracestate propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithLogPayloads enables debug logging of headers and body previews capped at maxBytes
func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithCircuitBreaker wraps the transport in a circuit breaker per method and path
func (b *Builder) WithCircuitBreaker(settings BreakerSettings) *Builder {
	b.breaker = &settings
	return b
}

// WithRateLimit limits outbound attempts to limit per second with the given burst
func (b *Builder) WithRateLimit(limit rate.Limit, burst int) *Builder {
	b.limiter = rate.NewLimiter(limit, burst)
	return b
}

// WithTracerProvider sets the OpenTelemetry tracer provider (default: global)
func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithConfig applies loaded configuration on top of the current settings
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	if cfg == nil {
		return b
	}
	c := cfg.Client
	if c.BaseURL != "" {
		b.WithBaseURL(c.BaseURL)
	}
	if c.Timeout > 0 {
		b.WithTimeout(c.Timeout)
	}
	if c.UserAgent != "" {
		b.WithUserAgent(c.UserAgent)
	}
	for k, v := range c.Headers {
		b.WithDefaultHeader(k, v)
	}
	if cfg.Retry.Attempts > 0 {
		b.WithRetry(RetryPolicy{
			Attempts: cfg.Retry.Attempts,
			Delay:    cfg.Retry.Delay,
			Backoff:  Backoff(cfg.Retry.Backoff),
		})
	}
	b.WithLogPayloads(cfg.Log.Payloads, cfg.Log.MaxPayloadBytes)
	if cfg.Trace.Header != "" {
		b.WithTraceIDHeader(cfg.Trace.Header)
	}
	b.WithW3CTrace(cfg.Trace.W3C)
	if cfg.Breaker.Enabled {
		b.WithCircuitBreaker(BreakerSettings{
			MaxRequests:         cfg.Breaker.MaxRequests,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
			ConsecutiveFailures: cfg.Breaker.Failures,
		})
	}
	if cfg.Rate.Enabled {
		b.WithRateLimit(rate.Limit(cfg.Rate.Limit), cfg.Rate.Burst)
	}
	return b
}

// Build creates the client with the configured options
func (b *Builder) Build() *Client {
	cfg := *b.config
	cfg.DefaultHeaders = maps.Clone(b.config.DefaultHeaders)
	cfg.RequestInterceptors = append([]RequestInterceptor(nil), b.config.RequestInterceptors...)
	cfg.ResponseInterceptors = append([]ResponseInterceptor(nil), b.config.ResponseInterceptors...)

	doer := b.doer
	if doer == nil {
		doer = &nethttp.Client{}
	}
	uploader := b.uploader
	if uploader == nil {
		uploader = NewProgressUploader(doer)
	}
	if b.breaker != nil {
		doer = newBreakerDoer(doer, *b.breaker, b.logger)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Client{
		doer:                 doer,
		uploader:             uploader,
		logger:               b.logger,
		config:               &cfg,
		limiter:              b.limiter,
		tracer:               tp.Tracer(tracerName),
		requestInterceptors:  cfg.RequestInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
	}
}
