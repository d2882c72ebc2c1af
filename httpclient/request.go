package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	fetchtrace "github.com/gaborage/go-bricks-fetch/trace"
)

// call is the immutable, resolved form of a request shared by all of its attempts.
type call struct {
	op        string
	method    string
	url       *url.URL
	headers   map[string]string
	auth      *BasicAuth
	body      *requestBody
	timeout   time.Duration
	retry     RetryPolicy
	traceID   string
	callCount int64
	start     time.Time
}

func (cl *call) target() string {
	return cl.url.String()
}

type callSpec struct {
	op      string
	method  string
	rawURL  string
	target  *url.URL
	headers map[string]string
	query   []QueryParam
	body    any
	auth    *BasicAuth
	timeout time.Duration
	retry   *RetryPolicy
}

// prepare resolves URL, body, timeout and retry policy. Failures are unknown errors.
func (c *Client) prepare(ctx context.Context, spec callSpec) (*call, *Error) {
	u, err := c.resolveURL(spec.rawURL, spec.target)
	if err != nil {
		return nil, NewUnknownError("invalid request URL", err).withURL(spec.rawURL)
	}
	appendQuery(u, spec.query)

	retry := spec.retry
	if retry == nil {
		retry = c.config.Retry
	}
	policy := retry.normalize()

	body, err := encodeBody(spec.body, policy.Attempts > 0)
	if err != nil {
		return nil, NewUnknownError("failed to serialize request body", err).withURL(u.String())
	}

	timeout := spec.timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	method := strings.ToUpper(spec.method)
	if method == "" {
		method = nethttp.MethodGet
	}

	return &call{
		op:        spec.op,
		method:    method,
		url:       u,
		headers:   spec.headers,
		auth:      spec.auth,
		body:      body,
		timeout:   timeout,
		retry:     policy,
		traceID:   c.traceID(ctx),
		callCount: c.callCount.Add(1),
		start:     time.Now(),
	}, nil
}

func (c *Client) resolveURL(raw string, target *url.URL) (*url.URL, error) {
	if target != nil {
		u := *target
		if target.User != nil {
			user := *target.User
			u.User = &user
		}
		return checkAbsolute(&u)
	}
	if raw == "" && c.config.BaseURL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}
	if base := c.config.BaseURL; base != "" && !strings.Contains(raw, "://") {
		raw = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return checkAbsolute(u)
}

func checkAbsolute(u *url.URL) (*url.URL, error) {
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("URL %q must be absolute", u.String())
	}
	return u, nil
}

// appendQuery adds present params after any existing query, keeping their order.
func appendQuery(u *url.URL, params []QueryParam) {
	pairs := make([]string, 0, len(params))
	for _, p := range params {
		v, ok := queryValue(p.Value)
		if !ok {
			continue
		}
		pairs = append(pairs, url.QueryEscape(p.Key)+"="+url.QueryEscape(v))
	}
	if len(pairs) == 0 {
		return
	}
	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += strings.Join(pairs, "&")
}

// queryValue stringifies v; nil values and nil pointers are absent.
func queryValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	switch x := rv.Interface().(type) {
	case string:
		return x, true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}

func (c *Client) traceID(ctx context.Context) string {
	if extract := c.config.TraceIDExtractor; extract != nil {
		if id, ok := extract(ctx); ok && id != "" {
			return id
		}
	}
	if id, ok := fetchtrace.IDFromContext(ctx); ok {
		return id
	}
	if gen := c.config.NewTraceID; gen != nil {
		if id := gen(); id != "" {
			return id
		}
	}
	return fetchtrace.EnsureTraceID(ctx)
}

// newHTTPRequest builds the request for one attempt and runs the request interceptors.
func (c *Client) newHTTPRequest(ctx context.Context, cl *call) (*nethttp.Request, *Error) {
	req, err := nethttp.NewRequestWithContext(ctx, cl.method, cl.target(), cl.body.reader())
	if err != nil {
		return nil, NewUnknownError("failed to create HTTP request", err).withURL(cl.target())
	}

	c.applyHeaders(req, cl)
	c.injectTrace(ctx, req, cl)

	if err := c.runRequestInterceptors(ctx, req); err != nil {
		return nil, NewUnknownError("request interceptor failed", err).withURL(cl.target())
	}
	return req, nil
}

// applyHeaders merges default headers, the user agent, request headers and the body content type.
func (c *Client) applyHeaders(req *nethttp.Request, cl *call) {
	for key, value := range c.config.DefaultHeaders {
		req.Header.Set(key, value)
	}
	if ua := c.config.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	for key, value := range cl.headers {
		req.Header.Set(key, value)
	}
	if cl.body != nil && cl.body.contentType != "" && req.Header.Get(headerContentType) == "" {
		req.Header.Set(headerContentType, cl.body.contentType)
	}

	auth := cl.auth
	if auth == nil {
		auth = c.config.BasicAuth
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
}

func (c *Client) injectTrace(ctx context.Context, req *nethttp.Request, cl *call) {
	fetchtrace.InjectIntoHeadersWithOptions(ctx, fetchtrace.HTTPHeaders(req.Header), fetchtrace.InjectOptions{
		Mode:          fetchtrace.InjectPreserve,
		IDHeader:      c.config.TraceIDHeader,
		IDFromContext: func(context.Context) (string, bool) { return cl.traceID, true },
		W3C:           c.config.EnableW3CTrace,
	})
}

func (c *Client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// newResponse snapshots resp with its already read body.
func newResponse(cl *call, resp *nethttp.Response, body []byte, attempt int) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
		Body:       body,
		Headers:    resp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(cl.start),
			CallCount:   cl.callCount,
			Attempt:     attempt,
		},
	}
}

func statusText(resp *nethttp.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && text != "" {
		return text
	}
	return nethttp.StatusText(resp.StatusCode)
}
