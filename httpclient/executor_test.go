package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-fetch/logger"
	"github.com/gaborage/go-bricks-fetch/schema"
	fetchtesting "github.com/gaborage/go-bricks-fetch/testing"
	"github.com/gaborage/go-bricks-fetch/testing/fixtures"
)

const testRetryDelay = fetchtesting.TestRetryDelay

type testItem struct {
	ID   int    `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,min=2"`
}

// testServer counts calls and answers with handler.
type testServer struct {
	*httptest.Server
	calls atomic.Int64
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call int)) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r, int(ts.calls.Add(1)))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) Calls() int {
	return int(ts.calls.Load())
}

// recorder hands values captured by a handler to the test goroutine.
type recorder[T any] struct {
	mu sync.Mutex
	v  T
}

func (r *recorder[T]) set(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v = v
}

func (r *recorder[T]) get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.v
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// blockUntilDone holds the handler until the client goes away.
func blockUntilDone(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

func newTestClient() *Builder {
	return NewBuilder(logger.NewNop())
}

func TestExecuteReturnsValidatedValue(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		writeJSON(w, http.StatusOK, `{"id":7,"name":"widget","extra":true}`)
	})
	c := newTestClient().Build()

	item, err := Execute(context.Background(), c, &Request[testItem]{
		URL:    ts.URL + "/items/7",
		Schema: schema.Struct[testItem](),
		Retry:  &RetryPolicy{Attempts: 3, Delay: testRetryDelay},
	})

	require.NoError(t, err)
	assert.Equal(t, testItem{ID: 7, Name: "widget"}, item)
	assert.Equal(t, 1, ts.Calls())
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		writeJSON(w, http.StatusInternalServerError, `{"error":"boom"}`)
	})
	c := newTestClient().Build()

	start := time.Now()
	_, err := Execute(context.Background(), c, &Request[any]{
		URL:    ts.URL,
		Schema: schema.Any(),
		Retry:  &RetryPolicy{Attempts: 2, Delay: testRetryDelay},
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 3, ts.Calls())
	assert.GreaterOrEqual(t, elapsed, 2*testRetryDelay)

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, NetworkError, e.Kind)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, "Internal Server Error", e.StatusText)
	assert.Equal(t, map[string]any{"error": "boom"}, e.Data)
	require.NotNil(t, e.Response)
	assert.Equal(t, 3, e.Response.Stats.Attempt)
}

func TestExecuteExponentialBackoff(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient().Build()

	start := time.Now()
	_, err := Execute(context.Background(), c, &Request[any]{
		URL:    ts.URL,
		Schema: schema.Any(),
		Retry:  &RetryPolicy{Attempts: 2, Delay: testRetryDelay, Backoff: BackoffExponential},
	})

	require.Error(t, err)
	assert.Equal(t, 3, ts.Calls())
	assert.GreaterOrEqual(t, time.Since(start), 3*testRetryDelay)
}

func TestExecuteRecoversAfterTransientFailures(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, call int) {
		if call < 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{"error":"unavailable"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":1,"name":"ok"}`)
	})
	c := newTestClient().WithRetries(3, testRetryDelay).Build()

	item, err := Execute(context.Background(), c, &Request[testItem]{URL: ts.URL, Schema: schema.Struct[testItem]()})

	require.NoError(t, err)
	assert.Equal(t, 1, item.ID)
	assert.Equal(t, 3, ts.Calls())
}

func TestExecuteDoesNotRetryValidationFailures(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		writeJSON(w, http.StatusOK, `{"name":"x"}`)
	})
	c := newTestClient().Build()

	_, err := Execute(context.Background(), c, &Request[testItem]{
		URL:    ts.URL,
		Schema: schema.Struct[testItem](),
		Retry:  &RetryPolicy{Attempts: 3, Delay: testRetryDelay},
	})

	require.Error(t, err)
	assert.Equal(t, 1, ts.Calls())
	assert.True(t, IsErrorType(err, ValidationError))

	e, _ := AsError(err)
	assert.Equal(t, map[string]any{"name": "x"}, e.Data)
	paths := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		paths = append(paths, issue.Path)
	}
	assert.ElementsMatch(t, []string{"id", "name"}, paths)
	require.NotNil(t, e.Response)
	assert.Equal(t, http.StatusOK, e.Response.StatusCode)
}

func TestExecuteDoesNotRetryClientErrors(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		http.Error(w, "missing", http.StatusNotFound)
	})
	c := newTestClient().WithRetries(2, testRetryDelay).Build()

	_, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL, Schema: schema.Any()})

	require.Error(t, err)
	assert.Equal(t, 1, ts.Calls())
	assert.True(t, IsHTTPStatusError(err, http.StatusNotFound))
	assert.True(t, IsErrorType(err, NetworkError))

	e, _ := AsError(err)
	assert.Equal(t, "missing\n", e.Data)
	assert.Equal(t, ts.URL, e.URL)
}

func TestExecuteAttemptTimeout(t *testing.T) {
	ts := newTestServer(t, func(_ http.ResponseWriter, r *http.Request, _ int) {
		blockUntilDone(r)
	})
	c := newTestClient().Build()

	_, err := Execute(context.Background(), c, &Request[any]{
		URL:     ts.URL,
		Schema:  schema.Any(),
		Timeout: fetchtesting.TestAttemptTimeout,
		Retry:   &RetryPolicy{Attempts: 1, Delay: testRetryDelay},
	})

	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, TimeoutError, e.Kind)
	assert.Equal(t, fetchtesting.TestAttemptTimeout, e.Timeout)
	assert.Contains(t, e.Message, fetchtesting.TestAttemptTimeout.String())
	assert.Eventually(t, func() bool { return ts.Calls() == 2 }, fetchtesting.TestEventuallyWait, fetchtesting.TestEventuallyTick)
}

func TestExecuteCallerCancellationAborts(t *testing.T) {
	t.Run("during attempt", func(t *testing.T) {
		ts := newTestServer(t, func(_ http.ResponseWriter, r *http.Request, _ int) {
			blockUntilDone(r)
		})
		c := newTestClient().Build()

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		_, err := Execute(ctx, c, &Request[any]{
			URL:     ts.URL,
			Schema:  schema.Any(),
			Timeout: 5 * time.Second,
			Retry:   &RetryPolicy{Attempts: 3, Delay: testRetryDelay},
		})

		require.Error(t, err)
		assert.True(t, IsErrorType(err, AbortError))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during backoff", func(t *testing.T) {
		ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		c := newTestClient().Build()

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(100*time.Millisecond, cancel)

		start := time.Now()
		_, err := Execute(ctx, c, &Request[any]{
			URL:    ts.URL,
			Schema: schema.Any(),
			Retry:  &RetryPolicy{Attempts: 3, Delay: 5 * time.Second},
		})

		require.Error(t, err)
		assert.True(t, IsErrorType(err, AbortError))
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, 1, ts.Calls())
	})

	t.Run("already cancelled", func(t *testing.T) {
		ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
			w.WriteHeader(http.StatusOK)
		})
		c := newTestClient().Build()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Execute(ctx, c, &Request[any]{URL: ts.URL, Schema: schema.Any(), Retry: Retry(2)})
		assert.True(t, IsErrorType(err, AbortError))
	})

	t.Run("caller deadline is an abort", func(t *testing.T) {
		ts := newTestServer(t, func(_ http.ResponseWriter, r *http.Request, _ int) {
			blockUntilDone(r)
		})
		c := newTestClient().Build()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := Execute(ctx, c, &Request[any]{URL: ts.URL, Schema: schema.Any(), Timeout: 5 * time.Second})
		assert.True(t, IsErrorType(err, AbortError))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestExecuteNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	target := ts.URL
	ts.Close()

	c := newTestClient().Build()
	_, err := Execute(context.Background(), c, &Request[any]{
		URL:    target,
		Schema: schema.Any(),
		Retry:  &RetryPolicy{Attempts: 1, Delay: -1},
	})

	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, NetworkError, e.Kind)
	assert.Zero(t, e.Status)
	assert.NotNil(t, e.Data)
	assert.Equal(t, target, e.URL)
}

func TestExecuteWithMockDoers(t *testing.T) {
	t.Run("working", func(t *testing.T) {
		doer := fixtures.NewWorkingDoer(`{"id":7,"name":"seven"}`)
		c := newTestClient().WithDoer(doer).Build()

		item, err := Execute(context.Background(), c, &Request[testItem]{URL: fetchtesting.TestBaseURL + fetchtesting.TestItemsPath, Schema: schema.Struct[testItem]()})
		require.NoError(t, err)
		assert.Equal(t, testItem{ID: 7, Name: "seven"}, item)
		assert.Equal(t, 1, doer.Calls())
	})

	t.Run("failing transport is retried", func(t *testing.T) {
		doer := fixtures.NewFailingDoer(errors.New("connection refused"))
		c := newTestClient().WithDoer(doer).WithRetries(2, testRetryDelay).Build()

		_, err := Execute(context.Background(), c, &Request[any]{URL: fetchtesting.TestBaseURL + fetchtesting.TestItemsPath, Schema: schema.Any()})
		require.Error(t, err)
		assert.True(t, IsErrorType(err, NetworkError))
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 3, doer.Calls())
	})

	t.Run("nil response without error", func(t *testing.T) {
		doer := fixtures.NewFailingDoer(nil)
		c := newTestClient().WithDoer(doer).WithRetries(1, testRetryDelay).Build()

		_, err := Execute(context.Background(), c, &Request[any]{URL: fetchtesting.TestBaseURL + fetchtesting.TestItemsPath, Schema: schema.Any()})
		require.Error(t, err)
		e, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, NetworkError, e.Kind)
		assert.Zero(t, e.Status)
		assert.Contains(t, err.Error(), "no response")
		assert.Equal(t, 2, doer.Calls())
	})
}

func TestExecuteRequestAssembly(t *testing.T) {
	type captured struct {
		method, path, query, contentType, userAgent, custom, requestID string
		body                                                           []byte
		user, pass                                                     string
	}
	var rec recorder[captured]
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		rec.set(captured{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.RawQuery,
			contentType: r.Header.Get("Content-Type"),
			userAgent:   r.Header.Get("User-Agent"),
			custom:      r.Header.Get("X-Custom"),
			requestID:   r.Header.Get(HeaderXRequestID),
			body:        body,
			user:        user,
			pass:        pass,
		})
		writeJSON(w, http.StatusCreated, `{"id":1,"name":"created"}`)
	})

	c := newTestClient().
		WithBaseURL(ts.URL+"/api/").
		WithUserAgent("fetch-test").
		WithDefaultHeader("X-Custom", "default").
		WithBasicAuth("svc", "secret").
		Build()

	page := 2
	var missing *int
	ctx := WithTraceID(context.Background(), "trace-assembly")
	_, err := Execute(ctx, c, &Request[testItem]{
		Method:  "post",
		URL:     "/items",
		Headers: map[string]string{"X-Custom": "override"},
		Query: []QueryParam{
			Param("q", "a b&c"),
			Param("page", &page),
			Param("skip", nil),
			Param("missing", missing),
			Param("active", true),
		},
		Body:   map[string]any{"name": "created"},
		Schema: schema.Struct[testItem](),
	})

	require.NoError(t, err)
	got := rec.get()
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/items", got.path)
	assert.Equal(t, "q=a+b%26c&page=2&active=true", got.query)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "fetch-test", got.userAgent)
	assert.Equal(t, "override", got.custom)
	assert.Equal(t, "trace-assembly", got.requestID)
	assert.JSONEq(t, `{"name":"created"}`, string(got.body))
	assert.Equal(t, "svc", got.user)
	assert.Equal(t, "secret", got.pass)
}

func TestExecuteQueryAppendsToExistingQuery(t *testing.T) {
	var query recorder[string]
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		query.set(r.URL.RawQuery)
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient().Build()

	target, err := url.Parse(ts.URL + "/search?fixed=1")
	require.NoError(t, err)
	_, err = Execute(context.Background(), c, &Request[any]{
		Target: target,
		Query:  []QueryParam{Param("term", "go")},
		Schema: schema.Any(),
	})

	require.NoError(t, err)
	assert.Equal(t, "fixed=1&term=go", query.get())
	assert.Equal(t, "/search?fixed=1", target.RequestURI())
}

func TestExecuteReplaysBodyOnRetry(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if call == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})
	c := newTestClient().Build()

	_, err := Execute(context.Background(), c, &Request[any]{
		Method: http.MethodPut,
		URL:    ts.URL,
		Body:   []byte("raw-payload"),
		Schema: schema.Any(),
		Retry:  &RetryPolicy{Attempts: 1, Delay: -1},
	})

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"raw-payload", "raw-payload"}, bodies)
}

func TestExecuteResponseParsing(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		want        any
	}{
		{name: "json", contentType: "application/json; charset=utf-8", status: 200, body: `{"a":[1,2]}`, want: map[string]any{"a": []any{1.0, 2.0}}},
		{name: "json without content type", status: 200, body: `[true]`, want: []any{true}},
		{name: "text", contentType: "text/plain", status: 200, body: "hello", want: "hello"},
		{name: "no content", status: 204, want: ""},
		{name: "empty text", contentType: "text/plain", status: 200, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			c := newTestClient().Build()

			got, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL, Schema: schema.Any()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteEmptyBodyReachesSchemaAsText(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
	})
	c := newTestClient().Build()

	var seen recorder[any]
	got, err := Execute(context.Background(), c, &Request[string]{
		URL: ts.URL,
		Schema: schema.Func[string](func(_ context.Context, data any) (string, []schema.Issue) {
			seen.set(data)
			s, ok := data.(string)
			if !ok {
				return "", []schema.Issue{{Message: "expected text", Code: "type"}}
			}
			return s, nil
		}),
	})

	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, "", seen.get())
}

func TestExecuteEmptyJSONBodyFailsToDecode(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})
	c := newTestClient().Build()

	_, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL, Schema: schema.Any()})

	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
	assert.Contains(t, err.Error(), "failed to decode response body")
}

func TestExecuteMalformedJSONIsNotRetried(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		writeJSON(w, http.StatusOK, `{"broken":`)
	})
	c := newTestClient().WithRetries(2, testRetryDelay).Build()

	_, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL, Schema: schema.Any()})

	require.Error(t, err)
	assert.Equal(t, 1, ts.Calls())
	e, _ := AsError(err)
	assert.Equal(t, NetworkError, e.Kind)
	assert.Contains(t, e.Error(), "failed to decode response body")
	require.NotNil(t, e.Response)
	assert.Equal(t, []byte(`{"broken":`), e.Response.Body)
}

func TestExecuteInvalidRequests(t *testing.T) {
	c := newTestClient().Build()
	ctx := context.Background()

	_, err := Execute[any](ctx, c, nil)
	assert.True(t, IsErrorType(err, UnknownError))

	_, err = Execute(ctx, c, &Request[any]{URL: "https://api.example.com"})
	assert.True(t, IsErrorType(err, UnknownError))

	_, err = Execute(ctx, c, &Request[any]{URL: "/relative/without/base", Schema: schema.Any()})
	assert.True(t, IsErrorType(err, UnknownError))

	_, err = Execute(ctx, c, &Request[any]{URL: "https://api.example.com", Body: make(chan int), Schema: schema.Any()})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, UnknownError))
	assert.Contains(t, err.Error(), "serialize")
}

func TestExecuteInterceptors(t *testing.T) {
	t.Run("request interceptor sees final headers", func(t *testing.T) {
		var seen recorder[string]
		ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
			seen.set(r.Header.Get("X-Signed"))
			w.WriteHeader(http.StatusNoContent)
		})
		c := newTestClient().
			WithRequestInterceptor(func(_ context.Context, req *http.Request) error {
				req.Header.Set("X-Signed", req.Method+" "+req.URL.Path)
				return nil
			}).
			Build()

		_, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL + "/sign", Schema: schema.Any()})
		require.NoError(t, err)
		assert.Equal(t, "GET /sign", seen.get())
	})

	t.Run("request interceptor failure is unknown and not sent", func(t *testing.T) {
		ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
			w.WriteHeader(http.StatusOK)
		})
		c := newTestClient().
			WithRetries(2, testRetryDelay).
			WithRequestInterceptor(func(context.Context, *http.Request) error { return errors.New("no credentials") }).
			Build()

		_, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL, Schema: schema.Any()})
		require.Error(t, err)
		assert.True(t, IsErrorType(err, UnknownError))
		assert.Contains(t, err.Error(), "no credentials")
		assert.Zero(t, ts.Calls())
	})

	t.Run("response interceptor failure is unknown", func(t *testing.T) {
		ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
			w.WriteHeader(http.StatusOK)
		})
		c := newTestClient().
			WithResponseInterceptor(func(_ context.Context, _ *http.Request, resp *http.Response) error {
				return errors.New("unexpected status " + resp.Status)
			}).
			Build()

		_, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL, Schema: schema.Any()})
		assert.True(t, IsErrorType(err, UnknownError))
	})
}

func TestExecuteW3CTracePropagation(t *testing.T) {
	var traceParent, requestID recorder[string]
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		traceParent.set(r.Header.Get(HeaderTraceParent))
		requestID.set(r.Header.Get("X-Correlation-ID"))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient().WithW3CTrace(true).WithTraceIDHeader("X-Correlation-ID").Build()

	ctx := WithTraceParent(context.Background(), testTraceParent)
	_, err := Execute(ctx, c, &Request[any]{URL: ts.URL, Schema: schema.Any()})

	require.NoError(t, err)
	assert.Equal(t, testTraceParent, traceParent.get())
	assert.NotEmpty(t, requestID.get())
}

func TestExecuteCircuitBreakerOpens(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient().
		WithCircuitBreaker(BreakerSettings{ConsecutiveFailures: 2, Timeout: time.Minute}).
		Build()
	req := &Request[any]{URL: ts.URL + "/flaky", Schema: schema.Any()}

	for range 2 {
		_, err := Execute(context.Background(), c, req)
		assert.True(t, IsHTTPStatusError(err, http.StatusInternalServerError))
	}

	_, err := Execute(context.Background(), c, &Request[any]{
		URL:    ts.URL + "/flaky",
		Schema: schema.Any(),
		Retry:  &RetryPolicy{Attempts: 3, Delay: testRetryDelay},
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, ts.Calls())

	// Other resources have their own breaker.
	_, err = Execute(context.Background(), c, &Request[any]{URL: ts.URL + "/other", Schema: schema.Any()})
	assert.True(t, IsHTTPStatusError(err, http.StatusInternalServerError))
	assert.Equal(t, 3, ts.Calls())
}

func TestExecuteRateLimit(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient().WithRateLimit(rate.Every(testRetryDelay), 1).Build()

	start := time.Now()
	for range 3 {
		_, err := Execute(context.Background(), c, &Request[any]{URL: ts.URL, Schema: schema.Any()})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 2*testRetryDelay-5*time.Millisecond)
}

func TestExecuteConcurrentCalls(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		id := r.URL.Query().Get("id")
		writeJSON(w, http.StatusOK, `{"id":`+id+`,"name":"item-`+id+`"}`)
	})
	c := newTestClient().Build()

	const n = 20
	results := make([]testItem, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range n {
		g.Go(func() error {
			item, err := Execute(ctx, c, &Request[testItem]{
				URL:    ts.URL,
				Query:  []QueryParam{Param("id", i+1)},
				Schema: schema.Struct[testItem](),
			})
			results[i] = item
			return err
		})
	}

	require.NoError(t, g.Wait())
	for i, item := range results {
		assert.Equal(t, i+1, item.ID)
	}
	assert.Equal(t, int64(n), c.callCount.Load())
}

func TestExecuteWithConfigDefaults(t *testing.T) {
	var ua recorder[string]
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request, call int) {
		ua.set(r.Header.Get("User-Agent"))
		if call == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := json.Marshal(map[string]any{"id": 3, "name": "configured"})
		writeJSON(w, http.StatusOK, string(body))
	})

	c := newTestClient().
		WithBaseURL(ts.URL).
		WithUserAgent("configured-agent").
		WithRetry(RetryPolicy{Attempts: 1, Delay: -1}).
		Build()

	item, err := Execute(context.Background(), c, &Request[testItem]{URL: "items", Schema: schema.Struct[testItem]()})
	require.NoError(t, err)
	assert.Equal(t, "configured", item.Name)
	assert.Equal(t, "configured-agent", ua.get())
	assert.Equal(t, 2, ts.Calls())
}
