package httpclient

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/gaborage/go-bricks-fetch/logger"
)

// DefaultBreakerFailures trips a breaker after this many consecutive failures.
const DefaultBreakerFailures = 5

// BreakerSettings configures the per-resource circuit breakers.
// A resource is the request method plus host and path.
type BreakerSettings struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed; zero never resets.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker (default 5).
	ConsecutiveFailures uint32
}

var errServerStatus = errors.New("server error status")

// callerCanceled marks transport errors caused by the caller, which do not count as failures.
type callerCanceled struct{ err error }

func (e *callerCanceled) Error() string { return e.err.Error() }
func (e *callerCanceled) Unwrap() error { return e.err }

type breakerDoer struct {
	next     Doer
	settings BreakerSettings
	logger   logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*nethttp.Response]
}

func newBreakerDoer(next Doer, settings BreakerSettings, log logger.Logger) *breakerDoer {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerFailures
	}
	return &breakerDoer{
		next:     next,
		settings: settings,
		logger:   log,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*nethttp.Response]),
	}
}

func breakerResource(req *nethttp.Request) string {
	return req.Method + "_" + req.URL.Host + req.URL.Path
}

func (d *breakerDoer) breaker(resource string) *gobreaker.CircuitBreaker[*nethttp.Response] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := d.breakers[resource]; ok {
		return cb
	}
	failures := d.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[*nethttp.Response](gobreaker.Settings{
		Name:        fmt.Sprintf("http client circuit breaker for resource %s", resource),
		MaxRequests: d.settings.MaxRequests,
		Interval:    d.settings.Interval,
		Timeout:     d.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var cc *callerCanceled
			return err == nil || errors.As(err, &cc)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			d.logger.Warn().
				Str("resource", resource).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("REST client circuit breaker state changed")
		},
	})
	d.breakers[resource] = cb
	return cb
}

// Do sends req through the breaker for its resource. 5xx responses count as failures
// but are still returned to the caller.
func (d *breakerDoer) Do(req *nethttp.Request) (*nethttp.Response, error) {
	var serverErr *nethttp.Response
	resp, err := d.breaker(breakerResource(req)).Execute(func() (*nethttp.Response, error) {
		resp, err := d.next.Do(req)
		if err != nil {
			ctx := req.Context()
			if ctx.Err() != nil && !errors.Is(context.Cause(ctx), errAttemptTimeout) {
				return nil, &callerCanceled{err: err}
			}
			return nil, err
		}
		if resp.StatusCode >= 500 {
			serverErr = resp
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) {
		return serverErr, nil
	}
	var cc *callerCanceled
	if errors.As(err, &cc) {
		return nil, cc.err
	}
	return resp, err
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
