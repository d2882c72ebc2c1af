package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-bricks-fetch/internal/tracking"
)

// acceptFunc validates the decoded body of a 2xx response.
type acceptFunc func(ctx context.Context, resp *Response, data any) *Error

// Execute sends req, retrying transient failures, and returns the body validated by req.Schema.
// The only error type returned is *Error.
func Execute[T any](ctx context.Context, c *Client, req *Request[T]) (T, error) {
	var value T
	if req == nil {
		return value, NewUnknownError("request cannot be nil", nil)
	}
	if req.Schema == nil {
		return value, NewUnknownError("request schema cannot be nil", nil).withURL(req.URL)
	}

	cl, perr := c.prepare(ctx, callSpec{
		op:      tracking.OpExecute,
		method:  req.Method,
		rawURL:  req.URL,
		target:  req.Target,
		headers: req.Headers,
		query:   req.Query,
		body:    req.Body,
		auth:    req.Auth,
		timeout: req.Timeout,
		retry:   req.Retry,
	})
	if perr != nil {
		c.recordOutcome(ctx, tracking.OpExecute, req.Method, perr)
		return value, perr
	}

	err := c.execute(ctx, cl, func(ctx context.Context, resp *Response, data any) *Error {
		v, issues := req.Schema.Validate(ctx, data)
		if len(issues) > 0 {
			verr := NewValidationError(issues, data).withURL(cl.target())
			verr.Response = resp
			return verr
		}
		value = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// execute runs the attempt loop for cl and returns nil or a classified *Error.
func (c *Client) execute(ctx context.Context, cl *call, accept acceptFunc) error {
	ctx, span := c.startSpan(ctx, cl)

	var (
		attempt int
		status  int
		err     error
	)
	for attempt = 1; ; attempt++ {
		status, err = c.attempt(ctx, cl, attempt, accept)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			err = NewAbortError(context.Cause(ctx)).withURL(cl.target())
			break
		}
		if !isRetryable(err) || attempt > cl.retry.Attempts {
			err = c.classify(cl, err)
			break
		}

		delay := cl.retry.delayFor(attempt)
		c.logRetry(cl, attempt, delay, err)
		tracking.RecordRetry(ctx, cl.method, string(failureKind(err)))
		if sleep(ctx, delay) != nil {
			err = NewAbortError(context.Cause(ctx)).withURL(cl.target())
			break
		}
	}

	var classified *Error
	if err != nil {
		classified, _ = AsError(err)
		c.logFailure(cl, classified)
	}
	c.recordOutcome(ctx, cl.op, cl.method, classified)
	endSpan(span, status, attempt, classified)
	if classified != nil {
		return classified
	}
	return nil
}

// classify maps a final attempt failure onto the error taxonomy.
func (c *Client) classify(cl *call, err error) *Error {
	if e, ok := AsError(err); ok {
		return e.withURL(cl.target())
	}
	var te *transportError
	if errors.As(err, &te) && te.timedOut {
		return NewTimeoutError(fmt.Sprintf("request timed out after %v", cl.timeout), cl.timeout).withURL(cl.target())
	}
	cause := err
	if te != nil {
		cause = te.err
	}
	return NewNetworkError("request failed", cause).withURL(cl.target())
}

// attempt performs one network call bounded by the per-attempt timer. It returns the
// response status when one was received.
func (c *Client) attempt(ctx context.Context, cl *call, n int, accept acceptFunc) (int, error) {
	actx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := time.AfterFunc(cl.timeout, func() { cancel(errAttemptTimeout) })
	defer timer.Stop()

	req, rerr := c.newHTTPRequest(actx, cl)
	if rerr != nil {
		return 0, rerr
	}
	c.logRequest(req, cl.body.bytes(), cl.traceID, n)

	end := tracking.StartAttempt(ctx, cl.method, cl.url.Host)
	sent := time.Now()
	resp, err := c.send(actx, req)
	timer.Stop()
	if err != nil {
		te := &transportError{err: err, timedOut: timedOut(actx)}
		end(tracking.Attempt{Method: cl.method, Host: cl.url.Host, Number: n, Duration: time.Since(sent), ErrorType: string(failureKind(te))})
		return 0, te
	}
	if resp.Body == nil {
		resp.Body = nethttp.NoBody
	}
	defer resp.Body.Close()
	end(tracking.Attempt{Method: cl.method, Host: cl.url.Host, Number: n, Status: resp.StatusCode, Duration: time.Since(sent)})

	if err := c.runResponseInterceptors(actx, req, resp); err != nil {
		return resp.StatusCode, NewUnknownError("response interceptor failed", err)
	}

	body, readErr := io.ReadAll(resp.Body)
	r := newResponse(cl, resp, body, n)
	c.logResponse(r, cl.traceID)

	if !IsSuccessStatus(resp.StatusCode) {
		var data any
		if readErr == nil {
			data = parseLenient(body)
		}
		return resp.StatusCode, NewHTTPError(r, cl.target(), data)
	}
	if readErr != nil {
		return resp.StatusCode, &transportError{err: readErr, timedOut: timedOut(actx)}
	}

	data, err := decodeBody(resp.Header.Get(headerContentType), body)
	if err != nil {
		derr := NewNetworkError("failed to decode response body", err)
		derr.Response = r
		return resp.StatusCode, derr
	}
	if verr := accept(actx, r, data); verr != nil {
		return resp.StatusCode, verr
	}
	return resp.StatusCode, nil
}

// send waits for the rate limiter, if any, and hands req to the transport.
func (c *Client) send(ctx context.Context, req *nethttp.Request) (*nethttp.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	resp, err := c.doer.Do(req)
	if err == nil && resp == nil {
		return nil, errNoResponse
	}
	return resp, err
}

func timedOut(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errAttemptTimeout)
}

func (c *Client) recordOutcome(ctx context.Context, op, method string, err *Error) {
	outcome := tracking.OutcomeSuccess
	if err != nil {
		outcome = string(err.Kind)
	}
	tracking.RecordOutcome(ctx, op, method, outcome)
}
