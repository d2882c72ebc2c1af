package httpclient

import (
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-bricks-fetch/logger"
)

var headerFilter = logger.NewSensitiveDataFilter(nil)

func (c *Client) maxPayloadLogBytes() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return defaultMaxPayloadLogBytes
}

// logRequest logs an outgoing attempt. attempt 0 is omitted.
func (c *Client) logRequest(req *nethttp.Request, body []byte, traceID string, attempt int) {
	event := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID)
	if attempt > 0 {
		event = event.Int("attempt", attempt)
	}
	if len(req.Header) > 0 {
		event = event.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	event.Msg("REST client request")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.preview(body)
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", traceID).
		Interface("headers", headerFilter.FilterHeaders(req.Header)).
		Int("body_size", len(body)).
		Str("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("REST client request")
}

// logResponse logs a received response
func (c *Client) logResponse(resp *Response, traceID string) {
	event := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", traceID)
	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
	}
	event.Msg("REST client response")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.preview(resp.Body)
	c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", traceID).
		Interface("headers", headerFilter.FilterHeaders(resp.Headers)).
		Int("body_size", len(resp.Body)).
		Str("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("REST client response")
}

func (c *Client) logRetry(cl *call, attempt int, delay time.Duration, err error) {
	event := c.logger.Warn().
		Str("request_id", cl.traceID).
		Str("method", cl.method).
		Str("url", cl.target()).
		Int("attempt", attempt).
		Dur("delay", delay).
		Str("error_type", string(failureKind(err)))
	if status := failureStatus(err); status > 0 {
		event = event.Int("status", status)
	}
	event.Err(err).Msg("REST client retry scheduled")
}

func (c *Client) logFailure(cl *call, err *Error) {
	event := c.logger.Warn().
		Str("request_id", cl.traceID).
		Str("method", cl.method).
		Str("url", cl.target()).
		Str("error_type", string(err.Kind)).
		Dur("elapsed", time.Since(cl.start))
	if err.Status > 0 {
		event = event.Int("status", err.Status)
	}
	event.Err(err).Msg("REST client request failed")
}

func (c *Client) preview(body []byte) ([]byte, string) {
	limit := c.maxPayloadLogBytes()
	if len(body) > limit {
		return body[:limit], "true"
	}
	return body, "false"
}

// failureKind reports the kind an attempt failure would be classified as.
func failureKind(err error) ErrorType {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	if te, ok := err.(*transportError); ok && te.timedOut {
		return TimeoutError
	}
	return NetworkError
}

func failureStatus(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status
	}
	return 0
}
