package httpclient

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const attrOperation = "fetch.operation"

// startSpan opens the client span covering every attempt of one call.
func (c *Client) startSpan(ctx context.Context, cl *call) (context.Context, oteltrace.Span) {
	tracer := c.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, "HTTP "+cl.method,
		oteltrace.WithTimestamp(cl.start),
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(cl.method),
			semconv.URLFull(redactedURL(cl)),
			semconv.ServerAddress(cl.url.Hostname()),
			attribute.String(attrOperation, cl.op),
		),
	)
}

// endSpan records the outcome of the call on span and ends it.
func endSpan(span oteltrace.Span, status, attempts int, err *Error) {
	if status > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	if attempts > 0 {
		span.SetAttributes(attribute.Int("http.request.resend_count", attempts-1))
	}
	if err != nil {
		span.SetAttributes(semconv.ErrorTypeKey.String(string(err.Kind)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Message)
	}
	span.End()
}

func redactedURL(cl *call) string {
	if cl.url.User == nil {
		return cl.target()
	}
	u := *cl.url
	u.User = nil
	return u.String()
}
