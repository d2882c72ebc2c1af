package trace

import (
	"context"
	"fmt"
)

// HeaderAccessor abstracts a header carrier such as http.Header.
type HeaderAccessor interface {
	Get(key string) any
	Set(key string, value any)
}

// InjectMode controls what happens when a header is already present on the carrier.
type InjectMode int

const (
	// InjectPreserve only fills headers that are missing.
	InjectPreserve InjectMode = iota
	// InjectOverride replaces existing headers with the context values.
	InjectOverride
)

// InjectOptions configures header injection.
type InjectOptions struct {
	Mode InjectMode
	// IDHeader names the request id header (default X-Request-ID).
	IDHeader string
	// NewID produces a request id when neither the context nor a traceparent supplies one.
	NewID func() string
	// IDFromContext overrides how the request id is read from the context.
	IDFromContext func(ctx context.Context) (string, bool)
	// W3C enables traceparent/tracestate propagation, generating a traceparent when absent.
	W3C bool
}

// InjectIntoHeaders adds the request id and W3C trace headers without touching existing ones.
func InjectIntoHeaders(ctx context.Context, headers HeaderAccessor) {
	InjectIntoHeadersWithOptions(ctx, headers, InjectOptions{Mode: InjectPreserve, W3C: true})
}

// InjectIntoHeadersWithOptions adds correlation headers to the carrier according to opts.
// A missing request id is taken from the context, then from the traceparent trace id,
// then from NewID (uuid by default).
func InjectIntoHeadersWithOptions(ctx context.Context, headers HeaderAccessor, opts InjectOptions) {
	idHeader := opts.IDHeader
	if idHeader == "" {
		idHeader = HeaderXRequestID
	}
	override := opts.Mode == InjectOverride

	var traceParent string
	if opts.W3C {
		traceParent = headerString(headers, HeaderTraceParent)
		if traceParent == "" || override {
			tp, ok := ParentFromContext(ctx)
			if !ok && traceParent == "" {
				tp = GenerateTraceParent()
			}
			if tp != "" {
				traceParent = tp
				headers.Set(HeaderTraceParent, tp)
			}
		}
		if ts, ok := StateFromContext(ctx); ok && (override || headerString(headers, HeaderTraceState) == "") {
			headers.Set(HeaderTraceState, ts)
		}
	}

	if !override && headerString(headers, idHeader) != "" {
		return
	}
	headers.Set(idHeader, requestID(ctx, traceParent, opts))
}

func requestID(ctx context.Context, traceParent string, opts InjectOptions) string {
	extract := opts.IDFromContext
	if extract == nil {
		extract = IDFromContext
	}
	if id, ok := extract(ctx); ok && id != "" {
		return id
	}
	if id, ok := TraceIDFromParent(traceParent); ok {
		return id
	}
	if opts.NewID != nil {
		if id := opts.NewID(); id != "" {
			return id
		}
	}
	return EnsureTraceID(ctx)
}

func headerString(headers HeaderAccessor, key string) string {
	switch v := headers.Get(key).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return safeToString(v)
	}
}

func safeToString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
