package httpclient

import (
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"strings"
	"unicode/utf8"

	"github.com/gaborage/go-bricks-fetch/internal/tracking"
)

const defaultStreamBufferSize = 32 * 1024

// StreamOption customizes Stream.
type StreamOption func(*streamOptions)

type streamOptions struct {
	lines      bool
	bufferSize int
}

// WithLineFraming treats each newline-terminated line as one fragment instead of each read.
func WithLineFraming() StreamOption {
	return func(o *streamOptions) { o.lines = true }
}

// WithStreamBufferSize sets the maximum number of bytes taken from the body per read.
func WithStreamBufferSize(size int) StreamOption {
	return func(o *streamOptions) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// Stream performs a single call and invokes onChunk synchronously for every body fragment
// accepted by req.Schema, in order. By default a fragment is whatever one read of the body
// returns, decoded as UTF-8; fragments that are not JSON are validated as strings.
// Fragments rejected by the schema are dropped without error. There is no retry and no
// per-attempt timeout; ctx alone bounds the call.
func Stream[T any](ctx context.Context, c *Client, req *Request[T], onChunk func(T), opts ...StreamOption) error {
	if req == nil {
		return NewUnknownError("request cannot be nil", nil)
	}
	if req.Schema == nil {
		return NewUnknownError("request schema cannot be nil", nil).withURL(req.URL)
	}
	o := streamOptions{bufferSize: defaultStreamBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	cl, perr := c.prepare(ctx, callSpec{
		op:      tracking.OpStream,
		method:  req.Method,
		rawURL:  req.URL,
		target:  req.Target,
		headers: req.Headers,
		query:   req.Query,
		body:    req.Body,
		auth:    req.Auth,
	})
	if perr != nil {
		c.recordOutcome(ctx, tracking.OpStream, req.Method, perr)
		return perr
	}

	ctx, span := c.startSpan(ctx, cl)
	status, err := c.stream(ctx, cl, o, func(data any) bool {
		v, issues := req.Schema.Validate(ctx, data)
		if len(issues) > 0 {
			return false
		}
		if onChunk != nil {
			onChunk(v)
		}
		return true
	})
	if err != nil {
		c.logFailure(cl, err)
	}
	c.recordOutcome(ctx, cl.op, cl.method, err)
	endSpan(span, status, 1, err)
	if err != nil {
		return err
	}
	return nil
}

func (c *Client) stream(ctx context.Context, cl *call, o streamOptions, emit func(data any) bool) (int, *Error) {
	req, rerr := c.newHTTPRequest(ctx, cl)
	if rerr != nil {
		return 0, rerr
	}
	c.logRequest(req, cl.body.bytes(), cl.traceID, 0)

	resp, err := c.send(ctx, req)
	if err != nil {
		return 0, c.transportFailure(ctx, cl, "request failed", err)
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if err := c.runResponseInterceptors(ctx, req, resp); err != nil {
		return resp.StatusCode, NewUnknownError("response interceptor failed", err).withURL(cl.target())
	}

	if !IsSuccessStatus(resp.StatusCode) {
		var body []byte
		var data any
		if resp.Body != nil {
			var readErr error
			if body, readErr = io.ReadAll(resp.Body); readErr == nil {
				data = parseLenient(body)
			}
		}
		r := newResponse(cl, resp, body, 1)
		c.logResponse(r, cl.traceID)
		return resp.StatusCode, NewHTTPError(r, cl.target(), data)
	}

	if bodyless(cl.method, resp.StatusCode) {
		return resp.StatusCode, NewUnknownError("response body is not readable", nil).withURL(cl.target())
	}
	c.logResponse(newResponse(cl, resp, nil, 1), cl.traceID)
	if resp.Body == nil || resp.Body == nethttp.NoBody {
		return resp.StatusCode, nil
	}

	framer := newFramer(o.lines)
	dispatch := func(fragment string) {
		if fragment == "" || (o.lines && strings.TrimSpace(fragment) == "") {
			return
		}
		accepted := emit(parseLenient([]byte(fragment)))
		tracking.RecordFragment(ctx, accepted)
	}

	buf := make([]byte, o.bufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, fragment := range framer.push(buf[:n]) {
				dispatch(fragment)
			}
		}
		if err == io.EOF {
			for _, fragment := range framer.flush() {
				dispatch(fragment)
			}
			return resp.StatusCode, nil
		}
		if err != nil {
			return resp.StatusCode, c.transportFailure(ctx, cl, "failed to read response stream", err)
		}
	}
}

// bodyless reports whether a successful response can never carry a body to stream.
func bodyless(method string, status int) bool {
	if method == nethttp.MethodHead {
		return true
	}
	switch status {
	case nethttp.StatusNoContent, nethttp.StatusResetContent, nethttp.StatusNotModified:
		return true
	}
	return false
}

// transportFailure classifies an error with no usable response for single-shot operations.
func (c *Client) transportFailure(ctx context.Context, cl *call, message string, err error) *Error {
	if ctx.Err() != nil {
		return NewAbortError(context.Cause(ctx)).withURL(cl.target())
	}
	return NewNetworkError(message, err).withURL(cl.target())
}

// framer splits raw body bytes into text fragments. Incomplete UTF-8 sequences at the end
// of a read are held back until the next read.
type framer struct {
	lines   bool
	pending []byte
}

func newFramer(lines bool) *framer {
	return &framer{lines: lines}
}

func (f *framer) push(chunk []byte) []string {
	f.pending = append(f.pending, chunk...)

	if f.lines {
		var out []string
		for {
			i := bytes.IndexByte(f.pending, '\n')
			if i < 0 {
				return out
			}
			out = append(out, decodeText(bytes.TrimSuffix(f.pending[:i], []byte("\r"))))
			f.pending = f.pending[i+1:]
		}
	}

	cut := completeUTF8Prefix(f.pending)
	if cut == 0 {
		return nil
	}
	text := decodeText(f.pending[:cut])
	f.pending = append([]byte(nil), f.pending[cut:]...)
	return []string{text}
}

func (f *framer) flush() []string {
	if len(f.pending) == 0 {
		return nil
	}
	text := decodeText(f.pending)
	f.pending = nil
	return []string{text}
}

// completeUTF8Prefix returns the length of b without a trailing incomplete rune.
func completeUTF8Prefix(b []byte) int {
	for back := 1; back <= utf8.UTFMax && back <= len(b); back++ {
		i := len(b) - back
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return i
		}
		break
	}
	return len(b)
}

func decodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
