package fixtures

import (
	"io"
	"net/http"
	"strings"

	"github.com/gaborage/go-bricks-fetch/testing/mocks"
)

// Content type constants
const (
	ApplicationJSONContentType = "application/json"
	TextPlainContentType       = "text/plain; charset=utf-8"
)

// JSONResponse returns a response with a JSON content type.
func JSONResponse(status int, body string) *http.Response {
	return newResponse(status, ApplicationJSONContentType, io.NopCloser(strings.NewReader(body)))
}

// TextResponse returns a plain text response.
func TextResponse(status int, body string) *http.Response {
	return newResponse(status, TextPlainContentType, io.NopCloser(strings.NewReader(body)))
}

// EmptyResponse returns a response without a body.
func EmptyResponse(status int) *http.Response {
	return newResponse(status, "", http.NoBody)
}

// ChunkedResponse returns a 200 response whose body yields exactly one chunk per Read.
func ChunkedResponse(chunks ...string) *http.Response {
	return newResponse(http.StatusOK, "", &ChunkReader{Chunks: chunks})
}

// FreshJSON returns a response factory for MockDoer so retried calls get an unread body.
func FreshJSON(status int, body string) func(*http.Request) *http.Response {
	return func(*http.Request) *http.Response {
		return JSONResponse(status, body)
	}
}

func newResponse(status int, contentType string, body io.ReadCloser) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       body,
	}
}

// ChunkReader returns its chunks one Read at a time and then io.EOF.
// A chunk longer than the read buffer is split across reads. Err, when set,
// is returned instead of io.EOF.
type ChunkReader struct {
	Chunks []string
	Err    error
	closed bool
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	if len(r.Chunks) == 0 {
		if r.Err != nil {
			return 0, r.Err
		}
		return 0, io.EOF
	}
	n := copy(p, r.Chunks[0])
	if n < len(r.Chunks[0]) {
		r.Chunks[0] = r.Chunks[0][n:]
	} else {
		r.Chunks = r.Chunks[1:]
	}
	return n, nil
}

// Close marks the reader closed.
func (r *ChunkReader) Close() error {
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *ChunkReader) Closed() bool {
	return r.closed
}

// NewWorkingDoer returns a mock doer answering every request with the given JSON body.
func NewWorkingDoer(body string) *mocks.MockDoer {
	doer := &mocks.MockDoer{}
	doer.ExpectDo(FreshJSON(http.StatusOK, body), nil)
	return doer
}

// NewFlakyDoer returns a mock doer that answers failures times with 503 and then
// with the given JSON body. This is useful for testing retry logic.
func NewFlakyDoer(failures int, body string) *mocks.MockDoer {
	doer := &mocks.MockDoer{}
	if failures > 0 {
		doer.ExpectDo(FreshJSON(http.StatusServiceUnavailable, `{"error":"unavailable"}`), nil).Times(failures)
	}
	doer.ExpectDo(FreshJSON(http.StatusOK, body), nil)
	return doer
}

// NewFailingDoer returns a mock doer whose every call fails with err.
func NewFailingDoer(err error) *mocks.MockDoer {
	doer := &mocks.MockDoer{}
	doer.ExpectDo(nil, err)
	return doer
}
