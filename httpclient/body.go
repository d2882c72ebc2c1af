package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeForm   = "application/x-www-form-urlencoded"
)

// requestBody is a serialized request body that can be replayed across attempts
// unless it wraps a caller-supplied stream.
type requestBody struct {
	data        []byte
	stream      io.Reader
	contentType string
}

// encodeBody serializes body. Streams are buffered when replay is required.
func encodeBody(body any, replay bool) (*requestBody, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return &requestBody{data: v}, nil
	case url.Values:
		return &requestBody{data: []byte(v.Encode()), contentType: contentTypeForm}, nil
	case *FormData:
		data, ct, err := v.Encode()
		if err != nil {
			return nil, err
		}
		return &requestBody{data: data, contentType: ct}, nil
	case io.Reader:
		if !replay {
			return &requestBody{stream: v}, nil
		}
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		return &requestBody{data: data}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return &requestBody{data: data, contentType: contentTypeJSON}, nil
	}
}

// reader returns a fresh reader for one attempt.
func (b *requestBody) reader() io.Reader {
	if b == nil {
		return nil
	}
	if b.stream != nil {
		return b.stream
	}
	return bytes.NewReader(b.data)
}

// bytes returns the buffered payload for logging; streams are not logged.
func (b *requestBody) bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// decodeBody parses a 2xx body. A JSON content type requires valid JSON, so an empty body
// fails too; other bodies are parsed as JSON when they happen to be valid and returned as
// text otherwise, an empty body being "".
func decodeBody(contentType string, body []byte) (any, error) {
	if strings.Contains(strings.ToLower(contentType), contentTypeJSON) {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("decode JSON response: %w", err)
		}
		return data, nil
	}
	return parseLenient(body), nil
}

// parseLenient decodes JSON when possible and falls back to the raw text.
func parseLenient(body []byte) any {
	if gjson.ValidBytes(body) {
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			return data
		}
	}
	return string(body)
}
