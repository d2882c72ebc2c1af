package httpclient

import (
	"context"
	"io"
	nethttp "net/http"

	"github.com/gaborage/go-bricks-fetch/internal/tracking"
	"github.com/gaborage/go-bricks-fetch/schema"
)

// DefaultUploadField is the form field name used when UploadRequest.FieldName is empty.
const DefaultUploadField = "file"

// File is the content sent by Upload.
type File struct {
	Name        string
	Content     io.Reader
	ContentType string
}

// UploadRequest describes a single multipart file upload.
type UploadRequest[T any] struct {
	URL       string
	File      File
	FieldName string
	Headers   map[string]string
	Schema    schema.Schema[T]
	// OnProgress receives the sent percentage when the body size is known.
	OnProgress func(percent float64)
}

// Upload posts the file as single-field multipart form data through the client's Uploader
// and returns the response validated by req.Schema. It does not retry and applies no
// timeout of its own.
func Upload[T any](ctx context.Context, c *Client, req *UploadRequest[T]) (T, error) {
	var zero T
	if req == nil {
		return zero, NewUnknownError("request cannot be nil", nil)
	}
	if req.Schema == nil {
		return zero, NewUnknownError("request schema cannot be nil", nil).withURL(req.URL)
	}
	if req.File.Content == nil {
		return zero, NewUnknownError("upload file content cannot be nil", nil).withURL(req.URL)
	}

	field := req.FieldName
	if field == "" {
		field = DefaultUploadField
	}
	form := NewFormData().AddFile(field, req.File.Name, req.File.Content, req.File.ContentType)

	cl, perr := c.prepare(ctx, callSpec{
		op:      tracking.OpUpload,
		method:  nethttp.MethodPost,
		rawURL:  req.URL,
		headers: req.Headers,
		body:    form,
	})
	if perr != nil {
		c.recordOutcome(ctx, tracking.OpUpload, nethttp.MethodPost, perr)
		return zero, perr
	}

	ctx, span := c.startSpan(ctx, cl)
	var value T
	status, err := c.upload(ctx, cl, req.OnProgress, func(ctx context.Context, resp *Response, data any) *Error {
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
		c.logFailure(cl, err)
	}
	c.recordOutcome(ctx, cl.op, cl.method, err)
	endSpan(span, status, 1, err)
	if err != nil {
		return zero, err
	}
	return value, nil
}

func (c *Client) upload(ctx context.Context, cl *call, onProgress func(float64), accept acceptFunc) (int, *Error) {
	req, rerr := c.newHTTPRequest(ctx, cl)
	if rerr != nil {
		return 0, rerr
	}
	// The multipart boundary must match the body, whatever the caller set.
	req.Header.Set(headerContentType, cl.body.contentType)
	c.logRequest(req, nil, cl.traceID, 0)

	var progress func(loaded, total int64)
	if onProgress != nil {
		progress = func(loaded, total int64) {
			if total > 0 {
				onProgress(float64(loaded) / float64(total) * 100)
			}
		}
	}

	resp, err := c.uploader.Upload(req, progress)
	if err == nil && resp == nil {
		err = errNoResponse
	}
	if err != nil {
		return 0, c.transportFailure(ctx, cl, "upload failed", err)
	}
	tracking.RecordUploadBytes(ctx, int64(len(cl.body.bytes())))
	if resp.Body == nil {
		resp.Body = nethttp.NoBody
	}
	defer resp.Body.Close()

	if err := c.runResponseInterceptors(ctx, req, resp); err != nil {
		return resp.StatusCode, NewUnknownError("response interceptor failed", err).withURL(cl.target())
	}

	body, readErr := io.ReadAll(resp.Body)
	r := newResponse(cl, resp, body, 1)
	c.logResponse(r, cl.traceID)

	if !IsSuccessStatus(resp.StatusCode) {
		var data any
		if readErr == nil {
			data = parseLenient(body)
		}
		return resp.StatusCode, NewHTTPError(r, cl.target(), data)
	}
	if readErr != nil {
		return resp.StatusCode, c.transportFailure(ctx, cl, "upload failed", readErr)
	}
	return resp.StatusCode, accept(ctx, r, parseLenient(body))
}
