package httpclient

import (
	"io"
	nethttp "net/http"
	"sync/atomic"
)

// progressUploader reports body bytes as the transport reads them.
type progressUploader struct {
	doer Doer
}

// NewProgressUploader returns an Uploader that sends requests through doer and reports
// progress while the request body is consumed.
func NewProgressUploader(doer Doer) Uploader {
	if doer == nil {
		doer = &nethttp.Client{}
	}
	return &progressUploader{doer: doer}
}

func (u *progressUploader) Upload(req *nethttp.Request, onProgress func(loaded, total int64)) (*nethttp.Response, error) {
	if onProgress != nil && req.Body != nil && req.Body != nethttp.NoBody {
		total := req.ContentLength
		if total == 0 {
			total = -1
		}
		req.Body = &progressReader{ReadCloser: req.Body, total: total, onProgress: onProgress}
		if req.GetBody != nil {
			getBody := req.GetBody
			req.GetBody = func() (io.ReadCloser, error) {
				body, err := getBody()
				if err != nil {
					return nil, err
				}
				return &progressReader{ReadCloser: body, total: total, onProgress: onProgress}, nil
			}
		}
	}
	return u.doer.Do(req)
}

type progressReader struct {
	io.ReadCloser
	loaded     atomic.Int64
	total      int64
	onProgress func(loaded, total int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if n > 0 {
		r.onProgress(r.loaded.Add(int64(n)), r.total)
	}
	return n, err
}
