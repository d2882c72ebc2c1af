package mocks

import (
	"net/http"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
)

// MockDoer provides a testify-based mock implementation of the httpclient.Doer interface.
//
// Example usage:
//
//	doer := &mocks.MockDoer{}
//	doer.ExpectDo(fixtures.JSONResponse(200, `{"id":1}`), nil)
//	client := httpclient.NewBuilder(log).WithDoer(doer).Build()
type MockDoer struct {
	mock.Mock
	calls atomic.Int64
}

// Do implements httpclient.Doer
func (m *MockDoer) Do(req *http.Request) (*http.Response, error) {
	m.calls.Add(1)
	arguments := m.Called(req)

	var resp *http.Response
	switch v := arguments.Get(0).(type) {
	case *http.Response:
		resp = v
	case func(*http.Request) *http.Response:
		resp = v(req)
	}
	if resp != nil && resp.Request == nil {
		resp.Request = req
	}
	return resp, arguments.Error(1)
}

// Calls returns how many times Do was invoked.
func (m *MockDoer) Calls() int {
	return int(m.calls.Load())
}

// ExpectDo sets up an expectation for any request.
// resp may be an *http.Response or a func(*http.Request) *http.Response for per-call bodies.
func (m *MockDoer) ExpectDo(resp any, err error) *mock.Call {
	return m.On("Do", mock.Anything).Return(resp, err)
}

// ExpectDoOnce sets up a one-shot expectation; chain several to script a sequence.
func (m *MockDoer) ExpectDoOnce(resp any, err error) *mock.Call {
	return m.ExpectDo(resp, err).Once()
}

// ExpectMethod sets up an expectation for requests with the given method and path.
func (m *MockDoer) ExpectMethod(method, path string, resp any, err error) *mock.Call {
	return m.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == method && req.URL.Path == path
	})).Return(resp, err)
}

// MockUploader provides a testify-based mock implementation of the httpclient.Uploader interface.
// Progress steps configured with WithProgress are reported before the expectation returns.
type MockUploader struct {
	mock.Mock
	steps [][2]int64
}

// Upload implements httpclient.Uploader
func (m *MockUploader) Upload(req *http.Request, onProgress func(loaded, total int64)) (*http.Response, error) {
	if onProgress != nil {
		for _, s := range m.steps {
			onProgress(s[0], s[1])
		}
	}
	arguments := m.Called(req)

	var resp *http.Response
	if v, ok := arguments.Get(0).(*http.Response); ok {
		resp = v
	}
	if resp != nil && resp.Request == nil {
		resp.Request = req
	}
	return resp, arguments.Error(1)
}

// WithProgress scripts the (loaded, total) pairs reported by Upload.
func (m *MockUploader) WithProgress(steps ...[2]int64) *MockUploader {
	m.steps = append(m.steps, steps...)
	return m
}

// ExpectUpload sets up an expectation for any upload.
func (m *MockUploader) ExpectUpload(resp *http.Response, err error) *mock.Call {
	return m.On("Upload", mock.Anything).Return(resp, err)
}
