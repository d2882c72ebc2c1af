package mocks

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	require.NoError(t, err)
	return req
}

func TestMockDoerReturnsResponse(t *testing.T) {
	doer := &MockDoer{}
	doer.ExpectDo(&http.Response{StatusCode: http.StatusAccepted}, nil)

	req := newRequest(t, http.MethodGet, "https://api.example.com/items")
	resp, err := doer.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Same(t, req, resp.Request)
	assert.Equal(t, 1, doer.Calls())
	doer.AssertExpectations(t)
}

func TestMockDoerFactoryAndSequence(t *testing.T) {
	doer := &MockDoer{}
	doer.ExpectDoOnce(nil, errors.New("refused"))
	doer.ExpectDo(func(req *http.Request) *http.Response {
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{"X-Path": {req.URL.Path}}}
	}, nil)

	_, err := doer.Do(newRequest(t, http.MethodGet, "https://api.example.com/a"))
	require.EqualError(t, err, "refused")

	resp, err := doer.Do(newRequest(t, http.MethodGet, "https://api.example.com/b"))
	require.NoError(t, err)
	assert.Equal(t, "/b", resp.Header.Get("X-Path"))
	assert.Equal(t, 2, doer.Calls())
}

func TestMockDoerExpectMethod(t *testing.T) {
	doer := &MockDoer{}
	doer.ExpectMethod(http.MethodPost, "/items", &http.Response{StatusCode: http.StatusCreated}, nil)

	resp, err := doer.Do(newRequest(t, http.MethodPost, "https://api.example.com/items"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestMockUploaderReportsProgress(t *testing.T) {
	uploader := (&MockUploader{}).WithProgress([2]int64{5, 10}, [2]int64{10, 10})
	uploader.ExpectUpload(&http.Response{StatusCode: http.StatusOK}, nil)

	var seen [][2]int64
	resp, err := uploader.Upload(newRequest(t, http.MethodPost, "https://api.example.com/upload"), func(loaded, total int64) {
		seen = append(seen, [2]int64{loaded, total})
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, [][2]int64{{5, 10}, {10, 10}}, seen)
	uploader.AssertExpectations(t)
}
