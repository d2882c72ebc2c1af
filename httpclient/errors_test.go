package httpclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-fetch/schema"
)

const testConnectionFailed = "connection failed"

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      ClientError
		expected string
	}{
		{
			name:     "network without cause",
			err:      NewNetworkError(testConnectionFailed, nil),
			expected: "network error: connection failed",
		},
		{
			name:     "network with cause",
			err:      NewNetworkError(testConnectionFailed, errors.New("dial tcp: refused")),
			expected: "network error: connection failed: dial tcp: refused",
		},
		{
			name:     "timeout",
			err:      NewTimeoutError("request timed out after 30s", 30*time.Second),
			expected: "timeout error: request timed out after 30s (timeout: 30s)",
		},
		{
			name:     "http status",
			err:      NewHTTPError(&Response{StatusCode: 404, Status: "Not Found"}, "https://api.example.com/x", nil),
			expected: "network error: HTTP request failed with status 404 (status: 404)",
		},
		{
			name:     "validation",
			err:      NewValidationError([]schema.Issue{{Path: "email", Message: "email must be a valid email address", Code: "email"}}, nil),
			expected: "validation error: validation failed: email: email must be a valid email address",
		},
		{
			name:     "abort",
			err:      NewAbortError(context.Canceled),
			expected: "abort error: request aborted: context canceled",
		},
		{
			name:     "unknown",
			err:      NewUnknownError("request interceptor failed", errors.New("boom")),
			expected: "unknown error: request interceptor failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorTypeIdentification(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		err  error
		kind ErrorType
	}{
		{NewNetworkError("n", cause), NetworkError},
		{NewHTTPError(&Response{StatusCode: 500}, "", nil), NetworkError},
		{NewTimeoutError("t", time.Second), TimeoutError},
		{NewValidationError(nil, nil), ValidationError},
		{NewAbortError(cause), AbortError},
		{NewUnknownError("u", cause), UnknownError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.True(t, IsErrorType(tt.err, tt.kind))
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, IsErrorType(wrapped, tt.kind))

			e, ok := AsError(wrapped)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Type())
		})
	}

	assert.False(t, IsErrorType(nil, NetworkError))
	assert.False(t, IsErrorType(errors.New("plain"), NetworkError))
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("root cause")

	netErr := NewNetworkError(testConnectionFailed, cause)
	assert.ErrorIs(t, netErr, cause)
	assert.Equal(t, cause, netErr.Data)

	abortErr := NewAbortError(context.DeadlineExceeded)
	assert.ErrorIs(t, abortErr, context.DeadlineExceeded)

	assert.NoError(t, NewTimeoutError("t", time.Second).Unwrap())
	assert.Nil(t, NewNetworkError("no cause", nil).Data)
}

func TestHTTPErrorDetails(t *testing.T) {
	resp := &Response{StatusCode: 422, Status: "Unprocessable Entity", Body: []byte(`{"error":"bad"}`)}
	err := NewHTTPError(resp, "https://api.example.com/items", map[string]any{"error": "bad"})

	assert.Equal(t, 422, err.StatusCode())
	assert.Equal(t, "Unprocessable Entity", err.StatusText)
	assert.Equal(t, "https://api.example.com/items", err.URL)
	assert.Equal(t, resp.Body, err.Body())
	assert.Equal(t, map[string]any{"error": "bad"}, err.Data)
	assert.True(t, IsHTTPStatusError(err, 422))
	assert.False(t, IsHTTPStatusError(err, 500))
	assert.False(t, IsHTTPStatusError(errors.New("plain"), 422))

	assert.Nil(t, NewNetworkError("n", nil).Body())
}

func TestValidationErrorCarriesIssues(t *testing.T) {
	issues := []schema.Issue{
		{Path: "id", Message: "id is required", Code: "required"},
		{Path: "name", Message: "name must be at least 3 characters", Code: "min"},
	}
	payload := map[string]any{"name": "ab"}

	err := NewValidationError(issues, payload)
	assert.Equal(t, issues, err.Issues)
	assert.Equal(t, payload, err.Data)
	assert.Contains(t, err.Error(), "2 issues")
}

func TestWithURLKeepsFirstValue(t *testing.T) {
	err := NewUnknownError("u", nil).withURL("https://a.example.com").withURL("https://b.example.com")
	assert.Equal(t, "https://a.example.com", err.URL)
}

func TestIsSuccessStatus(t *testing.T) {
	for _, code := range []int{200, 201, 204, 299} {
		assert.True(t, IsSuccessStatus(code), code)
	}
	for _, code := range []int{199, 300, 404, 500} {
		assert.False(t, IsSuccessStatus(code), code)
	}
}
