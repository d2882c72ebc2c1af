package httpclient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gaborage/go-bricks-fetch/schema"
)

// ClientError is implemented by every error returned from this package.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	// NetworkError covers connectivity failures and non-2xx responses.
	NetworkError ErrorType = "network"
	// TimeoutError means an attempt exceeded its timeout and no retry was left.
	TimeoutError ErrorType = "timeout"
	// ValidationError means the response body was rejected by the schema.
	ValidationError ErrorType = "validation"
	// AbortError means the caller's context was cancelled.
	AbortError ErrorType = "abort"
	// UnknownError covers everything else, such as invalid requests or interceptor failures.
	UnknownError ErrorType = "unknown"
)

// Error is the classified error returned by Execute, Stream and Upload.
type Error struct {
	Message string
	Kind    ErrorType
	// Status and StatusText are set for HTTP status failures.
	Status     int
	StatusText string
	URL        string
	Response   *Response
	// Issues lists schema violations for validation errors.
	Issues []schema.Issue
	// Data holds the decoded response payload, or the underlying error for transport failures.
	Data    any
	Timeout time.Duration
	wrapped error
}

var _ ClientError = (*Error)(nil)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error: ")
	b.WriteString(e.Message)
	switch {
	case e.Status > 0:
		fmt.Fprintf(&b, " (status: %d)", e.Status)
	case e.Kind == TimeoutError && e.Timeout > 0:
		fmt.Fprintf(&b, " (timeout: %v)", e.Timeout)
	}
	if e.wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.wrapped.Error())
	}
	return b.String()
}

// Type returns the error kind.
func (e *Error) Type() ErrorType {
	return e.Kind
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// StatusCode returns the HTTP status, or 0 when no response was received.
func (e *Error) StatusCode() int {
	return e.Status
}

// Body returns the raw response body, if any.
func (e *Error) Body() []byte {
	if e.Response == nil {
		return nil
	}
	return e.Response.Body
}

func (e *Error) withURL(u string) *Error {
	if e.URL == "" {
		e.URL = u
	}
	return e
}

// NewNetworkError creates a network error; wrapped is also exposed as Data.
func NewNetworkError(message string, wrapped error) *Error {
	e := &Error{Message: message, Kind: NetworkError, wrapped: wrapped}
	if wrapped != nil {
		e.Data = wrapped
	}
	return e
}

// NewHTTPError creates the network error for a non-2xx response. data is the decoded body.
func NewHTTPError(resp *Response, url string, data any) *Error {
	return &Error{
		Message:    fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode),
		Kind:       NetworkError,
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		URL:        url,
		Response:   resp,
		Data:       data,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration) *Error {
	return &Error{Message: message, Kind: TimeoutError, Timeout: timeout}
}

// NewValidationError creates the error for a payload rejected by the schema.
func NewValidationError(issues []schema.Issue, data any) *Error {
	return &Error{
		Message: schema.Summary(issues),
		Kind:    ValidationError,
		Issues:  issues,
		Data:    data,
	}
}

// NewAbortError creates the error for a cancelled caller context. cause is usually context.Cause(ctx).
func NewAbortError(cause error) *Error {
	return &Error{Message: "request aborted", Kind: AbortError, wrapped: cause}
}

// NewUnknownError creates a new unknown error
func NewUnknownError(message string, wrapped error) *Error {
	return &Error{Message: message, Kind: UnknownError, wrapped: wrapped}
}

// AsError returns the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error carries a specific HTTP status code
func IsHTTPStatusError(err error, statusCode int) bool {
	e, ok := AsError(err)
	return ok && e.Status == statusCode
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
