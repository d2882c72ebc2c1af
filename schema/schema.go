// Package schema defines the validation capability consumed by the HTTP client.
//
// A Schema turns an untyped parsed payload (the result of JSON decoding, or a raw
// string when the payload was not JSON) into a typed value, or reports why it could not.
// Two engines ship with the package: Any, which accepts every payload, and Struct, which
// decodes into a Go struct and applies go-playground/validator rules.
package schema

import (
	"context"
	"fmt"
	"strings"
)

// Issue describes a single reason a payload was rejected.
type Issue struct {
	// Path is the dotted location of the offending value; empty for the payload root.
	Path    string `json:"path"`
	Message string `json:"message"`
	// Code is a short machine readable rule name such as "required" or "type".
	Code string `json:"code"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Schema validates a parsed payload. Validation failed iff the returned issues are non-empty.
type Schema[T any] interface {
	Validate(ctx context.Context, data any) (T, []Issue)
}

// Func adapts a plain function to the Schema interface.
type Func[T any] func(ctx context.Context, data any) (T, []Issue)

// Validate calls f.
func (f Func[T]) Validate(ctx context.Context, data any) (T, []Issue) {
	return f(ctx, data)
}

// Any accepts every payload unchanged.
func Any() Schema[any] {
	return Func[any](func(_ context.Context, data any) (any, []Issue) {
		return data, nil
	})
}

// Summary renders issues as a single line suitable for error messages.
func Summary(issues []Issue) string {
	switch len(issues) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s", issues[0])
	}
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("validation failed: %d issues (%s)", len(issues), strings.Join(parts, "; "))
}
