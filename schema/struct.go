package schema

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// StructOption customizes a Struct schema.
type StructOption func(*structOptions)

type structOptions struct {
	validate    *validator.Validate
	errorUnused bool
	weaklyTyped bool
	timeLayout  string
}

// WithValidator supplies a validator instance, typically one with custom rules registered.
// Its tag name function is replaced so issue paths use json field names.
func WithValidator(v *validator.Validate) StructOption {
	return func(o *structOptions) { o.validate = v }
}

// DisallowUnknownFields rejects payload keys that have no matching struct field.
func DisallowUnknownFields() StructOption {
	return func(o *structOptions) { o.errorUnused = true }
}

// WeaklyTyped allows lenient conversions such as "42" into an int field.
func WeaklyTyped() StructOption {
	return func(o *structOptions) { o.weaklyTyped = true }
}

// WithTimeLayout sets the layout used to decode strings into time.Time fields (default RFC3339).
func WithTimeLayout(layout string) StructOption {
	return func(o *structOptions) { o.timeLayout = layout }
}

type structSchema[T any] struct {
	opts structOptions
}

// Struct returns a schema that decodes the payload into T using json tag names and then
// runs the `validate` struct tags. Decode failures are reported with code "type".
func Struct[T any](opts ...StructOption) Schema[T] {
	o := structOptions{timeLayout: time.RFC3339}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validate == nil {
		o.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	o.validate.RegisterTagNameFunc(jsonTagName)
	return &structSchema[T]{opts: o}
}

func (s *structSchema[T]) Validate(ctx context.Context, data any) (T, []Issue) {
	var out T
	if data == nil {
		return out, []Issue{{Message: "value is required", Code: "required"}}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		ErrorUnused:      s.opts.errorUnused,
		WeaklyTypedInput: s.opts.weaklyTyped,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			integralNumberHook,
			mapstructure.StringToTimeHookFunc(s.opts.timeLayout),
		),
	})
	if err != nil {
		return out, []Issue{{Message: err.Error(), Code: "schema"}}
	}
	if err := decoder.Decode(data); err != nil {
		return out, decodeIssues(err)
	}

	if !isStruct(reflect.TypeOf(out)) {
		return out, nil
	}
	target := any(out)
	if err := s.opts.validate.StructCtx(ctx, target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return out, fieldIssues(verrs)
		}
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) && invalid.Type != nil && invalid.Type.Kind() == reflect.Pointer {
			return out, []Issue{{Message: "value is required", Code: "required"}}
		}
		return out, []Issue{{Message: err.Error(), Code: "schema"}}
	}
	return out, nil
}

// integralNumberHook rejects JSON numbers with a fractional part bound for integer fields.
func integralNumberHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("expected an integer, got %v", f)
	}
	return data, nil
}

func isStruct(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != reflect.TypeOf(time.Time{})
}

func decodeIssues(err error) []Issue {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	issues := make([]Issue, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		issues = append(issues, Issue{Message: e.Error(), Code: "type"})
	}
	if len(issues) == 0 {
		issues = append(issues, Issue{Message: err.Error(), Code: "type"})
	}
	return issues
}

func fieldIssues(errs validator.ValidationErrors) []Issue {
	issues := make([]Issue, 0, len(errs))
	for _, fe := range errs {
		issues = append(issues, Issue{
			Path:    fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return issues
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must have length %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func jsonTagName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}
