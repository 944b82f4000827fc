package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/yndnr/meshbus-go/internal/core/domain"
)

// maxInputEcho bounds how much of a bad payload ends up in error messages.
const maxInputEcho = 64

// DeserializationError reports text that does not decode into the requested
// type.
type DeserializationError struct {
	Target string
	Input  string
	Err    error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("codec: cannot decode %q into %s: %v", e.Input, e.Target, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// Is matches domain.ErrDeserialization.
func (e *DeserializationError) Is(target error) bool {
	return target == domain.ErrDeserialization ||
		domain.GetErrorCode(target) == domain.ErrDeserialization.Code
}

func newDeserializationError(target reflect.Type, input string, err error) *DeserializationError {
	if len(input) > maxInputEcho {
		input = input[:maxInputEcho] + "..."
	}
	name := "<nil>"
	if target != nil {
		name = target.String()
	}
	return &DeserializationError{Target: name, Input: input, Err: err}
}

// Encode renders v as JSON text.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", domain.ErrSerialization.WithDetails(fmt.Sprintf("%T", v)).WithCause(err)
	}
	return string(b), nil
}

// Decode parses JSON text into a new T.
func Decode[T any](text string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		var zero T
		return zero, newDeserializationError(reflect.TypeOf((*T)(nil)).Elem(), text, err)
	}
	return v, nil
}

// DecodeInto parses JSON text into the value ptr points to.
func DecodeInto(text string, ptr any) error {
	if err := json.Unmarshal([]byte(text), ptr); err != nil {
		var target reflect.Type
		if t := reflect.TypeOf(ptr); t != nil && t.Kind() == reflect.Pointer {
			target = t.Elem()
		} else {
			target = t
		}
		return newDeserializationError(target, text, err)
	}
	return nil
}

func FormatInt(n int64) string { return strconv.FormatInt(n, 10) }

func ParseInt(text string) (int64, error) {
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, newDeserializationError(reflect.TypeOf(n), text, err)
	}
	return n, nil
}

func FormatBool(b bool) string { return strconv.FormatBool(b) }

func ParseBool(text string) (bool, error) {
	b, err := strconv.ParseBool(text)
	if err != nil {
		return false, newDeserializationError(reflect.TypeOf(b), text, err)
	}
	return b, nil
}

func FormatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func ParseFloat(text string) (float64, error) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, newDeserializationError(reflect.TypeOf(f), text, err)
	}
	return f, nil
}
