package semconv

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTransform is returned by Registry.Register when the name
	// is already taken.
	ErrDuplicateTransform = errors.New("transform already registered")
	// ErrUnknownTransform is returned by Registry.Resolve for names that
	// were never registered.
	ErrUnknownTransform = errors.New("unknown transform")
	// ErrMalformedIndex marks an array element whose index segment is not
	// a non-negative integer.
	ErrMalformedIndex = errors.New("malformed array index")
)

// PatternError reports a structure pattern that failed to compile. It is
// fatal to that convention only; other conventions compile and run normally.
type PatternError struct {
	Convention string
	Field      string
	Err        error
}

func (e *PatternError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("pattern %s: field %q: %v", e.Convention, e.Field, e.Err)
	}
	return fmt.Sprintf("pattern %s: %v", e.Convention, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// FieldError records one field (or array element) that could not be
// extracted. Sibling fields are unaffected.
type FieldError struct {
	Field string // logical field path
	Key   string // offending attribute key, when known
	Err   error
}

func (e FieldError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("field %q (key %q): %v", e.Field, e.Key, e.Err)
	}
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }
