package semconv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// TransformFunc is a pure value transform applied to a field during
// extraction. On input it cannot handle it returns an error instead of
// panicking, so the processor can skip the field and continue.
type TransformFunc func(v any) (any, error)

const defaultMaxFieldChars = 4096

// Registry is the catalog of named transforms. It is populated once at
// startup (single writer) and read-only afterwards, so compiled plans can
// share resolved functions across concurrent callers without locking.
type Registry struct {
	maxFieldChars int
	fns           map[string]TransformFunc
}

type RegistryOption func(*Registry)

// WithMaxFieldChars sets the limit used by the truncate transform.
func WithMaxFieldChars(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxFieldChars = n
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		maxFieldChars: defaultMaxFieldChars,
		fns:           make(map[string]TransformFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.fns["identity"] = identity
	r.fns["string"] = toString
	r.fns["int"] = toInt
	r.fns["float"] = toFloat
	r.fns["bool"] = toBool
	r.fns["json"] = parseJSON
	r.fns["truncate"] = truncate(r.maxFieldChars)
	return r
}

// Register adds a custom transform. Names are resolved at pattern compile
// time, never during span processing.
func (r *Registry) Register(name string, fn TransformFunc) error {
	if _, ok := r.fns[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTransform, name)
	}
	if fn == nil {
		return fmt.Errorf("transform %q: nil function", name)
	}
	r.fns[name] = fn
	return nil
}

func (r *Registry) Resolve(name string) (TransformFunc, error) {
	fn, ok := r.fns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	return fn, nil
}

func identity(v any) (any, error) { return v, nil }

func toString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	default:
		return nil, fmt.Errorf("cannot stringify %T", v)
	}
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to int", v)
	}
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to float", v)
	}
}

func toBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", x)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to bool", v)
	}
}

// parseJSON decodes a JSON-encoded string attribute into a native value.
// Non-string input passes through unchanged since instrumentors sometimes
// emit the structured value directly.
func parseJSON(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("not valid JSON")
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// truncate caps string length. Strings that are themselves valid JSON pass
// through untouched: cutting them would corrupt the structure downstream.
func truncate(max int) TransformFunc {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		if len(s) <= max || gjson.Valid(s) {
			return s, nil
		}
		runes := []rune(s)
		if len(runes) <= max {
			return s, nil
		}
		return string(runes[:max]), nil
	}
}
