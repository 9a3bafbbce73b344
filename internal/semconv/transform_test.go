package semconv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register("upper", func(v any) (any, error) { return v, nil })
	require.NoError(t, err)

	err = reg.Register("upper", func(v any) (any, error) { return v, nil })
	require.ErrorIs(t, err, ErrDuplicateTransform)

	// Builtins are reserved too.
	err = reg.Register("json", func(v any) (any, error) { return v, nil })
	require.ErrorIs(t, err, ErrDuplicateTransform)
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("nope")
	require.ErrorIs(t, err, ErrUnknownTransform)
}

func TestIntCoercion(t *testing.T) {
	reg := NewRegistry()
	fn, err := reg.Resolve("int")
	require.NoError(t, err)

	for _, tc := range []struct {
		in   any
		want int64
	}{
		{int64(42), 42},
		{float64(7), 7},
		{"  19 ", 19},
	} {
		got, err := fn(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err = fn("not a number")
	assert.Error(t, err)
	_, err = fn(true)
	assert.Error(t, err)
}

func TestBoolAndFloatCoercion(t *testing.T) {
	reg := NewRegistry()

	fb, _ := reg.Resolve("bool")
	got, err := fb("true")
	require.NoError(t, err)
	assert.Equal(t, true, got)
	_, err = fb("maybe")
	assert.Error(t, err)

	ff, _ := reg.Resolve("float")
	got, err = ff("0.75")
	require.NoError(t, err)
	assert.Equal(t, 0.75, got)
	got, err = ff(int64(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestParseJSONTransform(t *testing.T) {
	reg := NewRegistry()
	fn, _ := reg.Resolve("json")

	got, err := fn(`{"temperature": 0.2, "tools": ["search"]}`)
	require.NoError(t, err)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.2, m["temperature"])

	// A non-string value passes through; instrumentors sometimes emit the
	// structured value directly.
	got, err = fn(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	_, err = fn("{truncated json")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	reg := NewRegistry(WithMaxFieldChars(10))
	fn, _ := reg.Resolve("truncate")

	got, err := fn("short")
	require.NoError(t, err)
	assert.Equal(t, "short", got)

	got, err = fn(strings.Repeat("x", 50))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 10), got)

	// Valid JSON is never cut, truncating it would corrupt the structure.
	long := `{"content": "` + strings.Repeat("y", 50) + `"}`
	got, err = fn(long)
	require.NoError(t, err)
	assert.Equal(t, long, got)

	// Non-strings pass through.
	got, err = fn(int64(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}
