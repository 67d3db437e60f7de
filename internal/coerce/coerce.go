// Package coerce holds the loose value conversions shared by condition
// evaluation and validation. Values arrive from JSON (float64), YAML (int) or
// Go callers, so every helper accepts the common scalar shapes.
package coerce

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// IsEmpty applies the empty-value policy: nil, the empty string (no trimming)
// and empty slices or maps.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Number converts value to a finite float64.
func Number(value any) (float64, bool) {
	var (
		out float64
		ok  bool
	)
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		out, ok = v, true
	case float32:
		out, ok = float64(v), true
	case int:
		out, ok = float64(v), true
	case int8:
		out, ok = float64(v), true
	case int16:
		out, ok = float64(v), true
	case int32:
		out, ok = float64(v), true
	case int64:
		out, ok = float64(v), true
	case uint:
		out, ok = float64(v), true
	case uint8:
		out, ok = float64(v), true
	case uint16:
		out, ok = float64(v), true
	case uint32:
		out, ok = float64(v), true
	case uint64:
		out, ok = float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		out, ok = f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		out, ok = f, err == nil
	default:
		return 0, false
	}
	if !ok || math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, false
	}
	return out, true
}

// IsNumber reports whether value is a Go numeric type (not a numeric string).
func IsNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// Bool converts value to a boolean. Strings parse with strconv.ParseBool and
// fall back to non-empty.
func Bool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return parsed, true
		}
		return v != "", true
	default:
		if n, ok := Number(value); ok {
			return n != 0, true
		}
		return !IsEmpty(value), true
	}
}

// String renders value as a string; nil becomes "".
func String(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(value)
	}
}

// Strings returns the string form of each element when value is a slice.
func Strings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = String(item)
		}
		return out, true
	default:
		return nil, false
	}
}
