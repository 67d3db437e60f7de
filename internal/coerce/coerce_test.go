package coerce

import (
	"math"
	"testing"
)

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"whitespace is not trimmed", " ", false},
		{"zero", 0, false},
		{"false", false, false},
		{"empty slice", []any{}, true},
		{"slice", []string{"a"}, false},
		{"empty map", map[string]any{}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsEmpty(tc.value); got != tc.want {
				t.Fatalf("IsEmpty(%#v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestNumber(t *testing.T) {
	t.Parallel()

	if got, ok := Number(" 42.5 "); !ok || got != 42.5 {
		t.Fatalf("expected 42.5, got %v %v", got, ok)
	}
	if got, ok := Number(7); !ok || got != 7 {
		t.Fatalf("expected 7, got %v %v", got, ok)
	}
	if _, ok := Number("abc"); ok {
		t.Fatalf("expected abc to fail")
	}
	if _, ok := Number(math.Inf(1)); ok {
		t.Fatalf("expected infinity to be rejected")
	}
	if _, ok := Number("NaN"); ok {
		t.Fatalf("expected NaN to be rejected")
	}
	if _, ok := Number(nil); ok {
		t.Fatalf("expected nil to fail")
	}
}

func TestStringAndBool(t *testing.T) {
	t.Parallel()

	if got := String(3.0); got != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
	if got := String(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got, ok := Bool("true"); !ok || !got {
		t.Fatalf("expected true")
	}
	if got, ok := Bool(0); !ok || got {
		t.Fatalf("expected false for 0")
	}
}
