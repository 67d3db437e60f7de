package validation

import (
	"context"

	"github.com/goliatone/go-formengine/internal/coerce"
)

func builtinCrossField() map[string]CrossFieldValidator {
	return map[string]CrossFieldValidator{
		"fieldsMatch": fieldsMatch,
		"lessThan":    lessThan,
		"requireOne":  requireOne,
	}
}

// fieldsMatch requires every non-empty value to be equal. Emptiness is left
// to the required check.
func fieldsMatch(_ context.Context, in CrossFieldInput) error {
	var (
		first string
		seen  bool
	)
	for _, value := range in.Ordered() {
		if coerce.IsEmpty(value) {
			continue
		}
		current := coerce.String(value)
		if !seen {
			first, seen = current, true
			continue
		}
		if current != first {
			return Fail("")
		}
	}
	return nil
}

// lessThan requires the first field to be strictly less than the second.
// Numbers compare numerically, anything else (ISO dates included)
// lexically. The rule passes while either value is empty.
func lessThan(_ context.Context, in CrossFieldInput) error {
	values := in.Ordered()
	if len(values) < 2 || coerce.IsEmpty(values[0]) || coerce.IsEmpty(values[1]) {
		return nil
	}
	left, lok := coerce.Number(values[0])
	right, rok := coerce.Number(values[1])
	if lok && rok {
		if left < right {
			return nil
		}
		return Fail("")
	}
	if coerce.String(values[0]) < coerce.String(values[1]) {
		return nil
	}
	return Fail("")
}

// requireOne requires at least one of the fields to hold a value.
func requireOne(_ context.Context, in CrossFieldInput) error {
	for _, value := range in.Ordered() {
		if !coerce.IsEmpty(value) {
			return nil
		}
	}
	return Fail("")
}
