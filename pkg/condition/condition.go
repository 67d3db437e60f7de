// Package condition evaluates schema condition trees against a snapshot of
// field values.
//
// Evaluation is pure and total: malformed operators, type mismatches and
// references to fields that do not exist resolve to false instead of failing.
// The one exception is isEmpty, which treats a missing field as empty.
package condition

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Evaluator decides whether a condition holds for a value snapshot. A key
// absent from values means the referenced field does not exist.
type Evaluator interface {
	Evaluate(c schema.Condition, values map[string]any) bool
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(c schema.Condition, values map[string]any) bool

// Evaluate delegates to the underlying function.
func (fn EvaluatorFunc) Evaluate(c schema.Condition, values map[string]any) bool {
	return fn(c, values)
}

// Default is the built-in evaluator.
var Default Evaluator = EvaluatorFunc(Evaluate)

// Evaluate reports whether c holds for values.
func Evaluate(c schema.Condition, values map[string]any) bool {
	switch c.Kind() {
	case schema.ConditionAnd:
		for _, child := range c.And {
			if !Evaluate(child, values) {
				return false
			}
		}
		return true
	case schema.ConditionOr:
		for _, child := range c.Or {
			if Evaluate(child, values) {
				return true
			}
		}
		return false
	default:
		return compare(c, values)
	}
}

// References returns the field ids c reads, in first-seen order.
func References(c schema.Condition) []string {
	return c.References()
}

func compare(c schema.Condition, values map[string]any) bool {
	value, exists := values[c.Field]
	if !exists {
		return c.Operator == schema.OpIsEmpty
	}

	switch c.Operator {
	case schema.OpEquals:
		return equals(value, c.Value)
	case schema.OpNotEquals:
		return !equals(value, c.Value)
	case schema.OpGreater:
		left, lok := coerce.Number(value)
		right, rok := coerce.Number(c.Value)
		return lok && rok && left > right
	case schema.OpLess:
		left, lok := coerce.Number(value)
		right, rok := coerce.Number(c.Value)
		return lok && rok && left < right
	case schema.OpContains:
		needle := coerce.String(c.Value)
		if items, ok := coerce.Strings(value); ok {
			for _, item := range items {
				if item == needle {
					return true
				}
			}
		}
		return strings.Contains(coerce.String(value), needle)
	case schema.OpStartsWith:
		return strings.HasPrefix(coerce.String(value), coerce.String(c.Value))
	case schema.OpIsEmpty:
		return coerce.IsEmpty(value)
	case schema.OpIsNotEmpty:
		return !coerce.IsEmpty(value)
	default:
		return false
	}
}

// equals picks the comparison mode from the kind of the expected value.
func equals(value, want any) bool {
	switch expected := want.(type) {
	case nil:
		return value == nil
	case bool:
		got, ok := coerce.Bool(value)
		return ok && got == expected
	case string:
		if value == nil {
			return false
		}
		return coerce.String(value) == expected
	default:
		if coerce.IsNumber(want) {
			expectedNum, _ := coerce.Number(want)
			got, ok := coerce.Number(value)
			return ok && got == expectedNum
		}
		return reflect.DeepEqual(normalize(value), normalize(want))
	}
}

// normalize widens numeric scalars inside slices so JSON and YAML decoded
// values compare equal.
func normalize(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		if coerce.IsNumber(value) {
			n, _ := coerce.Number(value)
			return n
		}
		return value
	}
}
