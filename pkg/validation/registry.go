package validation

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-formengine/pkg/schema"
)

// Input is handed to a custom validator.
type Input struct {
	Field  schema.Field
	Value  any
	Params map[string]any
	Values map[string]any
}

// CustomValidator checks a single field. Return nil when the value is valid,
// Fail(msg) when it is not, and any other error when the check itself could
// not run. Validators may block; they honour ctx.
type CustomValidator func(ctx context.Context, in Input) error

// CrossFieldInput is handed to a cross-field validator. Values holds the
// current value of every field listed by the rule.
type CrossFieldInput struct {
	Rule   schema.CrossFieldRule
	Values map[string]any
	Labels map[string]string
}

// Ordered returns the rule's field values in declaration order.
func (in CrossFieldInput) Ordered() []any {
	out := make([]any, len(in.Rule.Fields))
	for i, id := range in.Rule.Fields {
		out[i] = in.Values[id]
	}
	return out
}

// OrderedLabels returns the rule's field labels in declaration order.
func (in CrossFieldInput) OrderedLabels() []string {
	out := make([]string, len(in.Rule.Fields))
	for i, id := range in.Rule.Fields {
		out[i] = in.Labels[id]
	}
	return out
}

// CrossFieldValidator checks a relationship between several fields with the
// same return contract as CustomValidator.
type CrossFieldValidator func(ctx context.Context, in CrossFieldInput) error

// Registry maps rule names to validators. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	field map[string]CustomValidator
	cross map[string]CrossFieldValidator
}

// NewRegistry returns a registry preloaded with the built-in cross-field
// rules (fieldsMatch, lessThan, requireOne).
func NewRegistry() *Registry {
	r := &Registry{
		field: make(map[string]CustomValidator),
		cross: make(map[string]CrossFieldValidator),
	}
	for name, fn := range builtinCrossField() {
		r.cross[name] = fn
	}
	return r
}

// RegisterCustomValidator adds or replaces a field validator.
func (r *Registry) RegisterCustomValidator(name string, fn CustomValidator) {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.field[name] = fn
}

// RegisterCrossFieldValidator adds or replaces a cross-field validator.
func (r *Registry) RegisterCrossFieldValidator(name string, fn CrossFieldValidator) {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cross[name] = fn
}

// Custom returns the field validator registered under name.
func (r *Registry) Custom(name string) (CustomValidator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.field[name]
	return fn, ok
}

// CrossField returns the cross-field validator registered under name.
func (r *Registry) CrossField(name string) (CrossFieldValidator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.cross[name]
	return fn, ok
}
