// Package logic recomputes the visible, required and disabled flags of form
// fields after value changes.
//
// The engine is pure: it reads a value snapshot and the previous flags and
// returns a Result describing the new flags plus the fields whose values
// must be cleared because they were just hidden. Applying that result is the
// caller's job.
package logic

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/pkg/condition"
	"github.com/goliatone/go-formengine/pkg/graph"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Flags is the derived state of one field.
type Flags struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
	Disabled bool `json:"disabled"`
}

// Active reports whether the field takes part in validation and submission.
func (f Flags) Active() bool {
	return f.Visible && !f.Disabled
}

// Result is the outcome of a recompute pass. Flags holds the previous flags
// merged with every recomputed entry. Cleared lists the fields that moved
// from visible to hidden, in evaluation order; Evaluated lists every field
// the pass looked at.
type Result struct {
	Flags     map[string]Flags
	Cleared   []string
	Evaluated []string
}

// Engine evaluates the rules of one schema.
type Engine struct {
	idx       *schema.Index
	graph     *graph.Graph
	evaluator condition.Evaluator
	logger    zerolog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithEvaluator swaps the condition evaluator.
func WithEvaluator(evaluator condition.Evaluator) Option {
	return func(e *Engine) {
		if evaluator != nil {
			e.evaluator = evaluator
		}
	}
}

// WithLogger sets the logger used for evaluator failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New builds an engine. A nil graph is derived from idx.
func New(idx *schema.Index, g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		idx:       idx,
		graph:     g,
		evaluator: condition.Default,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.graph == nil {
		e.graph = graph.Build(idx, e.logger)
	}
	return e
}

// Graph returns the dependency graph in use.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Evaluate computes flags for every field, treating each field as previously
// visible. It is used on initial load, so defaults of fields that start out
// hidden are reported in Cleared.
func (e *Engine) Evaluate(values map[string]any) Result {
	return e.recompute(values, nil, e.graph.Order())
}

// Recompute re-evaluates the fields affected by changed. previous supplies
// the flags from the last pass; a field missing from it is treated as
// visible. Conditions read fields hidden in previous as nil.
func (e *Engine) Recompute(values map[string]any, previous map[string]Flags, changed []string) Result {
	return e.recompute(values, previous, e.graph.AffectedBy(changed...))
}

func (e *Engine) recompute(values map[string]any, previous map[string]Flags, fields []string) Result {
	start := make(map[string]any, len(values))
	working := make(map[string]any, len(values))
	for key, value := range values {
		start[key] = value
		working[key] = value
	}
	// Hidden fields read as unset until a rule shows them again.
	for id, flags := range previous {
		if _, ok := working[id]; ok && !flags.Visible {
			start[id] = nil
			working[id] = nil
		}
	}

	result := Result{
		Flags:     make(map[string]Flags, len(previous)+len(fields)),
		Evaluated: fields,
	}
	for id, flags := range previous {
		result.Flags[id] = flags
	}

	for _, id := range fields {
		view := working
		if e.graph.Cyclic(id) {
			view = e.cyclicView(id, working, start)
		}
		flags := e.flagsFor(id, view)
		result.Flags[id] = flags

		wasVisible := true
		if prev, ok := previous[id]; ok {
			wasVisible = prev.Visible
		}
		switch {
		case wasVisible && !flags.Visible:
			result.Cleared = append(result.Cleared, id)
			working[id] = nil
		case !wasVisible && flags.Visible:
			if value, ok := values[id]; ok {
				working[id] = value
			}
		}
	}
	return result
}

// cyclicView returns values where members of id's cycle read their
// transaction-start values.
func (e *Engine) cyclicView(id string, working, start map[string]any) map[string]any {
	view := make(map[string]any, len(working))
	for key, value := range working {
		view[key] = value
	}
	component := e.graph.Component(id)
	for _, dep := range e.graph.Dependencies(id) {
		if e.graph.Component(dep) == component {
			if value, ok := start[dep]; ok {
				view[dep] = value
			} else {
				delete(view, dep)
			}
		}
	}
	return view
}

// Base returns the flags of id before any rule applies.
func (e *Engine) Base(id string) Flags {
	field, _ := e.idx.Field(id)
	return Flags{Visible: true, Required: field.Validation.Required}
}

func (e *Engine) flagsFor(id string, values map[string]any) Flags {
	flags := e.Base(id)
	for _, rule := range e.graph.Rules(id) {
		verdict := e.evaluate(id, rule, values)
		switch rule.Kind {
		case graph.RuleVisible:
			flags.Visible = verdict
		case graph.RuleRequired:
			flags.Required = verdict
		case graph.RuleDisabled:
			flags.Disabled = verdict
		}
	}

	if !flags.Visible {
		flags.Required = false
		flags.Disabled = false
	}
	if flags.Disabled {
		flags.Required = false
	}
	return flags
}

func (e *Engine) evaluate(id string, rule graph.Rule, values map[string]any) (verdict bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("form_id", e.idx.FormID()).
				Str("field", id).
				Str("rule", rule.Origin).
				Interface("panic", r).
				Msg("logic: condition evaluator panicked")
			verdict = false
		}
	}()
	return e.evaluator.Evaluate(rule.Condition, values)
}
