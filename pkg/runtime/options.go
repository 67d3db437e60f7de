package runtime

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/internal/clock"
	"github.com/goliatone/go-formengine/pkg/condition"
	"github.com/goliatone/go-formengine/pkg/lookup"
	"github.com/goliatone/go-formengine/pkg/metrics"
	"github.com/goliatone/go-formengine/pkg/validation"
)

type config struct {
	id               string
	logger           zerolog.Logger
	fetcher          lookup.Fetcher
	clock            clock.Clock
	metrics          *metrics.Collector
	lookupTimeout    time.Duration
	validatorTimeout time.Duration
	evaluator        condition.Evaluator
	registry         *validation.Registry
	messages         *validation.Messages
	initial          map[string]any
}

// Option customises an Instance.
type Option func(*config)

// WithID sets the instance id, a random UUID by default.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithLogger sets the instance logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithFetcher sets the fetcher used by the instance's lookup cache.
func WithFetcher(f lookup.Fetcher) Option {
	return func(c *config) {
		c.fetcher = f
	}
}

// WithClock sets the time source of the lookup cache.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

// WithMetrics records transactions and lookups on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithLookupTimeout bounds each lookup fetch the runtime dispatches.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *config) {
		c.lookupTimeout = d
	}
}

// WithValidatorTimeout bounds each custom and cross-field validator call,
// both in the update loop and in Submit.
func WithValidatorTimeout(d time.Duration) Option {
	return func(c *config) {
		c.validatorTimeout = d
	}
}

// WithEvaluator swaps the condition evaluator.
func WithEvaluator(e condition.Evaluator) Option {
	return func(c *config) {
		c.evaluator = e
	}
}

// WithRegistry shares a validator registry across instances.
func WithRegistry(r *validation.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithMessages replaces the default validation messages.
func WithMessages(m *validation.Messages) Option {
	return func(c *config) {
		c.messages = m
	}
}

// WithInitialValues seeds field values, overriding schema defaults. Unknown
// ids are ignored.
func WithInitialValues(values map[string]any) Option {
	return func(c *config) {
		c.initial = values
	}
}
