// Package lookup resolves remote option lists for lookup-backed fields.
//
// Results are cached per instance under a key derived from the endpoint,
// method and resolved params, so two fields that ask for the same content
// share one entry. Concurrent requests for the same key are coalesced into a
// single fetch.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formengine/internal/clock"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Fetcher retrieves the options of a lookup. params holds resolved values;
// field bindings have already been substituted.
type Fetcher interface {
	Fetch(ctx context.Context, def schema.LookupDefinition, params map[string]any) ([]schema.Option, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, def schema.LookupDefinition, params map[string]any) ([]schema.Option, error)

// Fetch delegates to the underlying function.
func (fn FetcherFunc) Fetch(ctx context.Context, def schema.LookupDefinition, params map[string]any) ([]schema.Option, error) {
	return fn(ctx, def, params)
}

// Outcomes reported to an Observer.
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeShared = "shared"
	OutcomeBypass = "bypass"
	OutcomeError  = "error"
)

// Observer receives one call per Resolve.
type Observer interface {
	ObserveLookup(lookup, outcome string, elapsed time.Duration)
}

type entry struct {
	endpoint  string
	method    string
	options   []schema.Option
	expiresAt time.Time
}

// Service resolves lookups through a shared TTL cache. It is safe for
// concurrent use.
type Service struct {
	mu    sync.RWMutex
	defs  map[string]schema.LookupDefinition
	cache map[string]entry

	group    singleflight.Group
	fetcher  Fetcher
	clock    clock.Clock
	logger   zerolog.Logger
	observer Observer
}

// Option customises a Service.
type Option func(*Service)

// WithClock injects the time source used for expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithObserver reports every resolution outcome, typically to metrics.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// New returns a service resolving defs through fetcher.
func New(defs map[string]schema.LookupDefinition, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		cache:   make(map[string]entry),
		fetcher: fetcher,
		clock:   clock.Real{},
		logger:  zerolog.Nop(),
	}
	s.defs = copyDefs(defs)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func copyDefs(defs map[string]schema.LookupDefinition) map[string]schema.LookupDefinition {
	out := make(map[string]schema.LookupDefinition, len(defs))
	for name, def := range defs {
		out[name] = def
	}
	return out
}

// SetDefinitions swaps the lookup definitions. Cached entries stay valid
// because keys embed the endpoint and method.
func (s *Service) SetDefinitions(defs map[string]schema.LookupDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = copyDefs(defs)
}

// Definition returns the definition registered under ref.
func (s *Service) Definition(ref string) (schema.LookupDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[ref]
	return def, ok
}

// Key returns the cache key of a request: the JSON form of endpoint, method
// and params, with map keys sorted.
func Key(def schema.LookupDefinition, params map[string]any) string {
	payload := struct {
		Endpoint string         `json:"endpoint"`
		Method   string         `json:"method"`
		Params   map[string]any `json:"params"`
	}{def.Endpoint, def.MethodOrDefault(), params}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%s %s %v", payload.Method, payload.Endpoint, params)
	}
	return string(raw)
}

// Resolve returns the options of ref for params. A live cache entry is
// returned without fetching; concurrent misses for one key share a single
// fetch made with the first caller's context. Callers own the returned slice.
func (s *Service) Resolve(ctx context.Context, ref string, params map[string]any) ([]schema.Option, error) {
	start := s.clock.Now()
	def, ok := s.Definition(ref)
	if !ok {
		s.observe(ref, OutcomeError, start)
		return nil, &LookupError{Lookup: ref, Err: ErrUnknownLookup}
	}
	key := Key(def, params)

	if !def.Cached() {
		options, err := s.fetch(ctx, ref, key, def, params)
		if err != nil {
			s.observe(ref, OutcomeError, start)
			return nil, err
		}
		s.observe(ref, OutcomeBypass, start)
		return cloneOptions(options), nil
	}

	if options, ok := s.live(key); ok {
		s.observe(ref, OutcomeHit, start)
		return cloneOptions(options), nil
	}

	value, err, shared := s.group.Do(key, func() (any, error) {
		if options, ok := s.live(key); ok {
			return options, nil
		}
		options, err := s.fetch(ctx, ref, key, def, params)
		if err != nil {
			return nil, err
		}
		s.store(key, def, options)
		return options, nil
	})
	if err != nil {
		s.observe(ref, OutcomeError, start)
		return nil, err
	}

	if shared {
		s.observe(ref, OutcomeShared, start)
	} else {
		s.observe(ref, OutcomeMiss, start)
	}
	return cloneOptions(value.([]schema.Option)), nil
}

func (s *Service) fetch(ctx context.Context, ref, key string, def schema.LookupDefinition, params map[string]any) ([]schema.Option, error) {
	if s.fetcher == nil {
		return nil, &LookupError{Lookup: ref, Key: key, Err: ErrNoFetcher}
	}
	if err := ctx.Err(); err != nil {
		return nil, &LookupError{Lookup: ref, Key: key, Err: err}
	}

	options, err := s.fetcher.Fetch(ctx, def, params)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("lookup", ref).
			Str("endpoint", def.Endpoint).
			Msg("lookup: fetch failed")
		return nil, &LookupError{Lookup: ref, Key: key, Err: err}
	}
	if options == nil {
		options = []schema.Option{}
	}
	s.logger.Debug().
		Str("lookup", ref).
		Int("options", len(options)).
		Msg("lookup: fetched")
	return options, nil
}

func (s *Service) live(key string) ([]schema.Option, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[key]
	if !ok || !e.expiresAt.After(s.clock.Now()) {
		return nil, false
	}
	return e.options, true
}

// store replaces the whole entry for key. A zero TTL never produces a live
// entry, so nothing is stored.
func (s *Service) store(key string, def schema.LookupDefinition, options []schema.Option) {
	ttl := def.TTL()
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = entry{
		endpoint:  def.Endpoint,
		method:    def.MethodOrDefault(),
		options:   cloneOptions(options),
		expiresAt: s.clock.Now().Add(ttl),
	}
}

// Invalidate drops every cached entry served by ref's endpoint.
func (s *Service) Invalidate(ref string) {
	def, ok := s.Definition(ref)
	if !ok {
		return
	}
	method := def.MethodOrDefault()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.cache {
		if e.endpoint == def.Endpoint && e.method == method {
			delete(s.cache, key)
		}
	}
}

// Purge drops every cached entry.
func (s *Service) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]entry)
}

// Len returns the number of cached entries, live or expired.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *Service) observe(ref, outcome string, start time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveLookup(ref, outcome, s.clock.Now().Sub(start))
}

func cloneOptions(options []schema.Option) []schema.Option {
	if options == nil {
		return nil
	}
	out := make([]schema.Option, len(options))
	copy(out, options)
	return out
}
