package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/internal/clock"
	"github.com/goliatone/go-formengine/pkg/logic"
	"github.com/goliatone/go-formengine/pkg/lookup"
	"github.com/goliatone/go-formengine/pkg/metrics"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/validation"
)

// Listener receives every published snapshot.
type Listener func(State)

type subscription struct {
	fn Listener
}

// Instance is a live form session. All methods are safe for concurrent use.
type Instance struct {
	id       string
	cfg      config
	base     zerolog.Logger
	logger   zerolog.Logger
	metrics  *metrics.Collector
	registry *validation.Registry
	lookups  *lookup.Service

	ctx    context.Context
	cancel context.CancelFunc
	queue  *queue
	done   chan struct{}
	closed sync.Once

	current atomic.Pointer[schema.Index]
	state   atomic.Pointer[State]

	listenersMu sync.Mutex
	listeners   []*subscription

	// Owned by the loop goroutine.
	idx           *schema.Index
	logic         *logic.Engine
	validator     *validation.Engine
	values        map[string]any
	flags         map[string]logic.Flags
	fieldErrors   map[string][]string
	crossErrors   map[string]validation.CrossFieldResult
	validating    map[string]uint64
	generation    map[string]uint64
	lookupGen     map[string]uint64
	lookupOptions map[string][]schema.Option
	lookupLoading map[string]bool
	lookupFailed  map[string]bool
	touched       map[string]bool
	epoch         uint64
	seq           uint64
	version       uint64
	pending       int
	waiters       []chan struct{}
}

// New loads s and starts an instance. Only schema errors are returned.
func New(s *schema.FormSchema, opts ...Option) (*Instance, error) {
	idx, err := schema.NewIndex(s)
	if err != nil {
		return nil, err
	}

	cfg := config{
		logger: zerolog.Nop(),
		clock:  clock.Real{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	if cfg.registry == nil {
		cfg.registry = validation.NewRegistry()
	}

	in := &Instance{
		id:       cfg.id,
		cfg:      cfg,
		metrics:  cfg.metrics,
		registry: cfg.registry,
		queue:    newQueue(),
		done:     make(chan struct{}),
	}
	in.base = cfg.logger.With().Str("instance_id", cfg.id).Logger()
	in.ctx, in.cancel = context.WithCancel(context.Background())

	lookupOpts := []lookup.Option{
		lookup.WithClock(cfg.clock),
		lookup.WithLogger(in.base),
	}
	if cfg.metrics != nil {
		lookupOpts = append(lookupOpts, lookup.WithObserver(cfg.metrics))
	}
	in.lookups = lookup.New(idx.Schema().Lookups, cfg.fetcher, lookupOpts...)

	in.load(idx)
	go in.run()
	in.metrics.InstanceOpened()
	return in, nil
}

// ID returns the instance id.
func (in *Instance) ID() string { return in.id }

// FormID returns the form id of the current schema.
func (in *Instance) FormID() string { return in.current.Load().FormID() }

// Index returns the current schema index.
func (in *Instance) Index() *schema.Index { return in.current.Load() }

// Registry returns the validator registry shared by every schema the instance
// runs.
func (in *Instance) Registry() *validation.Registry { return in.registry }

// State returns the latest published snapshot.
func (in *Instance) State() State {
	return *in.state.Load()
}

// SetValue queues a value change for id.
func (in *Instance) SetValue(id string, value any) error {
	if !in.current.Load().Has(id) {
		return fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	return in.post("set_value", func() bool {
		return in.setValue(id, value)
	})
}

// Revalidate queues a full validation pass over every active field.
func (in *Instance) Revalidate() error {
	return in.post("revalidate", in.revalidate)
}

// Swap replaces the schema. Values carry over by field id; new fields start
// at their defaults. Schema errors are returned before anything is queued.
func (in *Instance) Swap(s *schema.FormSchema) error {
	idx, err := schema.NewIndex(s)
	if err != nil {
		return err
	}
	in.current.Store(idx)
	return in.post("swap", func() bool {
		in.swap(idx)
		return true
	})
}

// RegisterCustomValidator adds a named field validator. It applies to
// validations started after the call.
func (in *Instance) RegisterCustomValidator(name string, fn validation.CustomValidator) {
	in.registry.RegisterCustomValidator(name, fn)
}

// RegisterCrossFieldValidator adds a named cross-field validator.
func (in *Instance) RegisterCrossFieldValidator(name string, fn validation.CrossFieldValidator) {
	in.registry.RegisterCrossFieldValidator(name, fn)
}

// GetLookupOptions returns the resolved options of a lookup field from the
// latest snapshot. ok is false until a fetch has succeeded.
func (in *Instance) GetLookupOptions(id string) ([]schema.Option, bool) {
	field, ok := in.State().Field(id)
	if !ok || field.LookupOptions == nil {
		return nil, false
	}
	out := make([]schema.Option, len(field.LookupOptions))
	copy(out, field.LookupOptions)
	return out, true
}

// RefreshLookup drops cached results for the lookup of id and fetches again.
func (in *Instance) RefreshLookup(id string) error {
	field, ok := in.current.Load().Field(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	if field.LookupRef == "" {
		return fmt.Errorf("runtime: field %s has no lookup", id)
	}
	return in.post("refresh_lookup", func() bool {
		return in.refreshLookup(id)
	})
}

// Subscribe registers fn for every future snapshot. The returned function
// removes it.
//
// Listeners run on the update loop, one snapshot at a time. A listener may
// call SetValue, Revalidate, RefreshLookup or State, which never block, but
// must not call Sync, Settle or Submit: they wait for the loop the listener
// is holding and deadlock the instance.
func (in *Instance) Subscribe(fn Listener) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	in.listenersMu.Lock()
	in.listeners = append(in.listeners, sub)
	in.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			in.listenersMu.Lock()
			defer in.listenersMu.Unlock()
			for i, s := range in.listeners {
				if s == sub {
					in.listeners = append(in.listeners[:i:i], in.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Sync waits until every transaction queued before the call has been applied.
func (in *Instance) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := in.post("sync", func() bool {
		close(reached)
		return false
	}); err != nil {
		return err
	}
	return in.wait(ctx, reached)
}

// Settle waits like Sync and then until no validator or lookup is pending.
func (in *Instance) Settle(ctx context.Context) error {
	settled := make(chan struct{})
	if err := in.post("settle", func() bool {
		if in.pending == 0 {
			close(settled)
		} else {
			in.waiters = append(in.waiters, settled)
		}
		return false
	}); err != nil {
		return err
	}
	return in.wait(ctx, settled)
}

func (in *Instance) wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-in.done:
		select {
		case <-ch:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Submit runs a full validation over the visible, enabled fields of the
// current values. Values in the result exclude hidden and disabled fields.
// The errors are published when no transaction ran in the meantime.
func (in *Instance) Submit(ctx context.Context) (SubmitResult, error) {
	snap, err := in.snapshot(ctx)
	if err != nil {
		return SubmitResult{}, err
	}

	fieldErrors := snap.validator.ValidateFields(ctx, snap.values, snap.flags)
	cross := snap.validator.CrossField(ctx, snap.values, snap.flags)
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{Values: make(map[string]any)}
	for _, id := range snap.idx.IDs() {
		if snap.flags[id].Active() {
			result.Values[id] = snap.values[id]
		}
	}
	errs := make(map[string][]string, len(fieldErrors))
	for id, messages := range fieldErrors {
		errs[id] = messages
	}
	for _, r := range cross {
		if len(r.Errors) == 0 {
			continue
		}
		if r.Target == "" {
			result.FormErrors = mergeErrors(result.FormErrors, r.Errors)
			continue
		}
		if !snap.flags[r.Target].Active() {
			continue
		}
		errs[r.Target] = mergeErrors(errs[r.Target], r.Errors)
	}
	if len(errs) > 0 {
		result.Errors = errs
	}
	result.OK = len(result.Errors) == 0 && len(result.FormErrors) == 0
	if !result.OK {
		result.Values = nil
	}

	_ = in.post("submit_result", func() bool {
		return in.applySubmit(snap, fieldErrors, cross)
	})
	in.metrics.Submitted(snap.idx.FormID(), result.OK)
	in.base.Info().
		Str("form_id", snap.idx.FormID()).
		Bool("ok", result.OK).
		Int("errors", len(result.Errors)+len(result.FormErrors)).
		Msg("runtime: form submitted")
	return result, nil
}

type snapshot struct {
	idx       *schema.Index
	validator *validation.Engine
	values    map[string]any
	flags     map[string]logic.Flags
	version   uint64
	epoch     uint64
}

func (in *Instance) snapshot(ctx context.Context) (snapshot, error) {
	ch := make(chan snapshot, 1)
	if err := in.post("snapshot", func() bool {
		ch <- snapshot{
			idx:       in.idx,
			validator: in.validator,
			values:    copyValues(in.values),
			flags:     copyFlags(in.flags),
			version:   in.version,
			epoch:     in.epoch,
		}
		return false
	}); err != nil {
		return snapshot{}, err
	}
	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return snapshot{}, ctx.Err()
	case <-in.done:
		select {
		case snap := <-ch:
			return snap, nil
		default:
			return snapshot{}, ErrClosed
		}
	}
}

// Close stops the loop after applying what is already queued and cancels
// every pending validator and lookup. It is idempotent.
func (in *Instance) Close() error {
	in.closed.Do(func() {
		in.queue.close()
		in.cancel()
		<-in.done
		in.metrics.InstanceClosed()
		in.logger.Debug().Msg("runtime: instance closed")
	})
	return nil
}

// Done is closed once the instance has stopped.
func (in *Instance) Done() <-chan struct{} { return in.done }

func (in *Instance) post(kind string, fn func() bool) error {
	return in.queue.push(task{kind: kind, fn: fn})
}

func (in *Instance) run() {
	defer close(in.done)
	for range in.queue.signal {
		tasks, closed := in.queue.take()
		for _, t := range tasks {
			in.apply(t)
		}
		if closed {
			return
		}
	}
}

func (in *Instance) apply(t task) {
	start := time.Now()
	changed := in.guard(t)
	if changed {
		in.publish()
	}
	in.metrics.ObserveTransaction(in.idx.FormID(), t.kind, time.Since(start))
	in.logger.Debug().
		Str("kind", t.kind).
		Bool("published", changed).
		Uint64("version", in.version).
		Msg("runtime: transaction applied")
}

// guard runs one transaction, converting a panic into a logged no-op.
func (in *Instance) guard(t task) (changed bool) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error().
				Str("kind", t.kind).
				Interface("panic", r).
				Msg("runtime: transaction panicked")
			changed = true
		}
	}()
	return t.fn()
}

// asyncContext derives the context of a validator or lookup goroutine.
func (in *Instance) asyncContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(in.ctx, timeout)
	}
	return context.WithCancel(in.ctx)
}

func (in *Instance) notify(st State) {
	in.listenersMu.Lock()
	subs := append([]*subscription(nil), in.listeners...)
	in.listenersMu.Unlock()

	for _, sub := range subs {
		in.deliver(sub, st)
	}
}

func (in *Instance) deliver(sub *subscription, st State) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error().
				Interface("panic", r).
				Uint64("version", st.Version).
				Msg("runtime: listener panicked")
		}
	}()
	sub.fn(st)
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

func copyFlags(flags map[string]logic.Flags) map[string]logic.Flags {
	out := make(map[string]logic.Flags, len(flags))
	for key, value := range flags {
		out[key] = value
	}
	return out
}

// mergeErrors appends extra to base, dropping empty and repeated messages.
func mergeErrors(base []string, extra []string) []string {
	var out []string
	seen := make(map[string]bool, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, msg := range list {
			if msg == "" || seen[msg] {
				continue
			}
			seen[msg] = true
			out = append(out, msg)
		}
	}
	return out
}
