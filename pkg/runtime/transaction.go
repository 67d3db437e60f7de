package runtime

import (
	"github.com/goliatone/go-formengine/pkg/logic"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/validation"
)

// Everything in this file runs on the loop goroutine, except load which runs
// before the loop starts.

type stamp struct {
	epoch      uint64
	generation uint64
	seq        uint64
}

func (in *Instance) install(idx *schema.Index) {
	in.idx = idx
	in.current.Store(idx)
	in.logger = in.base.With().Str("form_id", idx.FormID()).Logger()
	in.logic = logic.New(idx, nil,
		logic.WithEvaluator(in.cfg.evaluator),
		logic.WithLogger(in.base),
	)
	in.validator = validation.New(idx,
		validation.WithRegistry(in.registry),
		validation.WithMessages(in.cfg.messages),
		validation.WithLogger(in.base),
		validation.WithCustomTimeout(in.cfg.validatorTimeout),
	)
}

func (in *Instance) load(idx *schema.Index) {
	in.install(idx)
	in.values = idx.InitialValues()
	for id, value := range in.cfg.initial {
		if idx.Has(id) {
			in.values[id] = value
		}
	}
	in.fieldErrors = make(map[string][]string)
	in.crossErrors = make(map[string]validation.CrossFieldResult)
	in.validating = make(map[string]uint64)
	in.generation = make(map[string]uint64)
	in.lookupGen = make(map[string]uint64)
	in.lookupOptions = make(map[string][]schema.Option)
	in.lookupLoading = make(map[string]bool)
	in.lookupFailed = make(map[string]bool)
	in.touched = make(map[string]bool)

	result := in.logic.Evaluate(in.values)
	in.flags = result.Flags
	for _, id := range result.Cleared {
		in.values[id] = nil
	}
	in.dispatchLookups(in.lookupFields())
	in.publish()
	in.logger.Debug().
		Int("fields", idx.Len()).
		Int("hidden", len(result.Cleared)).
		Msg("runtime: instance loaded")
}

func (in *Instance) setValue(id string, value any) bool {
	if !in.idx.Has(id) {
		in.logger.Warn().Str("field", id).Msg("runtime: value for unknown field dropped")
		return false
	}
	in.values[id] = value
	in.generation[id]++
	in.touched[id] = true

	result := in.logic.Recompute(in.values, in.flags, []string{id})
	shown := in.applyFlags(result)

	validated := appendUnique([]string{id}, result.Evaluated...)
	for _, field := range validated {
		in.validateField(field)
	}
	in.runCrossField(in.validator.CrossFieldRulesFor(validated...))

	sources := appendUnique([]string{id}, result.Cleared...)
	refresh := shown
	for _, source := range sources {
		refresh = appendUnique(refresh, in.logic.Graph().LookupDependents(source)...)
	}
	in.dispatchLookups(refresh)
	return true
}

// applyFlags stores a logic result, clears the fields it hid and returns the
// fields that became visible.
func (in *Instance) applyFlags(result logic.Result) []string {
	var shown []string
	for _, id := range result.Evaluated {
		prev, ok := in.flags[id]
		if ok && !prev.Visible && result.Flags[id].Visible {
			shown = append(shown, id)
		}
	}
	in.flags = result.Flags
	for _, id := range result.Cleared {
		in.clearField(id)
	}
	return shown
}

func (in *Instance) clearField(id string) {
	in.values[id] = nil
	in.generation[id]++
	delete(in.fieldErrors, id)
	delete(in.validating, id)
	if in.lookupLoading[id] {
		in.lookupGen[id]++
		delete(in.lookupLoading, id)
	}
	in.logger.Debug().
		Str("field", id).
		Uint64("generation", in.generation[id]).
		Msg("runtime: hidden field cleared")
}

// validateField runs the synchronous stages for id and dispatches its custom
// rule when they pass.
func (in *Instance) validateField(id string) {
	field, ok := in.idx.Field(id)
	if !ok {
		return
	}
	delete(in.validating, id)

	check := in.validator.CheckField(field, in.values[id], in.flags[id])
	if len(check.Errors) > 0 {
		in.fieldErrors[id] = check.Errors
	} else {
		delete(in.fieldErrors, id)
	}
	if check.NeedsCustom {
		in.dispatchValidator(field)
	}
}

func (in *Instance) dispatchValidator(field schema.Field) {
	in.seq++
	st := stamp{epoch: in.epoch, generation: in.generation[field.ID], seq: in.seq}
	in.validating[field.ID] = st.seq
	in.pending++

	value := in.values[field.ID]
	values := copyValues(in.values)
	engine := in.validator
	go func() {
		ctx, cancel := in.asyncContext(in.cfg.validatorTimeout)
		defer cancel()
		errs := engine.RunCustom(ctx, field, value, values)
		_ = in.post("validator_result", func() bool {
			return in.applyValidator(field.ID, st, errs)
		})
	}()
}

func (in *Instance) applyValidator(id string, st stamp, errs []string) bool {
	in.asyncDone()
	if st.epoch != in.epoch || st.generation != in.generation[id] || in.validating[id] != st.seq || !in.flags[id].Active() {
		in.metrics.StaleResult("validator")
		in.logger.Debug().
			Str("field", id).
			Uint64("generation", st.generation).
			Msg("runtime: stale validator result discarded")
		return false
	}
	delete(in.validating, id)
	if len(errs) > 0 {
		in.fieldErrors[id] = errs
	} else {
		delete(in.fieldErrors, id)
	}
	in.runCrossField(in.validator.CrossFieldRulesFor(id))
	return true
}

// runCrossField reruns the given rules. A rule waits while any of its fields
// has a custom validator in flight.
func (in *Instance) runCrossField(ruleIDs []string) {
	if len(ruleIDs) == 0 {
		return
	}
	wanted := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		wanted[id] = true
	}

	var ready []string
	for _, rule := range in.idx.CrossField() {
		if !wanted[rule.ID] {
			continue
		}
		if in.anyValidating(rule.Fields) {
			delete(in.crossErrors, rule.ID)
			continue
		}
		ready = append(ready, rule.ID)
	}
	if len(ready) == 0 {
		return
	}

	for _, result := range in.validator.CrossField(in.ctx, in.values, in.flags, ready...) {
		if result.Skipped || len(result.Errors) == 0 {
			delete(in.crossErrors, result.Rule)
			continue
		}
		in.crossErrors[result.Rule] = result
	}
}

func (in *Instance) anyValidating(ids []string) bool {
	for _, id := range ids {
		if _, ok := in.validating[id]; ok {
			return true
		}
	}
	return false
}

func (in *Instance) allCrossFieldRules() []string {
	rules := in.idx.CrossField()
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.ID)
	}
	return out
}

func (in *Instance) revalidate() bool {
	for _, id := range in.idx.IDs() {
		in.touched[id] = true
		in.validateField(id)
	}
	in.runCrossField(in.allCrossFieldRules())
	return true
}

// lookupFields lists every lookup-backed field in declaration order.
func (in *Instance) lookupFields() []string {
	var out []string
	for _, id := range in.idx.IDs() {
		if field, _ := in.idx.Field(id); field.LookupRef != "" {
			out = append(out, id)
		}
	}
	return out
}

// dispatchLookups fetches options for every visible lookup field in ids.
func (in *Instance) dispatchLookups(ids []string) {
	for _, id := range ids {
		field, ok := in.idx.Field(id)
		if !ok || field.LookupRef == "" || !in.flags[id].Visible {
			continue
		}
		in.dispatchLookup(field)
	}
}

func (in *Instance) dispatchLookup(field schema.Field) {
	def, ok := in.idx.Lookup(field.LookupRef)
	if !ok {
		return
	}
	params := schema.ResolveParams(schema.BoundParams(def, field.LookupParams), in.values)

	in.lookupGen[field.ID]++
	st := stamp{epoch: in.epoch, generation: in.lookupGen[field.ID]}
	in.lookupLoading[field.ID] = true
	in.pending++

	service := in.lookups
	go func() {
		ctx, cancel := in.asyncContext(in.cfg.lookupTimeout)
		defer cancel()
		options, err := service.Resolve(ctx, field.LookupRef, params)
		_ = in.post("lookup_result", func() bool {
			return in.applyLookup(field.ID, st, options, err)
		})
	}()
}

func (in *Instance) applyLookup(id string, st stamp, options []schema.Option, err error) bool {
	in.asyncDone()
	if st.epoch != in.epoch || st.generation != in.lookupGen[id] {
		in.metrics.StaleResult("lookup")
		in.logger.Debug().
			Str("field", id).
			Uint64("generation", st.generation).
			Msg("runtime: stale lookup result discarded")
		return false
	}
	delete(in.lookupLoading, id)
	if err != nil {
		in.lookupFailed[id] = true
		delete(in.lookupOptions, id)
		in.logger.Warn().Err(err).
			Str("field", id).
			Msg("runtime: lookup failed")
		return true
	}
	delete(in.lookupFailed, id)
	in.lookupOptions[id] = options
	return true
}

func (in *Instance) refreshLookup(id string) bool {
	field, ok := in.idx.Field(id)
	if !ok || field.LookupRef == "" {
		return false
	}
	in.lookups.Invalidate(field.LookupRef)
	if !in.flags[id].Visible {
		return false
	}
	in.dispatchLookup(field)
	return true
}

// asyncDone marks one validator or lookup result as received and releases
// Settle callers once nothing is pending.
func (in *Instance) asyncDone() {
	in.pending--
	if in.pending > 0 {
		return
	}
	for _, w := range in.waiters {
		close(w)
	}
	in.waiters = nil
}

// swap installs a new schema, carrying values over by field id.
func (in *Instance) swap(idx *schema.Index) {
	previous := in.values
	prevFlags := in.flags

	in.install(idx)
	in.lookups.SetDefinitions(idx.Schema().Lookups)
	in.epoch++

	in.values = idx.InitialValues()
	flags := make(map[string]logic.Flags, idx.Len())
	touched := make(map[string]bool)
	options := make(map[string][]schema.Option)
	for _, id := range idx.IDs() {
		if value, ok := previous[id]; ok {
			in.values[id] = value
			in.generation[id]++
		}
		if f, ok := prevFlags[id]; ok {
			flags[id] = f
		}
		if in.touched[id] {
			touched[id] = true
		}
		if opts, ok := in.lookupOptions[id]; ok {
			options[id] = opts
		}
	}
	in.flags = flags
	in.touched = touched
	in.lookupOptions = options
	in.fieldErrors = make(map[string][]string)
	in.crossErrors = make(map[string]validation.CrossFieldResult)
	in.validating = make(map[string]uint64)
	in.lookupLoading = make(map[string]bool)
	in.lookupFailed = make(map[string]bool)

	in.applyFlags(in.logic.Recompute(in.values, in.flags, idx.IDs()))

	var revalidate []string
	for _, id := range idx.IDs() {
		if in.touched[id] {
			revalidate = append(revalidate, id)
			in.validateField(id)
		}
	}
	in.runCrossField(in.validator.CrossFieldRulesFor(revalidate...))
	in.dispatchLookups(in.lookupFields())

	in.logger.Info().
		Int("fields", idx.Len()).
		Uint64("epoch", in.epoch).
		Msg("runtime: schema swapped")
}

// applySubmit publishes the errors of a submission made against the current
// version.
func (in *Instance) applySubmit(snap snapshot, fieldErrors map[string][]string, cross []validation.CrossFieldResult) bool {
	if snap.epoch != in.epoch || snap.version != in.version {
		return false
	}
	for _, id := range in.idx.IDs() {
		in.touched[id] = true
		if !in.flags[id].Active() {
			continue
		}
		delete(in.validating, id)
		if errs := fieldErrors[id]; len(errs) > 0 {
			in.fieldErrors[id] = errs
		} else {
			delete(in.fieldErrors, id)
		}
	}
	in.crossErrors = make(map[string]validation.CrossFieldResult)
	for _, result := range cross {
		if !result.Skipped && len(result.Errors) > 0 {
			in.crossErrors[result.Rule] = result
		}
	}
	return true
}

// publish stores a new snapshot and hands it to every listener.
func (in *Instance) publish() {
	in.version++

	targeted := make(map[string][]string)
	var formErrors []string
	for _, rule := range in.idx.CrossField() {
		result, ok := in.crossErrors[rule.ID]
		if !ok {
			continue
		}
		if result.Target == "" {
			formErrors = mergeErrors(formErrors, result.Errors)
			continue
		}
		if !in.flags[result.Target].Active() {
			continue
		}
		targeted[result.Target] = mergeErrors(targeted[result.Target], result.Errors)
	}

	st := &State{
		FormID:     in.idx.FormID(),
		Version:    in.version,
		Order:      in.idx.IDs(),
		Fields:     make(map[string]FieldState, in.idx.Len()),
		FormErrors: formErrors,
	}
	for _, id := range st.Order {
		flags := in.flags[id]
		_, validating := in.validating[id]
		st.Fields[id] = FieldState{
			Value:         in.values[id],
			Visible:       flags.Visible,
			Required:      flags.Required,
			Disabled:      flags.Disabled,
			Errors:        mergeErrors(in.fieldErrors[id], targeted[id]),
			Validating:    validating,
			LookupOptions: in.lookupOptions[id],
			LookupLoading: in.lookupLoading[id],
			LookupError:   in.lookupFailed[id],
			Generation:    in.generation[id],
		}
	}
	in.state.Store(st)
	in.notify(*st)
}

func appendUnique(base []string, extra ...string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
