package validation

import (
	"context"
	"errors"
	"math"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/logic"
	"github.com/goliatone/go-formengine/pkg/schema"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ().\-]{7,20}$`)

// Check is the outcome of the synchronous stages for one field.
type Check struct {
	Errors []string
	// Skipped is set when the field is hidden or disabled.
	Skipped bool
	// NeedsCustom is set when a custom rule still has to run.
	NeedsCustom bool
}

// Report collects form-wide results.
type Report struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// OK reports whether the report holds no errors.
func (r Report) OK() bool {
	return len(r.Fields) == 0 && len(r.Form) == 0
}

// CrossFieldResult is the outcome of one cross-field rule. Errors attach to
// Target, or to the form when Target is empty.
type CrossFieldResult struct {
	Rule    string
	Target  string
	Errors  []string
	Skipped bool
}

// Engine runs the validation pipeline for one schema.
type Engine struct {
	idx         *schema.Index
	registry    *Registry
	messages    *Messages
	logger      zerolog.Logger
	validate    *validator.Validate
	concurrency int
	timeout     time.Duration
}

// Option customises an Engine.
type Option func(*Engine)

// WithRegistry shares a validator registry between engines.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithMessages replaces the default message templates.
func WithMessages(m *Messages) Option {
	return func(e *Engine) {
		if m != nil {
			e.messages = m
		}
	}
}

// WithLogger sets the logger used for validator failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConcurrency bounds the number of fields ValidateForm checks at once.
// Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithCustomTimeout bounds each custom and cross-field validator call. A
// validator still running after d fails with the generic error message.
// Zero means calls are bounded by the caller's context only.
func WithCustomTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New returns an engine for idx.
func New(idx *schema.Index, opts ...Option) *Engine {
	e := &Engine{
		idx:      idx,
		registry: NewRegistry(),
		messages: DefaultMessages(),
		logger:   zerolog.Nop(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Registry returns the validator registry.
func (e *Engine) Registry() *Registry { return e.registry }

// RegisterCustomValidator adds a named field validator.
func (e *Engine) RegisterCustomValidator(name string, fn CustomValidator) {
	e.registry.RegisterCustomValidator(name, fn)
}

// RegisterCrossFieldValidator adds a named cross-field validator.
func (e *Engine) RegisterCrossFieldValidator(name string, fn CrossFieldValidator) {
	e.registry.RegisterCrossFieldValidator(name, fn)
}

// CheckField runs the synchronous stages: skip, required and format checks.
func (e *Engine) CheckField(field schema.Field, value any, flags logic.Flags) Check {
	if !flags.Active() {
		return Check{Skipped: true}
	}

	rules := field.Validation
	data := map[string]any{"label": field.DisplayLabel()}

	if coerce.IsEmpty(value) {
		if flags.Required {
			return Check{Errors: []string{e.messages.Render(MsgRequired, data)}}
		}
		return Check{}
	}

	var errs []string
	fail := func(key string) {
		if rules.ErrorMessage != "" {
			errs = append(errs, rules.ErrorMessage)
			return
		}
		errs = append(errs, e.messages.Render(key, data))
	}

	number, isNumber := coerce.Number(value)
	if field.Type.Numeric() {
		switch {
		case !isNumber:
			fail(MsgNumber)
		case field.Type == schema.FieldTypeInteger && number != math.Trunc(number):
			fail(MsgInteger)
		}
	}

	text := coerce.String(value)
	if rules.Pattern != "" {
		if re := e.pattern(field); re != nil && !re.MatchString(text) {
			data["pattern"] = rules.Pattern
			fail(MsgPattern)
		}
	}
	if rules.Email && e.validate.Var(text, "email") != nil {
		fail(MsgEmail)
	}
	if rules.Phone && !validPhone(text) {
		fail(MsgPhone)
	}

	length := utf8.RuneCountInString(text)
	if items, ok := coerce.Strings(value); ok {
		length = len(items)
	}
	if rules.MinLength != nil && length < *rules.MinLength {
		data["minLength"] = *rules.MinLength
		fail(MsgMinLength)
	}
	if rules.MaxLength != nil && length > *rules.MaxLength {
		data["maxLength"] = *rules.MaxLength
		fail(MsgMaxLength)
	}

	if isNumber {
		if rules.Min != nil && number < *rules.Min {
			data["min"] = coerce.String(*rules.Min)
			fail(MsgMin)
		}
		if rules.Max != nil && number > *rules.Max {
			data["max"] = coerce.String(*rules.Max)
			fail(MsgMax)
		}
	}

	errs = normalizeMessages(errs)
	return Check{
		Errors:      errs,
		NeedsCustom: len(errs) == 0 && rules.Custom != nil,
	}
}

func (e *Engine) pattern(field schema.Field) *regexp.Regexp {
	if e.idx != nil {
		if re := e.idx.Pattern(field.ID); re != nil {
			return re
		}
	}
	re, err := regexp.Compile(field.Validation.Pattern)
	if err != nil {
		return nil
	}
	return re
}

func validPhone(value string) bool {
	if !phonePattern.MatchString(value) {
		return false
	}
	digits := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7
}

// RunCustom runs the field's custom rule. An unknown rule name is logged and
// ignored. A validator error or panic yields one generic message.
func (e *Engine) RunCustom(ctx context.Context, field schema.Field, value any, values map[string]any) []string {
	rule := field.Validation.Custom
	if rule == nil {
		return nil
	}
	fn, ok := e.registry.Custom(rule.Rule)
	if !ok {
		e.logger.Warn().
			Str("form_id", e.formID()).
			Str("field", field.ID).
			Str("rule", rule.Rule).
			Msg("validation: custom validator is not registered")
		return nil
	}

	data := map[string]any{"label": field.DisplayLabel()}
	for key, param := range rule.Params {
		data[key] = param
	}

	err := e.bounded(ctx, rule.Rule, field.ID, func(ctx context.Context) error {
		return fn(ctx, Input{Field: field, Value: value, Params: rule.Params, Values: values})
	})
	switch {
	case err == nil:
		return nil
	case IsFailure(err):
		var failure *Failure
		errors.As(err, &failure)
		if failure.Message != "" {
			return []string{failure.Message}
		}
		if field.Validation.ErrorMessage != "" {
			return []string{field.Validation.ErrorMessage}
		}
		return []string{e.messages.Render(MsgCustom, data)}
	default:
		e.logger.Error().Err(err).
			Str("form_id", e.formID()).
			Str("field", field.ID).
			Str("rule", rule.Rule).
			Msg("validation: custom validator error")
		return []string{e.messages.Render(MsgCustomError, data)}
	}
}

// call invokes fn, converting panics and non-failure errors into
// CustomValidatorError.
func (e *Engine) call(rule, field string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CustomValidatorError{Rule: rule, Field: field, Panic: r}
		}
	}()
	if err := fn(); err != nil {
		if IsFailure(err) {
			return err
		}
		return &CustomValidatorError{Rule: rule, Field: field, Err: err}
	}
	return nil
}

// bounded runs fn until it returns or ctx, narrowed by the custom timeout,
// is done. An abandoned call keeps running in its goroutine; its result is
// dropped.
func (e *Engine) bounded(ctx context.Context, rule, field string, fn func(context.Context) error) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() {
		done <- e.call(rule, field, func() error { return fn(ctx) })
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &CustomValidatorError{Rule: rule, Field: field, Err: ctx.Err()}
	}
}

// ValidateField runs every per-field stage, blocking on the custom rule.
func (e *Engine) ValidateField(ctx context.Context, field schema.Field, value any, flags logic.Flags, values map[string]any) []string {
	check := e.CheckField(field, value, flags)
	if !check.NeedsCustom {
		return check.Errors
	}
	return normalizeMessages(append(check.Errors, e.RunCustom(ctx, field, value, values)...))
}

// ValidateForm validates every active field concurrently, then runs every
// cross-field rule. A field missing from flags uses its base flags.
func (e *Engine) ValidateForm(ctx context.Context, values map[string]any, flags map[string]logic.Flags) Report {
	report := Report{Fields: e.ValidateFields(ctx, values, flags)}
	for _, result := range e.CrossField(ctx, values, flags) {
		if len(result.Errors) == 0 {
			continue
		}
		if result.Target == "" {
			report.Form = append(report.Form, result.Errors...)
			continue
		}
		report.Fields[result.Target] = normalizeMessages(append(report.Fields[result.Target], result.Errors...))
	}
	report.Form = normalizeMessages(report.Form)
	if len(report.Fields) == 0 {
		report.Fields = nil
	}
	return report
}

// ValidateFields runs the per-field stages for every active field
// concurrently. Only fields with errors appear in the result.
func (e *Engine) ValidateFields(ctx context.Context, values map[string]any, flags map[string]logic.Flags) map[string][]string {
	ids := e.idx.IDs()
	results := make([][]string, len(ids))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, id := range ids {
		field, _ := e.idx.Field(id)
		fieldFlags := e.flagsFor(id, flags)
		if !fieldFlags.Active() {
			continue
		}
		g.Go(func() error {
			results[i] = e.ValidateField(ctx, field, values[id], fieldFlags, values)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]string)
	for i, id := range ids {
		if len(results[i]) > 0 {
			out[id] = results[i]
		}
	}
	return out
}

func (e *Engine) flagsFor(id string, flags map[string]logic.Flags) logic.Flags {
	if f, ok := flags[id]; ok {
		return f
	}
	field, _ := e.idx.Field(id)
	return logic.Flags{Visible: true, Required: field.Validation.Required}
}

// CrossFieldRulesFor returns the ids of cross-field rules reading or
// targeting any of ids.
func (e *Engine) CrossFieldRulesFor(ids ...string) []string {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []string
	for _, rule := range e.idx.CrossField() {
		if rule.Target != "" && wanted[rule.Target] {
			out = append(out, rule.ID)
			continue
		}
		for _, id := range rule.Fields {
			if wanted[id] {
				out = append(out, rule.ID)
				break
			}
		}
	}
	return out
}

// CrossField runs the named cross-field rules, or all of them when ruleIDs
// is empty. A rule is skipped while any of its fields, or its target, is
// hidden or disabled.
func (e *Engine) CrossField(ctx context.Context, values map[string]any, flags map[string]logic.Flags, ruleIDs ...string) []CrossFieldResult {
	selected := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		selected[id] = true
	}

	var out []CrossFieldResult
	for _, rule := range e.idx.CrossField() {
		if len(ruleIDs) > 0 && !selected[rule.ID] {
			continue
		}
		out = append(out, e.runCrossField(ctx, rule, values, flags))
	}
	return out
}

func (e *Engine) runCrossField(ctx context.Context, rule schema.CrossFieldRule, values map[string]any, flags map[string]logic.Flags) CrossFieldResult {
	result := CrossFieldResult{Rule: rule.ID, Target: rule.Target}
	if rule.Target != "" && !e.flagsFor(rule.Target, flags).Active() {
		result.Skipped = true
		return result
	}

	in := CrossFieldInput{
		Rule:   rule,
		Values: make(map[string]any, len(rule.Fields)),
		Labels: make(map[string]string, len(rule.Fields)),
	}
	for _, id := range rule.Fields {
		if !e.flagsFor(id, flags).Active() {
			result.Skipped = true
			return result
		}
		field, _ := e.idx.Field(id)
		in.Values[id] = values[id]
		in.Labels[id] = field.DisplayLabel()
	}

	fn, ok := e.registry.CrossField(rule.Rule)
	if !ok {
		e.logger.Warn().
			Str("form_id", e.formID()).
			Str("rule", rule.Rule).
			Str("cross_field", rule.ID).
			Msg("validation: cross-field validator is not registered")
		return result
	}

	labels := in.OrderedLabels()
	data := map[string]any{"labels": labels}
	if len(labels) > 0 {
		data["label"] = labels[0]
		data["first"] = labels[0]
	}
	if len(labels) > 1 {
		data["second"] = labels[1]
	}
	for key, param := range rule.Params {
		data[key] = param
	}

	err := e.bounded(ctx, rule.Rule, rule.Target, func(ctx context.Context) error { return fn(ctx, in) })
	switch {
	case err == nil:
	case IsFailure(err):
		var failure *Failure
		errors.As(err, &failure)
		switch {
		case failure.Message != "":
			result.Errors = []string{failure.Message}
		case rule.ErrorMessage != "":
			result.Errors = []string{rule.ErrorMessage}
		case e.messages.Has(rule.Rule):
			result.Errors = []string{e.messages.Render(rule.Rule, data)}
		default:
			result.Errors = []string{e.messages.Render(MsgCrossField, data)}
		}
	default:
		e.logger.Error().Err(err).
			Str("form_id", e.formID()).
			Str("rule", rule.Rule).
			Str("cross_field", rule.ID).
			Msg("validation: cross-field validator error")
		result.Errors = []string{e.messages.Render(MsgCustomError, data)}
	}
	return result
}

func (e *Engine) formID() string {
	if e.idx == nil {
		return ""
	}
	return e.idx.FormID()
}
