package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/runtime"
	"github.com/goliatone/go-formengine/pkg/schema"
)

const (
	defaultMaxAttempts = 3
	skipLabel          = "(skip)"
)

// ErrIncomplete is returned when the form is still invalid after the last
// round of corrections.
var ErrIncomplete = errors.New("prompt: form still invalid")

// Filler drives an instance through a Driver.
type Filler struct {
	driver      Driver
	logger      zerolog.Logger
	maxAttempts int
}

// Option customises a Filler.
type Option func(*Filler)

// WithLogger sets the filler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Filler) { f.logger = logger }
}

// WithMaxAttempts bounds how often one field is asked again after a
// validation error, and how many submit rounds run.
func WithMaxAttempts(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// NewFiller returns a filler on driver.
func NewFiller(driver Driver, opts ...Option) *Filler {
	f := &Filler{driver: driver, logger: zerolog.Nop(), maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fill asks every visible, enabled field once, then submits. Fields reported
// invalid by the submission are asked again, up to the attempt limit.
func (f *Filler) Fill(ctx context.Context, in *runtime.Instance) (runtime.SubmitResult, error) {
	asked := make(map[string]bool)

	for round := 1; ; round++ {
		if err := f.ask(ctx, in, asked); err != nil {
			return runtime.SubmitResult{}, err
		}

		result, err := in.Submit(ctx)
		if err != nil {
			return runtime.SubmitResult{}, err
		}
		if result.OK {
			return result, nil
		}

		st := in.State()
		for _, msg := range result.FormErrors {
			if err := f.driver.Info(ctx, "! "+msg); err != nil {
				return result, err
			}
		}
		for _, id := range st.Order {
			msgs, ok := result.Errors[id]
			if !ok {
				continue
			}
			if err := f.driver.Info(ctx, fmt.Sprintf("! %s: %s", f.label(in, id), strings.Join(msgs, ", "))); err != nil {
				return result, err
			}
			delete(asked, id)
		}
		if round >= f.maxAttempts {
			return result, ErrIncomplete
		}
		f.logger.Debug().Str("form_id", in.FormID()).Int("round", round).Msg("prompt: submission invalid, asking again")
	}
}

// ask repeats the walk from the first field after every answer so fields
// shown by that answer are picked up in order.
func (f *Filler) ask(ctx context.Context, in *runtime.Instance, asked map[string]bool) error {
	for {
		st, err := settle(ctx, in)
		if err != nil {
			return err
		}
		id, ok := next(st, asked)
		if !ok {
			return nil
		}
		asked[id] = true
		if err := f.askField(ctx, in, id); err != nil {
			return err
		}
	}
}

func next(st runtime.State, asked map[string]bool) (string, bool) {
	for _, id := range st.Order {
		fs := st.Fields[id]
		if asked[id] || !fs.Visible || fs.Disabled {
			continue
		}
		return id, true
	}
	return "", false
}

func (f *Filler) askField(ctx context.Context, in *runtime.Instance, id string) error {
	field, _ := in.Index().Field(id)
	for attempt := 1; ; attempt++ {
		st, err := settle(ctx, in)
		if err != nil {
			return err
		}
		value, err := f.question(ctx, field, st.Fields[id])
		if err != nil {
			return err
		}
		if err := in.SetValue(id, value); err != nil {
			return err
		}

		st, err = settle(ctx, in)
		if err != nil {
			return err
		}
		errs := st.Fields[id].Errors
		if len(errs) == 0 || attempt >= f.maxAttempts {
			return nil
		}
		if err := f.driver.Info(ctx, fmt.Sprintf("! %s: %s", field.DisplayLabel(), strings.Join(errs, ", "))); err != nil {
			return err
		}
	}
}

// question asks for one value and converts the answer to the field's type.
// Empty answers to optional fields become nil.
func (f *Filler) question(ctx context.Context, field schema.Field, fs runtime.FieldState) (any, error) {
	message := field.DisplayLabel()
	if fs.Required {
		message += " *"
	}

	options := field.Options
	if field.LookupRef != "" {
		options = fs.LookupOptions
		if fs.LookupError {
			_ = f.driver.Info(ctx, fmt.Sprintf("! %s: options could not be loaded", field.DisplayLabel()))
		}
	}

	switch {
	case len(options) > 0:
		return f.choose(ctx, message, field, fs, options)
	case field.Type == schema.FieldTypeCheckbox || field.Type == schema.FieldTypeBoolean:
		checked, _ := coerce.Bool(fs.Value)
		return f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: checked, Help: field.Placeholder})
	case field.Type == schema.FieldTypeTextArea:
		answer, err := f.driver.TextArea(ctx, TextAreaConfig{Message: message, Default: current(fs.Value), Help: field.Placeholder})
		if err != nil {
			return nil, err
		}
		return text(answer), nil
	}

	cfg := InputConfig{Message: message, Default: current(fs.Value), Help: field.Placeholder}
	if field.Type.Numeric() {
		cfg.Validator = func(s string) error {
			_, err := number(field.Type, s)
			return err
		}
	}

	var answer string
	var err error
	if isSecret(field) {
		answer, err = f.driver.Password(ctx, cfg)
	} else {
		answer, err = f.driver.Input(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	if field.Type.Numeric() {
		return number(field.Type, answer)
	}
	return text(answer), nil
}

func (f *Filler) choose(ctx context.Context, message string, field schema.Field, fs runtime.FieldState, options []schema.Option) (any, error) {
	labels := make([]string, 0, len(options)+1)
	offset := 0
	if !fs.Required {
		labels = append(labels, skipLabel)
		offset = 1
	}
	selected := 0
	for i, opt := range options {
		labels = append(labels, opt.Label)
		if fs.Value != nil && coerce.String(opt.Value) == coerce.String(fs.Value) {
			selected = i + offset
		}
	}

	idx, err := f.driver.Select(ctx, SelectConfig{Message: message, Options: labels, DefaultIndex: selected, Help: field.Placeholder})
	if err != nil {
		return nil, err
	}
	idx -= offset
	if idx < 0 || idx >= len(options) {
		return nil, nil
	}
	return options[idx].Value, nil
}

func (f *Filler) label(in *runtime.Instance, id string) string {
	if field, ok := in.Index().Field(id); ok {
		return field.DisplayLabel()
	}
	return id
}

func settle(ctx context.Context, in *runtime.Instance) (runtime.State, error) {
	if err := in.Settle(ctx); err != nil {
		return runtime.State{}, err
	}
	return in.State(), nil
}

func number(t schema.FieldType, s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t == schema.FieldTypeInteger {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a whole number", s)
		}
		return n, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return n, nil
}

func text(answer string) any {
	if strings.TrimSpace(answer) == "" {
		return nil
	}
	return answer
}

func current(value any) string {
	if value == nil {
		return ""
	}
	return coerce.String(value)
}

func isSecret(field schema.Field) bool {
	return strings.Contains(strings.ToLower(field.ID), "password")
}
