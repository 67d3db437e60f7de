package validation

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/pkg/logic"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/testsupport"
)

var active = logic.Flags{Visible: true}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func registration(t *testing.T, opts ...Option) (*Engine, *schema.Index) {
	t.Helper()
	idx := testsupport.Index(t, "registration.json")
	return New(idx, opts...), idx
}

func field(t *testing.T, idx *schema.Index, id string) schema.Field {
	t.Helper()
	f, ok := idx.Field(id)
	if !ok {
		t.Fatalf("unknown field %s", id)
	}
	return f
}

func TestMinLengthOnEmptyOptionalField(t *testing.T) {
	t.Parallel()

	engine := New(nil)
	f := schema.Field{ID: "nickname", Type: schema.FieldTypeText, Validation: schema.ValidationRules{MinLength: intPtr(5)}}

	for _, value := range []any{nil, ""} {
		if errs := engine.ValidateField(context.Background(), f, value, active, nil); len(errs) != 0 {
			t.Fatalf("expected no errors for %#v, got %v", value, errs)
		}
	}
	if errs := engine.ValidateField(context.Background(), f, "abc", active, nil); len(errs) != 1 {
		t.Fatalf("expected one error for short value, got %v", errs)
	}
}

func TestRequiredShortCircuits(t *testing.T) {
	t.Parallel()

	engine, idx := registration(t)
	check := engine.CheckField(field(t, idx, "companyName"), "", logic.Flags{Visible: true, Required: true})
	if diff := cmp.Diff([]string{"Company name is required"}, check.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	check = engine.CheckField(field(t, idx, "companyName"), " ", logic.Flags{Visible: true, Required: true})
	if diff := cmp.Diff([]string{"Company name must be at least 2 characters"}, check.Errors); diff != "" {
		t.Fatalf("whitespace is a value (-want +got):\n%s", diff)
	}
}

func TestSkipsInactiveFields(t *testing.T) {
	t.Parallel()

	engine, idx := registration(t)
	for _, flags := range []logic.Flags{{}, {Visible: true, Disabled: true}} {
		check := engine.CheckField(field(t, idx, "email"), "not-an-email", flags)
		if !check.Skipped || len(check.Errors) != 0 {
			t.Fatalf("expected skip for %+v, got %+v", flags, check)
		}
	}
}

func TestFormatChecks(t *testing.T) {
	t.Parallel()

	engine, idx := registration(t)
	cases := []struct {
		name  string
		field string
		value any
		want  []string
	}{
		{"pattern override", "taxId", "12ab", []string{"Tax ID must be 9 digits"}},
		{"pattern ok", "taxId", "123456789", nil},
		{"email", "email", "ada@", []string{"Email must be a valid email address"}},
		{"email ok", "email", "ada@example.com", nil},
		{"min", "age", 15, []string{"Age must be at least 18"}},
		{"max from string", "age", "121", []string{"Age must be at most 120"}},
		{"not a number", "age", "old", []string{"Age must be a number"}},
		{"min length", "password", "short", []string{"Password must be at least 8 characters"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			check := engine.CheckField(field(t, idx, tc.field), tc.value, active)
			if diff := cmp.Diff(tc.want, check.Errors); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatChecksAccumulate(t *testing.T) {
	t.Parallel()

	engine := New(nil)
	f := schema.Field{
		ID:   "code",
		Type: schema.FieldTypeInteger,
		Validation: schema.ValidationRules{
			MaxLength: intPtr(3),
			Min:       floatPtr(1000),
			Phone:     true,
		},
	}
	check := engine.CheckField(f, 12.5, active)
	want := []string{
		"code must be a whole number",
		"code must be a valid phone number",
		"code must be at most 3 characters",
		"code must be at least 1000",
	}
	if diff := cmp.Diff(want, check.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	phone := schema.Field{ID: "phone", Validation: schema.ValidationRules{Phone: true}}
	if errs := engine.CheckField(phone, "+46 (70) 123-4567", active).Errors; len(errs) != 0 {
		t.Fatalf("expected valid phone, got %v", errs)
	}
}

func TestCustomValidators(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	engine := New(nil, WithLogger(zerolog.New(&logs)))
	engine.RegisterCustomValidator("even", func(_ context.Context, in Input) error {
		n, _ := in.Value.(int)
		if n%2 != 0 {
			return Fail("must be even")
		}
		return nil
	})
	engine.RegisterCustomValidator("silent", func(context.Context, Input) error { return Fail("") })
	engine.RegisterCustomValidator("broken", func(context.Context, Input) error { return errors.New("db down") })
	engine.RegisterCustomValidator("panics", func(context.Context, Input) error { panic("boom") })

	custom := func(rule string) schema.Field {
		return schema.Field{ID: "n", Label: "Number", Validation: schema.ValidationRules{Custom: &schema.CustomRule{Rule: rule}}}
	}
	ctx := context.Background()

	cases := []struct {
		rule  string
		value any
		want  []string
	}{
		{"even", 2, nil},
		{"even", 3, []string{"must be even"}},
		{"silent", 3, []string{"Number is invalid"}},
		{"broken", 3, []string{"Number could not be validated"}},
		{"panics", 3, []string{"Number could not be validated"}},
		{"missing", 3, nil},
	}
	for _, tc := range cases {
		got := engine.ValidateField(ctx, custom(tc.rule), tc.value, active, nil)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", tc.rule, diff)
		}
	}

	out := logs.String()
	if !strings.Contains(out, "db down") || !strings.Contains(out, "panicked") {
		t.Fatalf("expected validator malfunctions to be logged, got %s", out)
	}
	if !strings.Contains(out, "custom validator is not registered") {
		t.Fatalf("expected unknown rule warning, got %s", out)
	}

	check := engine.CheckField(custom("even"), "", active)
	if check.NeedsCustom {
		t.Fatalf("expected empty optional value to skip custom rule")
	}
}

func TestCrossFieldRules(t *testing.T) {
	t.Parallel()

	engine, _ := registration(t)
	ctx := context.Background()

	values := map[string]any{"password": "correct horse", "confirmPassword": "correct hose"}
	results := engine.CrossField(ctx, values, nil)
	want := []CrossFieldResult{{Rule: "passwordsMatch", Target: "confirmPassword", Errors: []string{"Passwords do not match"}}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}

	values["confirmPassword"] = "correct horse"
	if results := engine.CrossField(ctx, values, nil, "passwordsMatch"); len(results[0].Errors) != 0 {
		t.Fatalf("expected match, got %v", results)
	}

	hidden := map[string]logic.Flags{"confirmPassword": {}}
	if results := engine.CrossField(ctx, values, hidden); !results[0].Skipped {
		t.Fatalf("expected rule skipped while a field is hidden")
	}

	if diff := cmp.Diff([]string{"passwordsMatch"}, engine.CrossFieldRulesFor("password")); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestBuiltinCrossFieldMessages(t *testing.T) {
	t.Parallel()

	form := testsupport.MustParse(t, `
formId: trip
sections:
  - id: main
    fields:
      - {id: start, type: date, label: Start}
      - {id: end, type: date, label: End}
      - {id: phone, type: phone, label: Phone}
      - {id: email, type: email, label: Email}
crossFieldValidation:
  - {id: order, rule: lessThan, fields: [start, end], target: end}
  - {id: contact, rule: requireOne, fields: [phone, email]}
`)
	idx, err := schema.NewIndex(form)
	if err != nil {
		t.Fatalf("NewIndex returned error: %v", err)
	}
	engine := New(idx)

	report := engine.ValidateForm(context.Background(), map[string]any{
		"start": "2026-05-02",
		"end":   "2026-05-01",
	}, nil)
	want := Report{
		Fields: map[string][]string{"end": {"Start must be less than End"}},
		Form:   []string{"At least one of Phone, Email is required"},
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateFormRegistration(t *testing.T) {
	t.Parallel()

	idx := testsupport.Index(t, "registration.json")
	flags := logic.New(idx, nil).Evaluate(idx.InitialValues()).Flags
	engine := New(idx, WithConcurrency(2))

	values := idx.InitialValues()
	values["email"] = "ada@example.com"
	values["password"] = "longenough"
	values["confirmPassword"] = "different!"
	values["companyName"] = "x"

	report := engine.ValidateForm(context.Background(), values, flags)
	want := Report{Fields: map[string][]string{"confirmPassword": {"Passwords do not match"}}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	if report.OK() {
		t.Fatalf("expected report with errors")
	}
}

func TestMessageOverrides(t *testing.T) {
	t.Parallel()

	msgs, err := NewMessages(map[string]string{MsgRequired: "Please fill in {{ label|lower }}"})
	if err != nil {
		t.Fatalf("NewMessages returned error: %v", err)
	}
	engine := New(nil, WithMessages(msgs))
	f := schema.Field{ID: "name", Label: "Full Name & Title"}
	got := engine.CheckField(f, nil, logic.Flags{Visible: true, Required: true}).Errors
	if diff := cmp.Diff([]string{"Please fill in full name & title"}, got); diff != "" {
		t.Fatalf("message mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewMessages(map[string]string{MsgRequired: "{{ label"}); err == nil {
		t.Fatalf("expected invalid template to fail")
	}
}

func TestCrossFieldSkipsInactiveTarget(t *testing.T) {
	t.Parallel()

	idx, err := schema.NewIndex(testsupport.MustParse(t, `
formId: target
sections:
  - id: main
    fields:
      - {id: a, type: text}
      - {id: b, type: text}
      - {id: c, type: text}
crossFieldValidation:
  - {id: abMatch, rule: fieldsMatch, fields: [a, b], target: c}
`))
	if err != nil {
		t.Fatalf("NewIndex error: %v", err)
	}
	engine := New(idx)
	values := map[string]any{"a": "x", "b": "y", "c": nil}

	if results := engine.CrossField(context.Background(), values, nil); len(results[0].Errors) != 1 {
		t.Fatalf("expected a mismatch on a visible target, got %+v", results)
	}
	for name, flags := range map[string]logic.Flags{"hidden": {}, "disabled": {Visible: true, Disabled: true}} {
		results := engine.CrossField(context.Background(), values, map[string]logic.Flags{"c": flags})
		if !results[0].Skipped || len(results[0].Errors) != 0 {
			t.Fatalf("%s target: expected rule skipped, got %+v", name, results)
		}
	}
	if diff := cmp.Diff([]string{"abMatch"}, engine.CrossFieldRulesFor("c")); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomTimeout(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	engine := New(nil, WithLogger(zerolog.New(&logs)), WithCustomTimeout(50*time.Millisecond))
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	engine.RegisterCustomValidator("stuck", func(context.Context, Input) error {
		<-release
		return nil
	})
	engine.RegisterCustomValidator("waits", func(ctx context.Context, _ Input) error {
		<-ctx.Done()
		return ctx.Err()
	})

	for _, rule := range []string{"stuck", "waits"} {
		f := schema.Field{ID: "n", Label: "Number", Validation: schema.ValidationRules{Custom: &schema.CustomRule{Rule: rule}}}
		start := time.Now()
		got := engine.ValidateField(context.Background(), f, "x", active, nil)
		if diff := cmp.Diff([]string{"Number could not be validated"}, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", rule, diff)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("%s: validation took %s", rule, elapsed)
		}
	}
	if !strings.Contains(logs.String(), "deadline exceeded") {
		t.Fatalf("expected the timeout to be logged, got %s", logs.String())
	}
}
