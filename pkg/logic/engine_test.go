package logic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/pkg/condition"
	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/testsupport"
)

func newEngine(t *testing.T, form *schema.FormSchema, opts ...Option) (*Engine, *schema.Index) {
	t.Helper()
	idx, err := schema.NewIndex(form)
	if err != nil {
		t.Fatalf("NewIndex returned error: %v", err)
	}
	return New(idx, nil, opts...), idx
}

func TestUserTypeTogglesCompanyName(t *testing.T) {
	t.Parallel()

	engine, idx := newEngine(t, testsupport.Schema(t, "registration.json"))
	values := idx.InitialValues()

	initial := engine.Evaluate(values)
	if got := initial.Flags["companyName"]; got != (Flags{}) {
		t.Fatalf("expected companyName hidden on load, got %+v", got)
	}
	if got := initial.Flags["userType"]; got != (Flags{Visible: true, Required: true}) {
		t.Fatalf("unexpected userType flags %+v", got)
	}

	values["userType"] = "business"
	business := engine.Recompute(values, initial.Flags, []string{"userType"})
	if got := business.Flags["companyName"]; got != (Flags{Visible: true, Required: true}) {
		t.Fatalf("expected companyName visible and required, got %+v", got)
	}
	if got := business.Flags["taxId"]; got != (Flags{Visible: true, Required: true}) {
		t.Fatalf("expected taxId visible and required, got %+v", got)
	}
	if len(business.Cleared) != 0 {
		t.Fatalf("expected nothing cleared, got %v", business.Cleared)
	}
	if diff := cmp.Diff([]string{"userType", "companyName", "taxId"}, business.Evaluated); diff != "" {
		t.Fatalf("evaluated mismatch (-want +got):\n%s", diff)
	}

	values["companyName"] = "Acme"
	values["userType"] = "personal"
	personal := engine.Recompute(values, business.Flags, []string{"userType"})
	if got := personal.Flags["companyName"]; got.Visible || got.Required {
		t.Fatalf("expected companyName hidden and not required, got %+v", got)
	}
	if diff := cmp.Diff([]string{"companyName", "taxId"}, personal.Cleared); diff != "" {
		t.Fatalf("cleared mismatch (-want +got):\n%s", diff)
	}
	if values["companyName"] != "Acme" {
		t.Fatalf("expected input values to be left untouched")
	}
}

func TestPrecedence(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t, testsupport.MustParse(t, `
formId: precedence
sections:
  - id: main
    fields:
      - id: mode
        type: text
      - id: locked
        type: text
        validation: {required: true}
        logic:
          disabled:
            when: {field: mode, operator: equals, value: lock}
      - id: gone
        type: text
        logic:
          visible:
            when: {field: mode, operator: equals, value: show}
          disabled:
            when: {field: mode, operator: equals, value: lock}
          required:
            when: {field: mode, operator: equals, value: lock}
`))

	result := engine.Evaluate(map[string]any{"mode": "lock", "locked": "x", "gone": nil})
	if got := result.Flags["locked"]; got != (Flags{Visible: true, Disabled: true}) {
		t.Fatalf("expected disabled field to drop required, got %+v", got)
	}
	if got := result.Flags["gone"]; got != (Flags{}) {
		t.Fatalf("expected hidden field to drop every flag, got %+v", got)
	}
	if result.Flags["locked"].Active() {
		t.Fatalf("expected disabled field to be inactive")
	}
}

func TestChainedHideSeesClearedValues(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t, testsupport.MustParse(t, `
formId: chain
sections:
  - id: main
    fields:
      - id: c
        type: text
        logic:
          visible:
            when: {field: b, operator: isNotEmpty}
      - id: b
        type: text
        logic:
          visible:
            when: {field: a, operator: equals, value: x}
      - id: a
        type: text
`))

	values := map[string]any{"a": "x", "b": "hello", "c": "world"}
	first := engine.Evaluate(values)
	if !first.Flags["b"].Visible || !first.Flags["c"].Visible {
		t.Fatalf("expected chain visible, got %+v", first.Flags)
	}

	values["a"] = "y"
	second := engine.Recompute(values, first.Flags, []string{"a"})
	if diff := cmp.Diff([]string{"a", "b", "c"}, second.Evaluated); diff != "" {
		t.Fatalf("evaluation order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b", "c"}, second.Cleared); diff != "" {
		t.Fatalf("cleared mismatch (-want +got):\n%s", diff)
	}
}

func TestCycleTerminates(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t, testsupport.Schema(t, "cyclic.yaml"))
	values := map[string]any{"trigger": "on", "alpha": "", "beta": "", "gamma": nil}

	result := engine.Evaluate(values)
	seen := make(map[string]int)
	for _, id := range result.Evaluated {
		seen[id]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("expected %s evaluated once, got %d", id, count)
		}
	}
	if !result.Flags["alpha"].Visible {
		t.Fatalf("expected alpha visible through trigger")
	}
	if result.Flags["beta"].Visible {
		t.Fatalf("expected beta hidden since alpha started empty")
	}
	if !result.Flags["gamma"].Disabled {
		t.Fatalf("expected gamma disabled once beta is cleared")
	}

	again := engine.Recompute(values, result.Flags, []string{"trigger"})
	if diff := cmp.Diff(result.Flags, again.Flags); diff != "" {
		t.Fatalf("expected stable flags (-want +got):\n%s", diff)
	}
}

func TestLastDeclaredRuleWins(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t, testsupport.MustParse(t, `
formId: conflict
sections:
  - id: main
    fields:
      - id: a
        type: text
      - id: b
        type: text
        logic:
          visible:
            when: {field: a, operator: isNotEmpty}
logic:
  conditionalVisibility:
    - targetField: b
      showWhen: {field: a, operator: equals, value: yes}
`))

	result := engine.Evaluate(map[string]any{"a": "no", "b": nil})
	if result.Flags["b"].Visible {
		t.Fatalf("expected the form-level rule declared last to hide b")
	}
}

func TestEvaluatorPanicIsContained(t *testing.T) {
	t.Parallel()

	panicky := condition.EvaluatorFunc(func(schema.Condition, map[string]any) bool {
		panic("boom")
	})
	engine, idx := newEngine(t, testsupport.Schema(t, "registration.json"),
		WithEvaluator(panicky), WithLogger(zerolog.Nop()))

	result := engine.Evaluate(idx.InitialValues())
	if result.Flags["city"].Visible {
		t.Fatalf("expected failing condition to evaluate false")
	}
	if !result.Flags["email"].Visible {
		t.Fatalf("expected fields without rules to stay visible")
	}
}

func TestHiddenValuesDoNotDriveDependents(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t, testsupport.MustParse(t, `
formId: hidden
sections:
  - id: main
    fields:
      - id: userType
        type: text
      - id: companyName
        type: text
        logic:
          visible:
            when: {field: userType, operator: equals, value: business}
      - id: vat
        type: text
        logic:
          visible:
            when: {field: companyName, operator: isNotEmpty}
`))

	values := map[string]any{"userType": "personal", "companyName": nil, "vat": nil}
	initial := engine.Evaluate(values)
	if initial.Flags["companyName"].Visible || initial.Flags["vat"].Visible {
		t.Fatalf("expected companyName and vat hidden, got %+v", initial.Flags)
	}

	values["companyName"] = "ACME"
	typed := engine.Recompute(values, initial.Flags, []string{"companyName"})
	if typed.Flags["vat"].Visible {
		t.Fatalf("a hidden companyName must not reveal vat")
	}
	if values["companyName"] != "ACME" {
		t.Fatalf("values mutated: %v", values)
	}

	values["userType"] = "business"
	shown := engine.Recompute(values, typed.Flags, []string{"userType"})
	if !shown.Flags["companyName"].Visible || !shown.Flags["vat"].Visible {
		t.Fatalf("expected revealed companyName to drive vat, got %+v", shown.Flags)
	}
}
