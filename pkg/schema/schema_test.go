package schema

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFileJSON(t *testing.T) {
	t.Parallel()

	form, err := LoadFile("testdata/registration.json")
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if form.FormID != "registration" {
		t.Fatalf("unexpected form id %q", form.FormID)
	}

	idx, err := NewIndex(form)
	if err != nil {
		t.Fatalf("NewIndex returned error: %v", err)
	}
	want := []string{"userType", "companyName", "taxId", "email", "password", "confirmPassword", "country", "city", "age"}
	if diff := cmp.Diff(want, idx.IDs()); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
	if idx.Section("city") != "address" {
		t.Fatalf("expected city in address section, got %q", idx.Section("city"))
	}
	if idx.Pattern("taxId") == nil {
		t.Fatalf("expected compiled pattern for taxId")
	}

	def, ok := idx.Lookup("cities")
	if !ok {
		t.Fatalf("expected cities lookup")
	}
	if def.MethodOrDefault() != http.MethodGet {
		t.Fatalf("expected default GET, got %s", def.MethodOrDefault())
	}
	if !def.Cached() {
		t.Fatalf("expected cache default true")
	}
	if def.TTL() != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", def.TTL())
	}
}

func TestParseYAMLKeepsEmptyAnd(t *testing.T) {
	t.Parallel()

	form, err := LoadFile("testdata/cyclic.yaml")
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	alpha := form.Sections[0].Fields[1]
	if alpha.Logic.Visible == nil {
		t.Fatalf("expected alpha visibility condition")
	}
	if got := alpha.Logic.Visible.When.Kind(); got != ConditionOr {
		t.Fatalf("expected or condition, got %v", got)
	}

	payload := []byte(`
formId: vacuous
sections:
  - id: s
    fields:
      - id: a
        type: text
        logic:
          visible:
            when:
              and: []
`)
	parsed, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	when := parsed.Sections[0].Fields[0].Logic.Visible.When
	if when.Kind() != ConditionAnd {
		t.Fatalf("expected empty and to be preserved, got kind %v", when.Kind())
	}
}

func TestValidateReportsAllIssues(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"formId": "broken",
		"sections": [
			{"id": "main", "fields": [
				{"id": "a", "type": "text", "validation": {"pattern": "("}},
				{"id": "a", "type": "text"},
				{"id": "main", "type": "text"},
				{"id": "b", "type": "select", "lookupRef": "missing", "options": [{"value": 1, "label": "one"}]},
				{"id": "c", "type": "text", "logic": {"visible": {"when": {"field": "a", "operator": "matches"}}}}
			]}
		],
		"logic": {"conditionalDisabled": [{"targetField": "ghost", "disableWhen": {"field": "a", "operator": "isEmpty"}}]}
	}`)

	_, err := Parse(payload)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}

	messages := make([]string, 0, len(schemaErr.Issues))
	for _, issue := range schemaErr.Issues {
		messages = append(messages, issue.Message)
	}
	joined := strings.Join(messages, "\n")
	for _, want := range []string{
		"invalid pattern",
		`duplicate field id "a"`,
		`duplicate field id "main"`,
		"must not declare static options",
		`unknown lookup "missing"`,
		`unknown operator "matches"`,
		`unknown target field "ghost"`,
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected issue containing %q, got:\n%s", want, joined)
		}
	}
}

func TestParseMalformedPayload(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("{not json: [}"))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}

	_, err = Parse([]byte("   "))
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError for empty document, got %v", err)
	}
}

func TestConditionReferences(t *testing.T) {
	t.Parallel()

	cond := Condition{
		And: []Condition{
			{Field: "a", Operator: OpEquals, Value: "x"},
			{Or: []Condition{
				{Field: "b", Operator: OpIsEmpty},
				{Field: "a", Operator: OpIsNotEmpty},
			}},
		},
	}
	if diff := cmp.Diff([]string{"a", "b"}, cond.References()); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupParamsBinding(t *testing.T) {
	t.Parallel()

	def := LookupDefinition{Endpoint: "/cities", Params: map[string]any{"country": "$country", "limit": 10}}
	params := BoundParams(def, map[string]any{"limit": 5})
	if diff := cmp.Diff([]string{"country"}, ParamBindings(params)); diff != "" {
		t.Fatalf("bindings mismatch (-want +got):\n%s", diff)
	}

	resolved := ResolveParams(params, map[string]any{"country": "se"})
	want := map[string]any{"country": "se", "limit": 5}
	if diff := cmp.Diff(want, resolved); diff != "" {
		t.Fatalf("resolved params mismatch (-want +got):\n%s", diff)
	}

	zero := 0
	def.CacheTTL = &zero
	if def.TTL() != 0 {
		t.Fatalf("expected zero ttl")
	}
}

func TestLoadFSRejectsDuplicateForms(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile("testdata/registration.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	fsys := fstest.MapFS{
		"a/registration.json": {Data: data},
		"b/registration.json": {Data: data},
		"notes.txt":           {Data: []byte("ignored")},
	}
	_, err = LoadFS(fsys)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected duplicate form SchemaError, got %v", err)
	}

	single := fstest.MapFS{"forms/registration.json": {Data: data}}
	forms, err := LoadFS(single)
	if err != nil {
		t.Fatalf("LoadFS returned error: %v", err)
	}
	if _, ok := forms["registration"]; !ok {
		t.Fatalf("expected registration form, got %v", forms)
	}
}
