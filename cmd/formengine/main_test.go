package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/internal/config"
)

const fixtures = "../../pkg/testsupport/testdata"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml"), "--env-file", ""))
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", filepath.Join(fixtures, "registration.json"), filepath.Join(fixtures, "cyclic.yaml"))
	if err != nil {
		t.Fatalf("validate error: %v\n%s", err, out)
	}
	if !strings.Contains(out, checkMark+" "+filepath.Join(fixtures, "registration.json")+" (registration, 9 fields)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "warning: cycle") {
		t.Fatalf("expected a cycle warning:\n%s", out)
	}

	if _, err := run(t, "validate", "--strict", filepath.Join(fixtures, "cyclic.yaml")); err == nil {
		t.Fatalf("expected --strict to fail on warnings")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"formId": "", "sections": []}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err = run(t, "validate", bad)
	if err == nil || !strings.Contains(out, "form id is required") {
		t.Fatalf("expected structural error, got %v:\n%s", err, out)
	}
}

func TestGraphCommand(t *testing.T) {
	out, err := run(t, "graph", filepath.Join(fixtures, "registration.json"), "-o", "json")
	if err != nil {
		t.Fatalf("graph error: %v", err)
	}
	var report graphReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if diff := cmp.Diff([]string{"city"}, report.Lookups["country"]); diff != "" {
		t.Fatalf("lookup dependents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"userType"}, report.Dependencies["companyName"]); diff != "" {
		t.Fatalf("dependencies mismatch (-want +got):\n%s", diff)
	}

	out, err = run(t, "graph", filepath.Join(fixtures, "cyclic.yaml"))
	if err != nil {
		t.Fatalf("graph error: %v", err)
	}
	if !strings.Contains(out, "cycles:\n  alpha -> beta") {
		t.Fatalf("expected cycle listing:\n%s", out)
	}
}

func TestImportOpenAPICommand(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "api.yaml")
	body := `openapi: 3.0.3
info: {title: Notes, version: "1"}
paths:
  /notes:
    post:
      operationId: createNote
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [title]
              properties:
                title: {type: string}
      responses:
        "201": {description: created}
`
	if err := os.WriteFile(doc, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := run(t, "import-openapi", doc)
	if err != nil || !strings.Contains(out, "createNote") {
		t.Fatalf("list operations: %v\n%s", err, out)
	}

	out, err = run(t, "import-openapi", doc, "createNote", "-o", "yaml")
	if err != nil {
		t.Fatalf("import error: %v", err)
	}
	if !strings.Contains(out, "formId: createNote") || !strings.Contains(out, "id: title") {
		t.Fatalf("unexpected schema:\n%s", out)
	}
}

func TestParseSets(t *testing.T) {
	got, err := parseSets([]string{"age=42", "newsletter=true", "name=Ada Lovelace"})
	if err != nil {
		t.Fatalf("parseSets error: %v", err)
	}
	want := map[string]any{"age": 42, "newsletter": true, "name": "Ada Lovelace"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseSets([]string{"novalue"}); err == nil {
		t.Fatalf("expected error for a pair without '='")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("form_id", "signup").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"form_id":"signup"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
	if got := newLogger(config.LoggingConfig{Level: "bogus"}, &buf).GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("fallback level = %v", got)
	}
}
