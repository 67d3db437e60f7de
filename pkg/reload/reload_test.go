package reload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-formengine/pkg/metrics"
	"github.com/goliatone/go-formengine/pkg/schema"
)

const formDoc = `formId: %s
sections:
  - id: main
    fields:
      - id: name
        type: text
        label: %s
`

type recorder struct {
	mu    sync.Mutex
	forms []*schema.FormSchema
	seen  chan string
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 16)}
}

func (r *recorder) Apply(form *schema.FormSchema) error {
	r.mu.Lock()
	r.forms = append(r.forms, form)
	r.mu.Unlock()
	r.seen <- form.FormID + ":" + form.Sections[0].Fields[0].Label
	return nil
}

func writeForm(t *testing.T, dir, file, formID, label string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(fmt.Sprintf(formDoc, formID, label)), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
	return path
}

func counter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestLoadAllAppliesEveryForm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeForm(t, dir, "b.yaml", "beta", "B")
	writeForm(t, dir, "a.yaml", "alpha", "A")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# forms"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	rec := newRecorder()
	if err := New(dir, rec).LoadAll(); err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	got := []string{<-rec.seen, <-rec.seen}
	if diff := cmp.Diff([]string{"alpha:A", "beta:B"}, got); diff != "" {
		t.Fatalf("applied forms mismatch (-want +got):\n%s", diff)
	}
}

func TestReloadKeepsTargetOnParseError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("formId: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg := prometheus.NewRegistry()
	applied := 0
	w := New(dir, TargetFunc(func(*schema.FormSchema) error {
		applied++
		return nil
	}), WithMetrics(metrics.New(reg)))

	if err := w.Reload(path); err == nil {
		t.Fatalf("expected parse error")
	}
	if applied != 0 {
		t.Fatalf("target should not be called on parse errors")
	}
	if got := counter(t, reg, "formengine_schema_reload_errors_total"); got != 1 {
		t.Fatalf("reload errors = %v", got)
	}

	writeForm(t, dir, "broken.yaml", "fixed", "F")
	if err := w.Reload(path); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if got := counter(t, reg, "formengine_schema_reloads_total"); got != 1 || applied != 1 {
		t.Fatalf("reloads = %v applied = %d", got, applied)
	}
}

func TestReloadPropagatesTargetError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeForm(t, dir, "form.yaml", "form", "X")
	boom := errors.New("boom")
	err := New(dir, TargetFunc(func(*schema.FormSchema) error { return boom })).Reload(path)
	if !errors.Is(err, boom) {
		t.Fatalf("expected target error, got %v", err)
	}
}

func TestWatcherReloadsChangedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeForm(t, dir, "signup.yaml", "signup", "Name")

	rec := newRecorder()
	w := New(dir, rec, WithDebounce(20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(w.Stop)

	writeForm(t, dir, "signup.yaml", "signup", "Full name")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	select {
	case got := <-rec.seen:
		if got != "signup:Full name" {
			t.Fatalf("applied %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}

	w.Stop()
	w.Stop()
}
