// Package testsupport bundles fixtures and fakes shared by package tests:
// embedded schema documents, a counting lookup fetcher and a fake clock.
package testsupport

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/internal/clock"
	"github.com/goliatone/go-formengine/pkg/schema"
)

//go:embed testdata/*
var fixtures embed.FS

// Epoch is the instant fake clocks start at.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Fixtures exposes the embedded testdata directory.
func Fixtures() fs.FS {
	sub, err := fs.Sub(fixtures, "testdata")
	if err != nil {
		panic(err)
	}
	return sub
}

// LoadSchemaFromFixture parses an embedded fixture without requiring
// testing.T, so setup code outside tests can reuse it.
func LoadSchemaFromFixture(name string) (*schema.FormSchema, error) {
	if name == "" {
		return nil, errors.New("testsupport: fixture name is required")
	}
	data, err := fs.ReadFile(Fixtures(), name)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read fixture: %w", err)
	}
	form, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("testsupport: parse fixture %s: %w", name, err)
	}
	return form, nil
}

// Schema loads an embedded fixture such as "registration.json".
func Schema(t testing.TB, name string) *schema.FormSchema {
	t.Helper()

	form, err := LoadSchemaFromFixture(name)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return form
}

// Index loads an embedded fixture and indexes it.
func Index(t testing.TB, name string) *schema.Index {
	t.Helper()

	idx, err := schema.NewIndex(Schema(t, name))
	if err != nil {
		t.Fatalf("index schema: %v", err)
	}
	return idx
}

// MustParse parses an inline schema document.
func MustParse(t testing.TB, doc string) *schema.FormSchema {
	t.Helper()

	form, err := schema.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return form
}

// Clock returns a fake clock frozen at Epoch.
func Clock() *clock.Fake {
	return clock.NewFake(Epoch)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// CountingFetcher is a lookup fetcher that records calls. Options maps the
// resolved params to a response; Gate, when set, blocks every fetch until it
// is closed or receives a value.
type CountingFetcher struct {
	mu    sync.Mutex
	calls []map[string]any

	Options func(params map[string]any) []schema.Option
	Err     error
	Gate    chan struct{}
}

// Fetch records the call and returns Options(params) or Err.
func (f *CountingFetcher) Fetch(ctx context.Context, _ schema.LookupDefinition, params map[string]any) ([]schema.Option, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.mu.Unlock()

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Options == nil {
		return nil, nil
	}
	return f.Options(params), nil
}

// Calls returns the number of fetches performed.
func (f *CountingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Params returns the params of every recorded call.
func (f *CountingFetcher) Params() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.calls...)
}

// CityOptions answers the cities lookup of the registration fixture.
func CityOptions(params map[string]any) []schema.Option {
	switch params["country"] {
	case "se":
		return []schema.Option{{Value: "sto", Label: "Stockholm"}, {Value: "got", Label: "Gothenburg"}}
	case "us":
		return []schema.Option{{Value: "nyc", Label: "New York"}, {Value: "sfo", Label: "San Francisco"}}
	default:
		return []schema.Option{}
	}
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t testing.TB, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}
