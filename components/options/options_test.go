package options

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/lookup"
	"github.com/goliatone/go-formengine/pkg/schema"
)

type handlerResponse struct {
	Data []schema.Option `json:"data"`
}

func loadTestdata(t *testing.T) map[string][]Item {
	t.Helper()
	lists, err := LoadDir("testdata")
	if err != nil {
		t.Fatalf("LoadDir error: %v", err)
	}
	return lists
}

func get(t *testing.T, h http.Handler, target string) (int, []schema.Option) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		return res.StatusCode, nil
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content-type, got %q", ct)
	}
	var payload handlerResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data == nil {
		t.Fatalf("data must be an array, got null")
	}
	return res.StatusCode, payload.Data
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	lists := loadTestdata(t)
	if len(lists) != 2 {
		t.Fatalf("expected cities and countries, got %d lists", len(lists))
	}
	want := Item{Value: "sto", Label: "Stockholm", Attrs: map[string]string{"country": "se"}}
	if diff := cmp.Diff(want, lists["cities"][0]); diff != "" {
		t.Fatalf("item mismatch (-want +got):\n%s", diff)
	}
	if got := New(WithLists(lists)).Names(); !cmp.Equal(got, []string{"cities", "countries"}) {
		t.Fatalf("names = %v", got)
	}
}

func TestLoadListRejectsItemWithoutValue(t *testing.T) {
	t.Parallel()

	if _, err := LoadList(strings.NewReader(`[{"label": "x"}]`)); err == nil {
		t.Fatalf("expected error for missing value")
	}
}

func TestHandlerFiltersAndSearches(t *testing.T) {
	t.Parallel()

	h := NewHandler(WithLists(loadTestdata(t)))

	tests := []struct {
		name   string
		target string
		want   []schema.Option
	}{
		{
			name:   "attribute filter",
			target: "/api/lookups/cities?country=se",
			want: []schema.Option{
				{Value: "sto", Label: "Stockholm"},
				{Value: "got", Label: "Gothenburg"},
				{Value: "mmx", Label: "Malmö"},
			},
		},
		{
			name:   "query",
			target: "/api/lookups/cities?q=s",
			want: []schema.Option{
				{Value: "sto", Label: "Stockholm"},
				{Value: "sfo", Label: "San Francisco"},
				{Value: "sea", Label: "Seattle"},
			},
		},
		{
			name:   "limit",
			target: "/api/lookups/cities?country=us&limit=2",
			want:   []schema.Option{{Value: "nyc", Label: "New York"}, {Value: "sfo", Label: "San Francisco"}},
		},
		{
			name:   "no match",
			target: "/api/lookups/cities?country=fr",
			want:   []schema.Option{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, got := get(t, h, tt.target)
			if status != http.StatusOK {
				t.Fatalf("status = %d", status)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandlerErrors(t *testing.T) {
	t.Parallel()

	h := NewHandler(
		WithList("colors", []Item{{Value: "red", Label: "Red"}}),
		WithGuard(func(r *http.Request) error {
			if r.Header.Get("X-Deny") != "" {
				return StatusError{Code: http.StatusUnauthorized}
			}
			return nil
		}),
	)

	if status, _ := get(t, h, "/api/lookups/sizes"); status != http.StatusNotFound {
		t.Fatalf("unknown list status = %d", status)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/lookups/colors", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/lookups/colors", nil)
	req.Header.Set("X-Deny", "1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("guarded status = %d", rec.Code)
	}
}

func TestSearchPrefersPrefixMatches(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Value: "aus", Label: "Austin"},
		{Value: "bos", Label: "Boston"},
		{Value: "slc", Label: "Salt Lake City"},
	}
	got := SearchOptions(items, "s", nil, 0, DefaultOptions())
	want := []schema.Option{
		{Value: "slc", Label: "Salt Lake City"},
		{Value: "aus", Label: "Austin"},
		{Value: "bos", Label: "Boston"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptySearchNone(t *testing.T) {
	t.Parallel()

	h := NewHandler(
		WithList("colors", []Item{{Value: "red", Label: "Red"}}),
		WithEmptySearchMode(EmptySearchNone),
	)
	_, got := get(t, h, "/api/lookups/colors")
	if len(got) != 0 {
		t.Fatalf("expected no results without a query, got %v", got)
	}
	_, got = get(t, h, "/api/lookups/colors?q=re")
	if len(got) != 1 {
		t.Fatalf("expected one result, got %v", got)
	}
}

func TestMountPathJoinsBasePath(t *testing.T) {
	t.Parallel()

	if got := MountPath("/admin"); got != "/admin/api/lookups" {
		t.Fatalf("unexpected mount path: %q", got)
	}
	if got := MountPath("admin/", WithRoutePath("options/")); got != "/admin/options" {
		t.Fatalf("unexpected mount path: %q", got)
	}
	if got := MountPath("", WithRoutePath("/")); got != "/" {
		t.Fatalf("unexpected mount path: %q", got)
	}
}

func TestRegisterRoutesAtRoot(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	pattern, err := RegisterRoutes(mux, "/", WithRoutePath("/"), WithList("colors", []Item{{Value: "red", Label: "Red"}}))
	if err != nil {
		t.Fatalf("RegisterRoutes error: %v", err)
	}
	if pattern != "/{name}" {
		t.Fatalf("pattern = %q", pattern)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/colors", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"red"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := RegisterRoutes(nil, ""); err == nil {
		t.Fatalf("expected an error without a mux")
	}
	var nilComponent *Component
	if names := nilComponent.Names(); names != nil {
		t.Fatalf("nil component names = %v", names)
	}
}

func TestRegisterRoutesServesHTTPFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	pattern, err := New(WithLists(loadTestdata(t))).RegisterRoutes(mux, "")
	if err != nil {
		t.Fatalf("RegisterRoutes error: %v", err)
	}
	if pattern != "/api/lookups/{name}" {
		t.Fatalf("pattern = %q", pattern)
	}

	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := lookup.NewHTTPFetcher(lookup.WithBaseURL(srv.URL))
	def := schema.LookupDefinition{Endpoint: "/api/lookups/cities"}
	got, err := fetcher.Fetch(context.Background(), def, map[string]any{"country": "us", "limit": 1})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if diff := cmp.Diff([]schema.Option{{Value: "nyc", Label: "New York"}}, got); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}
