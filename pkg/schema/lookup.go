package schema

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultLookupTTL applies when a definition omits cacheTTL.
	DefaultLookupTTL = 3600

	fieldBindingPrefix = "$"
)

// LookupDefinition describes a remote option source.
type LookupDefinition struct {
	Endpoint   string         `json:"endpoint" yaml:"endpoint"`
	Method     string         `json:"method,omitempty" yaml:"method,omitempty"`
	Cache      *bool          `json:"cache,omitempty" yaml:"cache,omitempty"`
	CacheTTL   *int           `json:"cacheTTL,omitempty" yaml:"cacheTTL,omitempty"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	ResultPath string         `json:"resultPath,omitempty" yaml:"resultPath,omitempty"`
	ValueKey   string         `json:"valueKey,omitempty" yaml:"valueKey,omitempty"`
	LabelKey   string         `json:"labelKey,omitempty" yaml:"labelKey,omitempty"`
}

// MethodOrDefault returns the upper-cased method, GET when unset.
func (d LookupDefinition) MethodOrDefault() string {
	method := strings.ToUpper(strings.TrimSpace(d.Method))
	if method == "" {
		return http.MethodGet
	}
	return method
}

// Cached reports whether results may be cached (default true).
func (d LookupDefinition) Cached() bool {
	if d.Cache == nil {
		return true
	}
	return *d.Cache
}

// TTL returns the cache lifetime in whole seconds. Negative values clamp to 0.
func (d LookupDefinition) TTL() time.Duration {
	seconds := DefaultLookupTTL
	if d.CacheTTL != nil {
		seconds = *d.CacheTTL
	}
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds) * time.Second
}

// FieldBinding reports the field id referenced by a "$field" param value.
func FieldBinding(value any) (string, bool) {
	raw, ok := value.(string)
	if !ok || !strings.HasPrefix(raw, fieldBindingPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(raw, fieldBindingPrefix))
	if id == "" {
		return "", false
	}
	return id, true
}

// BoundParams merges definition params with field overrides. Keys present in
// overrides replace definition keys.
func BoundParams(def LookupDefinition, overrides map[string]any) map[string]any {
	if len(def.Params) == 0 && len(overrides) == 0 {
		return nil
	}
	out := make(map[string]any, len(def.Params)+len(overrides))
	for key, value := range def.Params {
		out[key] = value
	}
	for key, value := range overrides {
		out[key] = value
	}
	return out
}

// ResolveParams replaces "$field" bindings with values read from values.
func ResolveParams(params map[string]any, values map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		if id, ok := FieldBinding(value); ok {
			out[key] = values[id]
			continue
		}
		out[key] = value
	}
	return out
}

// ParamBindings lists the field ids referenced by params, sorted.
func ParamBindings(params map[string]any) []string {
	var out []string
	for _, value := range params {
		if id, ok := FieldBinding(value); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
