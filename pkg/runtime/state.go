package runtime

import "github.com/goliatone/go-formengine/pkg/schema"

// FieldState is the published state of one field.
type FieldState struct {
	Value         any             `json:"value"`
	Visible       bool            `json:"visible"`
	Required      bool            `json:"required"`
	Disabled      bool            `json:"disabled"`
	Errors        []string        `json:"errors,omitempty"`
	Validating    bool            `json:"validating"`
	LookupOptions []schema.Option `json:"lookupOptions,omitempty"`
	LookupLoading bool            `json:"lookupLoading"`
	LookupError   bool            `json:"lookupError"`
	Generation    uint64          `json:"generation"`
}

// State is an immutable snapshot published after every transaction. Maps and
// slices are shared with other readers and must not be modified.
type State struct {
	FormID     string                `json:"formId"`
	Version    uint64                `json:"version"`
	Order      []string              `json:"order"`
	Fields     map[string]FieldState `json:"fields"`
	FormErrors []string              `json:"formErrors,omitempty"`
}

// Field returns the state of id.
func (s State) Field(id string) (FieldState, bool) {
	f, ok := s.Fields[id]
	return f, ok
}

// Values returns a copy of every field value.
func (s State) Values() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for id, f := range s.Fields {
		out[id] = f.Value
	}
	return out
}

// Valid reports whether the snapshot carries no errors. Pending validators
// are not considered.
func (s State) Valid() bool {
	if len(s.FormErrors) > 0 {
		return false
	}
	for _, f := range s.Fields {
		if len(f.Errors) > 0 {
			return false
		}
	}
	return true
}

// Pending reports whether any validator or lookup is still running.
func (s State) Pending() bool {
	for _, f := range s.Fields {
		if f.Validating || f.LookupLoading {
			return true
		}
	}
	return false
}

// SubmitResult is the outcome of Submit. Values holds only visible, enabled
// fields.
type SubmitResult struct {
	Values     map[string]any      `json:"values,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
	FormErrors []string            `json:"formErrors,omitempty"`
	OK         bool                `json:"ok"`
}
