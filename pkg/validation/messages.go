package validation

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Message keys understood by Messages.
const (
	MsgRequired    = "required"
	MsgNumber      = "number"
	MsgInteger     = "integer"
	MsgPattern     = "pattern"
	MsgEmail       = "email"
	MsgPhone       = "phone"
	MsgMinLength   = "minLength"
	MsgMaxLength   = "maxLength"
	MsgMin         = "min"
	MsgMax         = "max"
	MsgCustom      = "custom"
	MsgCustomError = "customError"
	MsgFieldsMatch = "fieldsMatch"
	MsgLessThan    = "lessThan"
	MsgRequireOne  = "requireOne"
	MsgCrossField  = "crossField"
)

var defaultMessages = map[string]string{
	MsgRequired:    "{{ label }} is required",
	MsgNumber:      "{{ label }} must be a number",
	MsgInteger:     "{{ label }} must be a whole number",
	MsgPattern:     "{{ label }} has an invalid format",
	MsgEmail:       "{{ label }} must be a valid email address",
	MsgPhone:       "{{ label }} must be a valid phone number",
	MsgMinLength:   "{{ label }} must be at least {{ minLength }} characters",
	MsgMaxLength:   "{{ label }} must be at most {{ maxLength }} characters",
	MsgMin:         "{{ label }} must be at least {{ min }}",
	MsgMax:         "{{ label }} must be at most {{ max }}",
	MsgCustom:      "{{ label }} is invalid",
	MsgCustomError: "{{ label }} could not be validated",
	MsgFieldsMatch: "{{ labels|join:\", \" }} must match",
	MsgLessThan:    "{{ first }} must be less than {{ second }}",
	MsgRequireOne:  "At least one of {{ labels|join:\", \" }} is required",
	MsgCrossField:  "{{ labels|join:\", \" }} are invalid",
}

// Messages renders the default validation messages. Templates use pongo2
// syntax and receive the field label plus the rule parameters.
type Messages struct {
	templates map[string]*pongo2.Template
}

// DefaultMessages returns the built-in message set.
func DefaultMessages() *Messages {
	msgs, err := NewMessages(nil)
	if err != nil {
		panic(err)
	}
	return msgs
}

// NewMessages compiles the built-in templates with overrides applied on top.
func NewMessages(overrides map[string]string) (*Messages, error) {
	sources := make(map[string]string, len(defaultMessages)+len(overrides))
	for key, src := range defaultMessages {
		sources[key] = src
	}
	for key, src := range overrides {
		if strings.TrimSpace(src) == "" {
			continue
		}
		sources[key] = src
	}

	msgs := &Messages{templates: make(map[string]*pongo2.Template, len(sources))}
	for key, src := range sources {
		tpl, err := pongo2.FromString("{% autoescape off %}" + src + "{% endautoescape %}")
		if err != nil {
			return nil, fmt.Errorf("validation: compile message %q: %w", key, err)
		}
		msgs.templates[key] = tpl
	}
	return msgs, nil
}

// Has reports whether a template is registered under key.
func (m *Messages) Has(key string) bool {
	_, ok := m.templates[key]
	return ok
}

// Render executes the template registered under key. Rendering never fails:
// an unknown key or a template error falls back to a plain message.
func (m *Messages) Render(key string, data map[string]any) string {
	tpl, ok := m.templates[key]
	if !ok {
		return fallbackMessage(data)
	}
	out, err := tpl.Execute(pongo2.Context(data))
	if err != nil {
		return fallbackMessage(data)
	}
	return strings.TrimSpace(out)
}

func fallbackMessage(data map[string]any) string {
	if label, ok := data["label"].(string); ok && label != "" {
		return label + " is invalid"
	}
	return "value is invalid"
}

// normalizeMessages trims, drops blanks and removes duplicates while
// preserving order.
func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
