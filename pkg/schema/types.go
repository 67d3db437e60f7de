package schema

// FieldType names the kind of input a field collects. The engine only inspects
// numeric types (for type checks); every other value is passed through to the
// rendering layer untouched.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextArea FieldType = "textarea"
	FieldTypeNumber   FieldType = "number"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeSelect   FieldType = "select"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeDate     FieldType = "date"
	FieldTypeEmail    FieldType = "email"
	FieldTypePhone    FieldType = "phone"
)

// Numeric reports whether values of this type must parse as numbers.
func (t FieldType) Numeric() bool {
	return t == FieldTypeNumber || t == FieldTypeInteger
}

// FormSchema is the root document describing a form.
type FormSchema struct {
	FormID     string                      `json:"formId" yaml:"formId"`
	Metadata   map[string]any              `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Sections   []Section                   `json:"sections" yaml:"sections"`
	Logic      *LogicBlock                 `json:"logic,omitempty" yaml:"logic,omitempty"`
	Lookups    map[string]LookupDefinition `json:"lookups,omitempty" yaml:"lookups,omitempty"`
	CrossField []CrossFieldRule            `json:"crossFieldValidation,omitempty" yaml:"crossFieldValidation,omitempty"`
}

// Section groups fields for presentation. Condition scope is global by field
// id, so sections carry no semantic weight for the rule core.
type Section struct {
	ID          string  `json:"id" yaml:"id"`
	Title       string  `json:"title,omitempty" yaml:"title,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Field models a single input. A field that declares LookupRef resolves its
// options remotely and must not declare static Options.
type Field struct {
	ID           string          `json:"id" yaml:"id"`
	Type         FieldType       `json:"type" yaml:"type"`
	Label        string          `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder  string          `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	DefaultValue any             `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Options      []Option        `json:"options,omitempty" yaml:"options,omitempty"`
	Validation   ValidationRules `json:"validation,omitempty" yaml:"validation,omitempty"`
	Logic        FieldLogic      `json:"logic,omitempty" yaml:"logic,omitempty"`
	LookupRef    string          `json:"lookupRef,omitempty" yaml:"lookupRef,omitempty"`
	LookupParams map[string]any  `json:"lookupParams,omitempty" yaml:"lookupParams,omitempty"`
}

// DisplayLabel returns the label used in messages, falling back to the id.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

// Option is a single selectable choice, static or resolved from a lookup.
type Option struct {
	Value any    `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// ValidationRules lists the per-field checks. Pointer bounds distinguish
// "unset" from zero.
type ValidationRules struct {
	Required     bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Pattern      string      `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min          *float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64    `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength    *int        `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength    *int        `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Email        bool        `json:"email,omitempty" yaml:"email,omitempty"`
	Phone        bool        `json:"phone,omitempty" yaml:"phone,omitempty"`
	Custom       *CustomRule `json:"custom,omitempty" yaml:"custom,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// CustomRule references a validator registered by name at runtime.
type CustomRule struct {
	Rule   string         `json:"rule" yaml:"rule"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// CrossFieldRule validates a relationship between several fields. Errors are
// attached to Target when set, otherwise reported at form level.
type CrossFieldRule struct {
	ID           string         `json:"id" yaml:"id"`
	Rule         string         `json:"rule" yaml:"rule"`
	Fields       []string       `json:"fields" yaml:"fields"`
	Target       string         `json:"target,omitempty" yaml:"target,omitempty"`
	Params       map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// FieldLogic holds the field-local conditions.
type FieldLogic struct {
	Visible  *When `json:"visible,omitempty" yaml:"visible,omitempty"`
	Disabled *When `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Required *When `json:"required,omitempty" yaml:"required,omitempty"`
}

// When wraps a condition as `{"when": {...}}`.
type When struct {
	When Condition `json:"when" yaml:"when"`
}

// LogicBlock carries form-level conditional rules.
type LogicBlock struct {
	ConditionalVisibility []ConditionalRule `json:"conditionalVisibility,omitempty" yaml:"conditionalVisibility,omitempty"`
	ConditionalRequired   []ConditionalRule `json:"conditionalRequired,omitempty" yaml:"conditionalRequired,omitempty"`
	ConditionalDisabled   []ConditionalRule `json:"conditionalDisabled,omitempty" yaml:"conditionalDisabled,omitempty"`
}

// ConditionalRule targets a field with any combination of conditions.
type ConditionalRule struct {
	TargetField string     `json:"targetField" yaml:"targetField"`
	ShowWhen    *Condition `json:"showWhen,omitempty" yaml:"showWhen,omitempty"`
	RequireWhen *Condition `json:"requireWhen,omitempty" yaml:"requireWhen,omitempty"`
	DisableWhen *Condition `json:"disableWhen,omitempty" yaml:"disableWhen,omitempty"`
}

// Fields walks every field of the schema in declaration order.
func (s *FormSchema) Fields() []Field {
	if s == nil {
		return nil
	}
	var out []Field
	for _, section := range s.Sections {
		out = append(out, section.Fields...)
	}
	return out
}
