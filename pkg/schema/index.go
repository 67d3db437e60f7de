package schema

import "regexp"

// Index is a read-only view over a validated schema with O(1) field access,
// declaration positions and precompiled patterns.
type Index struct {
	schema   *FormSchema
	order    []string
	fields   map[string]Field
	position map[string]int
	section  map[string]string
	patterns map[string]*regexp.Regexp
}

// NewIndex validates s and builds an Index over it.
func NewIndex(s *FormSchema) (*Index, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}

	idx := &Index{
		schema:   s,
		fields:   make(map[string]Field),
		position: make(map[string]int),
		section:  make(map[string]string),
		patterns: make(map[string]*regexp.Regexp),
	}
	for _, section := range s.Sections {
		for _, field := range section.Fields {
			idx.position[field.ID] = len(idx.order)
			idx.order = append(idx.order, field.ID)
			idx.fields[field.ID] = field
			idx.section[field.ID] = section.ID
			if field.Validation.Pattern != "" {
				// Validate already compiled it once.
				idx.patterns[field.ID] = regexp.MustCompile(field.Validation.Pattern)
			}
		}
	}
	return idx, nil
}

// Schema returns the underlying document.
func (i *Index) Schema() *FormSchema { return i.schema }

// FormID returns the schema's form id.
func (i *Index) FormID() string { return i.schema.FormID }

// IDs returns field ids in declaration order.
func (i *Index) IDs() []string {
	return append([]string(nil), i.order...)
}

// Len returns the number of fields.
func (i *Index) Len() int { return len(i.order) }

// Field returns the field definition for id.
func (i *Index) Field(id string) (Field, bool) {
	field, ok := i.fields[id]
	return field, ok
}

// Has reports whether id names a field.
func (i *Index) Has(id string) bool {
	_, ok := i.fields[id]
	return ok
}

// Position returns the declaration position of id, -1 when unknown.
func (i *Index) Position(id string) int {
	pos, ok := i.position[id]
	if !ok {
		return -1
	}
	return pos
}

// Section returns the section id owning field id.
func (i *Index) Section(id string) string { return i.section[id] }

// Pattern returns the compiled validation pattern for id.
func (i *Index) Pattern(id string) *regexp.Regexp { return i.patterns[id] }

// Lookup returns the named lookup definition.
func (i *Index) Lookup(name string) (LookupDefinition, bool) {
	def, ok := i.schema.Lookups[name]
	return def, ok
}

// CrossField returns the cross-field rules.
func (i *Index) CrossField() []CrossFieldRule {
	return i.schema.CrossField
}

// InitialValues returns every field id mapped to its default value (nil when
// unset).
func (i *Index) InitialValues() map[string]any {
	out := make(map[string]any, len(i.order))
	for _, id := range i.order {
		out[id] = i.fields[id].DefaultValue
	}
	return out
}
