package openapi

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

type builder struct {
	logger   zerolog.Logger
	out      []schema.Section
	sections map[string]int
}

type property struct {
	name     string
	schema   *openapi3.Schema
	ext      fieldExtension
	required bool
}

// object adds the scalar properties of s to sectionID and turns nested
// objects into sections of their own. Nesting below one level is flattened
// into the parent's section.
func (b *builder) object(sectionID, title string, s *openapi3.Schema) error {
	props, err := properties(s)
	if err != nil {
		return err
	}
	for _, prop := range props {
		target := sectionID
		if prop.ext.Section != "" {
			target = prop.ext.Section
		}

		if isType(prop.schema, openapi3.TypeObject) && len(prop.schema.Properties) > 0 {
			nestedTitle := prop.schema.Title
			if nestedTitle == "" {
				nestedTitle = humanize(prop.name)
			}
			nested := prop.name
			if sectionID != defaultSection {
				nested = sectionID
			}
			if err := b.object(nested, nestedTitle, prop.schema); err != nil {
				return err
			}
			continue
		}

		field, ok := b.field(prop)
		if !ok {
			continue
		}
		b.add(target, title, field)
	}
	return nil
}

func (b *builder) add(sectionID, title string, field schema.Field) {
	pos, ok := b.sections[sectionID]
	if !ok {
		pos = len(b.out)
		b.sections[sectionID] = pos
		if title == "" && sectionID != defaultSection {
			title = humanize(sectionID)
		}
		b.out = append(b.out, schema.Section{ID: sectionID, Title: title})
	}
	b.out[pos].Fields = append(b.out[pos].Fields, field)
}

func (b *builder) field(prop property) (schema.Field, bool) {
	src := prop.schema
	fieldType, ok := fieldTypeOf(src)
	if prop.ext.Type != "" {
		fieldType, ok = schema.FieldType(prop.ext.Type), true
	}
	if !ok {
		b.logger.Warn().Str("field", prop.name).Str("type", typeName(src)).Msg("openapi: unsupported property type, skipped")
		return schema.Field{}, false
	}

	field := schema.Field{
		ID:           prop.name,
		Type:         fieldType,
		Label:        firstNonEmpty(prop.ext.Label, src.Title, humanize(prop.name)),
		Placeholder:  prop.ext.Placeholder,
		DefaultValue: src.Default,
		Logic:        prop.ext.Logic,
		LookupRef:    prop.ext.Lookup,
		LookupParams: prop.ext.LookupParams,
	}
	if field.LookupRef == "" {
		for _, value := range src.Enum {
			field.Options = append(field.Options, schema.Option{Value: value, Label: coerce.String(value)})
		}
	}

	rules := schema.ValidationRules{
		Required:     prop.required,
		Pattern:      src.Pattern,
		Email:        src.Format == "email",
		Phone:        fieldType == schema.FieldTypePhone,
		Custom:       prop.ext.Custom,
		ErrorMessage: prop.ext.ErrorMessage,
	}
	if src.Min != nil {
		value := *src.Min
		rules.Min = &value
	}
	if src.Max != nil {
		value := *src.Max
		rules.Max = &value
	}
	if src.MinLength != 0 {
		value := int(src.MinLength)
		rules.MinLength = &value
	}
	if src.MaxLength != nil {
		value := int(*src.MaxLength)
		rules.MaxLength = &value
	}
	field.Validation = rules
	return field, true
}

func properties(s *openapi3.Schema) ([]property, error) {
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	out := make([]property, 0, len(s.Properties))
	for name, ref := range s.Properties {
		if ref == nil || ref.Value == nil {
			continue
		}
		if ref.Value.ReadOnly {
			continue
		}
		ext, err := decodeFieldExtension(ref.Value.Extensions)
		if err != nil {
			return nil, fmt.Errorf("openapi: property %s: %w", name, err)
		}
		out = append(out, property{name: name, schema: ref.Value, ext: ext, required: required[name]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].ext.Order, out[j].ext.Order
		switch {
		case oi != nil && oj != nil && *oi != *oj:
			return *oi < *oj
		case oi != nil && oj == nil:
			return true
		case oi == nil && oj != nil:
			return false
		}
		return out[i].name < out[j].name
	})
	return out, nil
}

func fieldTypeOf(s *openapi3.Schema) (schema.FieldType, bool) {
	if len(s.Enum) > 0 {
		return schema.FieldTypeSelect, true
	}
	switch {
	case isType(s, openapi3.TypeString):
		switch s.Format {
		case "email":
			return schema.FieldTypeEmail, true
		case "date", "date-time":
			return schema.FieldTypeDate, true
		case "phone", "tel":
			return schema.FieldTypePhone, true
		}
		if s.MaxLength != nil && *s.MaxLength > 255 {
			return schema.FieldTypeTextArea, true
		}
		return schema.FieldTypeText, true
	case isType(s, openapi3.TypeInteger):
		return schema.FieldTypeInteger, true
	case isType(s, openapi3.TypeNumber):
		return schema.FieldTypeNumber, true
	case isType(s, openapi3.TypeBoolean):
		return schema.FieldTypeCheckbox, true
	}
	return "", false
}

func isType(s *openapi3.Schema, name string) bool {
	return s != nil && s.Type != nil && s.Type.Is(name)
}

func typeName(s *openapi3.Schema) string {
	if s == nil || s.Type == nil {
		return ""
	}
	return strings.Join(s.Type.Slice(), ",")
}

// humanize turns "companyName" or "company_name" into "Company name".
func humanize(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	prevLower := false
	for i, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune(' ')
		}
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
