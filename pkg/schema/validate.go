package schema

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Validate checks the structural invariants of a schema. Unknown field
// references inside conditions are not structural errors; the dependency graph
// reports them as warnings.
func Validate(s *FormSchema) error {
	if s == nil {
		return &SchemaError{Err: fmt.Errorf("schema is nil")}
	}
	var is issues

	if strings.TrimSpace(s.FormID) == "" {
		is.add("formId", "", "form id is required")
	}

	ids := map[string]string{}
	if s.FormID != "" {
		ids[s.FormID] = "formId"
	}
	claim := func(id, path, kind string) {
		if prev, exists := ids[id]; exists {
			is.add(path, id, "duplicate %s id %q (already used by %s)", kind, id, prev)
			return
		}
		ids[id] = path
	}

	fields := make(map[string]struct{})
	for si, section := range s.Sections {
		sectionPath := fmt.Sprintf("sections[%d]", si)
		if strings.TrimSpace(section.ID) == "" {
			is.add(sectionPath, "", "section id is required")
		} else {
			claim(section.ID, sectionPath, "section")
		}
		for fi, field := range section.Fields {
			fieldPath := fmt.Sprintf("%s.fields[%d]", sectionPath, fi)
			if strings.TrimSpace(field.ID) == "" {
				is.add(fieldPath, "", "field id is required")
				continue
			}
			claim(field.ID, fieldPath, "field")
			fields[field.ID] = struct{}{}
		}
	}

	for si, section := range s.Sections {
		for fi, field := range section.Fields {
			validateField(&is, s, field, fmt.Sprintf("sections[%d].fields[%d]", si, fi))
		}
	}

	if s.Logic != nil {
		validateRules(&is, "logic.conditionalVisibility", s.Logic.ConditionalVisibility, fields)
		validateRules(&is, "logic.conditionalRequired", s.Logic.ConditionalRequired, fields)
		validateRules(&is, "logic.conditionalDisabled", s.Logic.ConditionalDisabled, fields)
	}

	for name, def := range s.Lookups {
		path := "lookups." + name
		if strings.TrimSpace(def.Endpoint) == "" {
			is.add(path, "", "endpoint is required")
		}
		switch def.MethodOrDefault() {
		case http.MethodGet, http.MethodPost:
		default:
			is.add(path, "", "unsupported method %q", def.Method)
		}
		if def.CacheTTL != nil && *def.CacheTTL < 0 {
			is.add(path, "", "cacheTTL must not be negative")
		}
	}

	ruleIDs := make(map[string]struct{})
	for idx, rule := range s.CrossField {
		path := fmt.Sprintf("crossFieldValidation[%d]", idx)
		if strings.TrimSpace(rule.ID) == "" {
			is.add(path, "", "rule id is required")
		} else if _, exists := ruleIDs[rule.ID]; exists {
			is.add(path, "", "duplicate cross-field rule id %q", rule.ID)
		} else {
			ruleIDs[rule.ID] = struct{}{}
		}
		if strings.TrimSpace(rule.Rule) == "" {
			is.add(path, "", "rule name is required")
		}
		if len(rule.Fields) == 0 {
			is.add(path, "", "at least one field is required")
		}
		for _, id := range rule.Fields {
			if _, ok := fields[id]; !ok {
				is.add(path, id, "unknown field %q", id)
			}
		}
		if rule.Target != "" {
			if _, ok := fields[rule.Target]; !ok {
				is.add(path, rule.Target, "unknown target field %q", rule.Target)
			}
		}
	}

	return is.err(s.FormID)
}

func validateField(is *issues, s *FormSchema, field Field, path string) {
	if field.ID == "" {
		return
	}
	if field.LookupRef != "" {
		if len(field.Options) > 0 {
			is.add(path, field.ID, "field with lookupRef must not declare static options")
		}
		if _, ok := s.Lookups[field.LookupRef]; !ok {
			is.add(path, field.ID, "unknown lookup %q", field.LookupRef)
		}
	} else if len(field.LookupParams) > 0 {
		is.add(path, field.ID, "lookupParams requires lookupRef")
	}

	rules := field.Validation
	if rules.Pattern != "" {
		if _, err := regexp.Compile(rules.Pattern); err != nil {
			is.add(path+".validation.pattern", field.ID, "invalid pattern: %v", err)
		}
	}
	if rules.MinLength != nil && *rules.MinLength < 0 {
		is.add(path+".validation.minLength", field.ID, "minLength must not be negative")
	}
	if rules.MinLength != nil && rules.MaxLength != nil && *rules.MinLength > *rules.MaxLength {
		is.add(path+".validation", field.ID, "minLength %d exceeds maxLength %d", *rules.MinLength, *rules.MaxLength)
	}
	if rules.Min != nil && rules.Max != nil && *rules.Min > *rules.Max {
		is.add(path+".validation", field.ID, "min %v exceeds max %v", *rules.Min, *rules.Max)
	}
	if rules.Custom != nil && strings.TrimSpace(rules.Custom.Rule) == "" {
		is.add(path+".validation.custom", field.ID, "custom rule name is required")
	}

	if field.Logic.Visible != nil {
		validateCondition(is, path+".logic.visible.when", field.ID, field.Logic.Visible.When)
	}
	if field.Logic.Disabled != nil {
		validateCondition(is, path+".logic.disabled.when", field.ID, field.Logic.Disabled.When)
	}
	if field.Logic.Required != nil {
		validateCondition(is, path+".logic.required.when", field.ID, field.Logic.Required.When)
	}
}

func validateRules(is *issues, path string, rules []ConditionalRule, fields map[string]struct{}) {
	for idx, rule := range rules {
		rulePath := fmt.Sprintf("%s[%d]", path, idx)
		if _, ok := fields[rule.TargetField]; !ok {
			is.add(rulePath, rule.TargetField, "unknown target field %q", rule.TargetField)
		}
		if rule.ShowWhen == nil && rule.RequireWhen == nil && rule.DisableWhen == nil {
			is.add(rulePath, rule.TargetField, "rule declares no condition")
		}
		if rule.ShowWhen != nil {
			validateCondition(is, rulePath+".showWhen", rule.TargetField, *rule.ShowWhen)
		}
		if rule.RequireWhen != nil {
			validateCondition(is, rulePath+".requireWhen", rule.TargetField, *rule.RequireWhen)
		}
		if rule.DisableWhen != nil {
			validateCondition(is, rulePath+".disableWhen", rule.TargetField, *rule.DisableWhen)
		}
	}
}

func validateCondition(is *issues, path, owner string, c Condition) {
	switch c.Kind() {
	case ConditionAnd:
		for idx, child := range c.And {
			validateCondition(is, fmt.Sprintf("%s.and[%d]", path, idx), owner, child)
		}
	case ConditionOr:
		for idx, child := range c.Or {
			validateCondition(is, fmt.Sprintf("%s.or[%d]", path, idx), owner, child)
		}
	default:
		if strings.TrimSpace(c.Field) == "" {
			is.add(path, owner, "condition field is required")
		}
		if !c.Operator.Valid() {
			is.add(path, owner, "unknown operator %q", c.Operator)
		}
	}
}
