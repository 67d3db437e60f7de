package schema

// Operator enumerates the supported comparison operators.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "notEquals"
	OpGreater    Operator = "greaterThan"
	OpLess       Operator = "lessThan"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpIsEmpty    Operator = "isEmpty"
	OpIsNotEmpty Operator = "isNotEmpty"
)

var knownOperators = map[Operator]struct{}{
	OpEquals:     {},
	OpNotEquals:  {},
	OpGreater:    {},
	OpLess:       {},
	OpContains:   {},
	OpStartsWith: {},
	OpIsEmpty:    {},
	OpIsNotEmpty: {},
}

// Valid reports whether op is part of the supported grammar.
func (op Operator) Valid() bool {
	_, ok := knownOperators[op]
	return ok
}

// Condition is a node of the condition AST. Exactly one form is evaluated:
// And when present (even empty), then Or, then the simple operator form.
type Condition struct {
	Field    string      `json:"field,omitempty" yaml:"field,omitempty"`
	Operator Operator    `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any         `json:"value,omitempty" yaml:"value,omitempty"`
	And      []Condition `json:"and,omitempty" yaml:"and,omitempty"`
	Or       []Condition `json:"or,omitempty" yaml:"or,omitempty"`
}

// ConditionKind identifies which form of a Condition is active.
type ConditionKind int

const (
	ConditionSimple ConditionKind = iota
	ConditionAnd
	ConditionOr
)

// Kind returns the active form.
func (c Condition) Kind() ConditionKind {
	switch {
	case c.And != nil:
		return ConditionAnd
	case c.Or != nil:
		return ConditionOr
	default:
		return ConditionSimple
	}
}

// References returns the field ids read by the condition, depth first,
// without duplicates.
func (c Condition) References() []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(Condition)
	walk = func(node Condition) {
		switch node.Kind() {
		case ConditionAnd:
			for _, child := range node.And {
				walk(child)
			}
		case ConditionOr:
			for _, child := range node.Or {
				walk(child)
			}
		default:
			if node.Field == "" {
				return
			}
			if _, ok := seen[node.Field]; ok {
				return
			}
			seen[node.Field] = struct{}{}
			out = append(out, node.Field)
		}
	}
	walk(c)
	return out
}
