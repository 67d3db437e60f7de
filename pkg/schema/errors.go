package schema

import (
	"fmt"
	"strings"
)

// Issue represents a structural problem with optional location metadata.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	switch {
	case i.Path != "" && i.Field != "":
		return fmt.Sprintf("%s (field %q): %s", i.Path, i.Field, i.Message)
	case i.Path != "":
		return i.Path + ": " + i.Message
	case i.Field != "":
		return fmt.Sprintf("field %q: %s", i.Field, i.Message)
	default:
		return i.Message
	}
}

// SchemaError is the fatal load-time error. It lists every issue found.
type SchemaError struct {
	FormID string
	Issues []Issue
	Err    error
}

func (e *SchemaError) Error() string {
	if e == nil {
		return "schema: <nil>"
	}
	var b strings.Builder
	b.WriteString("schema: invalid form")
	if e.FormID != "" {
		fmt.Fprintf(&b, " %q", e.FormID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	for idx, issue := range e.Issues {
		if idx == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(issue.String())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type issues struct {
	list []Issue
}

func (is *issues) add(path, field, format string, args ...any) {
	is.list = append(is.list, Issue{Path: path, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (is *issues) err(formID string) error {
	if len(is.list) == 0 {
		return nil
	}
	return &SchemaError{FormID: formID, Issues: is.list}
}
