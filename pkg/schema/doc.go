// Package schema defines the declarative FormSchema document consumed by the
// form engine: sections and fields, validation rules, field logic conditions,
// form-level conditional rules, lookup definitions and cross-field rules.
//
// Documents are decoded from JSON or YAML with Parse/LoadFile/LoadFS and are
// checked structurally before use. Structural problems (duplicate ids, unknown
// operators, dangling references, malformed payloads) are reported as a
// *SchemaError that lists every issue found rather than the first one.
//
// Schemas are treated as immutable once loaded; the runtime builds an Index
// over a schema and never mutates the underlying document.
package schema
