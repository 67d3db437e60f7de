// Package validation runs the per-field and cross-field validation pipeline.
//
// Each field passes through ordered stages: it is skipped when hidden or
// disabled; a required empty value yields a single error and stops; format
// checks (type, pattern, email, phone, length and numeric bounds) all run and
// all failures are reported; finally a named custom validator runs when the
// earlier stages passed. Cross-field rules run last, over settled values.
//
// Validation failures are data, returned as message slices. Only validator
// malfunctions are errors, and those are logged and reduced to a generic
// message so one broken validator never aborts its siblings.
package validation
