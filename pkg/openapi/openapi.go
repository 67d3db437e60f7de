package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/pkg/schema"
)

// ErrUnknownOperation is returned when no operation matches the requested id.
var ErrUnknownOperation = errors.New("openapi: unknown operation")

const defaultSection = "main"

var bodyMediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// OperationInfo summarises one operation of a document.
type OperationInfo struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary,omitempty"`
	HasBody bool   `json:"hasBody"`
}

type config struct {
	logger   zerolog.Logger
	validate bool
	formID   string
}

// Option customises a conversion.
type Option func(*config)

// WithLogger reports skipped properties on logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithValidation validates the OpenAPI document before converting it.
func WithValidation(enabled bool) Option {
	return func(c *config) { c.validate = enabled }
}

// WithFormID overrides the form id, which defaults to the operation id.
func WithFormID(id string) Option {
	return func(c *config) { c.formID = id }
}

// Operations lists every operation of the document sorted by path and method.
// Operations without an operationId are named "method:path".
func Operations(ctx context.Context, raw []byte, opts ...Option) ([]OperationInfo, error) {
	cfg := newConfig(opts)
	doc, err := load(ctx, raw, cfg)
	if err != nil {
		return nil, err
	}
	var out []OperationInfo
	walk(doc, func(method, path string, op *openapi3.Operation) bool {
		out = append(out, OperationInfo{
			ID:      operationID(method, path, op),
			Method:  method,
			Path:    path,
			Summary: op.Summary,
			HasBody: requestSchema(op) != nil,
		})
		return true
	})
	return out, nil
}

// FromOperation converts the request body of operationID into a form schema.
// The result passes schema.Validate.
func FromOperation(ctx context.Context, raw []byte, operationID string, opts ...Option) (*schema.FormSchema, error) {
	cfg := newConfig(opts)
	doc, err := load(ctx, raw, cfg)
	if err != nil {
		return nil, err
	}

	var (
		found        *openapi3.Operation
		method, path string
	)
	walk(doc, func(m, p string, op *openapi3.Operation) bool {
		if operationIDMatches(operationID, m, p, op) {
			found, method, path = op, m, p
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operationID)
	}

	body := requestSchema(found)
	if body == nil {
		return nil, fmt.Errorf("openapi: operation %s has no request body schema", operationID)
	}

	formID := cfg.formID
	if formID == "" {
		formID = operationID
	}
	form := &schema.FormSchema{
		FormID: formID,
		Metadata: map[string]any{
			"method": method,
			"path":   path,
		},
	}
	if found.Summary != "" {
		form.Metadata["title"] = found.Summary
	}
	if found.Description != "" {
		form.Metadata["description"] = found.Description
	}

	opExt, err := decodeOperationExtension(found.Extensions)
	if err != nil {
		return nil, err
	}
	form.Lookups = opExt.Lookups
	form.Logic = opExt.Logic
	form.CrossField = opExt.CrossField

	b := &builder{logger: cfg.logger, sections: map[string]int{}}
	if err := b.object(defaultSection, "", body); err != nil {
		return nil, err
	}
	form.Sections = b.out

	if err := schema.Validate(form); err != nil {
		return nil, err
	}
	return form, nil
}

func newConfig(opts []Option) config {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func load(ctx context.Context, raw []byte, cfg config) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if cfg.validate {
		if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, errors.New("openapi: document does not contain any paths")
	}
	return doc, nil
}

func walk(doc *openapi3.T, fn func(method, path string, op *openapi3.Operation) bool) {
	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for method := range ops {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		for _, method := range methods {
			if !fn(method, path, ops[method]) {
				return
			}
		}
	}
}

func operationID(method, path string, op *openapi3.Operation) string {
	if op.OperationID != "" {
		return op.OperationID
	}
	return strings.ToLower(method) + ":" + path
}

func operationIDMatches(want, method, path string, op *openapi3.Operation) bool {
	return want == operationID(method, path, op) || strings.EqualFold(want, method+":"+path)
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range bodyMediaTypes {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}
	types := make([]string, 0, len(content))
	for mediaType := range content {
		types = append(types, mediaType)
	}
	sort.Strings(types)
	for _, mediaType := range types {
		if mt := content[mediaType]; mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}
	return nil
}
