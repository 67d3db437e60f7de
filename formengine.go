// Package formengine is the entry point of the form rule engine: load a schema
// and get back a live runtime instance.
//
//	in, err := formengine.LoadFile("registration.json",
//		formengine.WithFetcher(lookup.NewHTTPFetcher(lookup.WithBaseURL(base))),
//	)
//	if err != nil {
//		return err
//	}
//	defer in.Close()
//	in.Subscribe(func(st formengine.State) { render(st) })
//	_ = in.SetValue("userType", "business")
package formengine

import (
	"context"

	"github.com/goliatone/go-formengine/pkg/runtime"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Instance is a live form session.
type Instance = runtime.Instance

// State is the snapshot published after every transaction.
type State = runtime.State

// FieldState is the published state of one field.
type FieldState = runtime.FieldState

// SubmitResult is the outcome of Instance.Submit.
type SubmitResult = runtime.SubmitResult

// Option customises an Instance.
type Option = runtime.Option

// SchemaError is the only error a load can fail with after the document has
// been read.
type SchemaError = schema.SchemaError

// Re-exported runtime options.
var (
	WithID               = runtime.WithID
	WithLogger           = runtime.WithLogger
	WithFetcher          = runtime.WithFetcher
	WithClock            = runtime.WithClock
	WithMetrics          = runtime.WithMetrics
	WithLookupTimeout    = runtime.WithLookupTimeout
	WithValidatorTimeout = runtime.WithValidatorTimeout
	WithEvaluator        = runtime.WithEvaluator
	WithRegistry         = runtime.WithRegistry
	WithMessages         = runtime.WithMessages
	WithInitialValues    = runtime.WithInitialValues
)

// LoadSchema validates s and starts an instance for it.
func LoadSchema(s *schema.FormSchema, opts ...Option) (*Instance, error) {
	return runtime.New(s, opts...)
}

// Parse decodes a JSON or YAML document and starts an instance for it.
func Parse(data []byte, opts ...Option) (*Instance, error) {
	s, err := schema.Parse(data)
	if err != nil {
		return nil, err
	}
	return runtime.New(s, opts...)
}

// LoadFile reads a JSON or YAML schema from disk and starts an instance.
func LoadFile(path string, opts ...Option) (*Instance, error) {
	s, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return runtime.New(s, opts...)
}

// LoadSource resolves src through loader and starts an instance. A nil loader
// only reads files.
func LoadSource(ctx context.Context, loader *schema.Loader, src schema.Source, opts ...Option) (*Instance, error) {
	if loader == nil {
		loader = schema.NewLoader()
	}
	s, err := loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return runtime.New(s, opts...)
}
