package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML document and validates its structure.
func Parse(data []byte) (*FormSchema, error) {
	return parse(data, "")
}

func parse(data []byte, location string) (*FormSchema, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &SchemaError{Err: fmt.Errorf("document %s is empty", displayLocation(location))}
	}

	var doc FormSchema
	jsonErr := json.Unmarshal(data, &doc)
	if jsonErr != nil {
		doc = FormSchema{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &SchemaError{Err: fmt.Errorf("parse %s: invalid JSON or YAML: %w", displayLocation(location), errors.Join(jsonErr, err))}
		}
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func displayLocation(location string) string {
	if location == "" {
		return "document"
	}
	return location
}

// LoadFile reads and parses a schema from disk.
func LoadFile(path string) (*FormSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return parse(data, path)
}

// LoadFS walks fsys and parses every JSON/YAML file into a map keyed by form
// id. Duplicate form ids across files are reported as a SchemaError.
func LoadFS(fsys fs.FS) (map[string]*FormSchema, error) {
	out := make(map[string]*FormSchema)
	if fsys == nil {
		return out, nil
	}
	origin := make(map[string]string)

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !IsSchemaFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		form, err := parse(data, path)
		if err != nil {
			return err
		}
		if prev, exists := origin[form.FormID]; exists {
			return &SchemaError{FormID: form.FormID, Err: fmt.Errorf("duplicate form id in %s and %s", prev, path)}
		}
		origin[form.FormID] = path
		out[form.FormID] = form
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsSchemaFile reports whether path carries a schema file extension.
func IsSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Loader reads schema documents from files, an fs.FS, or HTTP.
type Loader struct {
	fs      fs.FS
	client  *http.Client
	timeout time.Duration
}

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithFileSystem sets the fs.FS used for SourceKindFS.
func WithFileSystem(fsys fs.FS) LoaderOption {
	return func(l *Loader) { l.fs = fsys }
}

// WithHTTPClient enables URL sources.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) { l.client = client }
}

// WithRequestTimeout bounds HTTP fetches.
func WithRequestTimeout(timeout time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = timeout }
}

// NewLoader constructs a Loader.
func NewLoader(options ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load fetches and parses the document behind src.
func (l *Loader) Load(ctx context.Context, src Source) (*FormSchema, error) {
	if src == nil {
		return nil, errors.New("schema loader: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case SourceKindFile:
		data, err = os.ReadFile(src.Location())
	case SourceKindFS:
		if l.fs == nil {
			return nil, errors.New("schema loader: fs.FS is not configured")
		}
		data, err = fs.ReadFile(l.fs, src.Location())
	case SourceKindURL:
		data, err = l.loadHTTP(ctx, src.Location())
	default:
		err = errors.New("schema loader: unsupported source kind")
	}
	if err != nil {
		return nil, fmt.Errorf("schema loader: %s: %w", src.Location(), err)
	}
	return parse(data, src.Location())
}

func (l *Loader) loadHTTP(ctx context.Context, url string) ([]byte, error) {
	if l.client == nil {
		return nil, errors.New("http client is not configured")
	}

	reqCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("unexpected status " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}
