package formengine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/testsupport"
)

func TestLoadFile(t *testing.T) {
	t.Parallel()

	in, err := LoadFile(filepath.Join("pkg", "testsupport", "testdata", "registration.json"), WithID("root"))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	defer in.Close()

	if in.FormID() != "registration" || in.ID() != "root" {
		t.Fatalf("unexpected instance %s/%s", in.FormID(), in.ID())
	}
	if err := in.SetValue("userType", "business"); err != nil {
		t.Fatalf("SetValue error: %v", err)
	}
	if err := in.Sync(context.Background()); err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if !in.State().Fields["companyName"].Visible {
		t.Fatalf("companyName should be visible")
	}
}

func TestLoadSourceFromFS(t *testing.T) {
	t.Parallel()

	loader := NewLoader(schema.WithFileSystem(testsupport.Fixtures()))
	in, err := LoadSource(context.Background(), loader, schema.SourceFromFS("cyclic.yaml"))
	if err != nil {
		t.Fatalf("LoadSource error: %v", err)
	}
	defer in.Close()
	if in.Index().Len() == 0 {
		t.Fatalf("expected fields")
	}
}

func TestParseReportsSchemaError(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"formId": "x", "sections": [{"id": "x", "fields": []}]}`))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}

	if _, err := ParseSource(""); err == nil {
		t.Fatalf("expected error for empty source")
	}
}
