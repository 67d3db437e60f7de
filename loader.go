package formengine

import "github.com/goliatone/go-formengine/pkg/schema"

// NewLoader constructs a schema loader for files, an fs.FS or HTTP sources.
func NewLoader(options ...schema.LoaderOption) *schema.Loader {
	return schema.NewLoader(options...)
}

// ParseSource interprets raw as a URL when it has an http(s) scheme and as a
// file path otherwise.
func ParseSource(raw string) (schema.Source, error) {
	return schema.ParseSource(raw)
}
