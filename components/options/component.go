package options

import (
	"net/http"
	"sort"
)

// Component serves a fixed set of named option lists. A nil *Component
// behaves like one built with the default options and no lists.
type Component struct {
	opts Options
}

// New builds a component from the default options and fns.
func New(fns ...OptionFn) *Component {
	return &Component{opts: NewOptions(fns...)}
}

// Options returns a copy of the configuration, lists included.
func (c *Component) Options() Options {
	if c == nil {
		return DefaultOptions()
	}
	return NewOptions(func(o *Options) { *o = c.opts })
}

// Names returns the served list names, sorted.
func (c *Component) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.opts.Lists))
	for name := range c.opts.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler answers GET <anything>/{name} with the filtered items of list name.
func (c *Component) Handler() http.Handler {
	return HandlerWithOptions(c.Options())
}

// RegisterRoutes mounts Handler at MountPath(basePath)/{name} on mux.
func (c *Component) RegisterRoutes(mux Mux, basePath string) (string, error) {
	return register(mux, basePath, c.Options())
}
