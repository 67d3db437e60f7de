package options

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

// Mux registers a handler for a pattern. *http.ServeMux and chi.Router both
// satisfy it; the pattern uses the {name} wildcard syntax they share.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// MountPath returns the prefix option lists are served under: basePath
// joined with the configured route path, always rooted and without a
// trailing slash.
func MountPath(basePath string, fns ...OptionFn) string {
	return mountPath(basePath, NewOptions(fns...).RoutePath)
}

// RegisterRoutes serves the lists configured by fns on mux and returns the
// registered pattern, <mount>/{name}.
func RegisterRoutes(mux Mux, basePath string, fns ...OptionFn) (string, error) {
	return register(mux, basePath, NewOptions(fns...))
}

func register(mux Mux, basePath string, opts Options) (string, error) {
	if mux == nil {
		return "", fmt.Errorf("options: missing mux")
	}
	pattern := strings.TrimSuffix(mountPath(basePath, opts.RoutePath), "/") + "/{name}"
	mux.Handle(pattern, HandlerWithOptions(opts))
	return pattern, nil
}

func mountPath(basePath, routePath string) string {
	return path.Join("/", strings.TrimSpace(basePath), strings.TrimSpace(routePath))
}
