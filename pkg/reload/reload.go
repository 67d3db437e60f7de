// Package reload watches a schema directory and pushes changed schemas to a
// Target, typically a server that swaps them into live sessions.
package reload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/pkg/metrics"
	"github.com/goliatone/go-formengine/pkg/schema"
)

const defaultDebounce = 250 * time.Millisecond

// Target receives every schema that loaded successfully.
type Target interface {
	Apply(form *schema.FormSchema) error
}

// TargetFunc adapts a function to Target.
type TargetFunc func(form *schema.FormSchema) error

// Apply calls f.
func (f TargetFunc) Apply(form *schema.FormSchema) error { return f(form) }

// Watcher reloads schema files from one directory.
type Watcher struct {
	dir      string
	target   Target
	logger   zerolog.Logger
	metrics  *metrics.Collector
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]struct{}
	timer   *time.Timer
	stopCh  chan struct{}
	stopped bool
}

// Option customises a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// WithMetrics counts reloads and reload failures on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(w *Watcher) { w.metrics = m }
}

// WithDebounce coalesces bursts of events for the same files.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New returns a watcher for dir. Call LoadAll for the initial pass and Start
// to follow changes.
func New(dir string, target Target, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		target:   target,
		logger:   zerolog.Nop(),
		debounce: defaultDebounce,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// LoadAll loads every schema file in the directory and applies them. Duplicate
// form ids fail the whole pass.
func (w *Watcher) LoadAll() error {
	forms, err := schema.LoadFS(os.DirFS(w.dir))
	if err != nil {
		return fmt.Errorf("reload: load %s: %w", w.dir, err)
	}

	ids := make([]string, 0, len(forms))
	for id := range forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := w.target.Apply(forms[id]); err != nil {
			errs = append(errs, fmt.Errorf("reload: apply %s: %w", id, err))
		}
	}
	w.logger.Info().Str("dir", w.dir).Int("forms", len(forms)).Msg("schemas loaded")
	return errors.Join(errs...)
}

// Reload parses one file and applies it. The target keeps its previous
// schema when parsing fails.
func (w *Watcher) Reload(path string) error {
	form, err := schema.LoadFile(path)
	if err == nil {
		err = w.target.Apply(form)
	}
	w.metrics.SchemaReloaded(err)
	if err != nil {
		w.logger.Error().Err(err).Str("file", path).Msg("schema reload failed, keeping previous schema")
		return fmt.Errorf("reload: %w", err)
	}
	w.logger.Info().Str("file", path).Str("form_id", form.FormID).Msg("schema reloaded")
	return nil
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("reload: watch %s: %w", w.dir, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.watchLoop(watcher)
	w.logger.Info().Str("dir", w.dir).Msg("watching schemas for changes")
	return nil
}

// Stop stops watching. Pending reloads are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

func (w *Watcher) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !schema.IsSchemaFile(event.Name) {
				continue
			}
			// Atomic saves show up as create.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("schema file changed")
				w.schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("schema watcher error")
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[filepath.Clean(path)] = struct{}{}
	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	for _, path := range paths {
		_ = w.Reload(path)
	}
}
