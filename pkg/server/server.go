package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/components/options"
	"github.com/goliatone/go-formengine/pkg/metrics"
	"github.com/goliatone/go-formengine/pkg/runtime"
	"github.com/goliatone/go-formengine/pkg/schema"
)

const defaultSettleTimeout = 2 * time.Second

// ErrUnknownForm is returned when a schema is not in the store.
var ErrUnknownForm = errors.New("server: unknown form")

// ErrUnknownSession is returned for a session id that is not open.
var ErrUnknownSession = errors.New("server: unknown session")

// Server owns the schema store and the open sessions.
type Server struct {
	store          *Store
	logger         zerolog.Logger
	metrics        *metrics.Collector
	metricsHandler http.Handler
	metricsPath    string
	options        *options.Component
	runtimeOpts    []runtime.Option
	settleTimeout  time.Duration

	mu       sync.RWMutex
	sessions map[string]*runtime.Instance
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server logger. Sessions inherit it.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records HTTP and runtime metrics on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler mounts h at path. A nil h mounts promhttp.Handler().
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		if h == nil {
			h = promhttp.Handler()
		}
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithOptions mounts a static option list component under its route path.
func WithOptions(c *options.Component) Option {
	return func(s *Server) { s.options = c }
}

// WithRuntimeOptions appends options applied to every new session.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(s *Server) { s.runtimeOpts = append(s.runtimeOpts, opts...) }
}

// WithSettleTimeout bounds how long mutating routes wait for async work.
func WithSettleTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.settleTimeout = d
		}
	}
}

// New returns a server over store.
func New(store *Store, opts ...Option) *Server {
	if store == nil {
		store = NewStore()
	}
	s := &Server{
		store:         store,
		logger:        zerolog.Nop(),
		settleTimeout: defaultSettleTimeout,
		sessions:      make(map[string]*runtime.Instance),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Store returns the schema store.
func (s *Server) Store() *Store { return s.store }

// Open starts a session for formID seeded with values.
func (s *Server) Open(formID string, values map[string]any) (*runtime.Instance, error) {
	form, ok := s.store.Get(formID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, formID)
	}

	opts := make([]runtime.Option, 0, len(s.runtimeOpts)+4)
	opts = append(opts, runtime.WithLogger(s.logger), runtime.WithMetrics(s.metrics))
	opts = append(opts, s.runtimeOpts...)
	opts = append(opts, runtime.WithID(uuid.NewString()), runtime.WithInitialValues(values))

	in, err := runtime.New(form, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[in.ID()] = in
	s.mu.Unlock()

	s.logger.Info().Str("form_id", formID).Str("session_id", in.ID()).Msg("session opened")
	return in, nil
}

// Session returns an open session.
func (s *Server) Session(id string) (*runtime.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.sessions[id]
	return in, ok
}

// CloseSession closes and forgets a session.
func (s *Server) CloseSession(id string) error {
	s.mu.Lock()
	in, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return in.Close()
}

// Apply stores form and swaps it into every open session of the same form.
// Sessions that reject the schema keep their previous one.
func (s *Server) Apply(form *schema.FormSchema) error {
	if form == nil {
		return nil
	}
	if _, err := schema.NewIndex(form); err != nil {
		return err
	}
	s.store.Put(form)

	var errs []error
	for _, in := range s.live(form.FormID) {
		if err := in.Swap(form); err != nil {
			errs = append(errs, fmt.Errorf("server: swap session %s: %w", in.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every open session.
func (s *Server) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*runtime.Instance)
	s.mu.Unlock()

	for _, in := range sessions {
		_ = in.Close()
	}
	return nil
}

func (s *Server) live(formID string) []*runtime.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*runtime.Instance, 0)
	for _, in := range s.sessions {
		if in.FormID() == formID {
			out = append(out, in)
		}
	}
	return out
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.observeRequests)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metricsHandler != nil {
		r.Handle(s.metricsPath, s.metricsHandler)
	}
	if s.options != nil {
		if _, err := s.options.RegisterRoutes(r, ""); err != nil {
			s.logger.Error().Err(err).Msg("server: mount option lists")
		}
	}

	r.Route("/forms", func(r chi.Router) {
		r.Get("/", s.listForms)
		r.Get("/{formID}", s.getForm)
		r.Post("/{formID}/sessions", s.openSession)
	})
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Delete("/", s.deleteSession)
		r.Put("/values/{field}", s.setValue)
		r.Post("/lookups/{field}/refresh", s.refreshLookup)
		r.Post("/revalidate", s.revalidate)
		r.Post("/submit", s.submit)
	})
	return r
}

// settle waits for async work without failing the request when it runs long.
func (s *Server) settle(ctx context.Context, in *runtime.Instance) runtime.State {
	ctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()
	if err := in.Settle(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Debug().Err(err).Str("session_id", in.ID()).Msg("settle interrupted")
	}
	return in.State()
}
