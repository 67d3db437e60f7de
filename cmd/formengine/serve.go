package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formengine/components/options"
	"github.com/goliatone/go-formengine/pkg/metrics"
	"github.com/goliatone/go-formengine/pkg/reload"
	"github.com/goliatone/go-formengine/pkg/runtime"
	"github.com/goliatone/go-formengine/pkg/server"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve form sessions over HTTP",
		Long: `Serve loads every schema in schemas.dir and exposes form sessions over HTTP.
Static option lists in server.options_dir are served under /api/lookups, and
relative lookup endpoints resolve against this server unless lookup.base_url
is set. With schemas.watch, edited schemas are swapped into live sessions.

Environment variables:
  FORMENGINE_SERVER_PORT     - listen port (default: 8080)
  FORMENGINE_SCHEMAS_DIR     - schema directory (default: schemas)
  FORMENGINE_SCHEMAS_WATCH   - reload schemas on change
  FORMENGINE_LOOKUP_BASE_URL - base URL for relative lookup endpoints
  FORMENGINE_LOG_LEVEL       - debug, info, warn, error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(prometheus.DefaultRegisterer)
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(collector),
		server.WithRuntimeOptions(
			runtime.WithFetcher(newFetcher(cfg.Lookup, "http://"+loopback(cfg.Server.Port))),
			runtime.WithLookupTimeout(cfg.Lookup.Timeout),
			runtime.WithValidatorTimeout(cfg.Runtime.ValidatorTimeout),
		),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetricsHandler(cfg.Metrics.Path, nil))
	}
	if cfg.Server.OptionsDir != "" {
		lists, err := options.LoadDir(cfg.Server.OptionsDir)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithOptions(options.New(options.WithLists(lists))))
		logger.Info().Int("lists", len(lists)).Str("dir", cfg.Server.OptionsDir).Msg("option lists loaded")
	}

	srv := server.New(server.NewStore(), opts...)
	defer srv.Close()

	watcher := reload.New(cfg.Schemas.Dir, srv,
		reload.WithLogger(logger),
		reload.WithMetrics(collector),
		reload.WithDebounce(cfg.Schemas.Debounce),
	)
	if err := watcher.LoadAll(); err != nil {
		return err
	}
	if cfg.Schemas.Watch {
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Strs("forms", srv.Store().IDs()).Msg("formengine listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loopback(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}
