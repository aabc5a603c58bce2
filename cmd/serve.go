package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/mapcheck/internal/adapters/http/api"
	"github.com/okian/mapcheck/internal/adapters/http/swagger"
	app "github.com/okian/mapcheck/internal/app"
	"github.com/okian/mapcheck/internal/config"
	"github.com/okian/mapcheck/pkg/logger"
	"github.com/okian/mapcheck/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the diagnosis workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.ErrOrStderr())
		},
	}
}

// setup loads the configuration and initializes the global logger.
func setup(ctx context.Context, logOut io.Writer) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWith(logOut, cfg.LogFormat); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	l := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, l, nil
}

func runServe(parent context.Context, logOut io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, l, err := setup(ctx, logOut)
	if err != nil {
		return err
	}

	svc := app.New(app.WithConfig(cfg), app.WithLogger(l))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	l.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
	return serveUntilDone(ctx, l, srv, svc, cfg.ShutdownTimeout, func(ctx context.Context) {
		startMetricsUpdater(ctx, svc)
	})
}

// httpServer is the part of *http.Server that serveUntilDone drives.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// stopper is a started service.
type stopper interface {
	Shutdown(ctx context.Context) error
}

// serveUntilDone runs srv and the background loops until ctx is done or the
// server fails. The server drains its in-flight requests before svc stops, so
// no request sees closed stores.
func serveUntilDone(
	ctx context.Context,
	l logger.Logger,
	srv httpServer,
	svc stopper,
	timeout time.Duration,
	background ...func(context.Context),
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		l.Info(gctx, "server stopped")
		return nil
	})
	for _, fn := range background {
		fn := fn
		g.Go(func() error {
			fn(gctx)
			return nil
		})
	}
	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if serr := svc.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, fmt.Errorf("service shutdown failed: %w", serr))
	}
	return err
}

// newRouter mounts the API and the docs behind the shared middleware.
func newRouter(ctx context.Context, svc *app.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	swagger.Register(ctx, r)
	api.NewServer(svc, svc).Register(ctx, r)
	return r
}

// startMetricsUpdater refreshes system and service gauges until ctx is done.
func startMetricsUpdater(ctx context.Context, svc *app.Service) {
	system := time.NewTicker(systemMetricsInterval)
	defer system.Stop()
	service := time.NewTicker(serviceMetricsInterval)
	defer service.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-system.C:
			updateSystemMetrics()
		case <-service.C:
			// GetStats refreshes the queue and worker gauges.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
