package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/http/api"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/http/swagger"
	app "github.com/akashca-pro/codex-problem-service-sub000/internal/app"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the submission workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Root context with cancel on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, env)
		},
	}
}

func serve(ctx context.Context, env *runtimeEnv) error {
	cfg, log := env.cfg, env.log
	metrics.Configure(cfg.MetricsEnabled, cfg.MetricsRefresh())

	store, src, closeAll, err := openAll(ctx, env)
	if err != nil {
		return err
	}
	defer closeAll()

	svc := app.New(store, src, append(app.OptionsFromConfig(cfg), app.WithLogger(log))...)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, api.WithMaxLimit(cfg.MaxLeaderboardLimit)).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("backend", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		log.Error(ctx, "HTTP server failed", logger.Error(serveErr))
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return serveErr
}
