package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"rrfiler/internal/app"
	"rrfiler/internal/filing/handler"
	"rrfiler/internal/platform/config"
	"rrfiler/internal/platform/httpserver"
	"rrfiler/internal/platform/logger"
	"rrfiler/internal/platform/metrics"
	"rrfiler/internal/platform/postgres"
)

// main wires configuration into the filing service, serves the operator API
// and runs the background loops the configuration asks for.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []handler.Option{handler.WithMetricsHandler(metrics.Handler(a.Registry))}
	if a.DB != nil {
		opts = append(opts, handler.WithReadiness("postgres", postgres.NewReadinessChecker(a.DB)))
	}
	if a.Redis != nil {
		opts = append(opts, handler.WithReadiness("redis", a.Redis))
	}
	if a.Producer != nil {
		opts = append(opts, handler.WithReadiness("kafka", handler.CheckFunc(a.Producer.Ping)))
	}
	router := chi.NewRouter()
	handler.New(a.Service, log, opts...).Register(router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), 10*time.Second, log)
	})
	if a.Relay != nil {
		g.Go(func() error { return a.Relay.Run(ctx) })
	}
	if cfg.Server.SchedulerInterval > 0 {
		g.Go(func() error { return app.RunScheduler(ctx, a.Service, cfg.Server.SchedulerInterval, log) })
	}
	return g.Wait()
}
