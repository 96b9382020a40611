package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/staffline/cmd/mainconfig"
	"github.com/wolfman30/staffline/internal/api/router"
	appbootstrap "github.com/wolfman30/staffline/internal/app/bootstrap"
	appconfig "github.com/wolfman30/staffline/internal/config"
	"github.com/wolfman30/staffline/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/staffline/internal/http/middleware"
	"github.com/wolfman30/staffline/internal/queue"
	"github.com/wolfman30/staffline/internal/worker"
	"github.com/wolfman30/staffline/pkg/logging"
)

func main() {
	if err := mainconfig.LoadDotEnv(); err != nil {
		logging.Default().Warn("failed to read .env", "error", err)
	}
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting staffline API server", "env", cfg.Env, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := appbootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	handler, inline, err := setup(ctx, cfg, rt, logger)
	if err != nil {
		logger.Error("failed to set up API", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	if inline != nil {
		inline.Wait()
	}
	logger.Info("server stopped")
}

// setup builds the HTTP handler. With the in-memory queue the async endpoint
// is drained by an inline worker in this process.
func setup(ctx context.Context, cfg *appconfig.Config, rt *appbootstrap.Runtime, logger *logging.Logger) (http.Handler, *worker.Worker, error) {
	q, err := mainconfig.BuildQueue(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := queue.NewPublisher(q, logger)
	if err != nil {
		return nil, nil, err
	}

	var inline *worker.Worker
	if _, ok := q.(*queue.MemoryQueue); ok {
		inline, err = worker.New(rt.Assistant, q, logger,
			worker.WithWorkerCount(cfg.WorkerCount),
			worker.WithReceiveWaitSeconds(0),
			worker.WithMetrics(rt.Metrics),
		)
		if err != nil {
			return nil, nil, err
		}
		inline.Start(ctx)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, nil)
	go limiter.RunSweeper(ctx)

	chat := handlers.NewChatHandler(handlers.ChatConfig{
		Assistant: rt.Assistant,
		Publisher: publisher,
		Dialogue:  rt.Engine,
		Bookings:  rt.Bookings,
		Logger:    logger,
	})
	return router.New(&router.Config{
		Logger:             logger,
		Chat:               chat,
		Health:             handlers.NewHealthHandler(rt.HealthChecks(), logger),
		MetricsHandler:     promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}),
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}), inline, nil
}
