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
	appbootstrap "github.com/wolfman30/staffline/internal/app/bootstrap"
	appconfig "github.com/wolfman30/staffline/internal/config"
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

	if cfg.UseMemoryQueue {
		logger.Error("chat worker cannot run when USE_MEMORY_QUEUE=true; the API process runs inline workers instead")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := appbootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	q, err := mainconfig.BuildQueue(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build queue", "error", err)
		os.Exit(1)
	}
	if _, ok := q.(*queue.MemoryQueue); ok {
		logger.Error("chat worker requires CHAT_QUEUE_URL")
		os.Exit(1)
	}

	w, err := worker.New(rt.Assistant, q, logger,
		worker.WithWorkerCount(cfg.WorkerCount),
		worker.WithReceiveWaitSeconds(20),
		worker.WithReceiveBatchSize(10),
		worker.WithMetrics(rt.Metrics),
	)
	if err != nil {
		logger.Error("failed to build worker", "error", err)
		os.Exit(1)
	}
	w.Start(ctx)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("chat worker started", "workers", cfg.WorkerCount, "metrics_addr", metricsSrv.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down chat worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = metricsSrv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		w.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("chat worker stopped")
	case <-doneCtx.Done():
		logger.Error("chat worker shutdown timed out", "error", doneCtx.Err())
	}
}
