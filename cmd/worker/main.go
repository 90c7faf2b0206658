package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finraglab/finrag/internal/bootstrap"
	"github.com/finraglab/finrag/internal/config"
	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/observability/logging"
	"github.com/finraglab/finrag/internal/observability/metrics"
)

const processTimeout = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics()
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	err = app.Queue.SubscribeFilingReceived(ctx, func(handlerCtx context.Context, filingID string) {
		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		start := time.Now()
		if err := app.Ingestor.ProcessByID(processCtx, filingID); err != nil {
			logger.Error("filing processing failed", "filing_id", filingID, "error", err)
			workerMetrics.ObserveFiling(string(domain.FilingFailed), 0, 0, time.Since(start))
			return
		}

		elements, chunks := 0, 0
		if filing, err := app.Repo.GetByID(processCtx, filingID); err == nil {
			elements, chunks = filing.ElementCount, filing.ChunkCount
		}
		workerMetrics.ObserveFiling(string(domain.FilingIndexed), elements, chunks, time.Since(start))
	})
	if err != nil {
		logger.Error("subscribe failed", "subject", cfg.NATSSubject, "error", err)
		os.Exit(1)
	}

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
