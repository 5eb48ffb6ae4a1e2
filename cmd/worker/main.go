package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docuclean/internal/bootstrap"
	"github.com/kirillkom/docuclean/internal/config"
	"github.com/kirillkom/docuclean/internal/observability/logging"
	"github.com/kirillkom/docuclean/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:        workerMetrics,
		BreakerListener: workerMetrics.BreakerStateChanged,
	})
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	resumed, err := app.ProcessUC.ResumeInterrupted(ctx)
	if err != nil {
		logger.Error("resume_failed", "error", err)
	} else if resumed > 0 {
		logger.Info("runs_resumed", "count", resumed)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeProcessingRequested(groupCtx, func(handlerCtx context.Context, documentID string) error {
			app.ProcessUC.Start(handlerCtx, documentID)
			return nil
		})
	})
	group.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSStopSubject)
		return app.Queue.SubscribeStopRequested(groupCtx, func(_ context.Context, documentID string) error {
			app.ProcessUC.Stop(documentID)
			return nil
		})
	})

	if err := group.Wait(); err != nil {
		logger.Error("worker_error", "error", err)
	}
	// Active runs observe the canceled context, persist their last page and
	// stay in processing for the next start.
	app.ProcessUC.Wait()
}
