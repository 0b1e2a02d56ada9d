package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/academic-rag/internal/bootstrap"
	"github.com/kirillkom/academic-rag/internal/config"
	"github.com/kirillkom/academic-rag/internal/observability/logging"
	"github.com/kirillkom/academic-rag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewWorkerMetrics("worker")
	go serveMetrics(cfg.WorkerMetricsPort, m, logger)

	if _, err := os.Stat(cfg.CorpusPath); err == nil {
		ingestCorpus(ctx, app, m, cfg.CorpusPath, logger)
	} else {
		logger.Info("corpus_file_absent", "path", cfg.CorpusPath)
	}

	// Stay subscribed so this instance keeps its catalog aligned with
	// corpora ingested elsewhere.
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context, detail string) error {
		reloadCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()
		reloadErr := app.Service.ReloadCatalog(reloadCtx)
		m.RecordCatalogReload("worker", reloadErr)
		return reloadErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func ingestCorpus(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, path string, logger *slog.Logger) {
	start := time.Now()
	m.StartIngest()
	courses, sections, err := app.Ingestor.IngestFile(ctx, path)
	m.FinishIngest("worker", courses, time.Since(start), err)
	if err != nil {
		logger.Error("corpus_ingest_failed", "path", path, "error", err)
		return
	}
	logger.Info("corpus_ingested", "path", path, "courses", courses, "sections", sections)
}

func serveMetrics(port string, m *metrics.WorkerMetrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logger.Info("worker_metrics_listening", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("worker_metrics_server_error", "error", err)
	}
}
