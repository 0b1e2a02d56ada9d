package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/academic-rag/internal/adapters/http"
	"github.com/kirillkom/academic-rag/internal/bootstrap"
	"github.com/kirillkom/academic-rag/internal/config"
	"github.com/kirillkom/academic-rag/internal/observability/logging"
	"github.com/kirillkom/academic-rag/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// Each api instance listens for corpus updates and swaps in a fresh
	// catalog snapshot of its own.
	go func() {
		if err := app.Queue.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context, detail string) error {
			reloadCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
			defer cancel()
			logger.Info("corpus_update_received", "detail", detail)
			return app.Service.ReloadCatalog(reloadCtx)
		}); err != nil {
			logger.Error("corpus_subscription_failed", "error", err)
		}
	}()

	m := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(app.Service, m, "api", cfg.MaxQueryLength, logger).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
