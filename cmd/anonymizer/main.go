// cmd/anonymizer/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"yma-anonymizer/internal/common/config"
	chttp "yma-anonymizer/internal/common/http"
	"yma-anonymizer/internal/common/logger"
	"yma-anonymizer/internal/common/observability"
	"yma-anonymizer/internal/ehr"
	"yma-anonymizer/internal/inference"
	"yma-anonymizer/internal/normalize"
	"yma-anonymizer/internal/orchestrator"
	"yma-anonymizer/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting anonymization middleware...",
		zap.String("name", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Upstream connection pools, one per system, process lifetime ---
	inferencePool := chttp.NewPooledClient(cfg.Inference.GetTimeout(), cfg.Anonymization.MaxConcurrentInference*2)
	defer inferencePool.CloseIdleConnections()

	ehrPool := chttp.NewPooledClient(cfg.EHR.GetTimeout(), 4)
	defer ehrPool.CloseIdleConnections()

	// --- Pipeline components ---
	inferenceClient := inference.NewClient(cfg.Inference, inferencePool, log)
	ehrClient := ehr.NewClient(cfg.EHR, ehrPool, log)
	normalizer := normalize.New(cfg.Anonymization.TextFields, cfg.Anonymization.RedactionPlaceholder)

	orch := orchestrator.New(
		inferenceClient,
		ehrClient,
		normalizer,
		cfg.Anonymization,
		log,
		obs,
	)

	// --- HTTP server ---
	router := server.NewRouter(orch, log, cfg.App.Environment)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during server shutdown", zap.Error(err))
	}

	zapLog.Info("Anonymization middleware stopped gracefully")
}
