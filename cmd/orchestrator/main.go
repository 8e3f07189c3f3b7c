// cmd/orchestrator/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"signup-orchestrator/internal/archive"
	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/logger"
	"signup-orchestrator/internal/common/observability"
	"signup-orchestrator/internal/notify"
	"signup-orchestrator/internal/orchestrator"
	"signup-orchestrator/internal/status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting signup orchestrator...",
		zap.String("environment", cfg.App.Environment),
		zap.String("statusBackend", cfg.StatusStore.Backend),
	)

	obs := observability.New(cfg.App.Name, os.Getenv("JAEGER_COLLECTOR_ENDPOINT"))
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init status store with retry ---
	var store status.Store
	err = retryWithBackoff(func() error {
		var err error
		store, err = status.NewStore(ctx, cfg.StatusStore, log)
		return err
	}, 10, 2*time.Second, zapLog, "Status store initialization")

	if err != nil {
		zapLog.Fatal("status store failed after retries", zap.Error(err))
	}
	defer store.Close()

	if pg, ok := store.(*status.PostgresStore); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("status schema setup failed", zap.Error(err))
		}
	}
	zapLog.Info("Status store ready", zap.String("backend", cfg.StatusStore.Backend))

	opts := []orchestrator.Option{orchestrator.WithObservability(obs)}

	// --- Init run archive with retry ---
	if cfg.Archive.Enabled {
		var archiver *archive.Archiver
		err = retryWithBackoff(func() error {
			var err error
			archiver, err = archive.New(cfg.Archive, log)
			if err != nil {
				return err
			}
			// Test the connection
			return archiver.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		opts = append(opts, orchestrator.WithArchiver(archiver))
		zapLog.Info("Run archive connected successfully", zap.String("index", cfg.Archive.Index))
	}

	// --- Init error alerts ---
	if cfg.Alerts.Enabled {
		notifier, err := notify.New(ctx, cfg.Alerts, log)
		if err != nil {
			zapLog.Fatal("sns notifier failed", zap.Error(err))
		}
		opts = append(opts, orchestrator.WithAlerter(notifier))
		zapLog.Info("Error alerts enabled", zap.String("topic", cfg.Alerts.TopicARN))
	}

	orch := orchestrator.New(cfg, log, store, opts...)
	handler := orchestrator.NewHandler(orch, store, log)

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Signup orchestrator stopped gracefully")
}
