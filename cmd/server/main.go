package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/milanbhuyan7/FeedbackMangement/internal/auth"
	"github.com/milanbhuyan7/FeedbackMangement/internal/buffer"
	"github.com/milanbhuyan7/FeedbackMangement/internal/dispatch"
	"github.com/milanbhuyan7/FeedbackMangement/internal/platform/config"
	"github.com/milanbhuyan7/FeedbackMangement/internal/platform/logging"
	"github.com/milanbhuyan7/FeedbackMangement/internal/registry"
	"github.com/milanbhuyan7/FeedbackMangement/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, cancel context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stops the buffer sweeper
		cancel()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "delivery_mode", cfg.DeliveryMode)

	authenticator, err := auth.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		slog.Error("Failed to create authenticator", "error", err)
		os.Exit(1)
	}

	reg := registry.New()
	buffers := buffer.NewStore(clock)

	// In push mode the buffer store only serves the drain endpoint; events
	// for offline users are dropped rather than queued.
	var fallback *buffer.Store
	if cfg.DeliveryMode == config.DeliveryModePull {
		fallback = buffers
	}
	router := dispatch.NewRouter(reg, fallback)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := buffer.NewSweeper(buffers, cfg.BufferSweepInterval, cfg.BufferMaxAge, clock)
	go sweeper.Run(ctx)

	srv := server.NewServer(cfg, authenticator, reg, router, buffers, clock)

	done := runGracefulShutdown(srv, cancel)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
