/*
Package main is the entry point for the room chat server.

It is responsible for loading configuration, initializing the global logging system,
setting up the HTTP server, starting the presence Coordinator and its liveness reaper,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to drain joins and close every connection before exiting.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"roomchat/internal/app/chat"
	"roomchat/internal/configs"
	"roomchat/internal/handler"
	"roomchat/internal/pkg/limiter"
	"roomchat/internal/pkg/logx"
)

func main() {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logx.Init(logx.Options{Development: cfg.IsDevelopment(), Level: cfg.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Strs("rooms", cfg.Rooms).
		Dur("stale_threshold", cfg.StaleThreshold).
		Dur("sweep_interval", cfg.SweepInterval).
		Msg("Configuration loaded successfully")

	catalog, err := chat.NewCatalog(cfg.Rooms)
	if err != nil {
		logx.Fatal(err, "Invalid room catalog")
	}

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sendLimiter := limiter.NewKeyedLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst, limiter.DefaultCleanupInterval)
	defer sendLimiter.Stop()

	connectLimiter := limiter.NewKeyedLimiter(rate.Limit(cfg.ConnectRate), cfg.ConnectBurst, limiter.DefaultCleanupInterval)
	defer connectLimiter.Stop()

	// Initialize the presence Coordinator
	coordinator := chat.NewCoordinator(chat.Options{
		Catalog:        catalog,
		StaleThreshold: cfg.StaleThreshold,
		SweepInterval:  cfg.SweepInterval,
		SendLimiter:    sendLimiter,
	})
	coordinator.Start()

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Coordinator:    coordinator,
		Config:         cfg,
		ConnectLimiter: connectLimiter,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Room Chat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal, then drain joins and shut down within the configured timeout.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	coordinator.Drain()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	// Hijacked websocket connections are not tracked by server.Shutdown; the Coordinator closes them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	coordinator.Shutdown()

	logx.Info("Server gracefully stopped.")
}
