// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/application/container"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/caching/cleanup"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/presentation/http/server"
	"github.com/escolahabilidade/habilidade-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `

  ▄█ █▄    ▄██▄  ██▄   ▀█▀ ██    ▀█▀ ██▀▄  ▄██▄  ██▀▄  ▄███▄
  ██▄██   ██▄██  ██▀█▄  █  ██     █  ██ ██ ██▄██ ██ ██ ██▄▄
  ██ ██   ██ ██  ██▄█▀ ▄█▄ ██▄▄█ ▄█▄ ██▄█▀ ██ ██ ██▄█▀ ██▄▄▄
` + "\033[97m" + `
  Escola Habilidade
` + "\033[0m")

	// Step 1: Initialize channeled logging
	log.Println("Initializing logging...")
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	// Step 2: Create dependency injection container
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer(logger)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 3: Start the cache service (drain, maintenance, monitor loops and
	// the initial warming pass)
	logger.Startup().Info("Starting cache service...")
	startCacheTime := time.Now()
	appContainer.CacheService.Initialize(ctx)
	logger.LogStartupPhase("cache_service", time.Since(startCacheTime), true, nil)

	// Step 4: Start the analytics flush loop
	logger.Startup().Info("Starting analytics service...")
	appContainer.AnalyticsService.Start(ctx)

	// Step 5: Start the gate registry janitor
	logger.Startup().Info("Starting session gate janitor...")
	go appContainer.GateRegistry.StartJanitor(ctx)

	// Step 6: Start background cleanup worker
	logger.Startup().Info("Starting background cleanup worker...")
	startWorkerTime := time.Now()

	cleanupConfig := cleanup.NewConfig()
	cleanupWorker := cleanup.NewWorker(appContainer.Cache, cleanupConfig)
	go cleanupWorker.Start(ctx)

	logger.Startup().Info("Background cleanup worker started", "duration", time.Since(startWorkerTime))

	// Step 7: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	startServerTime := time.Now()

	port := config.Port
	httpServer := server.New(port, appContainer)

	logger.Startup().Info("HTTP server initialized", "port", port, "duration", time.Since(startServerTime))

	// Step 8: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	totalStartupTime := time.Since(start)
	logger.Startup().Info("Application startup complete",
		"totalDuration", totalStartupTime,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Cancel background tasks
	cancelBackgroundTasks()

	// Stop server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	// Drain the services
	logger.Shutdown().Info("Stopping cache service...")
	appContainer.CacheService.Shutdown()

	logger.Shutdown().Info("Flushing analytics...")
	appContainer.AnalyticsService.Shutdown()

	// Close storage handles
	logger.Shutdown().Info("Closing stores...")
	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing stores", "error", err.Error())
	} else {
		logger.Shutdown().Info("Stores closed successfully")
	}

	elapsed := time.Since(start)
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", elapsed,
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
