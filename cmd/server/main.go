// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("go-passkey server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("PASSKEY_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	log.Info("Starting passkey server",
		logger.String("version", version),
		logger.String("rp_id", cfg.WebAuthn.RPID),
		logger.String("rp_origin", cfg.WebAuthn.RPOrigin),
		logger.String("addr", cfg.ListenAddress()))

	if !cfg.Metrics.Enabled {
		metrics.Disable()
	}

	// Wire the ceremony service with in-memory stores
	creds := passkey.NewMemoryCredentialStore()
	ceremonies := passkey.NewMemoryCeremonyStoreWithTTL(cfg.Ceremony.TTL)

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:          cfg.PasskeyConfig(),
		CredentialStore: creds,
		CeremonyStore:   ceremonies,
	})
	if err != nil {
		log.Fatal("Failed to create passkey service", logger.Error(err))
	}

	// Health checks report store population alongside gauge updates
	checker := health.NewChecker()
	checker.RegisterCheck("credential-store", func(ctx context.Context) health.CheckResult {
		count := creds.Count()
		metrics.SetCredentialsTotal(float64(count))
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d enrolled credentials", count),
		}
	})
	checker.RegisterCheck("ceremony-store", func(ctx context.Context) health.CheckResult {
		count := ceremonies.Count()
		metrics.SetPendingCeremonies(float64(count))
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d in-flight ceremonies", count),
		}
	})

	// Periodic runtime resource metrics
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	defer collectorCancel()
	collector := metrics.StartResourceCollector(collectorCtx, 15*time.Second)
	defer collector.Stop()

	restCfg := &rest.Config{
		Addr:            cfg.ListenAddress(),
		Service:         svc,
		Version:         version,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
		Logger:          log,
		CeremonyJanitor: ceremonies,
		JanitorInterval: cfg.Ceremony.CleanupInterval,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
	}
	if cfg.CORS.Enabled {
		restCfg.AllowedOrigins = cfg.AllowedOrigins()
	}
	if cfg.TLS.Enabled {
		restCfg.TLSCertFile = cfg.TLS.CertFile
		restCfg.TLSKeyFile = cfg.TLS.KeyFile
	}

	server, err := rest.NewServer(restCfg)
	if err != nil {
		log.Fatal("Failed to create server", logger.Error(err))
	}
	server.SetHealthChecker(checker)

	// Setup signal handler for graceful shutdown
	shutdownCtx := setupSignalHandler(log)

	// Start the server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	checker.MarkStarted()
	log.Info("Passkey server started", logger.String("addr", server.Addr()))

	// Wait for shutdown signal or error
	select {
	case <-shutdownCtx.Done():
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error", logger.Error(err))
	}

	// Gracefully shutdown
	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownTimeout); err != nil {
		log.Error("Error during server shutdown", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Passkey server stopped")
}

// newLogger builds the logging adapter from the logging configuration.
func newLogger(cfg config.LoggingConfig) logger.Logger {
	level := logLevel(cfg.Level)

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:   level,
		Handler: handler,
	})
}

func logLevel(level string) logger.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error", "fatal":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(log logger.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		log.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
