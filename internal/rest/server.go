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

package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jeremyhahn/go-passkey/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the REST API server.
type Server struct {
	server   *http.Server
	handlers *HandlerContext
	addr     string
	logger   logger.Logger

	tlsCertFile string
	tlsKeyFile  string

	janitor       *passkey.MemoryCeremonyStore
	janitorStop   chan struct{}
	janitorPeriod time.Duration
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the host:port to listen on (default: ":8080")
	Addr string

	// Service is the ceremony orchestration service
	Service *passkey.Service

	// Version is the API version string
	Version string

	// AllowedOrigins is the CORS origin allowlist. When empty, CORS headers
	// are not emitted.
	AllowedOrigins []string

	// MetricsEnabled mounts the Prometheus handler when true
	MetricsEnabled bool

	// MetricsPath is the metrics endpoint path (default: "/metrics")
	MetricsPath string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set
	TLSCertFile string
	TLSKeyFile  string

	// Logger is the logging adapter (optional, defaults to slog)
	Logger logger.Logger

	// CeremonyJanitor, when set, is swept for expired ceremonies every
	// JanitorInterval while the server runs
	CeremonyJanitor *passkey.MemoryCeremonyStore

	// JanitorInterval is how often expired ceremonies are swept (default: 1m)
	JanitorInterval time.Duration

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("passkey service is required")
	}

	// Set defaults
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = time.Minute
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	// Set up logger (default to slog if not provided)
	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{
			Level: logger.LevelInfo,
		})
	}

	// Create handler context
	handlers := NewHandlerContext(cfg.Service, cfg.Version)

	// Create server instance
	server := &Server{
		handlers:      handlers,
		addr:          cfg.Addr,
		logger:        log,
		tlsCertFile:   cfg.TLSCertFile,
		tlsKeyFile:    cfg.TLSKeyFile,
		janitor:       cfg.CeremonyJanitor,
		janitorPeriod: cfg.JanitorInterval,
	}

	// Create router with middleware
	router := server.setupRouter(cfg)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	server.server = httpServer

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(cfg *Config) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware()) // Add correlation ID before logging
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware) // Metrics middleware

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "X-Correlation-ID", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           3600,
		}))
	}

	// Liveness string for load balancers and smoke tests
	r.Get("/", s.handlers.IndexHandler)

	// Ceremony endpoints
	r.Post("/register/start", s.handlers.RegisterStartHandler)
	r.Post("/register/finish", s.handlers.RegisterFinishHandler)
	r.Post("/auth/start", s.handlers.AuthStartHandler)
	r.Post("/auth/finish", s.handlers.AuthFinishHandler)

	// Legacy health endpoint (backwards compatibility)
	r.Get("/health", s.handlers.HealthHandler)
	r.Head("/health", s.handlers.HealthHandler)

	// Kubernetes-style health probes
	r.Get("/health/live", s.handlers.LivenessHandler)
	r.Get("/health/ready", s.handlers.ReadinessHandler)
	r.Get("/health/startup", s.handlers.StartupHandler)

	// Prometheus metrics
	if cfg.MetricsEnabled {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	return r
}

// Start starts the REST API server.
func (s *Server) Start() error {
	s.startJanitor()

	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.logger.Info("Starting HTTPS server",
			logger.String("addr", s.addr))

		if err := s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
	} else {
		s.logger.Info("Starting HTTP server",
			logger.String("addr", s.addr))

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	s.stopJanitor()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the configured HTTP handler, for use in tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetHealthChecker sets the health checker for the server.
func (s *Server) SetHealthChecker(checker HealthChecker) {
	s.handlers.SetHealthChecker(checker)
}

// startJanitor begins the periodic sweep of expired ceremonies.
func (s *Server) startJanitor() {
	if s.janitor == nil {
		return
	}
	s.janitorStop = make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.janitorPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-s.janitorStop:
				return
			case <-ticker.C:
				removed := s.janitor.Cleanup()
				if removed > 0 {
					metrics.RecordExpiredCeremonies(removed)
					s.logger.Debug("Swept expired ceremonies",
						logger.Int("removed", removed))
				}
				metrics.SetPendingCeremonies(float64(s.janitor.Count()))
			}
		}
	}()
}

// stopJanitor halts the ceremony sweep goroutine.
func (s *Server) stopJanitor() {
	if s.janitorStop != nil {
		close(s.janitorStop)
		s.janitorStop = nil
	}
}
