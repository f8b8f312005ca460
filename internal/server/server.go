// Package server runs the carrel HTTP process: it owns the connections to
// Postgres, Redis, and MinIO, and serves the registered API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/carrelhq/carrel/internal/api"
	"github.com/carrelhq/carrel/internal/blob"
	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/embedder"
	"github.com/carrelhq/carrel/internal/pipeline"
	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/server/endpoints"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/svcctx"
	"github.com/carrelhq/carrel/internal/tika"
)

// reaperInterval is how often the server sweeps for jobs abandoned by dead
// workers.
const reaperInterval = 5 * time.Minute

// Server is the main carrel HTTP server.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	store  *store.Store
	broker *broker.Broker

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// ListenAddr is the address to bind to (default: :8080)
	ListenAddr string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = cfg.ConfigManager.Get().Server.ListenAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     s.withServices(mux),
		ReadTimeout: 10 * time.Minute, // large uploads
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Start connects the backing services and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	appCfg := s.configMgr.Get()

	st, err := store.New(ctx, config.ResolveEnvVars(appCfg.Database.URL), int32(appCfg.Database.MaxConns))
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to connect database: %w", err)
	}
	s.store = st

	s.logger.Info("running migrations")
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		s.setNotRunning()
		return fmt.Errorf("migration failed: %w", err)
	}

	bl, err := blob.New(blob.Config{
		Endpoint:  appCfg.Minio.Endpoint,
		AccessKey: config.ResolveEnvVars(appCfg.Minio.AccessKey),
		SecretKey: config.ResolveEnvVars(appCfg.Minio.SecretKey),
		Bucket:    appCfg.Minio.Bucket,
		UseSSL:    appCfg.Minio.UseSSL,
	})
	if err != nil {
		st.Close()
		s.setNotRunning()
		return fmt.Errorf("failed to create object store client: %w", err)
	}
	if err := bl.EnsureBucket(ctx); err != nil {
		st.Close()
		s.setNotRunning()
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}

	br := broker.New(appCfg.Redis.Addr, config.ResolveEnvVars(appCfg.Redis.Password), appCfg.Redis.DB, s.logger)
	s.broker = br
	if err := br.Ping(ctx); err != nil {
		st.Close()
		_ = br.Close()
		s.setNotRunning()
		return fmt.Errorf("failed to connect broker: %w", err)
	}

	emb := embedder.New(appCfg.Embedder.URL)
	tk := tika.New(appCfg.Tika.URL)
	orch := pipeline.New(st, br, s.logger)
	eng := search.New(st, emb, search.Options{
		Candidates:        appCfg.Search.Candidates,
		LatestBoost:       appCfg.Search.LatestBoost,
		OCRBoostFactor:    appCfg.Search.OCRBoostFactor,
		ConflictThreshold: appCfg.Search.ConflictThreshold,
	}, s.logger)

	s.services = &svcctx.Services{
		Store:        st,
		Blob:         bl,
		Broker:       br,
		Embedder:     emb,
		Tika:         tk,
		Orchestrator: orch,
		Search:       eng,
		Config:       s.configMgr,
		Logger:       s.logger,
	}

	// Sweep for abandoned jobs in the background
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go s.runReaper(reaperCtx, orch)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// runReaper periodically re-enqueues jobs whose workers went silent.
func (s *Server) runReaper(ctx context.Context, orch *pipeline.Orchestrator) {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := orch.Reap(ctx)
			if err != nil {
				s.logger.Warn("reaper sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("reaper re-enqueued stale jobs", "count", n)
			}
		}
	}
}

// shutdown performs graceful shutdown of the HTTP server and closes the
// backing connections.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Error("broker close error", "error", err)
		}
	}
	if s.store != nil {
		s.store.Close()
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the endpoint registry.
func (s *Server) Registry() *api.Registry {
	return s.endpointRegistry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the backing services are connected.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
