package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	operationService driving.OperationService
	syncService      driving.SyncService
	storeService     driving.StoreService

	// Infrastructure
	taskQueue   driven.TaskQueue
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host      string
	Port      int
	Version   string
	JWTSecret string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	operationService driving.OperationService,
	syncService driving.SyncService,
	storeService driving.StoreService,
	taskQueue driven.TaskQueue,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		operationService: operationService,
		syncService:      syncService,
		storeService:     storeService,
		taskQueue:        taskQueue,
		db:               db,
		redisClient:      redisClient,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg.JWTSecret)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(jwtSecret string) {
	auth := NewAuthMiddleware(jwtSecret)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Operation pipeline
	s.router.Handle("POST /api/v1/operations/preview",
		auth.Authenticate(http.HandlerFunc(s.handlePreview)))
	s.router.Handle("POST /api/v1/operations/{id}/execute",
		auth.Authenticate(http.HandlerFunc(s.handleExecute)))
	s.router.Handle("POST /api/v1/operations/{id}/rollback",
		auth.Authenticate(http.HandlerFunc(s.handleRollback)))
	s.router.Handle("POST /api/v1/operations/{id}/cancel",
		auth.Authenticate(http.HandlerFunc(s.handleCancel)))
	s.router.Handle("GET /api/v1/operations/{id}",
		auth.Authenticate(http.HandlerFunc(s.handleGetOperation)))
	s.router.Handle("GET /api/v1/operations",
		auth.Authenticate(http.HandlerFunc(s.handleListOperations)))

	// Multi-store sync
	s.router.Handle("POST /api/v1/sync",
		auth.Authenticate(http.HandlerFunc(s.handleSync)))
	s.router.Handle("GET /api/v1/sync/{id}",
		auth.Authenticate(http.HandlerFunc(s.handleGetSyncJob)))
	s.router.Handle("GET /api/v1/sync",
		auth.Authenticate(http.HandlerFunc(s.handleListSyncJobs)))
	s.router.Handle("POST /api/v1/sync/{id}/resolve",
		auth.Authenticate(http.HandlerFunc(s.handleResolveConflicts)))

	// Store registry
	s.router.Handle("GET /api/v1/stores",
		auth.Authenticate(http.HandlerFunc(s.handleListStores)))
	s.router.Handle("POST /api/v1/stores",
		auth.Authenticate(http.HandlerFunc(s.handleRegisterStore)))
	s.router.Handle("GET /api/v1/stores/{id}",
		auth.Authenticate(http.HandlerFunc(s.handleGetStore)))
	s.router.Handle("DELETE /api/v1/stores/{id}",
		auth.Authenticate(http.HandlerFunc(s.handleRemoveStore)))

	// Task status (async execute/sync polling)
	s.router.Handle("GET /api/v1/tasks/{id}",
		auth.Authenticate(http.HandlerFunc(s.handleGetTask)))
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
