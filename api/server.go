// Package api exposes the retrieval chat service over HTTP.
//
// Endpoints:
//
//	POST   /api/upload       - ingest an uploaded document
//	GET    /api/files        - list ingested files
//	DELETE /api/files/{id}   - remove a file and its vector records
//	POST   /api/chat         - retrieval-grounded chat (SSE stream)
//	GET    /health           - liveness probe
//	GET    /ready            - readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, request id, logging)
//   - health.go: Health check endpoints
//   - files.go: Upload and file management endpoints
//   - chat.go: Chat endpoint (SSE)
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/chatbot-rag/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to resist slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads and chat bodies are small; this is generous.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Chat
	// streams can run long.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout caps keep-alive connections between requests.
	IdleTimeout = 120 * time.Second
)

// ServerConfig carries the request-handling knobs.
type ServerConfig struct {
	// Namespace is the vector namespace record deletes target.
	Namespace string

	// MaxUploadBytes caps the size of an uploaded file.
	MaxUploadBytes int64
}

// Server is the HTTP server for the chatbot REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health *HealthHandler
	files  *FilesHandler
	chat   *ChatHandler
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig, pool *pgxpool.Pool, pipeline Ingester, store FileStore, deleter RecordDeleter, svc ChatService, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:    mux,
		logger: logger,
		health: NewHealthHandler(pool, logger),
		files:  NewFilesHandler(pipeline, store, deleter, cfg.Namespace, cfg.MaxUploadBytes, logger),
		chat:   NewChatHandler(svc, logger),
	}

	s.health.RegisterRoutes(mux)
	s.files.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery -> request id -> logging -> handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
