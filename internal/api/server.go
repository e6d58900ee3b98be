package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/formbridge/internal/config"
	"github.com/ignite/formbridge/internal/webhook"
)

// Server wraps the HTTP server with its route tree.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer builds the server from wired handlers.
func NewServer(cfg config.ServerConfig, h *Handlers, receiver *webhook.Receiver, apiKey string) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, receiver, apiKey),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
