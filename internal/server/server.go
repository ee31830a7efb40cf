// Package server exposes the discovery pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
	"github.com/alanyoungcy/rwadiscovery/internal/server/handler"
	"github.com/alanyoungcy/rwadiscovery/internal/server/middleware"
	"github.com/alanyoungcy/rwadiscovery/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps scan and mint calls per client IP per RateWindow.
	// Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Scan   *handler.ScanHandler
	Assets *handler.AssetHandler
	Users  *handler.UserHandler
	Mint   *handler.MintHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain. wsHub and limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	h := Routes(cfg, handlers, wsHub, limiter, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // lifted per request by the mint handler
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the full handler tree.
func Routes(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	throttle := func(name string, f http.HandlerFunc) http.Handler {
		if limiter == nil || cfg.RateLimit <= 0 {
			return f
		}
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		return middleware.RateLimit(limiter, name, cfg.RateLimit, window)(f)
	}

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.Handle("POST /api/scan", throttle("scan", handlers.Scan.Scan))
	mux.Handle("POST /api/discovery/refresh", throttle("refresh", handlers.Scan.Refresh))
	mux.HandleFunc("GET /api/assets", handlers.Assets.ListAssets)
	mux.HandleFunc("GET /api/assets/{id}", handlers.Assets.GetAsset)

	mux.HandleFunc("GET /api/leaderboard", handlers.Users.Leaderboard)
	mux.HandleFunc("GET /api/users/{address}/rank", handlers.Users.Rank)
	mux.HandleFunc("GET /api/users/{address}/stats", handlers.Users.Stats)
	mux.HandleFunc("GET /api/users/{address}/cards", handlers.Users.Cards)

	mux.Handle("POST /api/mint", throttle("mint", handlers.Mint.Mint))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.RequestID(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
