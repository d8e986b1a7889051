package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/server/handler"
	"github.com/alanyoungcy/optionsdesk/internal/server/middleware"
	"github.com/alanyoungcy/optionsdesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Trades     *handler.TradeHandler
	Portfolios *handler.PortfolioHandler
	Positions  *handler.PositionHandler
	Exports    *handler.ExportHandler
	Auth       *handler.AuthHandler
}

// Security carries what the auth and rate-limit middleware need.
// Limiter may be nil to disable rate limiting.
type Security struct {
	Verifier  middleware.Verifier
	Blacklist domain.TokenBlacklist
	Limiter   domain.RateLimiter
}

// Server is the HTTP + WebSocket API server for the options desk.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered. Every route
// except the health check sits behind bearer-token authentication.
func NewServer(cfg Config, handlers Handlers, sec Security, wsHub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      Routes(cfg, handlers, sec, wsHub, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the full handler chain. It is exported so tests can drive
// it with httptest.
func Routes(cfg Config, handlers Handlers, sec Security, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	api := http.NewServeMux()

	// Trades.
	api.HandleFunc("POST /api/trades", handlers.Trades.Create)
	api.HandleFunc("GET /api/trades", handlers.Trades.List)
	api.HandleFunc("GET /api/trades/open", handlers.Trades.ListOpen)
	api.HandleFunc("GET /api/trades/{id}", handlers.Trades.Get)
	api.HandleFunc("PUT /api/trades/{id}", handlers.Trades.Update)
	api.HandleFunc("PATCH /api/trades/{id}", handlers.Trades.Update)
	api.HandleFunc("PUT /api/trades/{id}/close", handlers.Trades.Close)
	api.HandleFunc("PATCH /api/trades/{id}/close", handlers.Trades.Close)
	api.HandleFunc("DELETE /api/trades/{id}", handlers.Trades.Delete)

	// Exports.
	api.HandleFunc("POST /api/trades/export", handlers.Exports.Export)
	api.HandleFunc("GET /api/trades/exports", handlers.Exports.List)
	api.HandleFunc("GET /api/trades/exports/{name}", handlers.Exports.Download)

	// Portfolios.
	api.HandleFunc("POST /api/portfolios", handlers.Portfolios.Create)
	api.HandleFunc("GET /api/portfolios", handlers.Portfolios.List)
	api.HandleFunc("GET /api/portfolios/default", handlers.Portfolios.GetDefault)
	api.HandleFunc("GET /api/portfolios/{id}", handlers.Portfolios.Get)
	api.HandleFunc("PUT /api/portfolios/{id}", handlers.Portfolios.Update)
	api.HandleFunc("PATCH /api/portfolios/{id}", handlers.Portfolios.Update)
	api.HandleFunc("DELETE /api/portfolios/{id}", handlers.Portfolios.Delete)

	// Positions.
	api.HandleFunc("POST /api/portfolios/{portfolioId}/positions", handlers.Positions.Create)
	api.HandleFunc("GET /api/portfolios/{portfolioId}/positions", handlers.Positions.List)
	api.HandleFunc("PATCH /api/portfolios/{portfolioId}/positions/prices", handlers.Positions.UpdatePrices)
	api.HandleFunc("GET /api/positions/{id}", handlers.Positions.Get)
	api.HandleFunc("PUT /api/positions/{id}", handlers.Positions.Update)
	api.HandleFunc("PATCH /api/positions/{id}", handlers.Positions.Update)
	api.HandleFunc("DELETE /api/positions/{id}", handlers.Positions.Delete)

	// Session.
	api.HandleFunc("POST /api/auth/logout", handlers.Auth.Logout)

	// WebSocket endpoint.
	if wsHub != nil {
		api.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Rate limiting runs after auth so callers are keyed by user.
	var protected http.Handler = api
	if sec.Limiter != nil && cfg.RateLimit > 0 {
		protected = middleware.RateLimit(sec.Limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(protected)
	}
	protected = middleware.Auth(sec.Verifier, sec.Blacklist, logger)(protected)

	root := http.NewServeMux()
	root.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	root.Handle("/", protected)

	var h http.Handler = root
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
