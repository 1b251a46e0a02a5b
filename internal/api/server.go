// Package api is the JSON/SSE HTTP surface over the chat orchestration
// core. Conversation identity travels in the X-Conversation-ID header.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellora/coach/internal/chat"
	"github.com/wellora/coach/internal/protocol"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	ChatService   *chat.Service        // Required
	HistoryStore  chat.HistoryStore    // Required
	ProfileStore  chat.ProfileStore    // Required
	Typing        *chat.TypingIndicator // Required
	ProtocolStore *protocol.Store      // Optional: nil disables protocol administration
	Pool          *pgxpool.Pool        // Optional: nil disables pool probe in /ready
	RateBurst     int                  // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.ChatService == nil:
		return nil, errors.New("chat service is required")
	case cfg.HistoryStore == nil:
		return nil, errors.New("history store is required")
	case cfg.ProfileStore == nil:
		return nil, errors.New("profile store is required")
	case cfg.Typing == nil:
		return nil, errors.New("typing indicator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mh := &messageHandler{service: cfg.ChatService, history: cfg.HistoryStore, logger: logger}
	sh := &statusHandler{typing: cfg.Typing, profiles: cfg.ProfileStore, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/messages", mh.send)
	mux.HandleFunc("POST /api/v1/messages/stream", mh.stream)
	mux.HandleFunc("GET /api/v1/messages", mh.list)
	mux.HandleFunc("GET /api/v1/typing", sh.typingStatus)
	mux.HandleFunc("GET /api/v1/profile", sh.getProfile)

	if cfg.ProtocolStore != nil {
		ph := &protocolHandler{store: cfg.ProtocolStore, logger: logger}
		mux.HandleFunc("POST /api/v1/protocols/seed", ph.seed)
	}

	// Per-IP token bucket, 1 token/sec refill.
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
