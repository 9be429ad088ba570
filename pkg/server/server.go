// Package server exposes the gateway over HTTP: a chi router with the
// conversational endpoint, the explicit issue/work-item endpoints and the
// health probes.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/issuegate/issuegate/pkg/chat"
	"github.com/issuegate/issuegate/pkg/gateway"
)

// Option configures a Server
type Option func(*Server)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server routes inbound chat-extension traffic to the orchestrator and the
// streaming proxy.
type Server struct {
	orchestrator *gateway.Orchestrator
	chat         *chat.Client
	logger       *slog.Logger
	router       chi.Router
}

// New creates a Server over the given orchestrator and completion client.
func New(orchestrator *gateway.Orchestrator, chatClient *chat.Client, opts ...Option) *Server {
	s := &Server{
		orchestrator: orchestrator,
		chat:         chatClient,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-GitHub-Token"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleLiveness)
	r.Get("/healthz", s.handleHealthz)
	r.Post("/", s.handleConversation)
	r.Post("/create-issue", s.handleCreateIssue)
	r.Post("/create-issue/{owner}/{repo}", s.handleCreateIssue)
	r.Post("/workitems/config", s.handleWorkItemConfig)
	r.Post("/workitems", s.handleWorkItem)

	return r
}

// requestLogger logs one line per completed request. Credentials never
// appear here; only derived values are logged.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
