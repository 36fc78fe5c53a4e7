package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/regdocs/internal/config"
	"github.com/dgallion1/regdocs/internal/embed"
	"github.com/dgallion1/regdocs/internal/pipeline"
	"github.com/dgallion1/regdocs/internal/retrieval"
)

// Server is the HTTP API server for regdocs.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	retrieval    *retrieval.Service
	stats        *embed.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(orch *pipeline.Orchestrator, svc *retrieval.Service, stats *embed.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		retrieval:    svc,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.Server.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Post("/api/search", s.handleSearch)
		r.Post("/api/query", s.handleQuery)

		r.Patch("/api/documents/{fileName}/pages/{page}", s.handleUpdatePage)
		r.Put("/api/documents/{fileName}/pages/{page}", s.handleUpsertPage)
		r.Delete("/api/documents/{fileName}/pages/{page}", s.handleDeletePage)

		r.Get("/api/stats/embed", s.handleEmbedStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
