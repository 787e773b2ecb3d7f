package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookgloss/internal/config"
	"bookgloss/internal/jobs"
	"bookgloss/internal/llm"
)

// Server is the HTTP API server for bookgloss.
type Server struct {
	router  chi.Router
	manager *jobs.Manager
	gemini  *llm.GeminiClient
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(manager *jobs.Manager, gemini *llm.GeminiClient, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		manager: manager,
		gemini:  gemini,
		log:     log,
		cfg:     cfg,
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
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/books", s.handleSubmit)
		r.Get("/api/books/{jobID}/status", s.handleStatus)
		r.Get("/api/books/{jobID}/download", s.handleDownload)
		r.Post("/api/books/{jobID}/cancel", s.handleCancel)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
