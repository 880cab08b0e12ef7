package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/mission"
	"github.com/felixgeelhaar/pylab/internal/progress"
	"github.com/felixgeelhaar/pylab/internal/protocol"
	"github.com/felixgeelhaar/pylab/internal/session"
	"github.com/felixgeelhaar/pylab/internal/validator"
)

// Version is reported by /v1/status
const Version = "0.1.0"

// Catalog is the read side of the mission registry
type Catalog interface {
	Get(id string) (*domain.Mission, error)
	List() []*domain.Mission
	ByModule(module int) []*domain.Mission
	Modules() []domain.ModuleInfo
	Stats() mission.RegistryStats
}

// Server represents the pylab daemon HTTP server
type Server struct {
	server  *http.Server
	router  chi.Router
	started time.Time

	catalog   Catalog
	progress  progress.ProgressService
	sessions  session.SessionService
	extractor *protocol.Extractor
	validator *validator.Validator
	runner    string
	onClose   func() error
	logger    *slog.Logger
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Addr     string
	Catalog  Catalog
	Progress progress.ProgressService
	Sessions session.SessionService
	// Runner names the executor backend in /v1/status
	Runner string
	// OnShutdown runs after the HTTP server stops
	OnShutdown func() error
	Logger     *slog.Logger
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "daemon")

	s := &Server{
		started:   time.Now(),
		catalog:   cfg.Catalog,
		progress:  cfg.Progress,
		sessions:  cfg.Sessions,
		extractor: protocol.NewExtractor(logger),
		validator: validator.NewValidator(),
		runner:    cfg.Runner,
		onClose:   cfg.OnShutdown,
		logger:    logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(correlationIDMiddleware)
	r.Use(loggingMiddleware)

	// Health & status
	r.Get("/v1/health", s.handleHealth)
	r.Get("/v1/status", s.handleStatus)

	// Missions
	r.Get("/v1/missions", s.handleListMissions)
	r.Get("/v1/missions/{id}", s.handleGetMission)
	r.Get("/v1/modules", s.handleListModules)
	r.Post("/v1/validate", s.handleValidate)

	// Progress
	r.Get("/v1/progress", s.handleProgressOverview)
	r.Delete("/v1/progress", s.handleResetProgress)
	r.Get("/v1/progress/{missionID}", s.handleMissionProgress)
	r.Get("/v1/modules/{module}/progress", s.handleModuleProgress)

	// Sessions
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/code", s.handleUpdateCode)
			r.Post("/runs", s.handleCreateRun)
			r.Post("/submissions", s.handleSubmit)
			r.Post("/hint", s.handleHint)
			r.Post("/reset", s.handleReset)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.jsonError(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	s.router = r
}

// Handler returns the HTTP handler with the middleware chain applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting pylab daemon",
		"addr", s.server.Addr,
		"runner", s.runner,
		"missions", s.catalog.Stats().MissionCount,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)

	if s.onClose != nil {
		if cerr := s.onClose(); cerr != nil {
			s.logger.Warn("failed to release resources", "error", cerr)
		}
	}

	return err
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// maxBodyBytes bounds request bodies; captured output is the largest
const maxBodyBytes = 4 << 20
