package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/ability-tracker/internal/classifier"
	"github.com/terra-clan/ability-tracker/internal/config"
	"github.com/terra-clan/ability-tracker/internal/health"
	"github.com/terra-clan/ability-tracker/internal/pipeline"
	"github.com/terra-clan/ability-tracker/internal/tracker"
)

// Server represents the HTTP API server
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	tracker    *tracker.Service
	importer   *pipeline.Importer
	classifier *classifier.Classifier
	health     *health.Registry
}

// NewServer creates a new API server. A nil registry makes /ready check
// storage only.
func NewServer(
	cfg config.ServerConfig,
	svc *tracker.Service,
	importer *pipeline.Importer,
	cls *classifier.Classifier,
	registry *health.Registry,
) *Server {
	if registry == nil {
		registry = health.NewRegistry()
		registry.Register("storage", health.CheckerFunc(svc.Ping))
	}
	s := &Server{
		config:     cfg,
		tracker:    svc,
		importer:   importer,
		classifier: cls,
		health:     registry,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Put("/", s.handleUpdateTask)
				r.Delete("/", s.handleDeleteTask)
				r.Post("/complete", s.handleCompleteTask)
			})
		})

		r.Route("/abilities", func(r chi.Router) {
			r.Get("/", s.handleListAbilities)
			r.Post("/seed", s.handleSeedAbilities)
			r.Put("/{name}/experience", s.handleGrantExperience)
		})

		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", s.handleListRewards)
			r.Post("/seed", s.handleSeedRewards)
			r.Post("/evaluate", s.handleEvaluateRewards)
			r.Put("/{kind}/{id}/unlock", s.handleUnlock)
		})

		r.Route("/classify", func(r chi.Router) {
			r.Post("/", s.handleClassify)
			r.Post("/batch", s.handleClassifyBatch)
			r.Post("/suggestions", s.handleSuggestions)
		})

		r.Post("/import", s.handleImport)

		r.Get("/scores", s.handleScores)
		r.Get("/score-rules", s.handleScoreRules)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
