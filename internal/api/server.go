package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mattjoyce/notifyd/internal/domain"
	"github.com/mattjoyce/notifyd/internal/events"
	"github.com/mattjoyce/notifyd/internal/metrics"
	"github.com/mattjoyce/notifyd/internal/plugin"
)

// Notifier is the dispatcher entry point.
type Notifier interface {
	NotifyAgentStatus(ctx context.Context, agent domain.Agent) error
	NotifyStageStatus(ctx context.Context, stage domain.Stage) error
}

// PluginRegistry exposes the loaded plugins.
type PluginRegistry interface {
	All() []*plugin.Plugin
	PluginsInterestedIn(kind string) plugin.IDSet
}

// BuildCauseRecorder stores the build cause of a pipeline run so later stage
// notifications can carry it.
type BuildCauseRecorder interface {
	Record(ctx context.Context, pipelineName string, counter int, cause domain.BuildCause) error
}

// DepthFunc reports how many messages are waiting for delivery.
type DepthFunc func(ctx context.Context) (int, error)

// Config holds API server configuration
type Config struct {
	Listen      string
	APIKey      string
	CORSOrigins []string
}

// Deps are the components the API serves. Only Notifier and Registry are
// required.
type Deps struct {
	Notifier Notifier
	Registry PluginRegistry
	Causes   BuildCauseRecorder
	Depth    DepthFunc
	Events   *events.Hub
	Metrics  *metrics.Metrics
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.NewHub(256)
	}
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.setupRoutes(), "notifyd.api")
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /events streams for as long as the client stays.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	if len(s.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
			MaxAge:         int((10 * time.Minute).Seconds()),
		}))
	}

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/notify/agent", s.handleNotifyAgent)
		r.Post("/notify/stage", s.handleNotifyStage)
		r.Put("/pipelines/{pipeline}/runs/{counter}/build-cause", s.handleRecordBuildCause)
		r.Get("/plugins", s.handleListPlugins)
		r.Get("/events", s.handleEvents)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
