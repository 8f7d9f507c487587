package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mattjoyce/notifyd/internal/domain"
	"github.com/mattjoyce/notifyd/internal/notification"
)

var errBadRequest = errors.New("bad request")

// Server represents the webhook HTTP server.
type Server struct {
	config   Config
	notifier Notifier
	logger   *slog.Logger
	server   *http.Server

	endpoints map[string]*EndpointConfig
}

// New creates a webhook server. Missing header names and body limits get
// their defaults.
func New(config Config, notifier Notifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	endpoints := make(map[string]*EndpointConfig, len(config.Endpoints))
	for i := range config.Endpoints {
		ep := &config.Endpoints[i]
		if ep.MaxBodySize == 0 {
			ep.MaxBodySize = DefaultMaxBodySize
		}
		if ep.SignatureHeader == "" {
			ep.SignatureHeader = DefaultSignatureHeader
		}
		endpoints[ep.Path] = ep
	}

	return &Server{
		config:    config,
		notifier:  notifier,
		logger:    logger,
		endpoints: endpoints,
	}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.setupRoutes(), "notifyd.webhook")
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "endpoints", len(s.endpoints))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	if s.config.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.config.RateLimit, time.Minute))
	}

	for path := range s.endpoints {
		r.Post(path, s.handleWebhook)
	}
	return r
}

// loggingMiddleware never logs bodies.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, endpoint.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > endpoint.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := verifySignature(body, r.Header.Get(endpoint.SignatureHeader), endpoint.Secret); err != nil {
		s.logger.Warn("webhook signature rejected", "path", r.URL.Path, "header", endpoint.SignatureHeader)
		s.respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.dispatch(r.Context(), endpoint.Kind, body); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, errBadRequest):
			status = http.StatusBadRequest
		case notification.IsLookupError(err):
			status = http.StatusBadGateway
		}
		s.logger.Error("webhook dispatch failed", "path", r.URL.Path, "kind", endpoint.Kind, "error", err)
		s.respondError(w, status, err.Error())
		return
	}

	s.respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "posted", Kind: endpoint.Kind.String()})
}

func (s *Server) dispatch(ctx context.Context, kind notification.Kind, body []byte) error {
	switch kind {
	case notification.AgentStatusChanged:
		var agent domain.Agent
		if err := decodeStrict(body, &agent); err != nil {
			return fmt.Errorf("%w: invalid agent JSON: %v", errBadRequest, err)
		}
		if agent.UUID == "" {
			return fmt.Errorf("%w: agent uuid is required", errBadRequest)
		}
		return s.notifier.NotifyAgentStatus(ctx, agent)
	case notification.StageStatusChanged:
		var stage domain.Stage
		if err := decodeStrict(body, &stage); err != nil {
			return fmt.Errorf("%w: invalid stage JSON: %v", errBadRequest, err)
		}
		if stage.Identifier.PipelineName == "" || stage.Identifier.StageName == "" {
			return fmt.Errorf("%w: identifier.pipeline_name and identifier.stage_name are required", errBadRequest)
		}
		return s.notifier.NotifyStageStatus(ctx, stage)
	default:
		return fmt.Errorf("unsupported kind %q", kind)
	}
}

// decodeStrict rejects unknown fields so a misspelled key fails with 400
// instead of dispatching a zero value.
func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
