package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/notifyd/internal/domain"
	"github.com/mattjoyce/notifyd/internal/events"
	"github.com/mattjoyce/notifyd/internal/metrics"
)

const tracerName = "github.com/mattjoyce/notifyd/internal/notification"

// Service fans domain status changes out to subscribed plugins.
type Service struct {
	registry Registry
	poster   Poster
	causes   BuildCauseFinder
	groups   GroupFinder

	policy  LookupPolicy
	delay   time.Duration
	hub     *events.Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Service)

// WithLookupPolicy sets how stage lookup faults are handled. Default LookupAbort.
func WithLookupPolicy(p LookupPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithDelay sets the delay hint passed with every post. Negative values are
// treated as zero.
func WithDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = max(d, 0) }
}

func WithEvents(hub *events.Hub) Option {
	return func(s *Service) { s.hub = hub }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func NewService(registry Registry, poster Poster, causes BuildCauseFinder, groups GroupFinder, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		poster:   poster,
		causes:   causes,
		groups:   groups,
		policy:   LookupAbort,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "notification")
	return s
}

// NotifyAgentStatus posts the agent's status to every plugin subscribed to
// agent-status-changed.
func (s *Service) NotifyAgentStatus(ctx context.Context, agent domain.Agent) error {
	ctx, span := s.startSpan(ctx, AgentStatusChanged)
	defer span.End()

	err := s.fanOut(ctx, span, BuildAgentData(agent))
	return s.finish(span, AgentStatusChanged, err)
}

// NotifyStageStatus resolves the stage's build cause and pipeline group and
// posts the result to every plugin subscribed to stage-status-changed.
// Under LookupAbort a lookup fault returns an error before anything is posted.
func (s *Service) NotifyStageStatus(ctx context.Context, stage domain.Stage) error {
	ctx, span := s.startSpan(ctx, StageStatusChanged)
	defer span.End()

	data, omitted, err := BuildStageData(ctx, stage, s.causes, s.groups, s.policy)
	if err != nil {
		return s.finish(span, StageStatusChanged, fmt.Errorf("build %s payload: %w", StageStatusChanged, err))
	}
	for _, fault := range omitted {
		s.logger.Warn("lookup failed, field omitted",
			"stage", stage.Identifier.String(),
			"error", fault,
		)
	}

	err = s.fanOut(ctx, span, data)
	return s.finish(span, StageStatusChanged, err)
}

// fanOut posts one message per subscriber in registry order. A failed post
// does not stop the remaining ones; all failures are joined.
func (s *Service) fanOut(ctx context.Context, span trace.Span, data Payload) error {
	kind := data.Kind()
	targets := s.registry.PluginsInterestedIn(string(kind))
	span.SetAttributes(attribute.Int("notification.subscribers", targets.Len()))

	if targets.Len() == 0 {
		s.logger.Debug("no subscribers", "kind", kind)
		return nil
	}

	var errs []error
	for pluginID := range targets.All() {
		msg := NewMessage(pluginID, data)
		if err := s.poster.Post(ctx, msg, s.delay); err != nil {
			s.logger.Error("post failed", "plugin", pluginID, "kind", kind, "error", err)
			errs = append(errs, fmt.Errorf("post %s to %s: %w", kind, pluginID, err))
			continue
		}
		s.metrics.MessagePosted(string(kind))
		s.hub.Publish(events.NotificationPosted, map[string]any{
			"plugin":  pluginID,
			"kind":    kind,
			"summary": Summary(data),
		})
		s.logger.Debug("posted", "plugin", pluginID, "kind", kind)
	}
	return errors.Join(errs...)
}

func (s *Service) startSpan(ctx context.Context, kind Kind) (context.Context, trace.Span) {
	s.metrics.NotificationReceived(string(kind))
	return s.tracer.Start(ctx, "notify "+string(kind),
		trace.WithAttributes(attribute.String("notification.kind", string(kind))),
	)
}

func (s *Service) finish(span trace.Span, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.DispatchFailed(string(kind))
	s.hub.Publish(events.NotificationFailed, map[string]any{
		"kind":  kind,
		"error": err.Error(),
	})
	return err
}
