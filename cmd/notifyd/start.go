package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/notifyd/internal/api"
	"github.com/mattjoyce/notifyd/internal/bus"
	"github.com/mattjoyce/notifyd/internal/config"
	"github.com/mattjoyce/notifyd/internal/delivery"
	"github.com/mattjoyce/notifyd/internal/events"
	"github.com/mattjoyce/notifyd/internal/lock"
	"github.com/mattjoyce/notifyd/internal/log"
	"github.com/mattjoyce/notifyd/internal/metrics"
	"github.com/mattjoyce/notifyd/internal/notification"
	"github.com/mattjoyce/notifyd/internal/pipeline"
	"github.com/mattjoyce/notifyd/internal/plugin"
	"github.com/mattjoyce/notifyd/internal/queue"
	"github.com/mattjoyce/notifyd/internal/storage"
	"github.com/mattjoyce/notifyd/internal/telemetry"
	"github.com/mattjoyce/notifyd/internal/webhook"
)

func newStartCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the notification service in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runStart(ctx, cfg)
		},
	}
}

func runStart(ctx context.Context, cfg *config.Config) error {
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("notifyd starting", "version", version, "config", cfg.SourcePath)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Service.Name, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	pidLock, err := lock.Acquire(lock.PathFor(cfg.State.Path))
	if err != nil {
		return err
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	schema, err := storage.SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("database opened", "path", cfg.State.Path, "schema_version", schema)

	registry, err := plugin.Discover(cfg.PluginsDir, pluginLogger(log.WithComponent("plugin")))
	if err != nil {
		return fmt.Errorf("plugin discovery: %w", err)
	}
	logger.Info("plugin discovery complete", "count", registry.Len())

	policy, err := notification.ParseLookupPolicy(cfg.Notifications.LookupFailure)
	if err != nil {
		return err
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()

	hub := events.NewHub(256)
	m := metrics.New()
	q := queue.New(db)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	var (
		poster notification.Poster
		depth  api.DepthFunc
	)
	switch cfg.Delivery.Backend {
	case config.BackendMemory:
		pool := delivery.NewMemory(transport, delivery.MemoryConfig{
			Workers: cfg.Delivery.Workers,
			Buffer:  cfg.Delivery.Buffer,
		}, hub, m, log.WithComponent("delivery"))
		pool.Start(ctx)
		defer pool.Stop()
		poster = pool
		depth = func(context.Context) (int, error) { return pool.Pending(), nil }
	default:
		poster = delivery.NewOutbox(q, delivery.OutboxConfig{
			MaxAttempts:  cfg.Delivery.MaxAttempts,
			DedupeWindow: cfg.Delivery.DedupeWindow,
		})
		relay := delivery.NewRelay(q, transport, delivery.RelayConfig{
			PollInterval: cfg.Delivery.PollInterval,
			BackoffBase:  cfg.Delivery.BackoffBase,
			MaxBackoff:   cfg.Delivery.MaxBackoff,
		}, hub, m, log.WithComponent("relay"))
		wg.Go(func() {
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("relay: %w", err)
			}
		})
		depth = q.Depth
	}
	logger.Info("delivery ready", "backend", cfg.Delivery.Backend, "transport", transport.Name())

	causes := pipeline.NewStore(db)
	groups := newGroupIndex(cfg)
	logger.Info("pipeline groups loaded", "groups", groups.Groups())
	svc := notification.NewService(registry, poster, causes, groups,
		notification.WithLookupPolicy(policy),
		notification.WithDelay(cfg.Notifications.Delay),
		notification.WithEvents(hub),
		notification.WithMetrics(m),
		notification.WithLogger(log.WithComponent("notification")),
	)

	if cfg.API.Enabled {
		server := api.New(api.Config{
			Listen:      cfg.API.Listen,
			APIKey:      cfg.API.APIKey,
			CORSOrigins: cfg.API.CORSOrigins,
		}, api.Deps{
			Notifier: svc,
			Registry: registry,
			Causes:   causes,
			Depth:    depth,
			Events:   hub,
			Metrics:  m,
		}, log.WithComponent("api"))
		wg.Go(func() {
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		})
	}

	if len(cfg.Webhooks.Endpoints) > 0 {
		whCfg, err := webhook.FromConfig(cfg.Webhooks)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wh := webhook.New(whCfg, svc, log.WithComponent("webhook"))
		wg.Go(func() {
			if err := wh.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("webhook: %w", err)
			}
		})
	}
	if !cfg.API.Enabled && len(cfg.Webhooks.Endpoints) == 0 {
		logger.Warn("API and webhooks disabled; nothing can post notifications to this instance")
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("component failed", "error", runErr)
	}
	cancel()
	wg.Wait()
	return runErr
}

// newTransport builds the configured delivery transport.
func newTransport(cfg *config.Config) (delivery.Transport, error) {
	d := cfg.Delivery
	switch d.Transport {
	case config.TransportNATS:
		t, err := bus.DialNATS(bus.NATSConfig{
			URL:           d.NATS.URL,
			SubjectPrefix: d.NATS.SubjectPrefix,
			Stream:        d.NATS.Stream,
		}, nats.Name(cfg.Service.Name))
		if err != nil {
			return nil, fmt.Errorf("nats transport: %w", err)
		}
		return t, nil
	case config.TransportKafka:
		t, err := bus.NewKafka(bus.KafkaConfig{Brokers: d.Kafka.Brokers, Topic: d.Kafka.Topic})
		if err != nil {
			return nil, fmt.Errorf("kafka transport: %w", err)
		}
		return t, nil
	default:
		return delivery.NewLogTransport(log.WithComponent("transport")), nil
	}
}

func newGroupIndex(cfg *config.Config) *pipeline.GroupIndex {
	groups := make([]pipeline.Group, 0, len(cfg.PipelineGroups))
	for _, g := range cfg.PipelineGroups {
		groups = append(groups, pipeline.Group{Name: g.Name, Pipelines: g.Pipelines})
	}
	return pipeline.NewGroupIndex(groups...)
}

// pluginLogger adapts slog to the discovery callback.
func pluginLogger(logger *slog.Logger) func(level, msg string, args ...any) {
	return func(level, msg string, args ...any) {
		switch level {
		case "debug":
			logger.Debug(msg, args...)
		case "warn":
			logger.Warn(msg, args...)
		case "error":
			logger.Error(msg, args...)
		default:
			logger.Info(msg, args...)
		}
	}
}
