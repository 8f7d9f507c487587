package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/notifyd/internal/events"
	"github.com/mattjoyce/notifyd/internal/metrics"
	"github.com/mattjoyce/notifyd/internal/notification"
	"github.com/mattjoyce/notifyd/internal/protocol"
)

var (
	ErrQueueFull = errors.New("delivery buffer full")
	ErrClosed    = errors.New("delivery pool closed")
)

// MemoryConfig tunes the in-process pool.
type MemoryConfig struct {
	Workers int
	Buffer  int
	// PublishTimeout bounds a single Transport.Publish call.
	PublishTimeout time.Duration
}

// Memory is a notification.Poster that delivers through a worker pool
// without persistence. Messages still buffered at Stop are dropped.
type Memory struct {
	transport Transport
	cfg       MemoryConfig
	hub       *events.Hub
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.RWMutex
	closed  bool
	jobs    chan *protocol.Notification
	timers  map[*time.Timer]struct{}
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

func NewMemory(t Transport, cfg MemoryConfig, hub *events.Hub, m *metrics.Metrics, logger *slog.Logger) *Memory {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		transport: t,
		cfg:       cfg,
		hub:       hub,
		metrics:   m,
		logger:    logger.With("component", "delivery.memory", "transport", t.Name()),
		jobs:      make(chan *protocol.Notification, cfg.Buffer),
		timers:    make(map[*time.Timer]struct{}),
	}
}

// Start launches the workers. They run until Stop or ctx is cancelled.
func (m *Memory) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
}

// Post buffers msg, after delay if positive. It never blocks on the
// transport.
func (m *Memory) Post(_ context.Context, msg notification.Message, delay time.Duration) error {
	env, err := protocol.NewNotification(msg, time.Now())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if delay <= 0 {
		return m.enqueueLocked(env)
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.timers, timer)
		if m.closed {
			return
		}
		if err := m.enqueueLocked(env); err != nil {
			m.logger.Error("delayed notification dropped", "message_id", env.MessageID, "plugin", env.PluginID, "error", err)
			m.metrics.Delivery(metrics.OutcomeDropped)
		}
	})
	m.timers[timer] = struct{}{}
	return nil
}

func (m *Memory) enqueueLocked(env *protocol.Notification) error {
	select {
	case m.jobs <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending is the number of buffered or delayed messages.
func (m *Memory) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs) + len(m.timers)
}

// Stop cancels pending timers, stops accepting posts and waits for workers to
// finish their current message.
func (m *Memory) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for t := range m.timers {
		t.Stop()
	}
	clear(m.timers)
	close(m.jobs)
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Memory) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-m.jobs:
			if !ok {
				return
			}
			m.publish(ctx, env)
		}
	}
}

func (m *Memory) publish(ctx context.Context, env *protocol.Notification) {
	logger := m.logger.With("message_id", env.MessageID, "plugin", env.PluginID)
	pctx, cancel := context.WithTimeout(ctx, m.cfg.PublishTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("transport panicked")
				logger.Error("transport panicked", "panic", r)
			}
		}()
		return m.transport.Publish(pctx, env)
	}()

	if err != nil {
		logger.Error("delivery failed", "error", err)
		m.metrics.Delivery(metrics.OutcomeDead)
		m.hub.Publish(events.DeliveryDead, map[string]any{
			"message_id": env.MessageID,
			"plugin":     env.PluginID,
			"error":      err.Error(),
		})
		return
	}
	m.metrics.Delivery(metrics.OutcomeSucceeded)
	m.hub.Publish(events.DeliverySucceeded, map[string]any{
		"message_id":   env.MessageID,
		"plugin":       env.PluginID,
		"request_name": env.RequestName,
	})
}
