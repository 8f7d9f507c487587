// Package metrics exposes notifyd's Prometheus counters. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notifyd"

// Delivery outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetry     = "retry"
	OutcomeDead      = "dead"
	OutcomeDropped   = "dropped"
)

type Metrics struct {
	registry *prometheus.Registry

	notifications    *prometheus.CounterVec
	messagesPosted   *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
}

// New creates the counters on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Domain events received for dispatch, by kind.",
		}, []string{"kind"}),
		messagesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_posted_total",
			Help:      "Addressed messages handed to the delivery queue, by kind.",
		}, []string{"kind"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Dispatch calls that returned an error, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.notifications,
		m.messagesPosted,
		m.dispatchFailures,
		m.deliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) NotificationReceived(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) MessagePosted(kind string) {
	if m == nil {
		return
	}
	m.messagesPosted.WithLabelValues(kind).Inc()
}

func (m *Metrics) DispatchFailed(kind string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
