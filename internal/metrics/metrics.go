// Package metrics holds the Prometheus collectors for the storefront.
//
// All recording methods are safe on a nil *Metrics, so components can be
// built without instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics is the set of storefront collectors registered on one registry.
type Metrics struct {
	subscriptionsOpened    prometheus.Counter
	subscriptionsCancelled prometheus.Counter
	subscriptionsFailed    *prometheus.CounterVec
	snapshotsDelivered     prometheus.Counter
	staleDiscarded         *prometheus.CounterVec
	viewsPublished         *prometheus.CounterVec
	mutations              *prometheus.CounterVec
	sessionsActive         prometheus.Gauge
	httpRequests           *prometheus.CounterVec
	httpDuration           *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		subscriptionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "subscriptions_opened_total",
			Help:      "Catalog subscriptions opened by reconcilers.",
		}),
		subscriptionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "subscriptions_cancelled_total",
			Help:      "Catalog subscriptions cancelled by reconcilers.",
		}),
		subscriptionsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "subscriptions_failed_total",
				Help:      "Catalog subscriptions that ended in an error.",
			},
			[]string{"code"},
		),
		snapshotsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "snapshots_applied_total",
			Help:      "Snapshots applied from the active subscription.",
		}),
		staleDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "stale_discarded_total",
				Help:      "Deliveries discarded because their subscription was no longer active.",
			},
			[]string{"kind"},
		),
		viewsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "published_total",
				Help:      "View descriptions published.",
			},
			[]string{"mode", "status"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "commands_total",
				Help:      "Dispatched commands by operation and result.",
			},
			[]string{"op", "result"},
		),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Open client sessions.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		m.subscriptionsOpened,
		m.subscriptionsCancelled,
		m.subscriptionsFailed,
		m.snapshotsDelivered,
		m.staleDiscarded,
		m.viewsPublished,
		m.mutations,
		m.sessionsActive,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptionsOpened.Inc()
}

func (m *Metrics) SubscriptionCancelled() {
	if m == nil {
		return
	}
	m.subscriptionsCancelled.Inc()
}

func (m *Metrics) SubscriptionFailed(code string) {
	if m == nil {
		return
	}
	m.subscriptionsFailed.WithLabelValues(code).Inc()
}

func (m *Metrics) SnapshotApplied() {
	if m == nil {
		return
	}
	m.snapshotsDelivered.Inc()
}

// StaleDiscarded counts a dropped delivery. kind is "snapshot" or "error".
func (m *Metrics) StaleDiscarded(kind string) {
	if m == nil {
		return
	}
	m.staleDiscarded.WithLabelValues(kind).Inc()
}

func (m *Metrics) ViewPublished(mode, status string) {
	if m == nil {
		return
	}
	m.viewsPublished.WithLabelValues(mode, status).Inc()
}

// Command records one dispatched command. A nil err counts as "ok".
func (m *Metrics) Command(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) HTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}
