// Package metrics exposes Prometheus counters for shares, propagation and
// HTTP traffic. A nil *Metrics is a valid no-op.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/events"
	"github.com/MikhailRaia/files-sharing/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	// Labels: type=[user, group, link, remote]
	SharesCreated *prometheus.CounterVec

	SharesDeleted prometheus.Counter

	// SharesPropagated counts shares marked as changed for a recipient.
	SharesPropagated prometheus.Counter

	// Labels: action=[add, accept, decline, remove]
	ExternalShareActions *prometheus.CounterVec

	// Labels: method, status
	HTTPRequests *prometheus.CounterVec

	// Labels: method
	HTTPDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		SharesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filessharing_shares_created_total",
				Help: "Total shares created by share type",
			},
			[]string{"type"},
		),
		SharesDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "filessharing_shares_deleted_total",
				Help: "Total shares deleted",
			},
		),
		SharesPropagated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "filessharing_shares_propagated_total",
				Help: "Total shares propagated to recipients",
			},
		),
		ExternalShareActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filessharing_external_share_actions_total",
				Help: "Total external share operations by action",
			},
			[]string{"action"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filessharing_http_requests_total",
				Help: "Total HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filessharing_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SharesCreated,
		m.SharesDeleted,
		m.SharesPropagated,
		m.ExternalShareActions,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

func (m *Metrics) ShareCreated(shareType string) {
	if m == nil {
		return
	}
	m.SharesCreated.WithLabelValues(shareType).Inc()
}

func (m *Metrics) ShareDeleted() {
	if m == nil {
		return
	}
	m.SharesDeleted.Inc()
}

func (m *Metrics) ExternalShareAction(action string) {
	if m == nil {
		return
	}
	m.ExternalShareActions.WithLabelValues(action).Inc()
}

// ObservePropagation is an events.Handler for events.PropagationChanged.
func (m *Metrics) ObservePropagation(ctx context.Context, payload any) error {
	if m == nil {
		return nil
	}
	if p, ok := payload.(events.PropagationPayload); ok {
		m.SharesPropagated.Add(float64(len(p.ShareIDs)))
	}
	return nil
}

// Middleware records request counts and durations.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := logger.NewResponseWriter(w)

		next.ServeHTTP(rw, r)

		m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rw.Status())).Inc()
		m.HTTPDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
