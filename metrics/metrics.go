// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pong_arena"

// Reasons a tournament room reaches the completed state.
const (
	CompletedChampion = "champion"
	CompletedEnded    = "ended"
	CompletedStale    = "stale"
)

type Metrics struct {
	HTTPLatency  *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec

	RoomsCreated     prometheus.Counter
	RoomsStarted     prometheus.Counter
	RoomsCompleted   *prometheus.CounterVec
	MatchesScheduled prometheus.Counter
	ResultsRecorded  *prometheus.CounterVec
	Invitations      *prometheus.CounterVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route",
		}, []string{"route", "method", "code"}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tournament",
			Name:      "rooms_created_total",
			Help:      "Tournament rooms created",
		}),
		RoomsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tournament",
			Name:      "rooms_started_total",
			Help:      "Tournament rooms moved to ongoing",
		}),
		RoomsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tournament",
			Name:      "rooms_completed_total",
			Help:      "Tournament rooms completed, by reason",
		}, []string{"reason"}),
		MatchesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tournament",
			Name:      "matches_scheduled_total",
			Help:      "Tournament matches generated by round generation",
		}),
		ResultsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contest",
			Name:      "results_recorded_total",
			Help:      "Contest results applied to player records, by contest kind",
		}, []string{"kind"}),
		Invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invitation",
			Name:      "events_total",
			Help:      "Invitation lifecycle events",
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.HTTPLatency,
		m.HTTPRequests,
		m.RoomsCreated,
		m.RoomsStarted,
		m.RoomsCompleted,
		m.MatchesScheduled,
		m.ResultsRecorded,
		m.Invitations,
	)
	return m
}
