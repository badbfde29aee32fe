// Package metrics registers all Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RegistrationsCreated   prometheus.Counter
	RegistrationsSubmitted prometheus.Counter
	Decisions              *prometheus.CounterVec
	NotificationsSent      *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	NotificationsDropped   prometheus.Counter
	StaleUpdateConflicts   prometheus.Counter
	RequestDuration        *prometheus.HistogramVec
}

// New creates all metrics on the default Prometheus registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics on the given registerer. Tests pass a
// fresh registry so parallel constructions do not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "admission_registrations_created_total",
			Help: "Total number of registrations created",
		}),
		RegistrationsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "admission_registrations_submitted_total",
			Help: "Total number of registrations submitted for review",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Total number of admin decisions applied, by target status",
		}, []string{"status"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_notifications_sent_total",
			Help: "Total notification deliveries attempted successfully, by channel",
		}, []string{"channel"}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_notifications_failed_total",
			Help: "Total notification deliveries that failed, by channel",
		}, []string{"channel"}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "admission_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
		StaleUpdateConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "admission_stale_update_conflicts_total",
			Help: "Optimistic-lock conflicts detected on registration updates",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admission_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
