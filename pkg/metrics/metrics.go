package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Admissions counts admission decisions by source (code|invitation|approval) and outcome.
	Admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupdesk_admissions_total",
			Help: "Total number of admission decisions",
		},
		[]string{"source", "outcome", "reason"},
	)

	// BookingTransitions counts top-level booking status changes.
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupdesk_booking_transitions_total",
			Help: "Total number of group booking status transitions",
		},
		[]string{"to"},
	)

	// InvitationTransitions counts invitation resolutions (accepted|declined|expired|cancelled).
	InvitationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupdesk_invitation_transitions_total",
			Help: "Total number of invitation status transitions",
		},
		[]string{"to"},
	)

	// LockWait measures how long mutators waited for the per-booking lock.
	LockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groupdesk_booking_lock_wait_seconds",
			Help:    "Time spent waiting for the per-booking lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// LockTimeouts counts mutators that gave up waiting for the per-booking lock.
	LockTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupdesk_booking_lock_timeouts_total",
			Help: "Total number of per-booking lock acquisitions that hit their deadline",
		},
	)

	// NotificationsDropped counts events discarded because the dispatch queue was full.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupdesk_notifications_dropped_total",
			Help: "Total number of notification events dropped by the dispatcher",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupdesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestsInFlight tracks HTTP requests currently being served, websocket
	// streams excluded.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupdesk_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// RateLimited counts requests refused by a rate limiter, by route.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupdesk_rate_limited_total",
			Help: "Requests rejected with 429 by the rate limiter",
		},
		[]string{"route"},
	)

	// MaintenanceSweeps counts background sweep runs by job and result.
	MaintenanceSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupdesk_maintenance_sweeps_total",
			Help: "Background sweep runs partitioned by job and result",
		},
		[]string{"job", "result"},
	)

	// MaintenanceAffected counts aggregates changed by background sweeps.
	MaintenanceAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupdesk_maintenance_affected_total",
			Help: "Rows transitioned by background sweeps",
		},
		[]string{"job"},
	)
)
