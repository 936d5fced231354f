package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|mfa_required).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barberhub_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// MFAChallenges counts issued MFA challenges.
	MFAChallenges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barberhub_mfa_challenges_total",
			Help: "Total number of MFA challenges issued",
		},
	)

	// MFAVerifications counts MFA verification attempts by result (success|failure).
	MFAVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barberhub_mfa_verifications_total",
			Help: "Total number of MFA verification attempts",
		},
		[]string{"result"},
	)

	// DatabaseRetries counts transient statement-cache failures that triggered a retry.
	DatabaseRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barberhub_database_retries_total",
			Help: "Total number of retried transient database failures",
		},
	)

	// DatabaseReconnects counts reconnects performed by the resilient access layer.
	DatabaseReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barberhub_database_reconnects_total",
			Help: "Total number of database reconnects",
		},
	)

	// APILatency observes HTTP request latency by method, route, and status.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barberhub_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Registrations counts completed registrations by outcome (success|conflict|failure).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barberhub_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)
)
