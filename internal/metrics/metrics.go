package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sign-in metrics
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveline_login_attempts_total",
			Help: "Total sign-in attempts by outcome",
		},
		[]string{"outcome"}, // success, failure, rate_limited
	)

	// CSRF metrics
	CSRFFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveline_csrf_failures_total",
			Help: "Total CSRF validation failures by reason",
		},
		[]string{"reason"},
	)

	// Booking cache metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveline_booking_cache_hits_total",
			Help: "Booking query cache hits by scope",
		},
		[]string{"scope"}, // list, stats, booked_dates
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driveline_booking_cache_misses_total",
			Help: "Booking query cache misses by scope",
		},
		[]string{"scope"},
	)

	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driveline_booking_cache_invalidations_total",
			Help: "Full cache clears triggered by booking mutations",
		},
	)

	// Booking metrics
	BookingConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driveline_booking_conflicts_total",
			Help: "Booking creations rejected for overlapping dates",
		},
	)
)
