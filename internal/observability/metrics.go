package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "skillbook", Name: "proximity_searches_total", Help: "Total proximity searches issued"})
	StaleResponsesDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "skillbook", Name: "proximity_stale_responses_dropped_total", Help: "Responses discarded because a newer query superseded them"})
	PositionResolutions   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "skillbook", Name: "position_resolutions_total", Help: "Position resolutions by source tier"}, []string{"source"})

	BookingsSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "skillbook", Name: "bookings_submitted_total", Help: "Booking submissions attempted"})
	BookingsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Namespace: "skillbook", Name: "bookings_succeeded_total", Help: "Booking submissions acknowledged by the booking service"})
	BookingsFailed    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "skillbook", Name: "bookings_failed_total", Help: "Booking submissions rejected or failed in transit"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "skillbook", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skillbook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
