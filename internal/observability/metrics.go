package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "skate_spots"

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "commands_total", Help: "Commands dispatched against profile state"},
		[]string{"kind", "result"},
	)
	SpotEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "spot_events_total", Help: "Spots added or deleted"},
		[]string{"kind", "op"},
	)
	ProfilesLoaded = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "profiles_loaded", Help: "Profiles held in memory"})
	WSSessions     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ws_sessions", Help: "Open websocket sessions"})

	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total", Help: "Geocoder lookups"},
		[]string{"result"},
	)
	GeocodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_latency_seconds", Help: "Geocoder latency seconds"})

	PublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total", Help: "Spot events that failed to publish"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
