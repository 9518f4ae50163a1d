// Package metrics defines Prometheus metrics for panelsync.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_events_total",
			Help: "Server-pushed events received, by event name",
		},
		[]string{"event"},
	)

	HandlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_handler_errors_total",
			Help: "Event handlers that failed to decode or panicked, by event name",
		},
		[]string{"event"},
	)

	InvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_cache_invalidations_total",
			Help: "Cache entries marked stale, by source",
		},
		[]string{"source"},
	)

	PatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_cache_patches_total",
			Help: "Targeted cache patches applied, by event name",
		},
		[]string{"event"},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "panelsync_cache_entries",
			Help: "Current number of cached query results",
		},
	)

	RefetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_cache_refetch_total",
			Help: "Background refetches, by result",
		},
		[]string{"result"},
	)

	RefetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panelsync_cache_refetch_duration_seconds",
			Help:    "Background refetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SocketConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "panelsync_socket_connected",
			Help: "1 while the realtime socket is connected",
		},
	)

	SocketLifecycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_socket_lifecycle_total",
			Help: "Socket lifecycle signals, by name",
		},
		[]string{"signal"},
	)

	WatchClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "panelsync_watch_clients",
			Help: "Connected cache watch websocket clients",
		},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_alerts_total",
			Help: "Alert sounds played, by sound",
		},
		[]string{"sound"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panelsync_http_request_duration_seconds",
			Help:    "Ops API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_http_requests_total",
			Help: "Total ops API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelsync_http_errors_total",
			Help: "Ops API error responses, by error code",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal, HandlerErrorsTotal,
		InvalidationsTotal, PatchesTotal, CacheEntries,
		RefetchTotal, RefetchDuration,
		SocketConnected, SocketLifecycleTotal, WatchClients,
		AlertsTotal, RequestDuration, RequestsTotal, APIErrorsTotal,
	)
}
