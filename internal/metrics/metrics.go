package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courier_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "courier_connections_active",
			Help: "Currently registered live connections",
		},
	)

	AuthRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_auth_rejected_total",
			Help: "Handshakes rejected at the auth gate",
		},
		[]string{"reason"},
	)

	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courier_messages_relayed_total",
			Help: "Messages persisted by the relay",
		},
	)

	FanoutDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courier_fanout_deliveries_total",
			Help: "Message pushes delivered to live connections",
		},
	)

	DroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_dropped_events_total",
			Help: "Inbound events dropped before persistence",
		},
		[]string{"reason"},
	)

	AttachmentsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courier_attachments_stored_total",
			Help: "Attachments written to content storage",
		},
	)

	AttachmentWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courier_attachment_write_failures_total",
			Help: "Attachment writes that failed",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
