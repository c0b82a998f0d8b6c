package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Token metrics
	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_tokens_issued_total",
			Help: "Total number of session tokens issued",
		},
	)

	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_token_verifications_total",
			Help: "Total number of token verifications by outcome",
		},
		[]string{"result"},
	)

	Logouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_logouts_total",
			Help: "Total number of logout requests by outcome (revoked or ignored)",
		},
		[]string{"outcome"},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_rate_limit_hits_total",
			Help: "Total number of requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	// Asset lifecycle metrics
	AssetOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_asset_operations_total",
			Help: "Total number of asset lifecycle operations",
		},
		[]string{"operation", "status"},
	)

	BlobBytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_blob_bytes_stored_total",
			Help: "Total bytes of video content accepted",
		},
	)

	CompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_publish_compensations_total",
			Help: "Total number of promoted blobs removed after a failed metadata write",
		},
		[]string{"status"},
	)

	// Audit metrics
	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_audit_events_total",
			Help: "Total number of audit events recorded",
		},
		[]string{"kind", "status"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidstream_catalog_events_published_total",
			Help: "Total number of events forwarded to the message bus",
		},
		[]string{"subject", "status"},
	)

	// Revocation store
	RevokedTokensTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidstream_catalog_revoked_tokens",
			Help: "Number of revoked tokens held by the in-process store",
		},
	)

	// HTTP metrics
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidstream_catalog_http_in_flight_requests",
			Help: "In-flight HTTP requests",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidstream_catalog_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Status labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Logout outcome labels.
const (
	LogoutRevoked = "revoked"
	LogoutIgnored = "ignored"
)

// Outcome maps an error to a status label.
func Outcome(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
