// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Vendor HTTP Metrics
	VendorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_request_duration_seconds",
			Help:    "Duration of outbound vendor HTTP requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"host", "method"},
	)

	VendorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_requests_total",
			Help: "Total number of outbound vendor HTTP requests by status",
		},
		[]string{"host", "method", "status"}, // status: code, "timeout", "network"
	)

	VendorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_request_retries_total",
			Help: "Total number of vendor request retries",
		},
		[]string{"host"},
	)

	VendorRateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_rate_limit_waits_total",
			Help: "Total number of times an outbound request waited on the rate limiter",
		},
		[]string{"host"},
	)

	// OAuth Token Metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_token_refreshes_total",
			Help: "Total number of OAuth token refreshes",
		},
		[]string{"kind", "outcome"}, // kind: client, patron; outcome: success, failure
	)

	TokenCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_token_cache_hits_total",
			Help: "Total number of OAuth token cache hits",
		},
		[]string{"kind"},
	)

	// Circulation Metrics
	CirculationOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_operations_total",
			Help: "Total number of circulation operations by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: success or error kind
	)

	CirculationOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "circulation_operation_duration_seconds",
			Help:    "Duration of circulation operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Bookshelf Sync Metrics
	BookshelfSyncChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_sync_changes_total",
			Help: "Total number of local loan/hold rows changed by bookshelf sync",
		},
		[]string{"kind", "action"}, // kind: loan, hold; action: created, updated, deleted
	)

	BookshelfSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_syncs_total",
			Help: "Total number of bookshelf sync passes",
		},
		[]string{"outcome"},
	)

	// Availability Metrics
	AvailabilityRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_refreshes_total",
			Help: "Total number of license pool availability refreshes",
		},
		[]string{"outcome"}, // updated, not_found, skipped, error
	)

	MonitorLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circulation_monitor_last_success_timestamp",
			Help: "Unix timestamp of the last successful circulation monitor run",
		},
	)

	MonitorTitlesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_monitor_titles_processed_total",
			Help: "Total number of changed titles refreshed by the circulation monitor",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// Analytics Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_published_total",
			Help: "Total number of circulation analytics events published",
		},
		[]string{"type", "outcome"},
	)
)

// RecordVendorRequest records one outbound vendor request. status is the
// HTTP status code, or 0 with a non-empty failure ("timeout", "network").
func RecordVendorRequest(host, method string, status int, failure string, duration time.Duration) {
	VendorRequestDuration.WithLabelValues(host, method).Observe(duration.Seconds())
	label := failure
	if label == "" {
		label = strconv.Itoa(status)
	}
	VendorRequestsTotal.WithLabelValues(host, method, label).Inc()
}

// RecordVendorRetry records a retry of a vendor request
func RecordVendorRetry(host string) {
	VendorRetries.WithLabelValues(host).Inc()
}

// RecordTokenRefresh records an OAuth token refresh attempt
func RecordTokenRefresh(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	TokenRefreshes.WithLabelValues(kind, outcome).Inc()
}

// RecordCirculation records a circulation operation and its outcome label.
func RecordCirculation(operation, outcome string, duration time.Duration) {
	CirculationOperations.WithLabelValues(operation, outcome).Inc()
	CirculationOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSyncChanges records the row changes of one bookshelf sync pass
func RecordSyncChanges(kind string, created, updated, deleted int) {
	BookshelfSyncChanges.WithLabelValues(kind, "created").Add(float64(created))
	BookshelfSyncChanges.WithLabelValues(kind, "updated").Add(float64(updated))
	BookshelfSyncChanges.WithLabelValues(kind, "deleted").Add(float64(deleted))
}

// RecordSync records the outcome of a bookshelf sync pass
func RecordSync(err error) {
	if err != nil {
		BookshelfSyncs.WithLabelValues("error").Inc()
		return
	}
	BookshelfSyncs.WithLabelValues("success").Inc()
}

// RecordAvailabilityRefresh records an availability refresh outcome
func RecordAvailabilityRefresh(outcome string) {
	AvailabilityRefreshes.WithLabelValues(outcome).Inc()
}

// RecordMonitorRun records a completed circulation monitor pass
func RecordMonitorRun(titles int) {
	MonitorTitlesProcessed.Add(float64(titles))
	MonitorLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEventPublished records an analytics event publish attempt
func RecordEventPublished(eventType string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	EventsPublished.WithLabelValues(eventType, outcome).Inc()
}
