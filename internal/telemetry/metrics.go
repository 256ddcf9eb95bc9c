// Package telemetry provides application-level observability for the portal.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<PORTAL_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped by a Prometheus server every 15–60 seconds.
// It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Login outcome and lockout counters
//   - Embed token issuance counters
//   - Password-reset email failure counter
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/pages/slug/:slug)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.  Login metrics are labelled by outcome, never by
// email address, for the same reason (and to keep identifiers out of the TSDB).
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template, NOT the raw URL.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and
// exponential-ish buckets from 5 ms to 30 s.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Authentication metrics.
//
// LoginAttemptsTotal is a CounterVec with the single label {outcome}:
//   - "success"     — credentials accepted, session issued
//   - "failure"     — wrong credentials, unknown email, or deactivated account
//   - "locked_out"  — rejected by the failed-attempt guard before verification
//
// Example PromQL queries:
//   - Failure ratio:  sum(rate(login_attempts_total{outcome="failure"}[15m])) / sum(rate(login_attempts_total[15m]))
//   - Lockout alert:  increase(login_attempts_total{outcome="locked_out"}[15m]) > 10
//
// SessionsActive is a Gauge updated by the session sweep job with the number of
// unexpired session rows.  It lags reality by up to one sweep interval.
var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts, by outcome (success, failure, locked_out).",
		},
		[]string{"outcome"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of unexpired sessions as of the last sweep.",
		},
	)
)

// EmbedTokensIssuedTotal is a CounterVec with the single label {result}:
//   - "issued"           — embed token returned to a client
//   - "not_configured"   — request rejected because no Power BI credentials exist
//   - "upstream_error"   — identity grant or Power BI API call failed
//   - "report_not_found" — Power BI returned 404 for the report
//
// Example PromQL queries:
//   - Upstream error rate:  rate(embed_tokens_issued_total{result="upstream_error"}[15m])
var EmbedTokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "embed_tokens_issued_total",
		Help: "Total number of embed token requests, by result.",
	},
	[]string{"result"},
)

// ResetEmailFailuresTotal is a plain Counter (no labels) incremented whenever a
// password-reset or invitation email fails to send.  The HTTP response to the
// requester stays a generic success, so this counter is the ONLY operational
// signal for SMTP delivery problems on the reset path — alert on any increase.
//
// Example PromQL queries:
//   - Alert expression:  increase(reset_email_failures_total[15m]) > 0
var ResetEmailFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "reset_email_failures_total",
		Help: "Total number of password-reset or invitation emails that failed to send.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
