// Package metrics exposes Prometheus collectors for the HTTP layer and the
// protection sweep.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	leadTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_status_transitions_total",
			Help: "Persisted lead status transitions",
		},
		[]string{"from", "to", "trigger"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sweep_runs_total",
			Help: "Protection sweep runs by outcome",
		},
		[]string{"outcome"},
	)

	sweepLeads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sweep_leads_total",
			Help: "Leads handled by the protection sweep, by result",
		},
		[]string{"result"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lead_sweep_duration_seconds",
			Help:    "Duration of protection sweep runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	pseudonymizedLeads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_pseudonymization_total",
			Help: "Expired leads handled by the pseudonymisation pass, by result",
		},
		[]string{"result"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_notifications_total",
			Help: "Owner notifications by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTransition counts a persisted status change.
func RecordTransition(from, to, trigger string) {
	leadTransitions.WithLabelValues(from, to, trigger).Inc()
}

// SweepStats summarises one sweep run.
type SweepStats struct {
	Scanned  int
	Advanced int
	Failed   int
	Duration time.Duration
}

// RecordSweep records a finished sweep run.
func RecordSweep(stats SweepStats, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case stats.Failed > 0:
		outcome = "partial"
	}
	sweepRuns.WithLabelValues(outcome).Inc()
	sweepLeads.WithLabelValues("scanned").Add(float64(stats.Scanned))
	sweepLeads.WithLabelValues("advanced").Add(float64(stats.Advanced))
	sweepLeads.WithLabelValues("failed").Add(float64(stats.Failed))
	sweepDuration.Observe(stats.Duration.Seconds())
}

// RecordSweepSkipped counts a run that did not acquire the sweep lock.
func RecordSweepSkipped() {
	sweepRuns.WithLabelValues("skipped").Inc()
}

// RecordPseudonymization counts one pseudonymisation pass.
func RecordPseudonymization(pseudonymized, failed int) {
	pseudonymizedLeads.WithLabelValues("pseudonymized").Add(float64(pseudonymized))
	pseudonymizedLeads.WithLabelValues("failed").Add(float64(failed))
}

// RecordNotification counts an owner notification attempt.
func RecordNotification(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	notificationsSent.WithLabelValues(kind, outcome).Inc()
}
