// Package metrics exposes Prometheus collectors for scans and the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flooorgang/floorline/internal/models"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorline_scans_total",
			Help: "Total number of scans by outcome",
		},
		[]string{"sport", "status"},
	)

	opportunitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorline_opportunities_total",
			Help: "Opportunities flagged across all scans",
		},
		[]string{"sport", "side"},
	)

	skippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorline_entities_skipped_total",
			Help: "Entities skipped during scans, by reason",
		},
		[]string{"sport", "reason"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floorline_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"sport"},
	)

	requestsRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "floorline_odds_requests_remaining",
			Help: "Odds API quota left after the last scan",
		},
		[]string{"sport"},
	)

	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorline_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floorline_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path"},
	)
)

// ObserveScan records a finished scan.
func ObserveScan(run *models.ScanRun, opps []models.Opportunity, elapsed time.Duration) {
	scansTotal.WithLabelValues(run.Sport, "success").Inc()
	scanDuration.WithLabelValues(run.Sport).Observe(elapsed.Seconds())
	for _, o := range opps {
		opportunitiesTotal.WithLabelValues(run.Sport, string(o.Side)).Inc()
	}
	for reason, n := range run.SkipReasons {
		skippedTotal.WithLabelValues(run.Sport, reason).Add(float64(n))
	}
	if run.RequestsRemaining != nil {
		requestsRemaining.WithLabelValues(run.Sport).Set(float64(*run.RequestsRemaining))
	}
}

// ObserveScanFailure records a scan that produced no report.
func ObserveScanFailure(sport string) {
	scansTotal.WithLabelValues(sport, "failure").Inc()
}

// ObserveRequest records one served API request. path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	apiRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
