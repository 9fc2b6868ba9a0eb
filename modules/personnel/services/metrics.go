package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	provisionTotal    *prometheus.CounterVec
	provisionDuration *prometheus.HistogramVec
	pollAttempts      *prometheus.HistogramVec
	saveFailures      *prometheus.CounterVec
	ineligibleTotal   *prometheus.CounterVec

	runTotal     *prometheus.CounterVec
	runUsernames *prometheus.CounterVec

	archiveResourceTotal *prometheus.CounterVec

	unitCacheSize *prometheus.GaugeVec
	deltaCursor   *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		provisionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "personnel_sync",
			Name:      "provision_total",
			Help:      "Total number of personnel folder reconciliations by outcome.",
		}, []string{"org_id", "outcome"}),
		provisionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "personnel_sync",
			Name:      "provision_duration_seconds",
			Help:      "Duration of one personnel folder reconciliation, polling included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"org_id", "outcome"}),
		pollAttempts: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "personnel_sync",
			Name:      "poll_attempts",
			Help:      "Number of status polls per reconciliation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		}, []string{"org_id"}),
		saveFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "personnel_sync",
			Name:      "save_failures_total",
			Help:      "Total number of provisioning record writes that failed.",
		}, []string{"org_id", "reason"}),
		ineligibleTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "personnel_sync",
			Name:      "ineligible_total",
			Help:      "Total number of usernames whose personnel folder was not admissible.",
		}, []string{"org_id", "reason"}),
		runTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "personnel_sync",
			Name:      "run_total",
			Help:      "Total number of organisation runs by kind and result.",
		}, []string{"org_id", "kind", "result"}),
		runUsernames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "personnel_sync",
			Name:      "run_usernames_total",
			Help:      "Total number of usernames scheduled by organisation runs.",
		}, []string{"org_id", "kind"}),
		archiveResourceTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "personnel_sync",
			Name:      "archive_resource_total",
			Help:      "Total number of archive resource rewrites by result.",
		}, []string{"org_id", "result"}),
		unitCacheSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "personnel_sync",
			Name:      "administrative_units",
			Help:      "Number of cached administrative units.",
		}, []string{"org_id"}),
		deltaCursor: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "personnel_sync",
			Name:      "delta_cursor_milliseconds",
			Help:      "Current delta cursor in epoch milliseconds.",
		}, []string{"org_id"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
