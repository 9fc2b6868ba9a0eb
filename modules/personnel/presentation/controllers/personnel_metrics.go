package controllers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type apiMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var apiMetricsSingleton = sync.OnceValue(func() *apiMetrics {
	return &apiMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "personnel_sync",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of personnel API requests broken down by endpoint and result.",
		}, []string{"endpoint", "result"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "personnel_sync",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency distribution for personnel API requests.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"endpoint", "result"}),
	}
})

type statusRecordingResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecordingResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecordingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecordingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument counts requests of endpoint by status class. endpoint is a stable route name,
// never the request path.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	m := apiMetricsSingleton()
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecordingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		result := strconv.Itoa(rec.status/100) + "xx"
		m.requests.WithLabelValues(endpoint, result).Inc()
		m.latency.WithLabelValues(endpoint, result).Observe(time.Since(start).Seconds())
	}
}
