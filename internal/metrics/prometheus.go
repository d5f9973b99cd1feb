package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 120},
		},
		[]string{"method", "endpoint", "status"},
	)
	importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicine_imports_total",
			Help: "Medicine imports by outcome mode.",
		},
		[]string{"mode"},
	)
	importDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medicine_import_duration_seconds",
			Help:    "Duration of a single url import.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	crawlPagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_pages_fetched_total",
			Help: "Discovery pages fetched by strategy.",
		},
		[]string{"strategy"},
	)
	crawlProducts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_products_total",
			Help: "Crawled product urls by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(importsTotal)
	prometheus.MustRegister(importDuration)
	prometheus.MustRegister(crawlPagesFetched)
	prometheus.MustRegister(crawlProducts)
}

// RecordRequest records one served HTTP request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func RecordImport(mode string, duration time.Duration) {
	importsTotal.WithLabelValues(mode).Inc()
	importDuration.Observe(duration.Seconds())
}

func RecordPageFetched(strategy string) {
	crawlPagesFetched.WithLabelValues(strategy).Inc()
}

// RecordCrawlOutcome takes imported, skipped or failed.
func RecordCrawlOutcome(outcome string) {
	crawlProducts.WithLabelValues(outcome).Inc()
}

func classifyStatus(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler exposes the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
