// Package metrics exposes Prometheus collectors for redprobe.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	exchangesTotal             *prometheus.CounterVec
	exchangeDurationSeconds    *prometheus.HistogramVec
	robotsLookupsTotal         *prometheus.CounterVec
	notesTotal                 *prometheus.CounterVec
	checksTotal                *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		exchangesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redprobe_exchanges_total",
				Help: "HTTP exchanges performed, labeled by probe and outcome.",
			},
			[]string{"probe", "outcome"},
		)

		exchangeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redprobe_exchange_duration_seconds",
				Help:    "Histogram of exchange latencies, labeled by probe.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"probe"},
		)

		robotsLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redprobe_robots_lookups_total",
				Help: "robots.txt lookups, labeled by result (hit, fetched, stored, failed).",
			},
			[]string{"result"},
		)

		notesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redprobe_notes_total",
				Help: "Notes recorded, labeled by level.",
			},
			[]string{"level"},
		)

		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redprobe_checks_total",
				Help: "Resource checks finished, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redprobe_rate_limit_delays_seconds",
				Help:    "Histogram of per-origin rate limit waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveExchange records one finished exchange.
func ObserveExchange(probe, outcome string, duration time.Duration) {
	Init()
	exchangesTotal.WithLabelValues(probe, outcome).Inc()
	exchangeDurationSeconds.WithLabelValues(probe).Observe(duration.Seconds())
}

// ObserveRobotsLookup counts a robots.txt cache lookup.
func ObserveRobotsLookup(result string) {
	Init()
	robotsLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveNote counts a recorded note.
func ObserveNote(level string) {
	Init()
	notesTotal.WithLabelValues(level).Inc()
}

// ObserveCheck counts a finished resource check.
func ObserveCheck(status string) {
	Init()
	checksTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the API request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
