package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_job_runs_total",
			Help: "Notification job runs by result",
		},
		[]string{"status"},
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_job_duration_seconds",
			Help:    "Wall time per notification job run",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	eligibleCoupons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_eligible_coupons_total",
			Help: "Coupons matched by the eligibility scan, per lead-time offset",
		},
		[]string{"offset_days"},
	)

	notificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_notifications_sent_total",
			Help: "Notification intents with at least one successful delivery",
		},
	)

	notificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_notifications_failed_total",
			Help: "Notification intents where every endpoint failed",
		},
	)

	dedupSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dedup_suppressed_total",
			Help: "Intents dropped because a log entry exists inside the dedup window",
		},
		[]string{"category"},
	)

	subscriptionsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_subscriptions_pruned_total",
			Help: "Push subscriptions deleted after the push service reported them gone",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordJobRun records one notification job run and its duration
func RecordJobRun(status string, duration time.Duration) {
	jobRuns.WithLabelValues(status).Inc()
	jobDuration.Observe(duration.Seconds())
}

// RecordEligibleCoupons records how many coupons one offset scan matched
func RecordEligibleCoupons(offsetDays, count int) {
	eligibleCoupons.WithLabelValues(strconv.Itoa(offsetDays)).Add(float64(count))
}

// RecordNotifications records per-run sent/failed intent counts
func RecordNotifications(sent, failed int) {
	notificationsSent.Add(float64(sent))
	notificationsFailed.Add(float64(failed))
}

// RecordDedupSuppressed records an intent dropped by the dedup window
func RecordDedupSuppressed(category string) {
	dedupSuppressed.WithLabelValues(category).Inc()
}

// RecordSubscriptionPruned records one pruned push subscription
func RecordSubscriptionPruned() {
	subscriptionsPruned.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
