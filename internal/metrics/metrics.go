package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dieselweb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the web front end.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dieselweb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests handled by the web front end.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dieselweb",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests sent to the REST backend by status code.",
		},
		[]string{"method", "status"},
	)

	tokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dieselweb",
			Subsystem: "backend",
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	formSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dieselweb",
			Subsystem: "form",
			Name:      "submissions_total",
			Help:      "Entry form submissions by form and outcome.",
		},
		[]string{"form", "outcome"},
	)
)

func init() {
	Registry.MustRegister(httpRequests, httpDuration, backendRequests, tokenRefreshes, formSubmissions)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveBackendRequest counts one backend round trip. status 0 means transport failure.
func ObserveBackendRequest(method string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	backendRequests.WithLabelValues(method, label).Inc()
}

// ObserveTokenRefresh counts a refresh attempt; outcome is "success" or "failure".
func ObserveTokenRefresh(outcome string) {
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

// ObserveSubmission counts a form submission; outcome is "success", "invalid" or "failure".
func ObserveSubmission(form, outcome string) {
	formSubmissions.WithLabelValues(form, outcome).Inc()
}
