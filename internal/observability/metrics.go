// Package observability owns the backend's prometheus collectors. They are
// registered with the default registry, which the server exposes on /metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "moodmingle"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to serve HTTP requests, by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	savedMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "saved",
		Name:      "mutations_total",
		Help:      "Saved-activity writes, by operation and whether they changed anything.",
	}, []string{"op", "changed"})

	recommendations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recommend",
		Name:      "requests_total",
		Help:      "Recommendation requests, by recommender and outcome (ok or fallback).",
	}, []string{"recommender", "outcome"})

	weatherLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "weather",
		Name:      "lookups_total",
		Help:      "Weather lookups, by outcome (ok or unavailable).",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, savedMutations, recommendations, weatherLookups)
}

// RecordRequest counts one served HTTP request. route is the router pattern, not the
// raw path, so ids do not explode the label set.
func RecordRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordSavedMutation(op string, changed bool) {
	savedMutations.WithLabelValues(op, strconv.FormatBool(changed)).Inc()
}

func RecordRecommendation(recommender string, fellBack bool) {
	outcome := "ok"
	if fellBack {
		outcome = "fallback"
	}
	recommendations.WithLabelValues(recommender, outcome).Inc()
}

func RecordWeatherLookup(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "unavailable"
	}
	weatherLookups.WithLabelValues(outcome).Inc()
}
