package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	tokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bearer_token_refresh_total", Help: "access token refreshes by result"},
		[]string{"result"},
	)

	tokenExchangeTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bearer_token_exchange_seconds",
			Help:    "round trip time of the token endpoint call.",
			Buckets: prometheus.DefBuckets,
		},
	)

	relayedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bearer_relay_requests_total", Help: "intercepted requests relayed to the target api"},
		[]string{"method", "code"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsToUri,
		totalHttpRequests,
		tokenRefreshes,
		tokenExchangeTime,
		relayedRequests,
	)
}

// RecordRefresh counts a token refresh; result is "success" or a failure kind.
func RecordRefresh(result string) { tokenRefreshes.WithLabelValues(result).Inc() }

func ObserveTokenExchange(d time.Duration) { tokenExchangeTime.Observe(d.Seconds()) }

// RecordRelay counts one intercepted request; code 0 means no upstream response.
func RecordRelay(method string, code int) {
	relayedRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
