package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsdash_http_requests_total",
			Help: "Total number of dashboard HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fsdash_http_request_duration_seconds",
			Help:    "Duration of dashboard HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsdash_upstream_requests_total",
			Help: "Total number of submission service calls by outcome",
		},
		[]string{"op", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fsdash_upstream_request_duration_seconds",
			Help:    "Duration of submission service calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	UpstreamUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fsdash_upstream_up",
			Help: "1 when the last health probe of the configured submission service succeeded",
		},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsdash_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	StaleResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fsdash_stale_responses_total",
			Help: "List responses discarded because a newer request superseded them",
		},
		[]string{"view"},
	)
)

// Outcome classifies an upstream error for the outcome label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var se *fsclient.StatusError
	var te *fsclient.TransportError
	var de *fsclient.DecodeError
	switch {
	case errors.As(err, &se):
		return "status_" + strconv.Itoa(se.StatusCode)
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &de):
		return "decode"
	}
	return "error"
}

// ObserveUpstream records one submission service call.
func ObserveUpstream(op string, elapsed time.Duration, err error) {
	UpstreamRequests.WithLabelValues(op, Outcome(err)).Inc()
	UpstreamDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveHTTP records one dashboard request.
func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
