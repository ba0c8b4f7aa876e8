package transport

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request and refresh observations for the dispatcher.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	refreshes *prometheus.CounterVec
}

// NewMetrics creates dispatcher metrics registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Requests sent, by method, channel and status.",
		}, []string{"method", "channel", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Request round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "channel"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "client",
			Name:      "requests_in_flight",
			Help:      "Requests currently in flight.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "client",
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.duration, m.inFlight, m.refreshes)
	return m
}

func (m *Metrics) observeRequest(req Request, resp Response, elapsed time.Duration) {
	channel := "public"
	if req.RequiresAuth {
		channel = "auth"
	}
	m.requests.WithLabelValues(req.Method, channel, strconv.Itoa(resp.Status)).Inc()
	m.duration.WithLabelValues(req.Method, channel).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRefresh(ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}
