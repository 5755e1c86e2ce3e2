package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spec-kit/nightpass/internal/domain"
)

// Metrics bundles the Prometheus collectors exported by the service.
type Metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	minted      *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	forfeited   *prometheus.CounterVec
}

// NewMetrics registers collectors on reg. A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightpass",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nightpass",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightpass",
			Name:      "http_errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"route", "method", "code"}),
		minted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightpass",
			Name:      "tokens_minted_total",
			Help:      "Tokens minted by kind.",
		}, []string{"kind"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightpass",
			Name:      "token_redemptions_total",
			Help:      "Redemption attempts by outcome.",
		}, []string{"outcome"}),
		forfeited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightpass",
			Name:      "tokens_forfeited_total",
			Help:      "Unused tokens dropped by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.requests, m.latency, m.errors, m.minted, m.redemptions, m.forfeited)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordMinted counts freshly minted tokens.
func (m *Metrics) RecordMinted(tokens []domain.Token) {
	if m == nil {
		return
	}
	for _, t := range tokens {
		m.minted.WithLabelValues(string(t.Kind)).Inc()
	}
}

// RecordRedemption counts a redemption attempt; outcome is "ok" or an error code.
func (m *Metrics) RecordRedemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

// RecordForfeited counts unused tokens dropped by a reset or a downgrade.
func (m *Metrics) RecordForfeited(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.forfeited.WithLabelValues(reason).Add(float64(n))
}
