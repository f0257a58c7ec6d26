package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName string
	Port        int
}

// InitMetrics initializes the OpenTelemetry Prometheus exporter on the
// default registry. Returns the MeterProvider and an HTTP handler for the
// /metrics endpoint.
func InitMetrics(_ MetricsConfig) (*sdkmetric.MeterProvider, http.Handler, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	return provider, promhttp.Handler(), nil
}

// TrustMetrics holds the engine's Prometheus collectors. It satisfies the
// observer interfaces of the fan-out, dedup, use case and audit components.
type TrustMetrics struct {
	verdicts        *prometheus.CounterVec
	signals         *prometheus.CounterVec
	signalLatency   *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	auditDeliveries *prometheus.CounterVec
	auditQueue      prometheus.Gauge
	BreakerState    *prometheus.GaugeVec
}

// NewTrustMetrics creates the collectors and registers them with reg.
func NewTrustMetrics(reg prometheus.Registerer) *TrustMetrics {
	m := &TrustMetrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "verdicts_total",
			Help:      "Trust checks served, by classification, source and degradation.",
		}, []string{"classification", "source", "degraded"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "evaluator_results_total",
			Help:      "Evaluator invocations by signal and status.",
		}, []string{"signal", "status"}),
		signalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trust",
			Name:      "evaluator_latency_seconds",
			Help:      "Evaluator latency by signal.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 1.5},
		}, []string{"signal"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "cache_lookups_total",
			Help:      "Verdict cache lookups by result.",
		}, []string{"result"}),
		auditDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "audit_records_total",
			Help:      "Audit records by delivery outcome.",
		}, []string{"outcome"}),
		auditQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trust",
			Name:      "audit_queue_depth",
			Help:      "Audit records waiting for delivery.",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trust",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.verdicts,
		m.signals,
		m.signalLatency,
		m.cacheLookups,
		m.auditDeliveries,
		m.auditQueue,
		m.BreakerState,
	)
	return m
}

// ObserveVerdict records a served trust check.
func (m *TrustMetrics) ObserveVerdict(classification, source string, degraded bool) {
	m.verdicts.WithLabelValues(classification, source, strconv.FormatBool(degraded)).Inc()
}

// ObserveSignal records one evaluator outcome.
func (m *TrustMetrics) ObserveSignal(signal, status string, latency time.Duration) {
	m.signals.WithLabelValues(signal, status).Inc()
	m.signalLatency.WithLabelValues(signal).Observe(latency.Seconds())
}

// ObserveCache records a cache lookup ("hit" or "miss").
func (m *TrustMetrics) ObserveCache(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveAudit records n audit records reaching outcome
// ("delivered", "retried", "failed", "dropped").
func (m *TrustMetrics) ObserveAudit(outcome string, n int) {
	m.auditDeliveries.WithLabelValues(outcome).Add(float64(n))
}

// SetAuditQueueDepth reports the current audit queue length.
func (m *TrustMetrics) SetAuditQueueDepth(n int) {
	m.auditQueue.Set(float64(n))
}
