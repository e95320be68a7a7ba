package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/polis-pii/pkg/domain"
)

// PromMetrics holds the Prometheus collectors of the PII service. A nil
// *PromMetrics records nothing.
type PromMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	entitiesTotal     *prometheus.CounterVec
	tokensIssued      prometheus.Counter
	riskTotal         *prometheus.CounterVec
	poolReloads       *prometheus.CounterVec
	annotatorUp       prometheus.Gauge

	registry *prometheus.Registry
}

// NewPromMetrics creates the collectors on a private registry.
func NewPromMetrics() *PromMetrics {
	registry := prometheus.NewRegistry()

	m := &PromMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pii_operations_total",
				Help: "Total number of engine operations by operation and status",
			},
			[]string{"operation", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pii_operation_duration_seconds",
				Help:    "Engine operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		entitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pii_entities_detected_total",
				Help: "Total number of PII entities detected by kind",
			},
			[]string{"kind"},
		),

		tokensIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pii_tokens_issued_total",
				Help: "Total number of mask tokens issued",
			},
		),

		riskTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pii_prompt_risk_total",
				Help: "Total number of assessed prompts by risk level",
			},
			[]string{"level"},
		),

		poolReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pii_replacement_pool_reloads_total",
				Help: "Total number of replacement pool reload attempts by status",
			},
			[]string{"status"},
		),

		annotatorUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pii_annotator_available",
				Help: "Whether the entity annotator is available (1) or not (0)",
			},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.entitiesTotal,
		m.tokensIssued,
		m.riskTotal,
		m.poolReloads,
		m.annotatorUp,
	)

	return m
}

// RecordOperation records a finished engine operation.
func (m *PromMetrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEntities counts detected entities by kind.
func (m *PromMetrics) RecordEntities(entities []domain.Entity) {
	if m == nil {
		return
	}
	for _, e := range entities {
		m.entitiesTotal.WithLabelValues(string(e.Kind)).Inc()
	}
}

// RecordTokens counts issued mask tokens.
func (m *PromMetrics) RecordTokens(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensIssued.Add(float64(n))
}

// RecordRisk counts an assessed prompt.
func (m *PromMetrics) RecordRisk(level domain.RiskLevel) {
	if m == nil {
		return
	}
	m.riskTotal.WithLabelValues(string(level)).Inc()
}

// RecordPoolReload records a replacement pool reload attempt.
func (m *PromMetrics) RecordPoolReload(status string) {
	if m == nil {
		return
	}
	m.poolReloads.WithLabelValues(status).Inc()
}

// SetAnnotatorAvailable updates the annotator availability gauge.
func (m *PromMetrics) SetAnnotatorAvailable(up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.annotatorUp.Set(v)
}

// Handler returns the Prometheus metrics HTTP handler, traced with otelhttp.
func (m *PromMetrics) Handler() http.Handler {
	return otelhttp.NewHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}), "metrics")
}

// Registry returns the Prometheus registry.
func (m *PromMetrics) Registry() *prometheus.Registry {
	return m.registry
}
