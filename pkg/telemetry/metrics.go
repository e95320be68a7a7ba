package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/polisai/polis-pii/pkg/domain"
)

// MeterName is the instrumentation scope of every PII metric.
const MeterName = "polis.pii"

var (
	metricsOnce          sync.Once
	metricsInitErr       error
	entityCounter        metric.Int64Counter
	tokenCounter         metric.Int64Counter
	protectionCounter    metric.Int64Counter
	replacementCounter   metric.Int64Counter
	operationErrCounter  metric.Int64Counter
	operationLatencyHist metric.Float64Histogram
)

// OperationMetrics captures one engine operation for the metric instruments.
type OperationMetrics struct {
	Operation string
	Entities  []domain.Entity
	Tokens    int
	Duration  time.Duration
	Err       error
}

// RecordOperation emits the counters and the latency histogram of a finished
// engine operation.
func RecordOperation(ctx context.Context, m OperationMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	op := attribute.String("pii.operation", m.Operation)

	for kind, n := range countByKind(m.Entities) {
		entityCounter.Add(ctx, n, metric.WithAttributes(op, attribute.String("pii.kind", string(kind))))
	}

	if m.Tokens > 0 {
		tokenCounter.Add(ctx, int64(m.Tokens), metric.WithAttributes(op))
	}

	if m.Duration > 0 {
		operationLatencyHist.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(op))
	}

	if m.Err != nil {
		operationErrCounter.Add(ctx, 1, metric.WithAttributes(op))
	}
}

// RecordProtection counts a protected prompt by its risk level and context.
func RecordProtection(ctx context.Context, res domain.ProtectionResult) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("pii.risk_level", string(res.RiskLevel)),
		attribute.String("pii.context", string(res.Context)),
		attribute.Bool("pii.protection_applied", res.ProtectionApplied),
	)
	protectionCounter.Add(ctx, 1, attrs)

	if n := len(res.Replacements); n > 0 {
		replacementCounter.Add(ctx, int64(n))
	}
}

func countByKind(entities []domain.Entity) map[domain.Kind]int64 {
	counts := make(map[domain.Kind]int64)
	for _, e := range entities {
		counts[e.Kind]++
	}
	return counts
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(MeterName)

		entityCounter, metricsInitErr = meter.Int64Counter(
			"pii.entities.detected_total",
			metric.WithDescription("PII entities detected, partitioned by kind"),
			metric.WithUnit("{entity}"),
		)
		if metricsInitErr != nil {
			return
		}

		tokenCounter, metricsInitErr = meter.Int64Counter(
			"pii.tokens.issued_total",
			metric.WithDescription("Mask tokens issued"),
			metric.WithUnit("{token}"),
		)
		if metricsInitErr != nil {
			return
		}

		protectionCounter, metricsInitErr = meter.Int64Counter(
			"pii.protections_total",
			metric.WithDescription("Protected prompts by risk level and context"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		replacementCounter, metricsInitErr = meter.Int64Counter(
			"pii.replacements_total",
			metric.WithDescription("Generic replacements applied to prompts"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		operationErrCounter, metricsInitErr = meter.Int64Counter(
			"pii.operation.errors_total",
			metric.WithDescription("Engine operations that failed"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		operationLatencyHist, metricsInitErr = meter.Float64Histogram(
			"pii.operation.duration_ms",
			metric.WithDescription("Observed engine operation latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
