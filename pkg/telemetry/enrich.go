package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/polis-pii/pkg/domain"
)

// SetAttributes redacts attrs and sets them on span.
func SetAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(RedactAttributes(attrs)...)
}

// RecordDetection annotates span with how many entities of which kinds were found.
func RecordDetection(span trace.Span, entities []domain.Entity) {
	if span == nil || !span.IsRecording() {
		return
	}

	kinds := domain.Kinds(entities)
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	SetAttributes(span,
		attribute.Int("pii.entities.count", len(entities)),
		attribute.StringSlice("pii.kinds", names),
	)
}

// RecordProtectionOutcome annotates span with the protection outcome.
func RecordProtectionOutcome(span trace.Span, res domain.ProtectionResult) {
	if span == nil || !span.IsRecording() {
		return
	}

	SetAttributes(span,
		attribute.Bool("pii.protection_applied", res.ProtectionApplied),
		attribute.Int("pii.replacements.count", len(res.Replacements)),
		attribute.String("pii.risk_level", string(res.RiskLevel)),
		attribute.String("pii.context", string(res.Context)),
	)

	if res.RiskLevel == domain.RiskHigh {
		span.AddEvent("pii.high_risk")
	}
}
