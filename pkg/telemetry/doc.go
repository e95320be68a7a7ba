// Package telemetry wires OpenTelemetry tracing and metrics and the
// Prometheus collector for the PII service.
//
// It centralises tracer provider setup, the metric instruments recorded by
// the engine, and span enrichment helpers that describe detection and
// protection outcomes using counts and kinds only, never the PII itself.
package telemetry
