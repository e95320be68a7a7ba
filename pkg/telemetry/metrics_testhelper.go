package telemetry

import "sync"

// ResetMetricsForTest clears cached metric instruments so tests can
// reinitialize them against a fresh MeterProvider. This is intended for
// use in test code only.
func ResetMetricsForTest() {
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	entityCounter = nil
	tokenCounter = nil
	protectionCounter = nil
	replacementCounter = nil
	operationErrCounter = nil
	operationLatencyHist = nil
}
