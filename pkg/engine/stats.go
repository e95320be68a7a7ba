package engine

import (
	"context"

	"github.com/polisai/polis-pii/pkg/domain"
	"github.com/polisai/polis-pii/pkg/ner"
	"github.com/polisai/polis-pii/pkg/telemetry"
)

// topSuggestions is how many suggestions a risk report carries.
const topSuggestions = 3

// RiskReport summarizes the privacy risk of a prompt without rewriting it.
type RiskReport struct {
	RiskLevel        domain.RiskLevel `json:"risk_level" yaml:"risk_level"`
	PIICount         int              `json:"pii_count" yaml:"pii_count"`
	PIITypes         []domain.Kind    `json:"pii_types" yaml:"pii_types"`
	Context          domain.Context   `json:"context" yaml:"context"`
	Suggestions      []string         `json:"suggestions" yaml:"suggestions"`
	ProtectionNeeded bool             `json:"protection_needed" yaml:"protection_needed"`
}

// AnalyzeRisk reports the risk level, context and top suggestions for text.
func (e *Engine) AnalyzeRisk(ctx context.Context, text string) (report RiskReport, err error) {
	ctx, span, done := e.begin(ctx, OpAnalyzeRisk)
	var entities []domain.Entity
	defer func() { done(err, entities, 0) }()

	res, err := e.protector.Protect(ctx, text)
	if err != nil {
		return RiskReport{}, err
	}
	entities = res.Entities

	suggestions := res.Suggestions
	if len(suggestions) > topSuggestions {
		suggestions = suggestions[:topSuggestions]
	}

	e.metrics.RecordRisk(res.RiskLevel)
	telemetry.RecordDetection(span, res.Entities)
	telemetry.RecordProtectionOutcome(span, res)

	return RiskReport{
		RiskLevel:        res.RiskLevel,
		PIICount:         res.EntityCount,
		PIITypes:         res.Kinds,
		Context:          res.Context,
		Suggestions:      suggestions,
		ProtectionNeeded: res.ProtectionApplied,
	}, nil
}

// Stats is a snapshot of engine counters and capabilities.
type Stats struct {
	TotalMasksStored  int                    `json:"total_masks_stored" yaml:"total_masks_stored"`
	Analyses          int64                  `json:"analyses" yaml:"analyses"`
	SessionsMasked    int64                  `json:"sessions_masked" yaml:"sessions_masked"`
	TokensIssued      int64                  `json:"tokens_issued" yaml:"tokens_issued"`
	Protections       int64                  `json:"protections" yaml:"protections"`
	SupportedPIITypes int                    `json:"supported_pii_types" yaml:"supported_pii_types"`
	TokenLabels       map[domain.Kind]string `json:"mask_templates" yaml:"mask_templates"`
	PatternRules      []string               `json:"pattern_rules" yaml:"pattern_rules"`
	Recognizer        string                 `json:"recognizer,omitempty" yaml:"recognizer,omitempty"`
	AnnotatorStatus   ner.Status             `json:"annotator_status" yaml:"annotator_status"`
}

// Stats reports counters without initializing the annotator.
func (e *Engine) Stats() Stats {
	s := Stats{
		TotalMasksStored:  e.store.Len(),
		Analyses:          e.analyses.Load(),
		SessionsMasked:    e.sessionsMasked.Load(),
		TokensIssued:      e.tokensIssued.Load(),
		Protections:       e.protections.Load(),
		SupportedPIITypes: len(domain.AllKinds()),
		TokenLabels:       domain.TokenLabels(),
		PatternRules:      e.detector.Scanner().RuleNames(),
		AnnotatorStatus:   ner.StatusUnavailable,
	}
	if e.annotator != nil {
		s.Recognizer = e.annotator.Name()
		s.AnnotatorStatus = e.annotator.Status()
	}
	return s
}

// Health describes whether the engine can serve and with what recall.
type Health struct {
	Status             string        `json:"status" yaml:"status"`
	AnnotatorAvailable bool          `json:"model_loaded" yaml:"model_loaded"`
	ModelType          string        `json:"model_type" yaml:"model_type"`
	SupportedPIITypes  []domain.Kind `json:"supported_pii_types" yaml:"supported_pii_types"`
}

// Health initializes the annotator if needed and reports the result. An
// unavailable annotator degrades the engine but never makes it unhealthy.
func (e *Engine) Health(ctx context.Context) Health {
	h := Health{
		Status:            "healthy",
		ModelType:         "pattern rules",
		SupportedPIITypes: domain.AllKinds(),
	}
	if e.annotator != nil && e.annotator.Available(ctx) {
		h.AnnotatorAvailable = true
		h.ModelType = "pattern rules + " + e.annotator.Name()
	}
	e.metrics.SetAnnotatorAvailable(h.AnnotatorAvailable)
	return h
}
