package domain

import "fmt"

// ConfidenceMetrics holds the five independent relevance/quality signals
// and their weighted combination for one generated answer.
type ConfidenceMetrics struct {
	RerankScore         float64 `json:"rerank_score"`
	EntityMatchRatio    float64 `json:"entity_match_ratio"`
	SourceDiversity     float64 `json:"source_diversity"`
	ContextCompleteness float64 `json:"context_completeness"`
	SemanticCoherence   float64 `json:"semantic_coherence"`
	FinalConfidence     float64 `json:"final_confidence"`
	Reasoning           string  `json:"reasoning"`
}

// NewConfidenceMetrics validates every component against [0,1]. A value
// outside the range is a defect in a signal computation, not a runtime
// condition, so construction fails instead of clamping.
func NewConfidenceMetrics(rerank, entity, source, completeness, semantic, final float64, reasoning string) (ConfidenceMetrics, error) {
	components := map[string]float64{
		"rerank_score":         rerank,
		"entity_match_ratio":   entity,
		"source_diversity":     source,
		"context_completeness": completeness,
		"semantic_coherence":   semantic,
		"final_confidence":     final,
	}
	for name, v := range components {
		if v < 0.0 || v > 1.0 {
			return ConfidenceMetrics{}, fmt.Errorf("confidence component %s out of range: %v", name, v)
		}
	}
	return ConfidenceMetrics{
		RerankScore:         rerank,
		EntityMatchRatio:    entity,
		SourceDiversity:     source,
		ContextCompleteness: completeness,
		SemanticCoherence:   semantic,
		FinalConfidence:     final,
		Reasoning:           reasoning,
	}, nil
}

// ConfidenceWeights is one per-mode weight table. Weights sum to 1.0.
type ConfidenceWeights struct {
	Rerank       float64
	Entity       float64
	Source       float64
	Completeness float64
	Semantic     float64
}

var confidenceWeightTables = map[Mode]ConfidenceWeights{
	ModeComparison: {Rerank: 0.25, Entity: 0.20, Source: 0.25, Completeness: 0.15, Semantic: 0.15},
	ModeLecturer:   {Rerank: 0.20, Entity: 0.30, Source: 0.20, Completeness: 0.10, Semantic: 0.20},
	ModeStandard:   {Rerank: 0.30, Entity: 0.20, Source: 0.15, Completeness: 0.15, Semantic: 0.20},
}

// WeightsFor returns the weight table for a mode, falling back to the
// standard table for unknown modes.
func WeightsFor(mode Mode) ConfidenceWeights {
	if w, ok := confidenceWeightTables[mode]; ok {
		return w
	}
	return confidenceWeightTables[ModeStandard]
}
