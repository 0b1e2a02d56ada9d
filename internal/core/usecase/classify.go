package usecase

import (
	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/rules"
)

// ClassifyMode determines the processing mode from query text and the
// entities extracted so far. Lecturer keywords take priority over
// comparison keywords. The extractor (to gate comparison extraction) and
// the pipeline (to select retrieval and generation strategy) both call
// this exact function so the mode can never drift between stages.
func ClassifyMode(tables *rules.Tables, query string, entities domain.ExtractedEntities) domain.Mode {
	if tables.IsLecturerQuery(query) {
		return domain.ModeLecturer
	}
	if tables.IsComparisonQuery(query) || len(entities.ComparisonCodes) > 0 {
		return domain.ModeComparison
	}
	return domain.ModeStandard
}
