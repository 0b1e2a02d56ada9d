package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
	"github.com/kirillkom/academic-rag/internal/core/rules"
)

// ConfidenceScorer computes five independent relevance/quality signals
// and combines them with mode-specific weights.
type ConfidenceScorer struct {
	judge  ports.CoherenceJudge // nil forces the heuristic fallback
	tables *rules.Tables
	logger *slog.Logger
}

func NewConfidenceScorer(judge ports.CoherenceJudge, tables *rules.Tables, logger *slog.Logger) *ConfidenceScorer {
	return &ConfidenceScorer{judge: judge, tables: tables, logger: logger}
}

// Calculate aggregates all signals for one answered query.
func (s *ConfidenceScorer) Calculate(
	ctx context.Context,
	query, answer string,
	rerankedDocs []domain.Document,
	rerankScores []float64,
	extracted domain.ExtractedEntities,
	mode domain.Mode,
) (domain.ConfidenceMetrics, error) {
	rerank := rerankConfidence(rerankScores)
	entity := entityMatchConfidence(rerankedDocs, extracted)
	source := sourceDiversity(rerankedDocs, mode)
	completeness := s.contextCompleteness(query, rerankedDocs)
	semantic, reasoning := s.semanticCoherence(ctx, query, answer, rerankedDocs)

	w := domain.WeightsFor(mode)
	final := w.Rerank*rerank +
		w.Entity*entity +
		w.Source*source +
		w.Completeness*completeness +
		w.Semantic*semantic
	final = clamp01(final)

	return domain.NewConfidenceMetrics(rerank, entity, source, completeness, semantic, final, reasoning)
}

// rerankConfidence rewards high mean scores with low variance. Neutral
// 0.5 when the re-ranker produced nothing.
func rerankConfidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.5
	}

	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	return clamp01(mean*0.7 + (1.0/(1.0+variance))*0.3)
}

// entityMatchConfidence is the fraction of extracted entities found in
// the re-ranked documents, either as exact metadata matches or as text
// substrings. Neutral 0.7 when nothing was extracted.
func entityMatchConfidence(docs []domain.Document, extracted domain.ExtractedEntities) float64 {
	if len(docs) == 0 {
		return 0.0
	}

	expected := make(map[string]struct{})
	if extracted.CourseCode != "" {
		expected[strings.ToLower(extracted.CourseCode)] = struct{}{}
	}
	if extracted.CourseTitle != "" {
		expected[strings.ToLower(extracted.CourseTitle)] = struct{}{}
	}
	for _, lecturer := range extracted.Lecturers {
		expected[strings.ToLower(lecturer)] = struct{}{}
	}
	if len(expected) == 0 {
		return 0.7
	}

	matched := make(map[string]struct{})
	for _, doc := range docs {
		code := strings.ToLower(doc.Metadata.CourseCode)
		title := strings.ToLower(doc.Metadata.CourseTitle)
		if _, ok := expected[code]; ok {
			matched[code] = struct{}{}
		}
		if _, ok := expected[title]; ok {
			matched[title] = struct{}{}
		}

		content := strings.ToLower(doc.Text)
		for entity := range expected {
			if strings.Contains(content, entity) {
				matched[entity] = struct{}{}
			}
		}
	}

	return float64(len(matched)) / float64(len(expected))
}

// sourceDiversity blends distinct-course and distinct-section ratios with
// mode-specific weights: comparisons care about course spread, lecturer
// queries almost exclusively so, standard queries value both equally.
func sourceDiversity(docs []domain.Document, mode domain.Mode) float64 {
	if len(docs) == 0 {
		return 0.0
	}

	courses := make(map[string]struct{})
	sections := make(map[string]struct{})
	for _, doc := range docs {
		if doc.Metadata.CourseCode != "" {
			courses[doc.Metadata.CourseCode] = struct{}{}
		}
		if doc.Metadata.SectionTitle != "" {
			sections[doc.Metadata.SectionTitle] = struct{}{}
		}
	}

	n := float64(len(docs))
	courseDiv := min1(float64(len(courses)) / n)
	sectionDiv := min1(float64(len(sections)) / n)

	switch mode {
	case domain.ModeComparison:
		return courseDiv*0.8 + sectionDiv*0.2
	case domain.ModeLecturer:
		return courseDiv*0.9 + sectionDiv*0.1
	default:
		return courseDiv*0.5 + sectionDiv*0.5
	}
}

// contextCompleteness is the fraction of query-implied section categories
// actually present among returned section titles. Neutral 0.8 when the
// query implies none.
func (s *ConfidenceScorer) contextCompleteness(query string, docs []domain.Document) float64 {
	if len(docs) == 0 {
		return 0.0
	}

	expected := s.tables.ExpectedCategories(query)
	if len(expected) == 0 {
		return 0.8
	}

	present := make(map[string]struct{})
	for _, doc := range docs {
		section := doc.Metadata.SectionTitle
		for _, category := range expected {
			if rules.CategoryPresentIn(category, section) {
				present[category] = struct{}{}
			}
		}
	}

	return float64(len(present)) / float64(len(expected))
}

// semanticCoherence asks the judge model for a quality score; any call or
// parse failure falls back to the deterministic heuristic.
func (s *ConfidenceScorer) semanticCoherence(ctx context.Context, query, answer string, docs []domain.Document) (float64, string) {
	if s.judge != nil {
		score, reasoning, err := s.judge.JudgeCoherence(ctx, query, answer, len(docs))
		if err == nil {
			return clamp01(score), reasoning
		}
		s.logger.Warn("semantic_judge_failed", "error", err)
	}
	return fallbackCoherence(query, answer, docs), "Fallback evaluation"
}

// fallbackCoherence: base 0.5, bonus for a reasonably sized answer,
// penalty for a truncated one, bonus for query/answer term overlap and
// for citing a top-3 course code verbatim.
func fallbackCoherence(query, answer string, docs []domain.Document) float64 {
	score := 0.5

	wordCount := len(strings.Fields(answer))
	switch {
	case wordCount >= 10 && wordCount <= 200:
		score += 0.1
	case wordCount < 5:
		score -= 0.2
	}

	queryTerms := termSet(query)
	answerTerms := termSet(answer)
	overlap := 0
	for term := range queryTerms {
		if _, ok := answerTerms[term]; ok {
			overlap++
		}
	}
	score += minf(0.2, float64(overlap)*0.05)

	answerLower := strings.ToLower(answer)
	top := docs
	if len(top) > 3 {
		top = top[:3]
	}
	for _, doc := range top {
		code := strings.ToLower(doc.Metadata.CourseCode)
		if code != "" && strings.Contains(answerLower, code) {
			score += 0.1
			break
		}
	}

	return clamp01(score)
}

func termSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, term := range strings.Fields(strings.ToLower(text)) {
		out[term] = struct{}{}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
