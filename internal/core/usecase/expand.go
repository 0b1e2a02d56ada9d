package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/rules"
)

// DefaultMaxAdditional caps how many sections standard expansion may add.
const DefaultMaxAdditional = 3

// FilterFetcher is the query-independent fetch used to pull specific
// sections. The Retriever satisfies it.
type FilterFetcher interface {
	FetchByFilter(ctx context.Context, filter domain.SearchFilter, k int) ([]domain.Document, error)
}

// ContextExpander augments re-ranked results with missing, topically
// relevant sections of the focus course.
type ContextExpander struct {
	fetcher FilterFetcher
	tables  *rules.Tables
	logger  *slog.Logger
}

func NewContextExpander(fetcher FilterFetcher, tables *rules.Tables, logger *slog.Logger) *ContextExpander {
	return &ContextExpander{fetcher: fetcher, tables: tables, logger: logger}
}

// Expand fetches up to maxAdditional sections of the focus course that
// the query implies but the result set lacks. The focus course defaults
// to the first document's code. A failed fetch for one section is logged
// and skipped; the remaining sections are still attempted.
func (x *ContextExpander) Expand(ctx context.Context, docs []domain.Document, query, focusCode string, maxAdditional int) []domain.Document {
	if len(docs) == 0 || x.fetcher == nil {
		return docs
	}
	if maxAdditional <= 0 {
		maxAdditional = DefaultMaxAdditional
	}
	if focusCode == "" {
		focusCode = docs[0].Metadata.CourseCode
	}
	if focusCode == "" {
		return docs
	}

	targetSections := x.tables.InferTargetSections(query)
	if len(targetSections) == 0 {
		targetSections = x.tables.DefaultExpandSections()
	}

	existing := existingSectionTitles(docs)
	var additional []domain.Document

	for _, section := range targetSections {
		if len(additional) >= maxAdditional {
			break
		}
		if _, ok := existing[strings.ToLower(section)]; ok {
			continue
		}

		fetched, err := x.fetcher.FetchByFilter(ctx, domain.SearchFilter{
			"course_code":   focusCode,
			"section_title": section,
		}, 1)
		if err != nil {
			x.logger.Warn("expand_fetch_failed", "section", section, "course_code", focusCode, "error", err)
			continue
		}

		for _, doc := range fetched {
			if len(additional) >= maxAdditional {
				break
			}
			additional = append(additional, doc)
			existing[strings.ToLower(section)] = struct{}{}
		}
	}

	if len(additional) > 0 {
		x.logger.Info("expand_added_sections", "count", len(additional), "course_code", focusCode)
	}
	return append(docs, additional...)
}

// ExpandForComparison ensures every compared course has at least one
// document per axis it is missing. Unlike Expand there is no total cap:
// comparison fairness requires symmetric coverage across all courses.
func (x *ContextExpander) ExpandForComparison(ctx context.Context, docs []domain.Document, codes []string, axes []string) []domain.Document {
	if x.fetcher == nil || len(codes) == 0 {
		return docs
	}

	sectionsPerCourse := make(map[string]map[string]struct{}, len(codes))
	for _, code := range codes {
		sectionsPerCourse[code] = make(map[string]struct{})
	}
	for _, doc := range docs {
		code := doc.Metadata.CourseCode
		if existing, ok := sectionsPerCourse[code]; ok {
			existing[strings.ToLower(doc.Metadata.SectionTitle)] = struct{}{}
		}
	}

	var additional []domain.Document
	for _, code := range codes {
		existing := sectionsPerCourse[code]
		for _, axis := range axes {
			if _, ok := existing[strings.ToLower(axis)]; ok {
				continue
			}

			fetched, err := x.fetcher.FetchByFilter(ctx, domain.SearchFilter{
				"course_code":   code,
				"section_title": axis,
			}, 1)
			if err != nil {
				x.logger.Warn("comparison_expand_fetch_failed", "axis", axis, "course_code", code, "error", err)
				continue
			}
			additional = append(additional, fetched...)
		}
	}

	x.logger.Info("comparison_expand_added", "count", len(additional))
	return append(docs, additional...)
}

// InferComparisonAxes merges keyword-triggered axes with the default axes
// every comparison gets.
func (x *ContextExpander) InferComparisonAxes(query string) []string {
	return x.tables.ComparisonAxes(query)
}

func existingSectionTitles(docs []domain.Document) map[string]struct{} {
	existing := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if section := doc.Metadata.SectionTitle; section != "" {
			existing[strings.ToLower(section)] = struct{}{}
		}
	}
	return existing
}
