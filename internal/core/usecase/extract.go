package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/academic-rag/internal/core/catalog"
	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
	"github.com/kirillkom/academic-rag/internal/core/rules"
)

// llmFuzzyCutoff is stricter than the default because LLM-proposed titles
// are the least trusted extraction source.
const llmFuzzyCutoff = 0.80

var (
	// Course codes look like 2001WETGDT: 4 digits, at least 3 uppercase
	// letters, optional trailing alphanumerics.
	courseCodePattern = regexp.MustCompile(`\b\d{4}[A-Z]{3,}[A-Z0-9]*\b`)

	quotedPattern = regexp.MustCompile(`'([^']+)'|"([^"]+)"`)

	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)course\s+([A-Za-z][\w\s&\-:]+)`),
		regexp.MustCompile(`(?i)([A-Za-z][\w\s&\-:]+)\s+course`),
		regexp.MustCompile(`(?i)for\s+(?:the\s+)?([A-Za-z][\w\s&\-:]+)\s+course`),
		regexp.MustCompile(`(?i)about\s+(?:the\s+)?([A-Za-z][\w\s&\-:]+)`),
	}
	articlePattern = regexp.MustCompile(`(?i)\b(the|a|an)\b`)

	// Keywords match case-insensitively but the name span must start with
	// a capital, which keeps "stop by tomorrow" from producing a lecturer.
	lecturerPattern = regexp.MustCompile(`(?i:taught\s+by|courses\s+taught\s+by|by)\s+([A-Z][A-Za-z .'\-]+)`)

	betweenPattern     = regexp.MustCompile(`(?i)\bbetween\s+(.+?)\s+and\s+(.+?)(?:[?.!]|$)`)
	trailingPunct      = regexp.MustCompile(`[?.!]+$`)
	conjunctionPattern = regexp.MustCompile(`(?i)\b(?:and|vs\.?|versus)\b|,`)
	mentionStopwords   = regexp.MustCompile(`(?i)^(compare|between|vs|and|versus|courses?)$`)
)

// EntityExtractor runs the five-stage extraction pipeline. Stages write
// only into unset slots, so higher-confidence earlier stages always win
// over the LLM fallback.
type EntityExtractor struct {
	tables *rules.Tables
	llm    ports.EntityLLM // nil disables stage 5
	logger *slog.Logger
}

func NewEntityExtractor(tables *rules.Tables, llm ports.EntityLLM, logger *slog.Logger) *EntityExtractor {
	return &EntityExtractor{tables: tables, llm: llm, logger: logger}
}

// Extract runs all stages against the given catalog snapshot.
func (e *EntityExtractor) Extract(ctx context.Context, cat *catalog.Catalog, query string) domain.ExtractedEntities {
	var extracted domain.ExtractedEntities
	if strings.TrimSpace(query) == "" {
		return extracted
	}

	e.extractCourseCode(cat, query, &extracted)
	if extracted.CourseCode == "" {
		e.extractByTitle(cat, query, &extracted)
	}
	e.extractLecturer(query, &extracted)
	if e.tables.IsComparisonQuery(query) {
		e.extractComparisonCodes(cat, query, &extracted)
	}
	if e.llm != nil && extracted.CourseCode == "" {
		e.llmExtraction(ctx, cat, query, &extracted)
	}

	return extracted
}

// Stage 1: direct course-code token, accepted only when the catalog
// confirms it exists.
func (e *EntityExtractor) extractCourseCode(cat *catalog.Catalog, query string, extracted *domain.ExtractedEntities) {
	code := courseCodePattern.FindString(strings.ToUpper(query))
	if code == "" || !cat.ExistsCode(code) {
		return
	}
	title, _ := cat.Title(code)
	if extracted.SetCourse(code, title) {
		e.logger.Info("extract_code_match", "course_code", code)
	}
}

// Stage 2: title candidate from quotes or linguistic patterns, resolved
// through fuzzy matching.
func (e *EntityExtractor) extractByTitle(cat *catalog.Catalog, query string, extracted *domain.ExtractedEntities) {
	candidate := titleCandidate(query)
	if candidate == "" {
		return
	}

	code, score, ok := cat.FuzzyTitleToCode(candidate, catalog.DefaultFuzzyCutoff)
	if !ok {
		return
	}
	title, _ := cat.Title(code)
	if extracted.SetCourse(code, title) {
		e.logger.Info("extract_fuzzy_title", "candidate", candidate, "course_code", code, "score", score)
	}
}

func titleCandidate(query string) string {
	if m := quotedPattern.FindStringSubmatch(query); m != nil {
		quoted := m[1]
		if quoted == "" {
			quoted = m[2]
		}
		return strings.TrimSpace(quoted)
	}

	for _, pattern := range titlePatterns {
		m := pattern.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		candidate = strings.TrimSpace(articlePattern.ReplaceAllString(candidate, ""))
		if len(candidate) > 2 {
			return candidate
		}
	}
	return ""
}

// Stage 3: lecturer name, always attempted, independent of stages 1-2.
func (e *EntityExtractor) extractLecturer(query string, extracted *domain.ExtractedEntities) {
	m := lecturerPattern.FindStringSubmatch(query)
	if m == nil {
		return
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return
	}
	if extracted.SetLecturers([]string{name}) {
		e.logger.Info("extract_lecturer", "lecturer", name)
	}
}

// Stage 4: comparison candidates, resolved to codes; committed only when
// at least two unique codes survive.
func (e *EntityExtractor) extractComparisonCodes(cat *catalog.Catalog, query string, extracted *domain.ExtractedEntities) {
	var codes []string
	var titlesLeft []string

	for _, candidate := range courseMentions(query) {
		upper := strings.ToUpper(candidate)
		if courseCodePattern.FindString(upper) == upper {
			if cat.ExistsCode(upper) {
				codes = append(codes, upper)
			}
			continue
		}
		titlesLeft = append(titlesLeft, candidate)
	}

	for _, title := range titlesLeft {
		clean := strings.TrimSpace(trailingPunct.ReplaceAllString(title, ""))
		if code, _, ok := cat.FuzzyTitleToCode(clean, catalog.DefaultFuzzyCutoff); ok {
			codes = append(codes, code)
		}
	}

	// Last resort: catalog titles mentioned verbatim inside the query.
	if len(codes) < 2 {
		queryLower := strings.ToLower(query)
		for _, title := range cat.AllTitles() {
			if title == "" || !strings.Contains(queryLower, strings.ToLower(title)) {
				continue
			}
			if code, ok := cat.CodeForTitle(title); ok {
				codes = append(codes, code)
			}
		}
	}

	unique := dedupePreservingOrder(codes)
	if len(unique) >= 2 {
		if extracted.SetComparisonCodes(unique) {
			e.logger.Info("extract_comparison_codes", "codes", unique)
		}
	}
}

// courseMentions gathers candidate course mentions: quoted spans, code
// tokens, "between X and Y", and a conjunction split when fewer than two
// candidates were found.
func courseMentions(query string) []string {
	var mentions []string

	for _, m := range quotedPattern.FindAllStringSubmatch(query, -1) {
		text := m[1]
		if text == "" {
			text = m[2]
		}
		if text = strings.TrimSpace(text); len(text) >= 2 {
			mentions = append(mentions, text)
		}
	}

	mentions = append(mentions, courseCodePattern.FindAllString(strings.ToUpper(query), -1)...)

	if m := betweenPattern.FindStringSubmatch(query); m != nil {
		for _, side := range []string{m[1], m[2]} {
			side = strings.TrimSpace(trailingPunct.ReplaceAllString(side, ""))
			if side != "" {
				mentions = append(mentions, side)
			}
		}
	}

	if len(mentions) < 2 {
		for _, part := range conjunctionPattern.Split(query, -1) {
			part = strings.Trim(part, " ?!.·-–—\"'")
			if len(part) >= 3 && !mentionStopwords.MatchString(part) {
				mentions = append(mentions, part)
			}
		}
	}

	return dedupeFoldingCase(mentions)
}

// Stage 5: LLM fallback. Every proposal is re-verified; a parse failure
// leaves the accumulator untouched.
func (e *EntityExtractor) llmExtraction(ctx context.Context, cat *catalog.Catalog, query string, extracted *domain.ExtractedEntities) {
	partial, err := e.llm.ExtractEntities(ctx, query)
	if err != nil {
		e.logger.Warn("extract_llm_failed", "error", err)
		return
	}

	if lecturers := cleanNames(partial.Lecturers); len(lecturers) > 0 {
		extracted.SetLecturers(lecturers)
	}

	llmCode := strings.ToUpper(strings.TrimSpace(partial.CourseCode))
	if llmCode != "" && cat.ExistsCode(llmCode) {
		title, _ := cat.Title(llmCode)
		if extracted.SetCourse(llmCode, title) {
			e.logger.Info("extract_llm_code", "course_code", llmCode)
		}
		return
	}

	if llmTitle := strings.TrimSpace(partial.CourseTitle); llmTitle != "" {
		if code, score, ok := cat.FuzzyTitleToCode(llmTitle, llmFuzzyCutoff); ok {
			title, _ := cat.Title(code)
			if extracted.SetCourse(code, title) {
				e.logger.Info("extract_llm_title", "course_code", code, "score", score)
			}
		}
	}
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func dedupePreservingOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupeFoldingCase(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
