package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
)

const (
	maxContextChars = 4000

	noInformationAnswer   = "I don't have enough information to answer this question."
	generationFailed      = "Sorry, I encountered an error generating the answer."
	comparisonFailed      = "Sorry, I encountered an error generating the comparison."
	noLecturerAnswer      = "I couldn't identify the lecturer name from your query."
	noLecturerMatchFormat = "I couldn't find any courses taught by '%s' in the available data."
	noCourseInfoFormat    = "I found documents mentioning '%s' but couldn't extract specific course information."
)

// AnswerComposer produces the final answer text for each query mode.
// Lecturer answers are assembled deterministically from metadata; the
// other modes delegate to the language model.
type AnswerComposer struct {
	llm    ports.AnswerLLM
	logger *slog.Logger
}

func NewAnswerComposer(llm ports.AnswerLLM, logger *slog.Logger) *AnswerComposer {
	return &AnswerComposer{llm: llm, logger: logger}
}

func (c *AnswerComposer) Compose(
	ctx context.Context,
	query string,
	docs []domain.Document,
	extracted domain.ExtractedEntities,
	mode domain.Mode,
) string {
	switch mode {
	case domain.ModeLecturer:
		return c.composeLecturer(docs, extracted)
	case domain.ModeComparison:
		return c.composeComparison(ctx, query, docs, extracted)
	default:
		return c.composeStandard(ctx, query, docs)
	}
}

func (c *AnswerComposer) composeStandard(ctx context.Context, query string, docs []domain.Document) string {
	if len(docs) == 0 {
		return noInformationAnswer
	}

	prompt := standardPrompt(query, buildContext(docs, maxContextChars))
	answer, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		c.logger.Error("answer_generation_failed", "error", err)
		return generationFailed
	}
	return strings.TrimSpace(answer)
}

// composeLecturer never calls the model: the answer is a markdown list of
// the distinct courses whose metadata names the requested lecturer.
func (c *AnswerComposer) composeLecturer(docs []domain.Document, extracted domain.ExtractedEntities) string {
	if len(extracted.Lecturers) == 0 {
		return noLecturerAnswer
	}
	lecturer := extracted.Lecturers[0]
	target := strings.ToLower(lecturer)

	var matching []domain.Document
	for _, doc := range docs {
		if doc.Metadata.LecturerMatches(target) {
			matching = append(matching, doc)
		}
	}
	if len(matching) == 0 {
		return fmt.Sprintf(noLecturerMatchFormat, lecturer)
	}

	seen := make(map[string]struct{})
	type course struct{ code, title string }
	var courses []course
	for _, doc := range matching {
		code := doc.Metadata.CourseCode
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		courses = append(courses, course{code: code, title: doc.Metadata.CourseTitle})
	}
	if len(courses) == 0 {
		return fmt.Sprintf(noCourseInfoFormat, lecturer)
	}

	sort.Slice(courses, func(i, j int) bool { return courses[i].code < courses[j].code })

	var b strings.Builder
	fmt.Fprintf(&b, "**Courses taught by %s:**\n\n", lecturer)
	for _, crs := range courses {
		fmt.Fprintf(&b, "- **%s**: %s\n", crs.code, crs.title)
	}
	fmt.Fprintf(&b, "\nFound %d course(s) in the database.", len(courses))
	return b.String()
}

func (c *AnswerComposer) composeComparison(
	ctx context.Context,
	query string,
	docs []domain.Document,
	extracted domain.ExtractedEntities,
) string {
	if len(extracted.ComparisonCodes) < 2 {
		return c.composeStandard(ctx, query, docs)
	}

	prompt := comparisonPrompt(query, groupedContext(docs, extracted.ComparisonCodes))
	answer, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		c.logger.Error("comparison_generation_failed", "error", err)
		return comparisonFailed
	}
	return strings.TrimSpace(answer)
}

// buildContext concatenates document texts with code/section headers up
// to the character budget.
func buildContext(docs []domain.Document, budget int) string {
	var parts []string
	used := 0
	for _, doc := range docs {
		block := fmt.Sprintf("[%s - %s]\n%s", doc.Metadata.CourseCode, doc.Metadata.SectionTitle, doc.Text)
		if used+len(block) > budget {
			break
		}
		parts = append(parts, block)
		used += len(block)
	}
	return strings.Join(parts, "\n\n")
}

// groupedContext arranges documents under one heading per compared
// course, at most three documents per course, each truncated to keep the
// prompt balanced across courses.
func groupedContext(docs []domain.Document, codes []string) string {
	const maxDocsPerCourse = 3
	const maxDocChars = 500

	byCourse := make(map[string][]domain.Document, len(codes))
	for _, doc := range docs {
		code := doc.Metadata.CourseCode
		if containsCode(codes, code) {
			byCourse[code] = append(byCourse[code], doc)
		}
	}

	var parts []string
	for _, code := range codes {
		courseDocs := byCourse[code]
		if len(courseDocs) == 0 {
			continue
		}
		title := courseDocs[0].Metadata.CourseTitle
		if title == "" {
			title = code
		}

		var lines []string
		for i, doc := range courseDocs {
			if i >= maxDocsPerCourse {
				break
			}
			text := doc.Text
			if len(text) > maxDocChars {
				text = text[:maxDocChars]
			}
			lines = append(lines, fmt.Sprintf("[%s]: %s", doc.Metadata.SectionTitle, text))
		}
		parts = append(parts, fmt.Sprintf("## %s (%s)\n%s", title, code, strings.Join(lines, "\n")))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func standardPrompt(query, context string) string {
	return fmt.Sprintf(`Based on the following course information, answer the question.
Be specific and cite course details when possible.

Context:
%s

Question: %s

Answer:`, context, query)
}

func comparisonPrompt(query, context string) string {
	return fmt.Sprintf(`Compare the following courses based on the user's question.
Provide a structured comparison highlighting key differences and similarities.

%s

Question: %s

Comparison:`, context, query)
}
