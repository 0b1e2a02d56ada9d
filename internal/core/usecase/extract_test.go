package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/academic-rag/internal/core/catalog"
	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
	"github.com/kirillkom/academic-rag/internal/core/rules"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *catalog.Catalog {
	return catalog.Build([]domain.Document{
		{Metadata: domain.SectionMetadata{CourseCode: "2001WETGDT", CourseTitle: "Data Mining"}},
		{Metadata: domain.SectionMetadata{CourseCode: "2500WETIOT", CourseTitle: "Internet of Things"}},
		{Metadata: domain.SectionMetadata{CourseCode: "2600WETML", CourseTitle: "Machine Learning"}},
	})
}

type entityLLMFake struct {
	partial domain.PartialEntities
	err     error
	calls   int
}

func (f *entityLLMFake) ExtractEntities(context.Context, string) (domain.PartialEntities, error) {
	f.calls++
	if f.err != nil {
		return domain.PartialEntities{}, f.err
	}
	return f.partial, nil
}

func newExtractor(llm ports.EntityLLM) *EntityExtractor {
	return NewEntityExtractor(rules.MustLoad(), llm, discardLogger())
}

func TestExtractCourseCode(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "Tell me about 2001WETGDT")
	if got.CourseCode != "2001WETGDT" || got.CourseTitle != "Data Mining" {
		t.Fatalf("Extract() = %+v", got)
	}
}

func TestExtractCourseCodeCaseInsensitive(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "tell me about 2001wetgdt")
	if got.CourseCode != "2001WETGDT" {
		t.Fatalf("expected lowercased code to resolve, got %+v", got)
	}
}

func TestExtractCodeNotInCatalogIgnored(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "Tell me about 9999XYZABC")
	if got.CourseCode != "" {
		t.Fatalf("unknown code must not be accepted, got %+v", got)
	}
}

func TestExtractQuotedTitleFuzzy(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "What are the prerequisites for 'Data Mining'?")
	if got.CourseCode != "2001WETGDT" {
		t.Fatalf("expected fuzzy title resolution, got %+v", got)
	}
}

func TestExtractLecturer(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "Which courses are taught by John Doe?")
	if len(got.Lecturers) != 1 || got.Lecturers[0] != "John Doe" {
		t.Fatalf("Extract() lecturers = %v", got.Lecturers)
	}
}

func TestExtractLecturerRequiresCapitalizedName(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "I will stop by tomorrow")
	if len(got.Lecturers) != 0 {
		t.Fatalf("lowercase span must not become a lecturer: %v", got.Lecturers)
	}
}

func TestExtractComparisonCodesFromQuotedTitles(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "Compare 'Data Mining' and 'Internet of Things'")
	if len(got.ComparisonCodes) != 2 {
		t.Fatalf("ComparisonCodes = %v", got.ComparisonCodes)
	}
	if got.ComparisonCodes[0] != "2001WETGDT" || got.ComparisonCodes[1] != "2500WETIOT" {
		t.Fatalf("ComparisonCodes = %v", got.ComparisonCodes)
	}
}

func TestExtractComparisonCodesFromCodes(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "Compare 2001WETGDT and 2500WETIOT")
	if len(got.ComparisonCodes) != 2 {
		t.Fatalf("ComparisonCodes = %v", got.ComparisonCodes)
	}
}

func TestExtractComparisonNeedsTwoResolvedCodes(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "Compare 'Data Mining' and 'Underwater Basket Weaving'")
	if len(got.ComparisonCodes) != 0 {
		t.Fatalf("single resolvable course must not commit comparison codes: %v", got.ComparisonCodes)
	}
}

func TestExtractComparisonNotGatedOffForStandardQuery(t *testing.T) {
	e := newExtractor(nil)

	got := e.Extract(context.Background(), testCatalog(), "Tell me about 'Data Mining' and 'Internet of Things'")
	if len(got.ComparisonCodes) != 0 {
		t.Fatalf("comparison stage must only run for comparison queries: %v", got.ComparisonCodes)
	}
}

func TestExtractLLMFallbackTitle(t *testing.T) {
	llm := &entityLLMFake{partial: domain.PartialEntities{CourseTitle: "Data Mining"}}
	e := newExtractor(llm)

	got := e.Extract(context.Background(), testCatalog(), "What should I know before enrolling?")
	if got.CourseCode != "2001WETGDT" {
		t.Fatalf("expected LLM title to resolve, got %+v", got)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one LLM call, got %d", llm.calls)
	}
}

func TestExtractLLMSkippedWhenCodeAlreadySet(t *testing.T) {
	llm := &entityLLMFake{partial: domain.PartialEntities{CourseCode: "2600WETML"}}
	e := newExtractor(llm)

	got := e.Extract(context.Background(), testCatalog(), "Tell me about 2001WETGDT")
	if got.CourseCode != "2001WETGDT" {
		t.Fatalf("earlier stage must win, got %+v", got)
	}
	if llm.calls != 0 {
		t.Fatalf("LLM must not run when the code slot is filled, got %d calls", llm.calls)
	}
}

func TestExtractLLMFailureLeavesEntitiesUntouched(t *testing.T) {
	llm := &entityLLMFake{err: errors.New("parse failure")}
	e := newExtractor(llm)

	got := e.Extract(context.Background(), testCatalog(), "something unrecognizable")
	if !got.IsZero() {
		t.Fatalf("expected zero entities, got %+v", got)
	}
}

func TestExtractLLMUnverifiedCodeRejected(t *testing.T) {
	llm := &entityLLMFake{partial: domain.PartialEntities{CourseCode: "9999FAKE"}}
	e := newExtractor(llm)

	got := e.Extract(context.Background(), testCatalog(), "something unrecognizable")
	if got.CourseCode != "" {
		t.Fatalf("LLM code absent from catalog must be rejected, got %+v", got)
	}
}

func TestExtractEmptyQueryShortCircuits(t *testing.T) {
	llm := &entityLLMFake{partial: domain.PartialEntities{CourseTitle: "Data Mining"}}
	e := newExtractor(llm)

	got := e.Extract(context.Background(), testCatalog(), "   ")
	if !got.IsZero() {
		t.Fatalf("blank query must yield zero entities, got %+v", got)
	}
	if llm.calls != 0 {
		t.Fatalf("no stage may run on a blank query")
	}
}

func TestExtractFillOnlyEmptySlots(t *testing.T) {
	llm := &entityLLMFake{partial: domain.PartialEntities{
		CourseTitle: "Machine Learning",
		Lecturers:   []string{"Jane Roe"},
	}}
	e := newExtractor(llm)

	// Regex finds John Doe; the LLM proposal for lecturers must lose, but
	// its course title fills the still-empty course slot.
	got := e.Extract(context.Background(), testCatalog(), "Which courses are taught by John Doe?")
	if len(got.Lecturers) != 1 || got.Lecturers[0] != "John Doe" {
		t.Fatalf("lecturer slot overwritten: %v", got.Lecturers)
	}
	if got.CourseCode != "2600WETML" {
		t.Fatalf("expected LLM to fill empty course slot, got %+v", got)
	}
}
