package catalog

import (
	"testing"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

func testDocs() []domain.Document {
	return []domain.Document{
		{Metadata: domain.SectionMetadata{CourseCode: "2001WETGDT", CourseTitle: "Data Mining", FileName: "data_mining.json"}},
		{Metadata: domain.SectionMetadata{CourseCode: "2001WETGDT", CourseTitle: "Data Mining", SectionTitle: "Prerequisites", FileName: "data_mining.json"}},
		{Metadata: domain.SectionMetadata{CourseCode: "2500WETIOT", CourseTitle: "Internet of Things", FileName: "iot.json"}},
		{Metadata: domain.SectionMetadata{CourseCode: "2600WETML", CourseTitle: "Machine Learning", FileName: "ml.json"}},
	}
}

func TestBuildAndLookups(t *testing.T) {
	c := Build(testDocs())

	if !c.ExistsCode("2001WETGDT") {
		t.Fatalf("expected code 2001WETGDT to exist")
	}
	if c.ExistsCode("9999NOPE") {
		t.Fatalf("unexpected code match")
	}

	title, ok := c.Title("2500WETIOT")
	if !ok || title != "Internet of Things" {
		t.Fatalf("Title() = %q, %v", title, ok)
	}

	stats := c.Stats()
	if stats.CodeCount != 3 || stats.TitleCount != 3 || stats.FileCount != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBuildFirstTitleWins(t *testing.T) {
	c := Build([]domain.Document{
		{Metadata: domain.SectionMetadata{CourseCode: "2001WETGDT", CourseTitle: "Data Mining"}},
		{Metadata: domain.SectionMetadata{CourseCode: "2001WETGDT", CourseTitle: "Data Mining (old)"}},
	})

	title, _ := c.Title("2001WETGDT")
	if title != "Data Mining" {
		t.Fatalf("expected first title to win, got %q", title)
	}
}

func TestFuzzyTitleToCodeExactMatch(t *testing.T) {
	c := Build(testDocs())

	code, score, ok := c.FuzzyTitleToCode("data mining", DefaultFuzzyCutoff)
	if !ok {
		t.Fatalf("expected a match")
	}
	if code != "2001WETGDT" {
		t.Fatalf("expected 2001WETGDT, got %s", code)
	}
	if score != 1.0 {
		t.Fatalf("exact case-insensitive match must score 1.0, got %v", score)
	}
}

func TestFuzzyTitleToCodeNearMatch(t *testing.T) {
	c := Build(testDocs())

	code, score, ok := c.FuzzyTitleToCode("Data Minning", DefaultFuzzyCutoff)
	if !ok || code != "2001WETGDT" {
		t.Fatalf("expected near match to resolve, got %q ok=%v", code, ok)
	}
	if score >= 1.0 || score < DefaultFuzzyCutoff {
		t.Fatalf("unexpected score %v", score)
	}
}

func TestFuzzyTitleToCodeBelowCutoff(t *testing.T) {
	c := Build(testDocs())

	if _, _, ok := c.FuzzyTitleToCode("Quantum Chromodynamics", DefaultFuzzyCutoff); ok {
		t.Fatalf("expected no match below cutoff")
	}
}

func TestFuzzyTitleToCodeMonotonicCutoff(t *testing.T) {
	c := Build(testDocs())

	_, score, ok := c.FuzzyTitleToCode("Data Minning", DefaultFuzzyCutoff)
	if !ok {
		t.Fatalf("expected match at default cutoff")
	}
	if _, _, ok := c.FuzzyTitleToCode("Data Minning", score+0.01); ok {
		t.Fatalf("raising the cutoff above the score must not match")
	}
}

func TestFuzzyTitleToCodeDeterministicTieBreak(t *testing.T) {
	// Two codes share one title: the smallest code wins every run.
	c := Build([]domain.Document{
		{Metadata: domain.SectionMetadata{CourseCode: "2900WETZZZ", CourseTitle: "Data Mining"}},
		{Metadata: domain.SectionMetadata{CourseCode: "2001WETGDT", CourseTitle: "Data Mining"}},
	})

	for i := 0; i < 10; i++ {
		code, _, ok := c.FuzzyTitleToCode("Data Mining", DefaultFuzzyCutoff)
		if !ok || code != "2001WETGDT" {
			t.Fatalf("run %d: expected 2001WETGDT, got %q ok=%v", i, code, ok)
		}
	}
}

func TestFuzzyTitleToCodeEmptyInputs(t *testing.T) {
	if _, _, ok := Build(nil).FuzzyTitleToCode("Data Mining", DefaultFuzzyCutoff); ok {
		t.Fatalf("empty catalog must not match")
	}
	if _, _, ok := Build(testDocs()).FuzzyTitleToCode("   ", DefaultFuzzyCutoff); ok {
		t.Fatalf("blank text must not match")
	}
}

func TestCodeForTitle(t *testing.T) {
	c := Build(testDocs())

	code, ok := c.CodeForTitle("internet of things")
	if !ok || code != "2500WETIOT" {
		t.Fatalf("CodeForTitle() = %q, %v", code, ok)
	}
	if _, ok := c.CodeForTitle("Unknown Course"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestAllCodesSorted(t *testing.T) {
	codes := Build(testDocs()).AllCodes()
	if len(codes) != 3 {
		t.Fatalf("expected 3 codes, got %d", len(codes))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
}
