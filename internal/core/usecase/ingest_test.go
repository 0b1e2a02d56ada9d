package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

type chunkerFake struct {
	maxLen int
}

func (f *chunkerFake) Split(text string) []string {
	if f.maxLen <= 0 || len(text) <= f.maxLen {
		return []string{text}
	}
	var out []string
	for len(text) > f.maxLen {
		out = append(out, text[:f.maxLen])
		text = text[f.maxLen:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishCorpusUpdated(_ context.Context, detail string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, detail)
	return nil
}

func (f *queueFake) SubscribeCorpusUpdated(context.Context, func(context.Context, string) error) error {
	return nil
}

type indexRecorder struct {
	vectorIndexFake
	indexed []domain.Document
}

func (f *indexRecorder) IndexSections(_ context.Context, docs []domain.Document, _ [][]float32) error {
	f.indexed = append(f.indexed, docs...)
	return nil
}

type repoRecorder struct {
	repoFake
	replaced map[string][]domain.Document
}

func (f *repoRecorder) ReplaceCourseSections(_ context.Context, code string, docs []domain.Document) error {
	if f.replaced == nil {
		f.replaced = make(map[string][]domain.Document)
	}
	f.replaced[code] = docs
	return nil
}

// sectionFiller pushes fixture sections past the small-section merge
// threshold so they exercise the regular one-document-per-section path.
var sectionFiller = strings.Repeat(" The course handbook covers this topic in depth.", 6)

var corpusJSON = `[
  {
    "course_title": "Data Mining",
    "file_name": "data_mining.pdf",
    "course_details": {
      "course_code": "2001WETGDT",
      "semester": "1st semester",
      "credits": "6",
      "lecturers": ["John Doe"]
    },
    "course_description_sections": {
      "Prerequisites": "Basic statistics and programming.` + sectionFiller + `",
      "Course Contents": "Pattern mining, classification, clustering.` + sectionFiller + `",
      "Empty Section": "   "
    }
  },
  {
    "course_title": "Internet of Things",
    "file_name": "iot.pdf",
    "course_details": {
      "course_code": "2500WETIOT",
      "lecturers": ["Jane Roe"]
    },
    "course_description_sections": {
      "Course Contents": "Sensors, networks, embedded programming.` + sectionFiller + `"
    }
  }
]`

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func TestIngestFile(t *testing.T) {
	index := &indexRecorder{}
	repo := &repoRecorder{}
	queue := &queueFake{}
	g := NewIngestor(&chunkerFake{}, &embedderFake{}, index, repo, queue, discardLogger())

	courses, sections, err := g.IngestFile(context.Background(), writeCorpus(t, corpusJSON))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if courses != 2 {
		t.Fatalf("expected 2 courses, got %d", courses)
	}
	// Per course: one summary plus each non-empty section.
	if sections != 3+2 {
		t.Fatalf("expected 5 documents, got %d", sections)
	}

	docs, ok := repo.replaced["2001WETGDT"]
	if !ok {
		t.Fatalf("course 2001WETGDT not persisted: %v", repo.replaced)
	}
	if docs[0].Metadata.SectionTitle != "Course Summary" {
		t.Fatalf("first document must be the summary, got %+v", docs[0].Metadata)
	}
	for _, doc := range docs[1:] {
		if !strings.HasPrefix(doc.Text, "Regarding the course 'Data Mining' (2001WETGDT).") {
			t.Fatalf("section header missing: %q", doc.Text)
		}
	}
	for _, doc := range docs {
		if doc.Metadata.SectionTitle == "Empty Section" {
			t.Fatalf("blank section must be skipped")
		}
	}

	if len(index.indexed) != 5 {
		t.Fatalf("expected 5 indexed documents, got %d", len(index.indexed))
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected one corpus-updated event, got %v", queue.published)
	}
}

func TestIngestFileSingleRecord(t *testing.T) {
	single := `{
  "course_title": "Machine Learning",
  "file_name": "ml.pdf",
  "course_details": {"course_code": "2600WETML", "lecturers": []},
  "course_description_sections": {"Course Contents": "Supervised learning."}
}`

	g := NewIngestor(&chunkerFake{}, &embedderFake{}, &indexRecorder{}, &repoRecorder{}, &queueFake{}, discardLogger())

	courses, sections, err := g.IngestFile(context.Background(), writeCorpus(t, single))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if courses != 1 || sections != 2 {
		t.Fatalf("courses=%d sections=%d", courses, sections)
	}
}

func TestIngestFileChunksOversizedSections(t *testing.T) {
	long := strings.Repeat("x", 300)
	corpus := `[{
  "course_title": "Data Mining",
  "file_name": "dm.pdf",
  "course_details": {"course_code": "2001WETGDT"},
  "course_description_sections": {"Course Contents": "` + long + `"}
}]`

	repo := &repoRecorder{}
	g := NewIngestor(&chunkerFake{maxLen: 120}, &embedderFake{}, &indexRecorder{}, repo, &queueFake{}, discardLogger())

	_, sections, err := g.IngestFile(context.Background(), writeCorpus(t, corpus))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	// Summary plus three chunks of the oversized section.
	if sections != 4 {
		t.Fatalf("expected 4 documents, got %d", sections)
	}
	for _, doc := range repo.replaced["2001WETGDT"][1:] {
		if !strings.Contains(doc.Text, "This section describes 'Course Contents'") {
			t.Fatalf("chunk lost its header: %q", doc.Text)
		}
	}
}

func TestIngestMergesSmallSections(t *testing.T) {
	corpus := `[{
  "course_title": "Data Mining",
  "file_name": "dm.pdf",
  "course_details": {"course_code": "2001WETGDT"},
  "course_description_sections": {
    "Assessment method and criteria": "Written exam, 60 percent.",
    "Prerequisites": "Basic statistics.",
    "Study material": "Lecture slides and selected papers.` + sectionFiller + `"
  }
}]`

	repo := &repoRecorder{}
	g := NewIngestor(&chunkerFake{}, &embedderFake{}, &indexRecorder{}, repo, &queueFake{}, discardLogger())

	_, sections, err := g.IngestFile(context.Background(), writeCorpus(t, corpus))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	// Summary, one merged document for the two small sections, and the
	// regular study-material document.
	if sections != 3 {
		t.Fatalf("expected 3 documents, got %d", sections)
	}

	docs := repo.replaced["2001WETGDT"]
	merged := docs[1]
	if merged.Metadata.SectionTitle != "Merged: Assessment method and criteria, Prerequisites" {
		t.Fatalf("unexpected merged title %q", merged.Metadata.SectionTitle)
	}
	if !strings.HasPrefix(merged.Text, "This document contains merged sections (Assessment method and criteria, Prerequisites) for the course 'Data Mining' (2001WETGDT).") {
		t.Fatalf("merged header missing: %q", merged.Text)
	}
	if !strings.Contains(merged.Text, "--- Section: Prerequisites ---\nBasic statistics.") {
		t.Fatalf("merged body must keep inline section markers: %q", merged.Text)
	}
	if docs[2].Metadata.SectionTitle != "Study material" {
		t.Fatalf("merged buffer must flush before the regular section, got %q", docs[2].Metadata.SectionTitle)
	}
}

func TestIngestMergedBufferSplitsAtCapacity(t *testing.T) {
	small := strings.Repeat("a", 245)
	corpus := `[{
  "course_title": "Data Mining",
  "file_name": "dm.pdf",
  "course_details": {"course_code": "2001WETGDT"},
  "course_description_sections": {
    "Alpha": "` + small + `",
    "Beta": "` + small + `",
    "Gamma": "` + small + `"
  }
}]`

	repo := &repoRecorder{}
	g := NewIngestor(&chunkerFake{}, &embedderFake{}, &indexRecorder{}, repo, &queueFake{}, discardLogger())

	_, sections, err := g.IngestFile(context.Background(), writeCorpus(t, corpus))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	// Three small sections overflow one merge buffer: summary plus two
	// merged documents.
	if sections != 3 {
		t.Fatalf("expected 3 documents, got %d", sections)
	}

	docs := repo.replaced["2001WETGDT"]
	if docs[1].Metadata.SectionTitle != "Merged: Alpha, Beta" {
		t.Fatalf("unexpected first merged title %q", docs[1].Metadata.SectionTitle)
	}
	if docs[2].Metadata.SectionTitle != "Merged: Gamma" {
		t.Fatalf("unexpected second merged title %q", docs[2].Metadata.SectionTitle)
	}
}

func TestIngestFileMalformedJSON(t *testing.T) {
	g := NewIngestor(&chunkerFake{}, &embedderFake{}, &indexRecorder{}, &repoRecorder{}, &queueFake{}, discardLogger())

	if _, _, err := g.IngestFile(context.Background(), writeCorpus(t, "{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestIngestFileMissingFile(t *testing.T) {
	g := NewIngestor(&chunkerFake{}, &embedderFake{}, &indexRecorder{}, &repoRecorder{}, &queueFake{}, discardLogger())

	if _, _, err := g.IngestFile(context.Background(), "/nonexistent/corpus.json"); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestIngestFileEmbedFailure(t *testing.T) {
	g := NewIngestor(&chunkerFake{}, &embedderFake{err: errors.New("embed down")}, &indexRecorder{}, &repoRecorder{}, &queueFake{}, discardLogger())

	if _, _, err := g.IngestFile(context.Background(), writeCorpus(t, corpusJSON)); err == nil {
		t.Fatalf("expected embed error")
	}
}

func TestIngestSkipsCourseWithoutCode(t *testing.T) {
	corpus := `[{
  "course_title": "Mystery Course",
  "course_details": {},
  "course_description_sections": {"Course Contents": "text"}
}]`

	index := &indexRecorder{}
	g := NewIngestor(&chunkerFake{}, &embedderFake{}, index, &repoRecorder{}, &queueFake{}, discardLogger())

	courses, sections, err := g.IngestFile(context.Background(), writeCorpus(t, corpus))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if sections != 0 {
		t.Fatalf("codeless course must produce no documents, got %d", sections)
	}
	if courses != 1 {
		t.Fatalf("courses = %d", courses)
	}
	if len(index.indexed) != 0 {
		t.Fatalf("nothing should be indexed: %d", len(index.indexed))
	}
}
