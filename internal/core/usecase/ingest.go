package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
)

// courseRecord mirrors the extracted-corpus JSON layout.
type courseRecord struct {
	CourseTitle string `json:"course_title"`
	FileName    string `json:"file_name"`
	Details     struct {
		CourseCode   string   `json:"course_code"`
		StudyDomain  string   `json:"study_domain"`
		Semester     string   `json:"semester"`
		Credits      string   `json:"credits"`
		Language     string   `json:"language_of_instructions"`
		Lecturers    []string `json:"lecturers"`
	} `json:"course_details"`
	Sections map[string]string `json:"course_description_sections"`
}

// Ingestor turns extracted course JSON into indexed, persisted section
// documents. It implements ports.CorpusIngestor.
type Ingestor struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.VectorIndex
	repo     ports.CourseRepository
	queue    ports.MessageQueue
	logger   *slog.Logger
}

func NewIngestor(
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	repo ports.CourseRepository,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *Ingestor {
	return &Ingestor{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		repo:     repo,
		queue:    queue,
		logger:   logger,
	}
}

// IngestFile loads one corpus file (a JSON array of course records, or a
// single record), indexes every section and announces the update.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (courses int, sections int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read corpus file: %w", err)
	}

	records, err := decodeCourseRecords(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("decode corpus file %s: %w", path, err)
	}

	for _, record := range records {
		n, err := g.ingestCourse(ctx, record)
		if err != nil {
			return courses, sections, fmt.Errorf("ingest course %s: %w", record.Details.CourseCode, err)
		}
		courses++
		sections += n
		g.logger.Info("course_ingested",
			"course_code", record.Details.CourseCode,
			"sections", n,
		)
	}

	detail := fmt.Sprintf("ingested %d courses (%d sections) from %s", courses, sections, path)
	if err := g.queue.PublishCorpusUpdated(ctx, detail); err != nil {
		g.logger.Warn("corpus_update_publish_failed", "error", err)
	}

	return courses, sections, nil
}

func decodeCourseRecords(raw []byte) ([]courseRecord, error) {
	var records []courseRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	var single courseRecord
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []courseRecord{single}, nil
}

func (g *Ingestor) ingestCourse(ctx context.Context, record courseRecord) (int, error) {
	docs := buildCourseDocuments(record, g.chunker)
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed sections: %w", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embed sections: got %d vectors for %d documents", len(vectors), len(docs))
	}

	if err := g.index.IndexSections(ctx, docs, vectors); err != nil {
		return 0, fmt.Errorf("index sections: %w", err)
	}
	if err := g.repo.ReplaceCourseSections(ctx, record.Details.CourseCode, docs); err != nil {
		return 0, fmt.Errorf("persist sections: %w", err)
	}

	return len(docs), nil
}

// Sections shorter than minSectionSize are buffered and merged so tiny
// fragments do not surface as standalone retrieval hits; a merge buffer
// never grows past maxMergedSize.
const (
	minSectionSize = 250
	maxMergedSize  = 800
)

type pendingSection struct {
	title   string
	content string
}

// buildCourseDocuments produces one summary document plus one document
// per non-empty section, each section prefixed with a course header so
// chunks stay self-describing. Oversized sections are split; undersized
// neighbours are merged under a "Merged: <titles>" section title.
func buildCourseDocuments(record courseRecord, chunker ports.Chunker) []domain.Document {
	meta := domain.SectionMetadata{
		CourseCode:  record.Details.CourseCode,
		CourseTitle: record.CourseTitle,
		Lecturers:   record.Details.Lecturers,
		FileName:    record.FileName,
	}
	if meta.CourseCode == "" {
		return nil
	}

	docs := []domain.Document{summaryDocument(record, meta)}

	titles := make([]string, 0, len(record.Sections))
	for title := range record.Sections {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	var small []pendingSection
	flushSmall := func() {
		docs = append(docs, mergedDocuments(small, meta)...)
		small = nil
	}

	for _, title := range titles {
		content := strings.TrimSpace(record.Sections[title])
		if content == "" {
			continue
		}
		if len(content) < minSectionSize {
			small = append(small, pendingSection{title: title, content: content})
			continue
		}
		flushSmall()

		header := fmt.Sprintf("Regarding the course '%s' (%s). This section describes '%s':\n\n",
			record.CourseTitle, meta.CourseCode, title)

		sectionMeta := meta
		sectionMeta.SectionTitle = title
		for _, chunk := range chunker.Split(content) {
			docs = append(docs, domain.Document{
				Text:     header + chunk,
				Metadata: sectionMeta,
			})
		}
	}
	flushSmall()

	return docs
}

// mergedDocuments folds buffered small sections into as few documents as
// fit under maxMergedSize, keeping every member title visible both in the
// section title and as an inline "--- Section: ---" marker.
func mergedDocuments(sections []pendingSection, meta domain.SectionMetadata) []domain.Document {
	var docs []domain.Document
	var acc string
	var titles []string

	finalize := func() {
		if acc == "" {
			return
		}
		merged := strings.Join(titles, ", ")
		header := fmt.Sprintf("This document contains merged sections (%s) for the course '%s' (%s).\n\n",
			merged, meta.CourseTitle, meta.CourseCode)

		mergedMeta := meta
		mergedMeta.SectionTitle = "Merged: " + merged
		docs = append(docs, domain.Document{
			Text:     header + strings.TrimSpace(acc),
			Metadata: mergedMeta,
		})
		acc, titles = "", nil
	}

	for _, sec := range sections {
		body := fmt.Sprintf("--- Section: %s ---\n%s", sec.title, sec.content)
		if acc != "" && len(acc)+len(body) > maxMergedSize {
			finalize()
		}
		acc += body + "\n\n"
		titles = append(titles, sec.title)
	}
	finalize()

	return docs
}

func summaryDocument(record courseRecord, meta domain.SectionMetadata) domain.Document {
	lines := []string{
		fmt.Sprintf("This is a summary for the course '%s' (%s).", record.CourseTitle, meta.CourseCode),
	}
	if record.Details.StudyDomain != "" {
		lines = append(lines, " - Study Domain: "+record.Details.StudyDomain)
	}
	if record.Details.Language != "" {
		lines = append(lines, " - Language: "+record.Details.Language)
	}
	if record.Details.Credits != "" {
		lines = append(lines, " - ECTS Credits: "+record.Details.Credits)
	}
	if record.Details.Semester != "" {
		lines = append(lines, " - Semester: "+record.Details.Semester)
	}
	if len(record.Details.Lecturers) > 0 {
		lines = append(lines, " - Lecturers: "+strings.Join(record.Details.Lecturers, ", "))
	}

	meta.SectionTitle = "Course Summary"
	return domain.Document{
		Text:     strings.Join(lines, "\n"),
		Metadata: meta,
	}
}
