package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/academic-rag/internal/core/catalog"
	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
	"github.com/kirillkom/academic-rag/internal/core/rules"
)

// DefaultRerankTopN is how many documents survive re-ranking.
const DefaultRerankTopN = 5

// Pipeline orchestrates the full query flow: extraction, classification,
// retrieval, re-ranking, context expansion, answer composition and
// confidence scoring. It implements ports.QueryService.
type Pipeline struct {
	extractor *EntityExtractor
	retriever *Retriever
	reranker  ports.Reranker
	expander  *ContextExpander
	composer  *AnswerComposer
	scorer    *ConfidenceScorer
	repo      ports.CourseRepository
	tables    *rules.Tables
	logger    *slog.Logger

	rerankTopN int
	expandMax  int

	catalog atomic.Pointer[catalog.Catalog]

	mu    sync.Mutex
	stats domain.PipelineStats
}

type PipelineDeps struct {
	Extractor *EntityExtractor
	Retriever *Retriever
	Reranker  ports.Reranker
	Expander  *ContextExpander
	Composer  *AnswerComposer
	Scorer    *ConfidenceScorer
	Repo      ports.CourseRepository
	Tables    *rules.Tables
	Logger    *slog.Logger

	// RerankTopN and ExpandMaxSections fall back to the package
	// defaults when zero or negative.
	RerankTopN        int
	ExpandMaxSections int
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		extractor:  deps.Extractor,
		retriever:  deps.Retriever,
		reranker:   deps.Reranker,
		expander:   deps.Expander,
		composer:   deps.Composer,
		scorer:     deps.Scorer,
		repo:       deps.Repo,
		tables:     deps.Tables,
		logger:     deps.Logger,
		rerankTopN: deps.RerankTopN,
		expandMax:  deps.ExpandMaxSections,
	}
	if p.rerankTopN <= 0 {
		p.rerankTopN = DefaultRerankTopN
	}
	if p.expandMax <= 0 {
		p.expandMax = DefaultMaxAdditional
	}
	p.catalog.Store(catalog.Build(nil))
	p.stats.ModeUsage = make(map[domain.Mode]int64)
	return p
}

// ProcessQuery runs every stage for one query. It never returns an
// error: validation failures and panics become error-mode responses.
func (p *Pipeline) ProcessQuery(ctx context.Context, query string) (resp domain.Response) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline_panic", "panic", r, "query", query)
			resp = p.errorResponse(query, fmt.Sprintf("internal error: %v", r), start)
		}
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return p.errorResponse(query, "Query must not be empty.", start)
	}

	cat := p.catalog.Load()
	var steps []string

	extracted := p.extractor.Extract(ctx, cat, query)
	steps = append(steps, fmt.Sprintf("Extracted entities: %s", describeEntities(extracted)))

	mode := ClassifyMode(p.tables, query, extracted)
	steps = append(steps, fmt.Sprintf("Classified query as %s", mode))

	docs := p.retriever.Retrieve(ctx, query, extracted, mode)
	steps = append(steps, fmt.Sprintf("Retrieved %d documents", len(docs)))

	reranked, scores := p.rerank(ctx, query, docs)
	steps = append(steps, fmt.Sprintf("Re-ranked to top %d", len(reranked)))

	// Expansion feeds generation and sources only; confidence judges the
	// re-ranked set, so sections fetched on purpose cannot inflate it.
	docs = p.expand(ctx, query, reranked, mode, extracted)
	steps = append(steps, fmt.Sprintf("Context holds %d documents after expansion", len(docs)))

	answer := p.composer.Compose(ctx, query, docs, extracted, mode)

	metrics, err := p.scorer.Calculate(ctx, query, answer, reranked, scores, extracted, mode)
	if err != nil {
		p.logger.Warn("confidence_failed", "error", err)
		metrics = domain.ConfidenceMetrics{FinalConfidence: 0.5, Reasoning: "Confidence calculation skipped"}
	}
	steps = append(steps, fmt.Sprintf("Confidence %.2f (%s)", metrics.FinalConfidence, metrics.Reasoning))

	elapsed := time.Since(start).Seconds()
	p.record(mode, elapsed, true)

	return domain.Response{
		Query:          query,
		Answer:         answer,
		Confidence:     metrics.FinalConfidence,
		Sources:        collectSources(docs),
		GenerationMode: mode,
		ProcessingTime: elapsed,
		ReasoningSteps: steps,
		Metadata: map[string]any{
			"extracted_entities": extracted,
			"document_count":     len(docs),
			"confidence_metrics": metrics,
		},
	}
}

// rerank enriches each document with its metadata before scoring, keeps
// a stable descending order and truncates to the top N. A scoring
// failure keeps the retrieval order and reports no scores.
func (p *Pipeline) rerank(ctx context.Context, query string, docs []domain.Document) ([]domain.Document, []float64) {
	if len(docs) == 0 {
		return docs, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = enrichedText(doc)
	}

	scores, err := p.reranker.Score(ctx, query, texts)
	if err != nil || len(scores) != len(docs) {
		if err != nil {
			p.logger.Warn("rerank_failed", "error", err)
		}
		if len(docs) > p.rerankTopN {
			docs = docs[:p.rerankTopN]
		}
		return docs, nil
	}

	type scored struct {
		doc   domain.Document
		score float64
	}
	pairs := make([]scored, len(docs))
	for i := range docs {
		pairs[i] = scored{doc: docs[i], score: scores[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	if len(pairs) > p.rerankTopN {
		pairs = pairs[:p.rerankTopN]
	}
	outDocs := make([]domain.Document, len(pairs))
	outScores := make([]float64, len(pairs))
	for i, pr := range pairs {
		outDocs[i] = pr.doc
		outScores[i] = pr.score
	}
	return outDocs, outScores
}

func (p *Pipeline) expand(ctx context.Context, query string, docs []domain.Document, mode domain.Mode, extracted domain.ExtractedEntities) []domain.Document {
	if mode == domain.ModeComparison && len(extracted.ComparisonCodes) >= 2 {
		axes := p.expander.InferComparisonAxes(query)
		return p.expander.ExpandForComparison(ctx, docs, extracted.ComparisonCodes, axes)
	}
	return p.expander.Expand(ctx, docs, query, extracted.CourseCode, p.expandMax)
}

func (p *Pipeline) errorResponse(query, message string, start time.Time) domain.Response {
	elapsed := time.Since(start).Seconds()
	p.record(domain.ModeError, elapsed, false)
	return domain.Response{
		Query:          query,
		Answer:         message,
		Confidence:     0,
		GenerationMode: domain.ModeError,
		ProcessingTime: elapsed,
	}
}

// record updates the counters; the running mean covers successful
// queries only.
func (p *Pipeline) record(mode domain.Mode, elapsed float64, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalQueries++
	p.stats.ModeUsage[mode]++
	if success {
		p.stats.SuccessfulQueries++
		n := float64(p.stats.SuccessfulQueries)
		p.stats.AverageTime += (elapsed - p.stats.AverageTime) / n
	}
}

func (p *Pipeline) Stats() domain.PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	usage := make(map[domain.Mode]int64, len(p.stats.ModeUsage))
	for mode, n := range p.stats.ModeUsage {
		usage[mode] = n
	}
	return domain.PipelineStats{
		TotalQueries:      p.stats.TotalQueries,
		SuccessfulQueries: p.stats.SuccessfulQueries,
		AverageTime:       p.stats.AverageTime,
		ModeUsage:         usage,
	}
}

func (p *Pipeline) CatalogStats() domain.CatalogStats {
	return p.catalog.Load().Stats()
}

func (p *Pipeline) SampleCodes(n int) []string {
	return sample(p.catalog.Load().AllCodes(), n)
}

func (p *Pipeline) SampleTitles(n int) []string {
	return sample(p.catalog.Load().AllTitles(), n)
}

// ReloadCatalog rebuilds the in-memory catalog from the repository and
// swaps it in atomically; in-flight queries keep their snapshot.
func (p *Pipeline) ReloadCatalog(ctx context.Context) error {
	docs, err := p.repo.ListSections(ctx)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}
	cat := catalog.Build(docs)
	p.catalog.Store(cat)
	stats := cat.Stats()
	p.logger.Info("catalog_reloaded", "codes", stats.CodeCount, "titles", stats.TitleCount)
	return nil
}

func sample(values []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if n > len(values) {
		n = len(values)
	}
	out := make([]string, n)
	copy(out, values[:n])
	return out
}

// enrichedText prefixes the section text with its metadata so the
// re-ranker sees course identity and lecturers, not just prose.
func enrichedText(doc domain.Document) string {
	var b strings.Builder
	if doc.Metadata.CourseCode != "" {
		fmt.Fprintf(&b, "[%s] ", doc.Metadata.CourseCode)
	}
	if doc.Metadata.CourseTitle != "" {
		b.WriteString(doc.Metadata.CourseTitle)
	}
	if doc.Metadata.SectionTitle != "" {
		if b.Len() > 0 {
			b.WriteString(" - ")
		}
		b.WriteString(doc.Metadata.SectionTitle)
	}
	if len(doc.Metadata.Lecturers) > 0 {
		fmt.Fprintf(&b, " | lecturers: %s", strings.Join(doc.Metadata.Lecturers, ", "))
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(doc.Text)
	return b.String()
}

func collectSources(docs []domain.Document) []string {
	seen := make(map[string]struct{}, len(docs))
	var out []string
	for _, doc := range docs {
		key := doc.Metadata.SourceKey()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func describeEntities(e domain.ExtractedEntities) string {
	if e.IsZero() {
		return "none"
	}
	var parts []string
	if e.CourseCode != "" {
		parts = append(parts, "code="+e.CourseCode)
	}
	if e.CourseTitle != "" {
		parts = append(parts, "title="+e.CourseTitle)
	}
	if len(e.Lecturers) > 0 {
		parts = append(parts, "lecturers="+strings.Join(e.Lecturers, ","))
	}
	if len(e.ComparisonCodes) > 0 {
		parts = append(parts, "comparison="+strings.Join(e.ComparisonCodes, ","))
	}
	return strings.Join(parts, " ")
}
