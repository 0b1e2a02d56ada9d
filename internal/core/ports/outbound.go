package ports

import (
	"context"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

// Embedder builds vectors for section text and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the opaque vector search engine. Search is semantic;
// FetchByFilter ignores semantics and pulls documents by metadata alone.
type VectorIndex interface {
	IndexSections(ctx context.Context, docs []domain.Document, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.Document, error)
	FetchByFilter(ctx context.Context, filter domain.SearchFilter, k int) ([]domain.Document, error)
}

// Reranker scores query-document pairs; scores align with the input
// document order.
type Reranker interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// AnswerLLM synthesizes free text from a prompt.
type AnswerLLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EntityLLM is the fallback extraction capability. Implementations return
// an empty PartialEntities and an error on any parse or transport
// failure; callers treat that as "this stage contributed nothing".
type EntityLLM interface {
	ExtractEntities(ctx context.Context, query string) (domain.PartialEntities, error)
}

// CoherenceJudge asks a model to rate answer quality for a query given
// how much context backed it.
type CoherenceJudge interface {
	JudgeCoherence(ctx context.Context, query, answer string, docCount int) (score float64, reasoning string, err error)
}

// CourseRepository persists and reads the section corpus.
type CourseRepository interface {
	ListSections(ctx context.Context) ([]domain.Document, error)
	ReplaceCourseSections(ctx context.Context, courseCode string, docs []domain.Document) error
}

// MessageQueue broadcasts corpus reloads to running query services.
type MessageQueue interface {
	PublishCorpusUpdated(ctx context.Context, detail string) error
	SubscribeCorpusUpdated(ctx context.Context, handler func(context.Context, string) error) error
}

// Chunker splits oversized section text before indexing.
type Chunker interface {
	Split(text string) []string
}
