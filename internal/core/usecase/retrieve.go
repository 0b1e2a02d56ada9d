package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/academic-rag/internal/core/domain"
	"github.com/kirillkom/academic-rag/internal/core/ports"
)

const (
	// DefaultK is the retrieval depth for standard and comparison queries.
	DefaultK = 12
	// LecturerK is wider because lecturer mentions are sparse per section
	// and matching happens post-retrieval.
	LecturerK = 40
)

// Retriever issues mode-specific searches against the vector index.
// Search failures degrade to empty result sets; they never abort the
// pipeline.
type Retriever struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	defaultK  int
	lecturerK int
	logger    *slog.Logger
}

func NewRetriever(embedder ports.Embedder, index ports.VectorIndex, defaultK, lecturerK int, logger *slog.Logger) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	if lecturerK <= 0 {
		lecturerK = LecturerK
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		defaultK:  defaultK,
		lecturerK: lecturerK,
		logger:    logger,
	}
}

// Retrieve runs the mode-appropriate search. Lecturer mode widens k and
// applies no metadata filter: the underlying filter cannot reliably match
// unstructured lecturer lists, so name matching happens downstream.
func (r *Retriever) Retrieve(ctx context.Context, query string, entities domain.ExtractedEntities, mode domain.Mode) []domain.Document {
	if mode == domain.ModeLecturer {
		return r.search(ctx, query, nil, r.lecturerK)
	}

	raw := map[string]any{}
	if entities.CourseCode != "" {
		raw["course_code"] = entities.CourseCode
	}
	return r.search(ctx, query, BuildSearchFilter(raw), r.defaultK)
}

func (r *Retriever) search(ctx context.Context, query string, filter domain.SearchFilter, k int) []domain.Document {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Error("retrieve_embed_failed", "error", err)
		return nil
	}

	docs, err := r.index.Search(ctx, vector, k, filter)
	if err != nil {
		r.logger.Error("retrieve_search_failed", "error", err, "k", k)
		return nil
	}
	return docs
}

// FetchByFilter pulls documents by metadata alone, ignoring the query's
// semantic content. Used by context expansion to fetch specific sections.
func (r *Retriever) FetchByFilter(ctx context.Context, filter domain.SearchFilter, k int) ([]domain.Document, error) {
	return r.index.FetchByFilter(ctx, filter, k)
}

// BuildSearchFilter normalizes a raw filter map into the flat equality
// filter the vector index accepts: empty values are dropped, the
// lecturers field is skipped (matched post-retrieval), and list values
// contribute only their first element. Multi-value OR filtering was
// considered and deliberately left out; the filter contract stays
// single-valued.
func BuildSearchFilter(raw map[string]any) domain.SearchFilter {
	filter := domain.SearchFilter{}
	for field, value := range raw {
		if field == "lecturers" {
			continue
		}
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if v != "" {
				filter[field] = v
			}
		case []string:
			if len(v) > 0 && v[0] != "" {
				filter[field] = v[0]
			}
		}
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}
