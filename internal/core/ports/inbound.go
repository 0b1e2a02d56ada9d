package ports

import (
	"context"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

// QueryService is the inbound contract for the full retrieval pipeline.
// ProcessQuery never returns an error: failures surface as error-mode
// responses so the transport layer always has a well-formed body.
type QueryService interface {
	ProcessQuery(ctx context.Context, query string) domain.Response
	Stats() domain.PipelineStats
	CatalogStats() domain.CatalogStats
	SampleCodes(n int) []string
	SampleTitles(n int) []string
	ReloadCatalog(ctx context.Context) error
}

// CorpusIngestor loads an extracted course corpus into the search
// infrastructure.
type CorpusIngestor interface {
	IngestFile(ctx context.Context, path string) (courses int, sections int, err error)
}
