package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/academic-rag/internal/config"
	"github.com/kirillkom/academic-rag/internal/core/ports"
	"github.com/kirillkom/academic-rag/internal/core/rules"
	"github.com/kirillkom/academic-rag/internal/core/usecase"
	"github.com/kirillkom/academic-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/academic-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/academic-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/academic-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/academic-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/academic-rag/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/academic-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/academic-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Service  ports.QueryService
	Ingestor ports.CorpusIngestor

	closeFn func()
}

// New wires every adapter and use case. The catalog is loaded once here
// so the query service starts warm; later corpus updates arrive over
// the queue.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tables, err := rules.Load()
	if err != nil {
		return nil, fmt.Errorf("load rule tables: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSectionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, logger, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		RequestsPerSecond: cfg.OllamaRequestsPerSecond,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	entityLLM := ollama.NewExtractor(ollamaClient)
	judge := ollama.NewJudge(ollamaClient)

	answerLLM, err := newAnswerLLM(cfg, ollamaClient)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	reranker := tei.New(cfg.RerankerURL)
	chunker := chunking.NewSplitter(cfg.ChunkMaxSize, cfg.ChunkOverlap)

	extractor := usecase.NewEntityExtractor(tables, entityLLM, logger)
	retriever := usecase.NewRetriever(embedder, vectorDB, cfg.RetrievalK, cfg.LecturerK, logger)
	expander := usecase.NewContextExpander(vectorDB, tables, logger)
	composer := usecase.NewAnswerComposer(answerLLM, logger)
	scorer := usecase.NewConfidenceScorer(judge, tables, logger)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Extractor:         extractor,
		Retriever:         retriever,
		Reranker:          reranker,
		Expander:          expander,
		Composer:          composer,
		Scorer:            scorer,
		Repo:              repo,
		Tables:            tables,
		Logger:            logger,
		RerankTopN:        cfg.RerankTopN,
		ExpandMaxSections: cfg.ExpandMaxAdd,
	})
	if err := pipeline.ReloadCatalog(ctx); err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("warm catalog: %w", err)
	}

	ingestor := usecase.NewIngestor(chunker, embedder, vectorDB, repo, queue, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Service:  pipeline,
		Ingestor: ingestor,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func newAnswerLLM(cfg config.Config, ollamaClient *ollama.Client) (ports.AnswerLLM, error) {
	if cfg.AnswerProvider != "openai" {
		return ollama.NewGenerator(ollamaClient), nil
	}
	provider, err := openai.New(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return nil, fmt.Errorf("init openai provider: %w", err)
	}
	return provider, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
