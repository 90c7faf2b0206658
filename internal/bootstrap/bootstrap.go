// Package bootstrap wires configuration into a running application.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/finraglab/finrag/internal/config"
	"github.com/finraglab/finrag/internal/core/ports"
	"github.com/finraglab/finrag/internal/core/usecase"
	"github.com/finraglab/finrag/internal/infrastructure/artifacts/jsonl"
	"github.com/finraglab/finrag/internal/infrastructure/embedding"
	"github.com/finraglab/finrag/internal/infrastructure/extractor/pdftext"
	"github.com/finraglab/finrag/internal/infrastructure/extractor/unstructured"
	"github.com/finraglab/finrag/internal/infrastructure/llm/ollama"
	"github.com/finraglab/finrag/internal/infrastructure/llm/prompts"
	natsqueue "github.com/finraglab/finrag/internal/infrastructure/queue/nats"
	"github.com/finraglab/finrag/internal/infrastructure/repository/postgres"
	"github.com/finraglab/finrag/internal/infrastructure/resilience"
	"github.com/finraglab/finrag/internal/infrastructure/storage/localfs"
	"github.com/finraglab/finrag/internal/infrastructure/vector/weaviate"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.FilingRepository
	Index    ports.Index
	Ingestor ports.FilingIngestor
	QA       ports.QAService
	Eval     ports.AnswerEvaluator

	Embedders *embedding.Cache

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewFilingRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject, executor, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	library, err := prompts.Load()
	if err != nil {
		closeAll(queue, db)
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	model := ollama.New(cfg.OllamaURL, ollama.Options{
		ChatModel:  cfg.OllamaChatModel,
		EmbedModel: cfg.OllamaEmbedModel,
		Normalize:  cfg.EmbedNormalize,
		Executor:   executor,
	})

	embedders := embedding.NewCache(func(embedModel, endpoint string) ports.Embedder {
		return ollama.New(endpoint, ollama.Options{
			EmbedModel: embedModel,
			Normalize:  cfg.EmbedNormalize,
			Executor:   executor,
		})
	})
	embedder := embedders.GetOrCreate(cfg.OllamaEmbedModel, cfg.OllamaURL)

	index := weaviate.New(cfg.WeaviateURL, cfg.WeaviateClass, weaviate.Options{
		Executor: executor,
		Logger:   logger,
	})

	var source ports.ElementSource
	if cfg.UnstructuredURL != "" {
		source = unstructured.New(cfg.UnstructuredURL, 5*time.Minute)
	} else {
		source = pdftext.New()
	}

	chunker := usecase.NewChunker(usecase.ChunkerConfig{
		MaxUnit:     cfg.ChunkMaxUnit,
		Measure:     cfg.ChunkMeasure,
		NoisePolicy: cfg.ChunkNoisePolicy,
	})

	var enricher *usecase.Enricher
	if cfg.MetadataEnabled {
		enricher = usecase.NewEnricher(model, library.Metadata, usecase.EnricherConfig{
			MaxKeywords: cfg.MetadataMaxKeywords,
		}, logger)
	}

	artifacts := jsonl.NewStore(cfg.ArtifactPath)

	ingestor := usecase.NewIngestPipeline(
		repo, storage, queue, source, chunker, enricher,
		embedder, index, artifacts, logger,
	)

	retriever := usecase.NewRetriever(index, usecase.RetrieverConfig{
		Mode:        cfg.Mode(),
		TopK:        cfg.TopK,
		HybridAlpha: cfg.HybridAlpha,
		VectorTopK:  cfg.FusionVectorTopK,
		KeywordTopK: cfg.FusionKeywordTopK,
		MergeTopK:   cfg.FusionMergeTopK,
		RRFK:        cfg.FusionRRFK,
	})

	var reranker usecase.Reranker
	switch cfg.RerankStrategy {
	case usecase.RerankEmbedding:
		reranker = usecase.NewEmbeddingReranker(embedder, logger)
	case usecase.RerankJudge:
		reranker = usecase.NewJudgeReranker(model, library.Rerank, usecase.JudgeRerankerConfig{
			MaxCandidates: cfg.RerankMaxCandidates,
			ExcerptWords:  cfg.RerankExcerptWords,
		}, logger)
	}

	generator := usecase.NewGenerator(model, library.QA, cfg.GenerateMaxAttempts, logger)

	qa := usecase.NewAskPipeline(embedder, retriever, reranker, generator, usecase.AskConfig{
		TopK:       cfg.TopK,
		RerankTopK: cfg.RerankTopK,
	}, logger)

	eval := usecase.NewEvaluator(model, library.Eval, cfg.GenerateMaxAttempts, logger)

	return &App{
		Config: cfg,

		Queue:    queue,
		Repo:     repo,
		Index:    index,
		Ingestor: ingestor,
		QA:       qa,
		Eval:     eval,

		Embedders: embedders,

		closeFn: func() { closeAll(queue, db) },
	}, nil
}

func closeAll(queue ports.MessageQueue, db *sql.DB) {
	queue.Close()
	_ = db.Close()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
