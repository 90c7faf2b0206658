// Command batcheval runs a benchmark JSONL file through the QA
// pipeline and writes one evaluated record per question.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/finraglab/finrag/internal/config"
	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
	"github.com/finraglab/finrag/internal/core/usecase"
	"github.com/finraglab/finrag/internal/infrastructure/artifacts/jsonl"
	"github.com/finraglab/finrag/internal/infrastructure/embedding"
	"github.com/finraglab/finrag/internal/infrastructure/llm/ollama"
	"github.com/finraglab/finrag/internal/infrastructure/llm/prompts"
	"github.com/finraglab/finrag/internal/infrastructure/resilience"
	"github.com/finraglab/finrag/internal/infrastructure/vector/weaviate"
	"github.com/finraglab/finrag/internal/observability/logging"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "benchmark questions JSONL file")
		outputPath = flag.String("output", "results.jsonl", "evaluated records JSONL file")
		endpoints  = flag.String("endpoints", "", "comma-separated name=url model endpoints; empty uses OLLAMA_URL")
		workers    = flag.Int("workers", 4, "concurrent questions")
		topK       = flag.Int("topk", 0, "hits per question; 0 uses RETRIEVAL_TOP_K")
	)
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("batcheval", cfg.LogLevel)

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "batcheval: -input is required")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	questions, err := jsonl.Read[domain.BenchQuestion](*inputPath)
	if err != nil {
		logger.Error("read benchmark", "path", *inputPath, "error", err)
		os.Exit(1)
	}

	sets, err := buildEndpoints(cfg, *endpoints, logger)
	if err != nil {
		logger.Error("build endpoints", "error", err)
		os.Exit(1)
	}

	runner := usecase.NewBatchRunner(sets, usecase.BatchConfig{
		Workers: *workers,
		TopK:    *topK,
	}, logger)

	records := runner.Run(ctx, questions)

	if err := jsonl.Write(*outputPath, records); err != nil {
		logger.Error("write results", "path", *outputPath, "error", err)
		os.Exit(1)
	}
	logger.Info("benchmark written", "path", *outputPath, "records", len(records))
}

// buildEndpoints wires one QA pipeline and evaluator per model
// endpoint. Embedders are cached by model and endpoint so endpoints
// sharing an embedding backend reuse one client.
func buildEndpoints(cfg config.Config, spec string, logger *slog.Logger) ([]usecase.EndpointSet, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	library, err := prompts.Load()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	index := weaviate.New(cfg.WeaviateURL, cfg.WeaviateClass, weaviate.Options{
		Executor: executor,
		Logger:   logger,
	})

	embedders := embedding.NewCache(func(embedModel, endpoint string) ports.Embedder {
		return ollama.New(endpoint, ollama.Options{
			EmbedModel: embedModel,
			Normalize:  cfg.EmbedNormalize,
			Executor:   executor,
		})
	})

	var sets []usecase.EndpointSet
	for _, entry := range parseEndpoints(cfg, spec) {
		model := ollama.New(entry.url, ollama.Options{
			ChatModel:  cfg.OllamaChatModel,
			EmbedModel: cfg.OllamaEmbedModel,
			Normalize:  cfg.EmbedNormalize,
			Executor:   executor,
		})
		embedder := embedders.GetOrCreate(cfg.OllamaEmbedModel, entry.url)

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

		sets = append(sets, usecase.EndpointSet{Name: entry.name, QA: qa, Eval: eval})
	}
	return sets, nil
}

type endpointEntry struct {
	name string
	url  string
}

func parseEndpoints(cfg config.Config, spec string) []endpointEntry {
	if strings.TrimSpace(spec) == "" {
		return []endpointEntry{{name: "default", url: cfg.OllamaURL}}
	}
	var entries []endpointEntry
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, url, found := strings.Cut(part, "=")
		if !found {
			name, url = part, part
		}
		entries = append(entries, endpointEntry{name: name, url: url})
	}
	return entries
}
