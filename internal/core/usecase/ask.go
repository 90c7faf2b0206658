package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

type AskConfig struct {
	TopK       int
	RerankTopK int
}

// AskPipeline runs one question through embed, retrieve, rerank and
// generate, sequentially. Concurrency lives one level up, across
// questions.
type AskPipeline struct {
	embedder  ports.Embedder
	retriever *Retriever
	reranker  Reranker
	generator *Generator
	cfg       AskConfig
	logger    *slog.Logger
}

func NewAskPipeline(embedder ports.Embedder, retriever *Retriever, reranker Reranker, generator *Generator, cfg AskConfig, logger *slog.Logger) *AskPipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AskPipeline{
		embedder: embedder, retriever: retriever, reranker: reranker,
		generator: generator, cfg: cfg, logger: logger,
	}
}

func (p *AskPipeline) Ask(ctx context.Context, question string, topK int, sourceDoc string) (*domain.QAState, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("empty question"))
	}
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	state := &domain.QAState{Question: question, SourceDoc: sourceDoc, TopK: topK}

	if p.retriever.NeedsVector() {
		vector, err := p.embedder.EmbedQuery(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("embed question: %w", err)
		}
		state.QuestionVector = vector
	}

	hits, err := p.retriever.Retrieve(ctx, question, state.QuestionVector, topK, domain.SearchFilter{SourceDoc: sourceDoc})
	if err != nil {
		return nil, err
	}
	state.Hits = hits

	if p.reranker != nil {
		rerankTopK := p.cfg.RerankTopK
		if rerankTopK <= 0 {
			rerankTopK = topK
		}
		state.Hits = p.reranker.Rerank(ctx, question, state.Hits, rerankTopK)
	}

	answer, err := p.generator.Generate(ctx, question, state.Hits)
	if err != nil {
		return nil, err
	}
	state.Answer = answer

	p.logger.Info("question answered",
		"source_doc", sourceDoc, "hits", len(state.Hits), "citations", len(answer.Citations))
	return state, nil
}
