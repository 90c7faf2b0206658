package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

type RetrieverConfig struct {
	Mode              domain.RetrievalMode
	TopK              int
	HybridAlpha       float64
	KeywordProperties []string
	// Fusion leg sizes; zero values fall back to TopK.
	VectorTopK  int
	KeywordTopK int
	MergeTopK   int
	RRFK        float64
}

// Retriever dispatches a question to the index in the configured mode.
type Retriever struct {
	index ports.Index
	cfg   RetrieverConfig
}

func NewRetriever(index ports.Index, cfg RetrieverConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if len(cfg.KeywordProperties) == 0 {
		cfg.KeywordProperties = []string{"text", "section_title", "keywords"}
	}
	return &Retriever{index: index, cfg: cfg}
}

// Retrieve runs one retrieval pass. questionVector may be nil for
// keyword mode; every other mode requires it.
func (r *Retriever) Retrieve(ctx context.Context, question string, questionVector []float32, topK int, filter domain.SearchFilter) ([]domain.Hit, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	switch r.cfg.Mode {
	case domain.ModeVector:
		if len(questionVector) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("vector mode requires a question vector"))
		}
		return r.index.QueryVector(ctx, questionVector, filter, topK)

	case domain.ModeKeyword:
		return r.index.QueryKeyword(ctx, question, r.cfg.KeywordProperties, filter, topK)

	case domain.ModeHybrid:
		if len(questionVector) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("hybrid mode requires a question vector"))
		}
		return r.index.QueryHybrid(ctx, question, questionVector, r.cfg.HybridAlpha, filter, topK)

	case domain.ModeFusion:
		return r.retrieveFusion(ctx, question, questionVector, topK, filter)

	default:
		return nil, domain.WrapError(domain.ErrConfig, "retrieve", fmt.Errorf("unsupported retrieval mode %q", r.cfg.Mode))
	}
}

// NeedsVector reports whether the configured mode queries by vector.
func (r *Retriever) NeedsVector() bool {
	return r.cfg.Mode != domain.ModeKeyword
}

func (r *Retriever) retrieveFusion(ctx context.Context, question string, questionVector []float32, topK int, filter domain.SearchFilter) ([]domain.Hit, error) {
	if len(questionVector) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("fusion mode requires a question vector"))
	}
	vectorTopK := r.cfg.VectorTopK
	if vectorTopK <= 0 {
		vectorTopK = topK
	}
	keywordTopK := r.cfg.KeywordTopK
	if keywordTopK <= 0 {
		keywordTopK = topK
	}
	mergeTopK := r.cfg.MergeTopK
	if mergeTopK <= 0 {
		mergeTopK = topK
	}

	vectorHits, err := r.index.QueryVector(ctx, questionVector, filter, vectorTopK)
	if err != nil {
		return nil, fmt.Errorf("fusion vector leg: %w", err)
	}
	keywordHits, err := r.index.QueryKeyword(ctx, question, r.cfg.KeywordProperties, filter, keywordTopK)
	if err != nil {
		return nil, fmt.Errorf("fusion keyword leg: %w", err)
	}
	return fuseHitsRRF(vectorHits, keywordHits, r.cfg.RRFK, mergeTopK), nil
}
