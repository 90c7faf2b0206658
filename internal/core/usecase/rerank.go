package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

// Reranker strategy names accepted in configuration.
const (
	RerankOff       = "off"
	RerankEmbedding = "embedding"
	RerankJudge     = "judge"
)

// Reranker reorders retrieved hits. Implementations are best-effort:
// on any failure they return the input order truncated to topK, never
// an error.
type Reranker interface {
	Rerank(ctx context.Context, question string, hits []domain.Hit, topK int) []domain.Hit
}

func truncateHits(hits []domain.Hit, topK int) []domain.Hit {
	if topK > 0 && len(hits) > topK {
		return hits[:topK]
	}
	return hits
}

// EmbeddingReranker re-scores hits by dot product against a fresh
// question embedding. With normalized vectors this is cosine order.
type EmbeddingReranker struct {
	embedder ports.Embedder
	logger   *slog.Logger
}

func NewEmbeddingReranker(embedder ports.Embedder, logger *slog.Logger) *EmbeddingReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingReranker{embedder: embedder, logger: logger}
}

func (r *EmbeddingReranker) Rerank(ctx context.Context, question string, hits []domain.Hit, topK int) []domain.Hit {
	if len(hits) == 0 {
		return hits
	}
	queryVec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		r.logger.Warn("rerank query embedding failed, keeping retrieval order", "error", err)
		return truncateHits(hits, topK)
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = embeddingText(h.SectionTitle, h.Text)
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(hits) {
		r.logger.Warn("rerank hit embedding failed, keeping retrieval order", "error", err)
		return truncateHits(hits, topK)
	}

	rescored := make([]domain.Hit, len(hits))
	copy(rescored, hits)
	for i := range rescored {
		rescored[i].Score = dotProduct(queryVec, vectors[i])
	}
	sortHitsByScore(rescored)
	return truncateHits(rescored, topK)
}

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

var rerankSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "ranked_ids": {"type": "array", "items": {"type": "integer"}}
  },
  "required": ["ranked_ids"]
}`)

type rerankResponse struct {
	RankedIDs []int `json:"ranked_ids"`
}

type JudgeRerankerConfig struct {
	MaxCandidates int
	ExcerptWords  int
}

// JudgeReranker asks the model to order candidate descriptions by
// relevance. Hits the judge omits are appended after the ranked ones,
// then hits that had no usable description, then hits beyond the
// candidate window; nothing is ever dropped before the final topK cut.
type JudgeReranker struct {
	model  ports.ChatModel
	prompt ports.PromptTemplate
	cfg    JudgeRerankerConfig
	logger *slog.Logger
}

func NewJudgeReranker(model ports.ChatModel, prompt ports.PromptTemplate, cfg JudgeRerankerConfig, logger *slog.Logger) *JudgeReranker {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 20
	}
	if cfg.ExcerptWords <= 0 {
		cfg.ExcerptWords = 120
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JudgeReranker{model: model, prompt: prompt, cfg: cfg, logger: logger}
}

func (r *JudgeReranker) Rerank(ctx context.Context, question string, hits []domain.Hit, topK int) []domain.Hit {
	if len(hits) == 0 {
		return hits
	}

	window := len(hits)
	if window > r.cfg.MaxCandidates {
		window = r.cfg.MaxCandidates
	}
	remaining := hits[window:]

	var (
		candidates strings.Builder
		idToHit    = make(map[int]domain.Hit, window)
		skipped    []domain.Hit
	)
	for i, h := range hits[:window] {
		desc := r.describeHit(h)
		if desc == "" {
			skipped = append(skipped, h)
			continue
		}
		id := i + 1
		idToHit[id] = h
		fmt.Fprintf(&candidates, "[%d] %s\n", id, desc)
	}
	if len(idToHit) == 0 {
		return truncateHits(hits, topK)
	}

	messages, err := r.prompt.Render(struct {
		Question   string
		Candidates string
	}{Question: question, Candidates: candidates.String()})
	if err != nil {
		r.logger.Warn("rerank prompt failed, keeping retrieval order", "error", err)
		return truncateHits(hits, topK)
	}

	var resp rerankResponse
	if err := r.model.CompleteStructured(ctx, messages, rerankSchema, &resp); err != nil {
		r.logger.Warn("judge rerank failed, keeping retrieval order", "error", err)
		return truncateHits(hits, topK)
	}

	ordered := make([]domain.Hit, 0, len(hits))
	used := make(map[int]bool, len(resp.RankedIDs))
	for _, id := range resp.RankedIDs {
		h, ok := idToHit[id]
		if !ok || used[id] {
			continue
		}
		used[id] = true
		ordered = append(ordered, h)
	}
	// Ranked first, then candidates the judge left out in their
	// original order, then undescribed and out-of-window hits.
	for i, h := range hits[:window] {
		id := i + 1
		if _, ok := idToHit[id]; ok && !used[id] {
			ordered = append(ordered, h)
		}
	}
	ordered = append(ordered, skipped...)
	ordered = append(ordered, remaining...)
	return truncateHits(ordered, topK)
}

// describeHit builds the compact candidate line the judge sees.
func (r *JudgeReranker) describeHit(h domain.Hit) string {
	var parts []string
	if h.SectionTitle != "" {
		parts = append(parts, "section_title: "+h.SectionTitle)
	}
	if len(h.Keywords) > 0 {
		parts = append(parts, "keywords: "+strings.Join(h.Keywords, ", "))
	}
	if h.Summary != "" {
		parts = append(parts, "summary: "+h.Summary)
	}
	if excerpt := truncateWords(h.Text, r.cfg.ExcerptWords); excerpt != "" {
		parts = append(parts, "excerpt: "+excerpt)
	}
	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, "type: "+string(h.Type))
	return strings.Join(parts, " | ")
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}
