package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

var metadataSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "keywords": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["summary", "keywords"]
}`)

type metadataResponse struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

type EnricherConfig struct {
	MaxKeywords int
	MaxAttempts int
	Overwrite   bool
}

// Enricher attaches a one-line summary and keywords to each chunk
// before embedding. Best-effort per chunk: a failed enrichment leaves
// the chunk exactly as it came in.
type Enricher struct {
	model  ports.ChatModel
	prompt ports.PromptTemplate
	cfg    EnricherConfig
	logger *slog.Logger
}

func NewEnricher(model ports.ChatModel, prompt ports.PromptTemplate, cfg EnricherConfig, logger *slog.Logger) *Enricher {
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = 8
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{model: model, prompt: prompt, cfg: cfg, logger: logger}
}

func (e *Enricher) Enrich(ctx context.Context, chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	for i := range out {
		if strings.TrimSpace(out[i].Text) == "" {
			continue
		}
		if out[i].Summary != "" && !e.cfg.Overwrite {
			continue
		}
		meta, err := e.enrichOne(ctx, out[i])
		if err != nil {
			e.logger.Warn("chunk enrichment failed",
				"source_doc", out[i].SourceDoc, "chunk_id", out[i].ChunkID, "error", err)
			continue
		}
		out[i].Summary = strings.TrimSpace(meta.Summary)
		out[i].Keywords = normalizeKeywords(meta.Keywords, e.cfg.MaxKeywords)
	}
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, chunk domain.Chunk) (metadataResponse, error) {
	messages, err := e.prompt.Render(struct {
		SectionTitle string
		Text         string
		MaxKeywords  int
	}{SectionTitle: chunk.SectionTitle, Text: chunk.Text, MaxKeywords: e.cfg.MaxKeywords})
	if err != nil {
		return metadataResponse{}, err
	}
	var resp metadataResponse
	err = runStructured(ctx, e.cfg.MaxAttempts, messages, correctiveMessage(metadataSchema), func(ctx context.Context, msgs []domain.ChatMessage) error {
		resp = metadataResponse{}
		return e.model.CompleteStructured(ctx, msgs, metadataSchema, &resp)
	})
	return resp, err
}

// normalizeKeywords lowercases, trims, dedupes and caps the keyword
// list while preserving first-occurrence order.
func normalizeKeywords(keywords []string, max int) []string {
	var out []string
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
		if len(out) == max {
			break
		}
	}
	return out
}
