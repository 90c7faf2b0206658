package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

// NoAnswerText is returned verbatim when retrieval produced nothing to
// ground an answer on.
const NoAnswerText = "No Answer"

const defaultMaxAttempts = 3

var qaSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "answer": {"type": "string"},
    "citations": {"type": "array", "items": {"type": "integer"}}
  },
  "required": ["answer", "citations"]
}`)

type qaResponse struct {
	Answer    string `json:"answer"`
	Citations []int  `json:"citations"`
}

// Generator produces a grounded answer with citations from retrieved
// hits.
type Generator struct {
	model       ports.ChatModel
	prompt      ports.PromptTemplate
	maxAttempts int
	logger      *slog.Logger
}

func NewGenerator(model ports.ChatModel, prompt ports.PromptTemplate, maxAttempts int, logger *slog.Logger) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, prompt: prompt, maxAttempts: maxAttempts, logger: logger}
}

// Generate answers the question from the hits. With no hits it returns
// the no-answer sentinel without calling the model at all.
func (g *Generator) Generate(ctx context.Context, question string, hits []domain.Hit) (domain.Answer, error) {
	if len(hits) == 0 {
		return domain.Answer{Text: NoAnswerText, Citations: []domain.Citation{}}, nil
	}

	messages, err := g.prompt.Render(struct {
		Question string
		Context  string
	}{Question: question, Context: renderHitContext(hits)})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("render qa prompt: %w", err)
	}

	var resp qaResponse
	err = runStructured(ctx, g.maxAttempts, messages, correctiveMessage(qaSchema), func(ctx context.Context, msgs []domain.ChatMessage) error {
		resp = qaResponse{}
		return g.model.CompleteStructured(ctx, msgs, qaSchema, &resp)
	})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	citations := reconcileCitations(resp.Answer, resp.Citations, hits)
	if len(citations) == 0 && len(resp.Citations) > 0 {
		g.logger.Warn("all declared citations out of range", "declared", len(resp.Citations), "hits", len(hits))
	}
	return domain.Answer{Text: resp.Answer, Citations: citations}, nil
}

// renderHitContext numbers hits 1-based so the model can cite them by
// position.
func renderHitContext(hits []domain.Hit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] source=%s pages=%d-%d", i+1, h.SourceDoc, h.PageStart, h.PageEnd)
		if h.SectionTitle != "" {
			fmt.Fprintf(&b, " section=%s", h.SectionTitle)
		}
		b.WriteString("\n")
		b.WriteString(h.Text)
	}
	return b.String()
}

func correctiveMessage(schema json.RawMessage) string {
	return "The previous reply was not valid for the required schema. " +
		"Respond with a single JSON object matching this schema and nothing else:\n" + string(schema)
}

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// reconcileCitations keeps the declared citation list when any entry is
// usable, falling back to [n] markers scanned out of the answer text.
// Either way the result preserves first-occurrence order and only
// contains indices inside [1, len(hits)].
func reconcileCitations(answer string, declared []int, hits []domain.Hit) []domain.Citation {
	indices := dedupeInRange(declared, len(hits))
	if len(indices) == 0 {
		var scanned []int
		for _, m := range citationMarkerRe.FindAllStringSubmatch(answer, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil {
				scanned = append(scanned, n)
			}
		}
		indices = dedupeInRange(scanned, len(hits))
	}

	citations := make([]domain.Citation, 0, len(indices))
	for _, idx := range indices {
		h := hits[idx-1]
		citations = append(citations, domain.Citation{
			Index:       idx,
			SourceDoc:   h.SourceDoc,
			ChunkID:     h.ChunkID,
			ElementType: h.Type,
			PageStart:   h.PageStart,
			PageEnd:     h.PageEnd,
			Text:        h.Text,
		})
	}
	return citations
}

func dedupeInRange(indices []int, n int) []int {
	var out []int
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > n || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}
