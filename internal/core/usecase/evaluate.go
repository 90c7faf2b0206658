package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

var evalSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "classification": {
      "type": "string",
      "enum": ["CORRECT", "INCORRECT", "PARTIALLY_CORRECT", "DIFFERENT", "NO_ANSWER"]
    },
    "reasoning": {"type": "string"}
  },
  "required": ["classification", "reasoning"]
}`)

type evalResponse struct {
	Classification string `json:"classification"`
	Reasoning      string `json:"reasoning"`
}

// Evaluator judges generated answers against ground truth with a
// structured model call. It shares the bounded-retry discipline of the
// generator and never surfaces an error: an exhausted judge counts as
// INCORRECT so a broken model cannot inflate benchmark scores.
type Evaluator struct {
	model       ports.ChatModel
	prompt      ports.PromptTemplate
	maxAttempts int
	logger      *slog.Logger
}

func NewEvaluator(model ports.ChatModel, prompt ports.PromptTemplate, maxAttempts int, logger *slog.Logger) *Evaluator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{model: model, prompt: prompt, maxAttempts: maxAttempts, logger: logger}
}

func (e *Evaluator) Evaluate(ctx context.Context, question, groundTruth, answer string) domain.EvalResult {
	messages, err := e.prompt.Render(struct {
		Question    string
		GroundTruth string
		Answer      string
	}{Question: question, GroundTruth: groundTruth, Answer: answer})
	if err != nil {
		return domain.EvalResult{
			Classification: domain.EvalIncorrect,
			Reasoning:      fmt.Sprintf("evaluation failed: %v", err),
		}
	}

	var resp evalResponse
	err = runStructured(ctx, e.maxAttempts, messages, correctiveMessage(evalSchema), func(ctx context.Context, msgs []domain.ChatMessage) error {
		resp = evalResponse{}
		return e.model.CompleteStructured(ctx, msgs, evalSchema, &resp)
	})
	if err != nil {
		e.logger.Warn("evaluation exhausted retries", "error", err)
		return domain.EvalResult{
			Classification: domain.EvalIncorrect,
			Reasoning:      fmt.Sprintf("evaluation failed: %v", err),
		}
	}

	return domain.EvalResult{
		Classification: domain.NormalizeEvalClassification(resp.Classification),
		Reasoning:      resp.Reasoning,
	}
}
