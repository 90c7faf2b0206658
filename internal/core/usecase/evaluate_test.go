package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/finraglab/finrag/internal/core/domain"
)

func evalModel(fn func(calls int, out *evalResponse) error) *fakeChatModel {
	m := &fakeChatModel{}
	m.structuredFn = func(ctx context.Context, messages []domain.ChatMessage, schema json.RawMessage, out any) error {
		return fn(m.calls, out.(*evalResponse))
	}
	return m
}

func TestEvaluateReturnsJudgeVerdict(t *testing.T) {
	model := evalModel(func(calls int, out *evalResponse) error {
		out.Classification = "partially_correct"
		out.Reasoning = "value right, period wrong"
		return nil
	})
	e := NewEvaluator(model, fakePrompt{}, 3, nil)

	result := e.Evaluate(context.Background(), "q", "truth", "answer")
	if result.Classification != domain.EvalPartiallyCorrect {
		t.Fatalf("expected normalized PARTIALLY_CORRECT, got %s", result.Classification)
	}
	if result.Reasoning == "" {
		t.Fatal("reasoning must be carried through")
	}
}

func TestEvaluateDefaultsToIncorrectOnExhaustedRetries(t *testing.T) {
	model := evalModel(func(calls int, out *evalResponse) error {
		return domain.WrapError(domain.ErrValidation, "decode structured response", errors.New("garbage"))
	})
	e := NewEvaluator(model, fakePrompt{}, 3, nil)

	result := e.Evaluate(context.Background(), "q", "truth", "answer")
	if result.Classification != domain.EvalIncorrect {
		t.Fatalf("expected INCORRECT on failure, got %s", result.Classification)
	}
	if model.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", model.calls)
	}
}

func TestEvaluateUnknownClassificationCollapsesToIncorrect(t *testing.T) {
	model := evalModel(func(calls int, out *evalResponse) error {
		out.Classification = "MOSTLY_FINE"
		return nil
	})
	e := NewEvaluator(model, fakePrompt{}, 3, nil)

	result := e.Evaluate(context.Background(), "q", "truth", "answer")
	if result.Classification != domain.EvalIncorrect {
		t.Fatalf("unknown verdicts must collapse to INCORRECT, got %s", result.Classification)
	}
}
