package ports

import (
	"context"
	"io"

	"github.com/finraglab/finrag/internal/core/domain"
)

// QAService answers one question against the indexed filings.
// topK <= 0 means the configured default; sourceDoc narrows retrieval
// to one document when non-empty.
type QAService interface {
	Ask(ctx context.Context, question string, topK int, sourceDoc string) (*domain.QAState, error)
}

// FilingIngestor accepts uploads and runs the ingestion pipeline.
type FilingIngestor interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*domain.Filing, error)
	ProcessByID(ctx context.Context, filingID string) error
}

// AnswerEvaluator judges a generated answer against the ground truth.
// It never fails: unrecoverable errors collapse to INCORRECT.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, question, groundTruth, answer string) domain.EvalResult
}
