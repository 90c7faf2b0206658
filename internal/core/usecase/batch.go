package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

// EndpointSet is one backend capable of running the full pipeline.
// Multiple sets spread a benchmark run over several model hosts.
type EndpointSet struct {
	Name string
	QA   ports.QAService
	Eval ports.AnswerEvaluator
}

type BatchConfig struct {
	Workers int
	TopK    int
}

// BatchRunner evaluates a benchmark with a bounded worker pool.
// Endpoints are assigned round-robin by question index, not by worker,
// so the assignment is deterministic regardless of scheduling. Output
// order always matches input order.
type BatchRunner struct {
	endpoints []EndpointSet
	cfg       BatchConfig
	logger    *slog.Logger
}

func NewBatchRunner(endpoints []EndpointSet, cfg BatchConfig, logger *slog.Logger) *BatchRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{endpoints: endpoints, cfg: cfg, logger: logger}
}

func (r *BatchRunner) Run(ctx context.Context, questions []domain.BenchQuestion) []domain.BenchRecord {
	records := make([]domain.BenchRecord, len(questions))
	if len(questions) == 0 || len(r.endpoints) == 0 {
		return records
	}

	workers := r.cfg.Workers
	if workers > len(questions) {
		workers = len(questions)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				records[idx] = r.runOne(ctx, idx, questions[idx])
			}
		}()
	}

	for i := range questions {
		if err := ctx.Err(); err != nil {
			records[i] = canceledRecord(questions[i], err)
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var correct, failed int
	for _, rec := range records {
		switch rec.EvalClassification {
		case domain.EvalCorrect:
			correct++
		case domain.EvalError:
			failed++
		}
	}
	r.logger.Info("batch evaluation finished",
		"questions", len(questions), "correct", correct, "errors", failed)
	return records
}

func (r *BatchRunner) runOne(ctx context.Context, idx int, q domain.BenchQuestion) domain.BenchRecord {
	endpoint := r.endpoints[idx%len(r.endpoints)]
	rec := domain.BenchRecord{
		DocName:      q.DocName,
		QuestionType: q.QuestionType,
		Question:     q.Question,
		GroundTruth:  q.GroundTruth,
		Evidence:     q.Evidence,
		Citations:    []domain.Citation{},
		Hits:         []domain.Hit{},
	}

	state, err := endpoint.QA.Ask(ctx, q.Question, r.cfg.TopK, q.DocName)
	if err != nil {
		r.logger.Warn("batch question failed",
			"index", idx, "endpoint", endpoint.Name, "error", err)
		rec.EvalClassification = domain.EvalError
		rec.Error = err.Error()
		return rec
	}

	rec.Answer = state.Answer.Text
	rec.Citations = state.Answer.Citations
	rec.Hits = state.Hits

	result := endpoint.Eval.Evaluate(ctx, q.Question, q.GroundTruth, state.Answer.Text)
	rec.EvalClassification = result.Classification
	rec.Reasoning = result.Reasoning
	return rec
}

func canceledRecord(q domain.BenchQuestion, err error) domain.BenchRecord {
	return domain.BenchRecord{
		DocName:            q.DocName,
		QuestionType:       q.QuestionType,
		Question:           q.Question,
		GroundTruth:        q.GroundTruth,
		Evidence:           q.Evidence,
		Citations:          []domain.Citation{},
		Hits:               []domain.Hit{},
		EvalClassification: domain.EvalError,
		Error:              err.Error(),
	}
}
