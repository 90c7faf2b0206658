package domain

import "strings"

// EvalClassification is the judge verdict for a generated answer
// against the ground truth.
type EvalClassification string

const (
	EvalCorrect          EvalClassification = "CORRECT"
	EvalIncorrect        EvalClassification = "INCORRECT"
	EvalPartiallyCorrect EvalClassification = "PARTIALLY_CORRECT"
	EvalDifferent        EvalClassification = "DIFFERENT"
	EvalNoAnswer         EvalClassification = "NO_ANSWER"

	// EvalError marks a batch record whose pipeline failed before a
	// verdict could be produced. Never returned by the judge itself.
	EvalError EvalClassification = "ERROR"
)

// NormalizeEvalClassification maps raw judge output onto the closed
// verdict set. Anything unrecognized counts as INCORRECT.
func NormalizeEvalClassification(s string) EvalClassification {
	switch c := EvalClassification(strings.ToUpper(strings.TrimSpace(s))); c {
	case EvalCorrect, EvalIncorrect, EvalPartiallyCorrect, EvalDifferent, EvalNoAnswer:
		return c
	default:
		return EvalIncorrect
	}
}

type EvalResult struct {
	Classification EvalClassification `json:"classification"`
	Reasoning      string             `json:"reasoning"`
}

// BenchEvidence is one ground-truth evidence span from the benchmark.
type BenchEvidence struct {
	Text string `json:"evidence_text"`
	Page int    `json:"evidence_page_num"`
}

// BenchQuestion is one input row of a benchmark JSONL file.
type BenchQuestion struct {
	DocName      string          `json:"doc_name"`
	QuestionType string          `json:"question_type,omitempty"`
	Question     string          `json:"question"`
	GroundTruth  string          `json:"answer"`
	Evidence     []BenchEvidence `json:"evidence,omitempty"`
}

// BenchRecord is one output row of a batch evaluation run.
type BenchRecord struct {
	DocName            string             `json:"doc_name"`
	QuestionType       string             `json:"question_type,omitempty"`
	Question           string             `json:"question"`
	GroundTruth        string             `json:"ground_truth"`
	Evidence           []BenchEvidence    `json:"evidence,omitempty"`
	Answer             string             `json:"answer"`
	Citations          []Citation         `json:"citations"`
	Hits               []Hit              `json:"hits"`
	EvalClassification EvalClassification `json:"eval_classification"`
	Reasoning          string             `json:"reasoning,omitempty"`
	Error              string             `json:"error,omitempty"`
}
