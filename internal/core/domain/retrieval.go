package domain

import "fmt"

// RetrievalMode selects how the index is queried for a question.
type RetrievalMode string

const (
	ModeVector  RetrievalMode = "vector"
	ModeKeyword RetrievalMode = "keyword"
	ModeHybrid  RetrievalMode = "hybrid"
	ModeFusion  RetrievalMode = "fusion"
)

// ParseRetrievalMode validates a configured mode string. An unsupported
// value is a configuration error, not a silent fallback.
func ParseRetrievalMode(s string) (RetrievalMode, error) {
	switch m := RetrievalMode(s); m {
	case ModeVector, ModeKeyword, ModeHybrid, ModeFusion:
		return m, nil
	default:
		return "", WrapError(ErrConfig, "parse retrieval mode", fmt.Errorf("unsupported mode %q", s))
	}
}

// SearchFilter narrows index queries to a single document when set.
type SearchFilter struct {
	SourceDoc string
}

// Hit is one retrieved chunk with its retrieval score. Scores from
// different modes are not comparable to each other.
type Hit struct {
	SourceDoc    string    `json:"source_doc"`
	ChunkID      int       `json:"chunk_id"`
	Type         ChunkType `json:"element_type"`
	SectionTitle string    `json:"section_title,omitempty"`
	Text         string    `json:"text"`
	TextAsHTML   string    `json:"text_as_html,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Keywords     []string  `json:"keywords,omitempty"`
	PageStart    int       `json:"page_start"`
	PageEnd      int       `json:"page_end"`
	Score        float64   `json:"score"`
}

// Key identifies a hit across retrieval legs for deduplication.
func (h Hit) Key() string {
	return fmt.Sprintf("%s:%d", h.SourceDoc, h.ChunkID)
}
