package domain

// Chat message roles understood by the language model adapters.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Citation resolves a 1-based context position declared by the model
// back to the underlying chunk.
type Citation struct {
	Index       int       `json:"index"`
	SourceDoc   string    `json:"source_doc"`
	ChunkID     int       `json:"chunk_id"`
	ElementType ChunkType `json:"element_type"`
	PageStart   int       `json:"page_start"`
	PageEnd     int       `json:"page_end"`
	Text        string    `json:"text"`
}

// Answer is the generated response. Citations keep first-occurrence
// order and only ever reference hits that were in the prompt.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// QAState carries one question through the pipeline stages.
type QAState struct {
	Question       string
	SourceDoc      string
	TopK           int
	QuestionVector []float32
	Hits           []Hit
	Answer         Answer
}
