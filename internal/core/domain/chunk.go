package domain

type ChunkType string

const (
	ChunkText  ChunkType = "text"
	ChunkTable ChunkType = "table"
)

// Chunk is a retrieval-sized unit merged from one or more contiguous
// elements. ChunkID is monotonic per document run; a table chunk always
// wraps exactly one source element.
type Chunk struct {
	SourceDoc      string    `json:"source_doc"`
	ChunkID        int       `json:"chunk_id"`
	Type           ChunkType `json:"type"`
	Text           string    `json:"text"`
	SectionTitle   string    `json:"section_title,omitempty"`
	PageStart      int       `json:"page_start"`
	PageEnd        int       `json:"page_end"`
	SourceElements []int     `json:"source_elements"`
	TextAsHTML     string    `json:"text_as_html,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Keywords       []string  `json:"keywords,omitempty"`
}

// EmbeddedChunk is a chunk plus its dense vector. (SourceDoc, ChunkID)
// is the idempotent upsert key: re-ingesting the same document
// overwrites stored objects instead of duplicating them.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}
