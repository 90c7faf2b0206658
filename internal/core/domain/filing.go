package domain

import "time"

// FilingStatus tracks a filing through the ingestion lifecycle.
type FilingStatus string

const (
	FilingReceived   FilingStatus = "received"
	FilingProcessing FilingStatus = "processing"
	FilingIndexed    FilingStatus = "indexed"
	FilingFailed     FilingStatus = "failed"
)

// Filing is one uploaded document tracked by the registry. SourceDoc
// is the filename stem and is the value chunks carry in the index.
type Filing struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	SourceDoc    string       `json:"source_doc"`
	StorageKey   string       `json:"storage_key"`
	Status       FilingStatus `json:"status"`
	ElementCount int          `json:"element_count"`
	ChunkCount   int          `json:"chunk_count"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
