package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/finraglab/finrag/internal/core/domain"
)

// ElementSource partitions a stored document into typed elements in
// reading order.
type ElementSource interface {
	Extract(ctx context.Context, path string, sourceDoc string) ([]domain.Element, error)
}

// Embedder produces dense vectors for chunk texts and questions.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index is the vector/keyword store. Upsert is idempotent on
// (source_doc, chunk_id); queries return hits ordered best-first.
type Index interface {
	Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error
	QueryVector(ctx context.Context, vector []float32, filter domain.SearchFilter, limit int) ([]domain.Hit, error)
	QueryKeyword(ctx context.Context, query string, properties []string, filter domain.SearchFilter, limit int) ([]domain.Hit, error)
	QueryHybrid(ctx context.Context, query string, vector []float32, alpha float64, filter domain.SearchFilter, limit int) ([]domain.Hit, error)
	Count(ctx context.Context, filter domain.SearchFilter) (int, error)
}

// ChatModel is a conversational language model. CompleteStructured
// constrains the reply to the given JSON schema and decodes it into
// out; a reply that does not decode is reported as a validation error.
type ChatModel interface {
	CompleteText(ctx context.Context, messages []domain.ChatMessage) (string, error)
	CompleteStructured(ctx context.Context, messages []domain.ChatMessage, schema json.RawMessage, out any) error
}

// PromptTemplate renders one named prompt into chat messages.
type PromptTemplate interface {
	Render(data any) ([]domain.ChatMessage, error)
}

// FilingRepository is the ingestion status registry.
type FilingRepository interface {
	Create(ctx context.Context, f *domain.Filing) error
	GetByID(ctx context.Context, id string) (*domain.Filing, error)
	UpdateStatus(ctx context.Context, id string, status domain.FilingStatus, errorMessage string) error
	SaveCounts(ctx context.Context, id string, elements, chunks int) error
}

// ObjectStorage stores raw uploaded files. Path resolves a key to a
// local filesystem path for extractors that read from disk.
type ObjectStorage interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}

// MessageQueue decouples upload from ingestion.
type MessageQueue interface {
	PublishFilingReceived(ctx context.Context, filingID string) error
	SubscribeFilingReceived(ctx context.Context, handler func(ctx context.Context, filingID string)) error
	Close()
}

// ArtifactWriter persists intermediate ingestion outputs for
// inspection and replay.
type ArtifactWriter interface {
	WriteElements(sourceDoc string, elements []domain.Element) error
	WriteChunks(sourceDoc string, chunks []domain.Chunk) error
	WriteEmbedded(sourceDoc string, chunks []domain.EmbeddedChunk) error
}
