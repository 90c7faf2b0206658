package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
)

// IngestPipeline runs a filing from upload to indexed chunks:
// extract, merge, enrich, embed, upsert, with JSONL artifacts written
// after each stage.
type IngestPipeline struct {
	repo      ports.FilingRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	source    ports.ElementSource
	chunker   *Chunker
	enricher  *Enricher
	embedder  ports.Embedder
	index     ports.Index
	artifacts ports.ArtifactWriter
	logger    *slog.Logger
}

func NewIngestPipeline(
	repo ports.FilingRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	source ports.ElementSource,
	chunker *Chunker,
	enricher *Enricher,
	embedder ports.Embedder,
	index ports.Index,
	artifacts ports.ArtifactWriter,
	logger *slog.Logger,
) *IngestPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestPipeline{
		repo: repo, storage: storage, queue: queue, source: source,
		chunker: chunker, enricher: enricher, embedder: embedder,
		index: index, artifacts: artifacts, logger: logger,
	}
}

// Upload stores the raw file, registers the filing and publishes the
// event that triggers processing on a worker.
func (p *IngestPipeline) Upload(ctx context.Context, filename string, r io.Reader) (*domain.Filing, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload filing", errors.New("missing filename"))
	}

	filing := &domain.Filing{
		ID:         uuid.NewString(),
		Filename:   filename,
		SourceDoc:  sourceDocName(filename),
		StorageKey: "",
		Status:     domain.FilingReceived,
	}
	filing.StorageKey = filing.ID + "/" + filename

	if err := p.storage.Save(ctx, filing.StorageKey, r); err != nil {
		return nil, fmt.Errorf("store filing: %w", err)
	}
	if err := p.repo.Create(ctx, filing); err != nil {
		return nil, fmt.Errorf("register filing: %w", err)
	}
	if err := p.queue.PublishFilingReceived(ctx, filing.ID); err != nil {
		return nil, fmt.Errorf("publish filing event: %w", err)
	}

	p.logger.Info("filing uploaded", "filing_id", filing.ID, "source_doc", filing.SourceDoc)
	return filing, nil
}

// ProcessByID runs the ingestion pipeline for a registered filing and
// records the outcome in the registry.
func (p *IngestPipeline) ProcessByID(ctx context.Context, filingID string) error {
	filing, err := p.repo.GetByID(ctx, filingID)
	if err != nil {
		return fmt.Errorf("load filing %s: %w", filingID, err)
	}
	if err := p.repo.UpdateStatus(ctx, filing.ID, domain.FilingProcessing, ""); err != nil {
		return fmt.Errorf("mark filing processing: %w", err)
	}

	elements, chunks, err := p.process(ctx, filing)
	if err != nil {
		if updErr := p.repo.UpdateStatus(ctx, filing.ID, domain.FilingFailed, err.Error()); updErr != nil {
			p.logger.Error("mark filing failed", "filing_id", filing.ID, "error", updErr)
		}
		return err
	}

	if err := p.repo.SaveCounts(ctx, filing.ID, elements, chunks); err != nil {
		return fmt.Errorf("save filing counts: %w", err)
	}
	if err := p.repo.UpdateStatus(ctx, filing.ID, domain.FilingIndexed, ""); err != nil {
		return fmt.Errorf("mark filing indexed: %w", err)
	}
	p.logger.Info("filing indexed", "filing_id", filing.ID, "elements", elements, "chunks", chunks)
	return nil
}

func (p *IngestPipeline) process(ctx context.Context, filing *domain.Filing) (elementCount, chunkCount int, err error) {
	path := p.storage.Path(filing.StorageKey)
	elements, err := p.source.Extract(ctx, path, filing.SourceDoc)
	if err != nil {
		return 0, 0, fmt.Errorf("extract elements: %w", err)
	}
	if err := p.artifacts.WriteElements(filing.SourceDoc, elements); err != nil {
		return 0, 0, fmt.Errorf("write element artifact: %w", err)
	}

	chunks := p.chunker.Merge(elements)
	if p.enricher != nil {
		chunks = p.enricher.Enrich(ctx, chunks)
	}
	if err := p.artifacts.WriteChunks(filing.SourceDoc, chunks); err != nil {
		return 0, 0, fmt.Errorf("write chunk artifact: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = embeddingText(c.SectionTitle, c.Text)
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, 0, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	embedded := make([]domain.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		embedded[i] = domain.EmbeddedChunk{Chunk: c, Embedding: vectors[i]}
	}
	if err := p.artifacts.WriteEmbedded(filing.SourceDoc, embedded); err != nil {
		return 0, 0, fmt.Errorf("write embedded artifact: %w", err)
	}
	if err := p.index.Upsert(ctx, embedded); err != nil {
		return 0, 0, fmt.Errorf("index chunks: %w", err)
	}
	return len(elements), len(chunks), nil
}

// embeddingText is the text actually embedded for a chunk: the section
// heading gives short chunks context the raw text lacks.
func embeddingText(sectionTitle, text string) string {
	if sectionTitle == "" {
		return text
	}
	return sectionTitle + "\n" + text
}

// sourceDocName is the filename stem, the document identity chunks
// carry in the index and benchmarks filter by.
func sourceDocName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
