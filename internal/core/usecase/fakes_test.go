package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finraglab/finrag/internal/core/domain"
)

type fakePrompt struct{}

func (fakePrompt) Render(data any) ([]domain.ChatMessage, error) {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "system"},
		{Role: domain.RoleUser, Content: fmt.Sprintf("%+v", data)},
	}, nil
}

type fakeChatModel struct {
	structuredFn func(ctx context.Context, messages []domain.ChatMessage, schema json.RawMessage, out any) error
	calls        int
}

func (m *fakeChatModel) CompleteText(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	return "", nil
}

func (m *fakeChatModel) CompleteStructured(ctx context.Context, messages []domain.ChatMessage, schema json.RawMessage, out any) error {
	m.calls++
	return m.structuredFn(ctx, messages, schema, out)
}

type fakeEmbedder struct {
	queryVec []float32
	queryErr error
	embedFn  func(texts []string) ([][]float32, error)
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.embedFn != nil {
		return e.embedFn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	if e.queryVec != nil {
		return e.queryVec, nil
	}
	return []float32{1, 0}, nil
}

type fakeIndex struct {
	vectorHits  []domain.Hit
	keywordHits []domain.Hit
	hybridHits  []domain.Hit
	vectorErr   error
	keywordErr  error

	vectorCalls  int
	keywordCalls int
	hybridCalls  int
	lastLimit    int
	lastFilter   domain.SearchFilter
	upserted     []domain.EmbeddedChunk
}

func (f *fakeIndex) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeIndex) QueryVector(ctx context.Context, vector []float32, filter domain.SearchFilter, limit int) ([]domain.Hit, error) {
	f.vectorCalls++
	f.lastLimit = limit
	f.lastFilter = filter
	return f.vectorHits, f.vectorErr
}

func (f *fakeIndex) QueryKeyword(ctx context.Context, query string, properties []string, filter domain.SearchFilter, limit int) ([]domain.Hit, error) {
	f.keywordCalls++
	f.lastLimit = limit
	f.lastFilter = filter
	return f.keywordHits, f.keywordErr
}

func (f *fakeIndex) QueryHybrid(ctx context.Context, query string, vector []float32, alpha float64, filter domain.SearchFilter, limit int) ([]domain.Hit, error) {
	f.hybridCalls++
	f.lastLimit = limit
	f.lastFilter = filter
	return f.hybridHits, nil
}

func (f *fakeIndex) Count(ctx context.Context, filter domain.SearchFilter) (int, error) {
	return len(f.vectorHits), nil
}

func hit(doc string, id int) domain.Hit {
	return domain.Hit{SourceDoc: doc, ChunkID: id, Text: fmt.Sprintf("chunk %s/%d", doc, id)}
}
