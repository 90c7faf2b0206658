package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/finraglab/finrag/internal/core/domain"
)

func metaModel(fn func(calls int, out *metadataResponse) error) *fakeChatModel {
	m := &fakeChatModel{}
	m.structuredFn = func(ctx context.Context, messages []domain.ChatMessage, schema json.RawMessage, out any) error {
		return fn(m.calls, out.(*metadataResponse))
	}
	return m
}

func TestEnrichAddsSummaryAndNormalizedKeywords(t *testing.T) {
	model := metaModel(func(calls int, out *metadataResponse) error {
		out.Summary = " Net revenue summary "
		out.Keywords = []string{"Revenue", "revenue", " GROWTH ", "", "margin", "cash", "debt"}
		return nil
	})
	e := NewEnricher(model, fakePrompt{}, EnricherConfig{MaxKeywords: 4}, nil)

	chunks := e.Enrich(context.Background(), []domain.Chunk{{SourceDoc: "doc", ChunkID: 1, Text: "Revenue grew."}})
	if chunks[0].Summary != "Net revenue summary" {
		t.Fatalf("unexpected summary %q", chunks[0].Summary)
	}
	want := []string{"revenue", "growth", "margin", "cash"}
	if len(chunks[0].Keywords) != len(want) {
		t.Fatalf("expected %d keywords, got %v", len(want), chunks[0].Keywords)
	}
	for i, kw := range want {
		if chunks[0].Keywords[i] != kw {
			t.Fatalf("keyword %d: expected %q, got %q", i, kw, chunks[0].Keywords[i])
		}
	}
}

func TestEnrichLeavesChunkUntouchedOnFailure(t *testing.T) {
	model := metaModel(func(calls int, out *metadataResponse) error {
		return errors.New("model down")
	})
	e := NewEnricher(model, fakePrompt{}, EnricherConfig{}, nil)
	in := []domain.Chunk{{SourceDoc: "doc", ChunkID: 1, Text: "text"}}

	chunks := e.Enrich(context.Background(), in)
	if chunks[0].Summary != "" || chunks[0].Keywords != nil {
		t.Fatalf("failed enrichment must not modify the chunk, got %+v", chunks[0])
	}
}

func TestEnrichSkipsAlreadyEnrichedChunks(t *testing.T) {
	model := metaModel(func(calls int, out *metadataResponse) error {
		t.Fatal("model must not be called for enriched chunks")
		return nil
	})
	e := NewEnricher(model, fakePrompt{}, EnricherConfig{}, nil)
	in := []domain.Chunk{{SourceDoc: "doc", ChunkID: 1, Text: "text", Summary: "already done"}}

	chunks := e.Enrich(context.Background(), in)
	if chunks[0].Summary != "already done" {
		t.Fatalf("existing summary overwritten: %q", chunks[0].Summary)
	}
}

func TestEnrichSkipsEmptyChunks(t *testing.T) {
	model := metaModel(func(calls int, out *metadataResponse) error {
		t.Fatal("model must not be called for empty chunks")
		return nil
	})
	e := NewEnricher(model, fakePrompt{}, EnricherConfig{}, nil)
	e.Enrich(context.Background(), []domain.Chunk{{SourceDoc: "doc", ChunkID: 1, Text: "   "}})
}
