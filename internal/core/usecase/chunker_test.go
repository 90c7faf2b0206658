package usecase

import (
	"strings"
	"testing"

	"github.com/finraglab/finrag/internal/core/domain"
)

func el(t domain.ElementType, text string, page int) domain.Element {
	return domain.Element{SourceDoc: "acme-10k", Type: t, Text: text, Page: page}
}

func TestMergeTitleFlushesAndTablesStayAtomic(t *testing.T) {
	elements := []domain.Element{
		el(domain.ElementTitle, "Item 7", 1),
		el(domain.ElementTitle, "Management Discussion", 1),
		el(domain.ElementBody, "Revenue grew.", 1),
		el(domain.ElementTitle, "Liquidity", 2),
		{SourceDoc: "acme-10k", Type: domain.ElementTable, Text: "cash 100", Page: 2, TableHTML: "<table><tr><td>cash</td></tr></table>"},
		el(domain.ElementBody, "Cash remained strong.", 2),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 100}).Merge(elements)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if chunks[0].SectionTitle != "Item 7 Management Discussion" {
		t.Fatalf("consecutive titles should join, got %q", chunks[0].SectionTitle)
	}
	if chunks[0].Text != "Revenue grew." {
		t.Fatalf("unexpected first chunk text %q", chunks[0].Text)
	}

	if chunks[1].Type != domain.ChunkTable {
		t.Fatalf("expected table chunk, got %s", chunks[1].Type)
	}
	if chunks[1].SectionTitle != "Liquidity" {
		t.Fatalf("table should consume the pending title, got %q", chunks[1].SectionTitle)
	}
	if chunks[1].TextAsHTML == "" {
		t.Fatal("table chunk must keep its html payload")
	}
	if len(chunks[1].SourceElements) != 1 {
		t.Fatalf("table chunk must wrap exactly one element, got %v", chunks[1].SourceElements)
	}

	// The table does not reset the active section.
	if chunks[2].SectionTitle != "Liquidity" {
		t.Fatalf("body after table should keep section, got %q", chunks[2].SectionTitle)
	}

	for i, c := range chunks {
		if c.ChunkID != i+1 {
			t.Fatalf("chunk ids must be monotonic from 1, got %d at %d", c.ChunkID, i)
		}
	}
}

func TestMergeOversizedElementPassesThroughWhole(t *testing.T) {
	big := strings.Repeat("x", 500)
	elements := []domain.Element{
		el(domain.ElementBody, "small before", 1),
		el(domain.ElementBody, big, 1),
		el(domain.ElementBody, "small after", 2),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 100}).Merge(elements)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Text != big {
		t.Fatal("oversized element must not be truncated or merged")
	}
}

func TestMergeRespectsMaxUnitAcrossBodies(t *testing.T) {
	elements := []domain.Element{
		el(domain.ElementBody, strings.Repeat("a", 60), 1),
		el(domain.ElementBody, strings.Repeat("b", 60), 1),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 100}).Merge(elements)
	if len(chunks) != 2 {
		t.Fatalf("expected split into 2 chunks, got %d", len(chunks))
	}
}

func TestMergeWordMeasure(t *testing.T) {
	elements := []domain.Element{
		el(domain.ElementBody, "one two three", 1),
		el(domain.ElementBody, "four five six", 1),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 4, Measure: MeasureWords}).Merge(elements)
	if len(chunks) != 2 {
		t.Fatalf("expected word-measured split into 2 chunks, got %d", len(chunks))
	}
	chunks = NewChunker(ChunkerConfig{MaxUnit: 6, Measure: MeasureWords}).Merge(elements)
	if len(chunks) != 1 {
		t.Fatalf("expected merge into 1 chunk, got %d", len(chunks))
	}
}

func TestMergeNoiseDropsAtFlushBoundary(t *testing.T) {
	elements := []domain.Element{
		el(domain.ElementBody, "before noise", 1),
		el(domain.ElementNoise, "Page 42", 1),
		el(domain.ElementBody, "after noise", 1),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 1000}).Merge(elements)
	if len(chunks) != 2 {
		t.Fatalf("noise must split the buffer, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if strings.Contains(c.Text, "Page 42") {
			t.Fatalf("dropped noise leaked into chunk %q", c.Text)
		}
	}
}

func TestMergeNoiseFoldPolicy(t *testing.T) {
	elements := []domain.Element{
		el(domain.ElementBody, "before", 1),
		el(domain.ElementNoise, "footer", 1),
		el(domain.ElementBody, "after", 1),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 1000, NoisePolicy: NoiseFold}).Merge(elements)
	if len(chunks) != 1 {
		t.Fatalf("folded noise should not split, got %d chunks", len(chunks))
	}
	if chunks[0].Text != "before footer after" {
		t.Fatalf("unexpected folded text %q", chunks[0].Text)
	}
}

func TestMergePagesSpanBufferedElements(t *testing.T) {
	elements := []domain.Element{
		el(domain.ElementBody, "starts here", 3),
		el(domain.ElementBody, "ends here", 5),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 1000}).Merge(elements)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].PageStart != 3 || chunks[0].PageEnd != 5 {
		t.Fatalf("expected pages 3-5, got %d-%d", chunks[0].PageStart, chunks[0].PageEnd)
	}
	if chunks[0].PageStart > chunks[0].PageEnd {
		t.Fatal("page_start must not exceed page_end")
	}
}

func TestMergeSectionResolvedWhenChunkStarts(t *testing.T) {
	// A title arriving mid-buffer flushes first, so the earlier text
	// keeps the earlier section.
	elements := []domain.Element{
		el(domain.ElementTitle, "Alpha", 1),
		el(domain.ElementBody, "alpha text", 1),
		el(domain.ElementTitle, "Beta", 1),
		el(domain.ElementBody, "beta text", 1),
	}

	chunks := NewChunker(ChunkerConfig{MaxUnit: 1000}).Merge(elements)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].SectionTitle != "Alpha" || chunks[1].SectionTitle != "Beta" {
		t.Fatalf("sections resolved wrong: %q, %q", chunks[0].SectionTitle, chunks[1].SectionTitle)
	}
}
