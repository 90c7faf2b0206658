package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/finraglab/finrag/internal/core/domain"
)

// Measure selects how chunk size is counted against MaxUnit.
const (
	MeasureChars = "chars"
	MeasureWords = "words"
)

// Noise element policies.
const (
	NoiseDrop = "drop"
	NoiseFold = "fold"
)

const defaultMaxUnit = 2000

type ChunkerConfig struct {
	MaxUnit     int
	Measure     string
	NoisePolicy string
}

// Chunker merges extracted elements into retrieval-sized chunks in a
// single left-to-right pass. Titles delimit sections, tables stay
// atomic, and body text accumulates until MaxUnit would be exceeded.
type Chunker struct {
	maxUnit     int
	measure     string
	noisePolicy string
}

func NewChunker(cfg ChunkerConfig) *Chunker {
	c := &Chunker{
		maxUnit:     cfg.MaxUnit,
		measure:     cfg.Measure,
		noisePolicy: cfg.NoisePolicy,
	}
	if c.maxUnit <= 0 {
		c.maxUnit = defaultMaxUnit
	}
	if c.measure == "" {
		c.measure = MeasureChars
	}
	if c.noisePolicy == "" {
		c.noisePolicy = NoiseDrop
	}
	return c
}

// Merge produces chunks with monotonic ids starting at 1. Every
// non-noise element ends up in exactly one chunk; noise is dropped at
// a flush boundary under the default policy so text on either side of
// it never merges.
func (c *Chunker) Merge(elements []domain.Element) []domain.Chunk {
	var (
		chunks       []domain.Chunk
		pending      []domain.Element
		pendingIdx   []int
		pendingLen   int
		startSection string
		titleBuf     []string
		section      string
		nextID       = 1
	)

	// The pending title buffer becomes the active section the moment a
	// chunk starts, so a run of consecutive titles collapses into one
	// section heading.
	resolveSection := func() string {
		if len(titleBuf) > 0 {
			section = strings.Join(titleBuf, " ")
			titleBuf = nil
		}
		return section
	}

	flush := func() {
		if len(pending) == 0 {
			return
		}
		texts := make([]string, 0, len(pending))
		for _, el := range pending {
			if t := strings.TrimSpace(el.Text); t != "" {
				texts = append(texts, t)
			}
		}
		merged := strings.Join(texts, " ")
		if merged != "" {
			chunks = append(chunks, domain.Chunk{
				SourceDoc:      pending[0].SourceDoc,
				ChunkID:        nextID,
				Type:           domain.ChunkText,
				Text:           merged,
				SectionTitle:   startSection,
				PageStart:      pending[0].Page,
				PageEnd:        pending[len(pending)-1].Page,
				SourceElements: pendingIdx,
			})
			nextID++
		}
		pending = nil
		pendingIdx = nil
		pendingLen = 0
	}

	appendBody := func(el domain.Element, idx, size int) {
		if len(pending) == 0 {
			startSection = resolveSection()
		}
		pending = append(pending, el)
		pendingIdx = append(pendingIdx, idx)
		pendingLen += size
	}

	for i, el := range elements {
		typ := el.Type
		if typ == domain.ElementNoise && c.noisePolicy == NoiseFold {
			typ = domain.ElementBody
		}

		switch typ {
		case domain.ElementTitle:
			flush()
			if t := strings.TrimSpace(el.Text); t != "" {
				titleBuf = append(titleBuf, t)
			}

		case domain.ElementTable:
			flush()
			chunks = append(chunks, domain.Chunk{
				SourceDoc:      el.SourceDoc,
				ChunkID:        nextID,
				Type:           domain.ChunkTable,
				Text:           strings.TrimSpace(el.Text),
				SectionTitle:   resolveSection(),
				PageStart:      el.Page,
				PageEnd:        el.Page,
				SourceElements: []int{i},
				TextAsHTML:     el.TableHTML,
			})
			nextID++

		case domain.ElementNoise:
			flush()

		default:
			size := c.unitLen(el.Text)
			if size > c.maxUnit {
				// Oversized elements pass through whole rather than
				// being truncated.
				flush()
				appendBody(el, i, size)
				flush()
				continue
			}
			if len(pending) > 0 && pendingLen+size > c.maxUnit {
				flush()
			}
			appendBody(el, i, size)
		}
	}
	flush()
	return chunks
}

func (c *Chunker) unitLen(text string) int {
	if c.measure == MeasureWords {
		return len(strings.Fields(text))
	}
	return utf8.RuneCountInString(text)
}
