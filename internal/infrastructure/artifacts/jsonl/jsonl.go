// Package jsonl persists ingestion artifacts and benchmark files as
// one JSON record per line.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/finraglab/finrag/internal/core/domain"
)

// Write marshals records to path, one per line, replacing any existing
// file.
func Write[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// Read decodes every line of a JSONL file. Blank lines are skipped.
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", path, line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// Store writes per-document ingestion artifacts under a base dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) WriteElements(sourceDoc string, elements []domain.Element) error {
	return Write(s.path(sourceDoc, "elements"), elements)
}

func (s *Store) WriteChunks(sourceDoc string, chunks []domain.Chunk) error {
	return Write(s.path(sourceDoc, "chunks"), chunks)
}

func (s *Store) WriteEmbedded(sourceDoc string, chunks []domain.EmbeddedChunk) error {
	return Write(s.path(sourceDoc, "embedded"), chunks)
}

func (s *Store) path(sourceDoc, stage string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.jsonl", sourceDoc, stage))
}
