// Package localfs stores uploaded filings on the local filesystem
// under a configured base directory.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Storage struct {
	baseDir string
}

func New(baseDir string) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{baseDir: baseDir}, nil
}

func (s *Storage) Save(ctx context.Context, key string, r io.Reader) error {
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create filing dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// Path resolves a storage key to its absolute location. Keys are
// sanitized so a crafted filename cannot escape the base dir.
func (s *Storage) Path(key string) string {
	parts := strings.Split(key, "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = filepath.Base(p)
		if p == "." || p == ".." || p == "" {
			continue
		}
		clean = append(clean, p)
	}
	return filepath.Join(append([]string{s.baseDir}, clean...)...)
}
