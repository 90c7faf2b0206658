// Package embedding provides a process-wide embedder cache so batch
// runs spanning several model hosts construct one client per
// (model, endpoint) pair instead of one per question.
package embedding

import (
	"sync"

	"github.com/finraglab/finrag/internal/core/ports"
)

// Factory builds a new embedder for a model on an endpoint.
type Factory func(model, endpoint string) ports.Embedder

// Cache hands out embedders keyed by (model, endpoint). Safe for
// concurrent use; the cache is injected where needed rather than
// living in package state.
type Cache struct {
	factory Factory

	mu      sync.Mutex
	entries map[string]ports.Embedder
}

func NewCache(factory Factory) *Cache {
	return &Cache{
		factory: factory,
		entries: make(map[string]ports.Embedder),
	}
}

func (c *Cache) GetOrCreate(model, endpoint string) ports.Embedder {
	key := model + "|" + endpoint
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e
	}
	e := c.factory(model, endpoint)
	c.entries[key] = e
	return e
}

// Len reports how many embedders have been constructed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
