package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemoryCatalog keeps summaries in process memory. It serves tests and
// one-shot runs that do not need a persistent index.
type MemoryCatalog struct {
	mu      sync.RWMutex
	studies map[string]Summary
}

// NewMemoryCatalog returns an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{studies: make(map[string]Summary)}
}

func (c *MemoryCatalog) Put(_ context.Context, summary Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.studies[summary.StudyUID]; ok {
		summary.CreatedAt = prev.CreatedAt
	}
	c.studies[summary.StudyUID] = summary
	return nil
}

func (c *MemoryCatalog) Get(_ context.Context, studyUID string) (Summary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	summary, ok := c.studies[studyUID]
	if !ok {
		return Summary{}, fmt.Errorf("study %s: %w", studyUID, ErrNotFound)
	}
	return summary, nil
}

func (c *MemoryCatalog) List(_ context.Context) ([]Summary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Summary, 0, len(c.studies))
	for _, summary := range c.studies {
		out = append(out, summary)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if d := b.CreatedAt.Compare(a.CreatedAt); d != 0 {
			return d
		}
		return strings.Compare(a.StudyUID, b.StudyUID)
	})
	return out, nil
}

func (c *MemoryCatalog) Remove(_ context.Context, studyUID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.studies, studyUID)
	return nil
}

func (c *MemoryCatalog) Close() error { return nil }
