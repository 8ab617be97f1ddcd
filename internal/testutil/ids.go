package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator returns prefix-1, prefix-2, ... and never runs out.
//
// This enables deterministic product ids for golden comparisons without
// listing every id up front the way catalog.FixedGenerator requires.
//
// Thread-safety: safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. An empty prefix uses "p".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "p"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate implements catalog.IDGenerator.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
