package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator generates the same run ID every time.
//
// This enables deterministic report output and golden snapshot comparison:
// the same cases against the same fixture with a FixedIDGenerator produce
// byte-identical JSON reports.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed run ID generator.
//
// If id is empty, Generate() returns "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements harness.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequentialIDGenerator generates "<prefix>-1", "<prefix>-2", ... so that
// tests running several reports can tell them apart deterministically.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDGenerator creates a generator starting at 1.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate increments the sequence and returns the next ID.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence. After Reset(), the next ID ends in 1.
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
