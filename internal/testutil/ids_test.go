package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("test-run-123")

	// Multiple calls return same ID
	assert.Equal(t, "test-run-123", gen.Generate())
	assert.Equal(t, "test-run-123", gen.Generate())
}

func TestFixedIDGenerator_EmptyIDDefault(t *testing.T) {
	gen := NewFixedIDGenerator("")

	assert.Equal(t, "test-run-default", gen.Generate())
}

func TestSequentialIDGenerator_Increments(t *testing.T) {
	gen := NewSequentialIDGenerator("run")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "run-1", gen.Generate())
}

func TestSequentialIDGenerator_DefaultPrefix(t *testing.T) {
	gen := NewSequentialIDGenerator("")

	assert.Equal(t, "test-run-1", gen.Generate())
}

func TestSequentialIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDGenerator("run")

	var wg sync.WaitGroup
	seen := make(chan string, 1000)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seen <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[string]struct{})
	for id := range seen {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 1000)
}

func TestWriteSalesCSV(t *testing.T) {
	path := WriteSalesCSV(t)
	assert.FileExists(t, path)
}
