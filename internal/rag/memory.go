package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ragchat/ragchat/internal/core"
)

// MemoryStore is an in-memory core.VectorStore with brute-force cosine
// search. It backs tests and local development (VECTOR_STORE=memory)
// without a running Milvus.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	chunk  core.Chunk
	vector []float32
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Upsert implements core.VectorStore.
func (s *MemoryStore) Upsert(_ context.Context, chunks []core.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])
		s.entries[c.ID] = memoryEntry{chunk: c, vector: v}
	}
	return nil
}

// Query implements core.VectorStore.
func (s *MemoryStore) Query(_ context.Context, vector []float32, k int) ([]core.Match, error) {
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	matches := make([]core.Match, 0, len(s.entries))
	for _, e := range s.entries {
		matches = append(matches, core.Match{
			Chunk:    e.chunk,
			Distance: cosineDistance(vector, e.vector),
		})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Get implements core.VectorStore.
func (s *MemoryStore) Get(_ context.Context, id string) (core.Chunk, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.chunk, ok, nil
}

// List implements core.VectorStore.
func (s *MemoryStore) List(_ context.Context) ([]core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]core.Chunk, 0, len(s.entries))
	for _, e := range s.entries {
		chunks = append(chunks, e.chunk)
	}
	return chunks, nil
}

// Delete implements core.VectorStore.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

// DeleteByType implements core.VectorStore.
func (s *MemoryStore) DeleteByType(_ context.Context, t core.SourceType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, e := range s.entries {
		if e.chunk.Type == t {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Clear implements core.VectorStore.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}

// Count implements core.VectorStore.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close implements core.VectorStore.
func (s *MemoryStore) Close() error { return nil }

// cosineDistance returns 1 - cos(a,b), in [0,2]. Zero vectors are treated
// as maximally distant.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
