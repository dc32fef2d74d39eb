package core

import "context"

// EmbedService turns text into fixed-dimension vectors. Implementations
// must be deterministic for a fixed model version.
type EmbedService interface {
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of document chunks, one vector per
	// input in the same order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists chunks with their embeddings and answers
// nearest-neighbor queries by ascending cosine distance.
//
// Upsert and the delete operations must be safe under concurrent calls;
// that is delegated to the backing store. A query racing a concurrent
// upsert may or may not observe the new chunks; callers accept this
// eventual-consistency window.
type VectorStore interface {
	// Upsert stores chunks keyed by Chunk.ID, overwriting any existing
	// entry with the same id. len(vectors) must equal len(chunks).
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error

	// Query returns up to k matches ordered by ascending distance.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Get fetches a chunk by id; the bool reports existence.
	Get(ctx context.Context, id string) (Chunk, bool, error)

	// List returns all stored chunks (no particular order).
	List(ctx context.Context) ([]Chunk, error)

	// Delete removes the chunks with the given ids. Missing ids are not
	// an error.
	Delete(ctx context.Context, ids []string) error

	// DeleteByType removes every chunk of the given source type and
	// reports how many were removed.
	DeleteByType(ctx context.Context, t SourceType) (int, error)

	// Clear removes every chunk.
	Clear(ctx context.Context) error

	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int64, error)

	// Close releases the store's resources.
	Close() error
}
