package rag

import (
	"context"
	"fmt"

	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/logger"
)

// DefaultTopK is the number of neighbors fetched per query.
const DefaultTopK = 5

// DefaultSimilarityThreshold is the minimum similarity a chunk needs to
// enter the prompt context, overridable through SIMILARITY_THRESHOLD.
const DefaultSimilarityThreshold = 0.3

// Retriever embeds queries and fetches threshold-filtered context from
// the knowledge store.
type Retriever struct {
	store    core.VectorStore
	embedder core.EmbedService
	// Debug logs each candidate's raw similarity and a text preview
	// without changing what is returned.
	Debug bool
}

// NewRetriever creates a Retriever over the given store and embedder.
func NewRetriever(store core.VectorStore, embedder core.EmbedService) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Similarity converts a cosine distance in [0,2] to a similarity score in
// [0,1]: 1 is identical, 0 is opposite. All scores in the system derive
// from this single monotonic transform.
func Similarity(distance float32) float32 {
	return 1 - distance/2
}

// Retrieve embeds the query, fetches the min(topK, count) nearest chunks
// and keeps those whose similarity clears the threshold, preserving the
// store's distance-ascending (similarity-descending) order. An empty
// store yields an empty result without embedding anything.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float32) ([]core.RetrievalResult, error) {
	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	if topK <= 0 {
		topK = DefaultTopK
	}
	if int64(topK) > count {
		topK = int(count)
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := r.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query store: %w", err)
	}

	if r.Debug {
		logger.RAGInfo("Similarity scores for query %q:", query)
	}

	results := make([]core.RetrievalResult, 0, len(matches))
	for i, m := range matches {
		score := Similarity(m.Distance)

		if r.Debug {
			preview := m.Chunk.Text
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			logger.RAGInfo("  Candidate %d: %.3f - %s", i+1, score, preview)
		}

		if score >= threshold {
			results = append(results, core.RetrievalResult{
				Text:       m.Chunk.Text,
				Source:     m.Chunk.Source,
				Similarity: score,
			})
		}
	}

	if r.Debug && len(results) == 0 {
		logger.RAGInfo("  No chunks met similarity threshold of %.2f", threshold)
	}

	return results, nil
}
