package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragchat/ragchat/internal/core"
)

// fakeEmbedder maps known strings to fixed unit vectors so similarity is
// fully controlled by the test.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no fake vector for %q", text)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func seedStore(t *testing.T, store core.VectorStore) {
	t.Helper()
	chunks := []core.Chunk{
		{ID: "pdf_a.pdf_0", Text: "The sky is blue.", Source: "PDF: a.pdf", Type: core.SourcePDF, ChunkIndex: 0},
		{ID: "pdf_a.pdf_1", Text: "Grass is green.", Source: "PDF: a.pdf", Type: core.SourcePDF, ChunkIndex: 1},
		{ID: "web_12ab34cd_0", Text: "Water boils at 100C.", Source: "Web: Physics", Type: core.SourceWebsite, ChunkIndex: 0, URL: "https://example.com/physics"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	require.NoError(t, store.Upsert(context.Background(), chunks, vectors))
}

func TestSimilarity(t *testing.T) {
	t.Run("ShouldMapDistanceEndpoints", func(t *testing.T) {
		assert.InDelta(t, 1.0, Similarity(0), 1e-6)
		assert.InDelta(t, 0.0, Similarity(2), 1e-6)
		assert.InDelta(t, 0.5, Similarity(1), 1e-6)
	})

	t.Run("ShouldBeMonotonic", func(t *testing.T) {
		distances := []float32{0, 0.1, 0.5, 1.0, 1.5, 2.0}
		for i := 1; i < len(distances); i++ {
			assert.Greater(t, Similarity(distances[i-1]), Similarity(distances[i]))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldUpsertByIDWithoutDuplicating", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)
		seedStore(t, store)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("ShouldQueryByAscendingDistance", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)

		matches, err := store.Query(ctx, []float32{1, 0.1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, "pdf_a.pdf_0", matches[0].Chunk.ID)
		for i := 1; i < len(matches); i++ {
			assert.GreaterOrEqual(t, matches[i].Distance, matches[i-1].Distance)
		}
	})

	t.Run("ShouldGetByID", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)

		c, ok, err := store.Get(ctx, "pdf_a.pdf_0")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "The sky is blue.", c.Text)

		_, ok, err = store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ShouldDeleteByType", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)

		deleted, err := store.DeleteByType(ctx, core.SourcePDF)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("ShouldClear", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)
		require.NoError(t, store.Clear(ctx))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestRetriever(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"What color is the sky?": {1, 0, 0},
		"The sky is blue.":       {1, 0, 0},
		"Grass is green.":        {0, 1, 0},
		"Water boils at 100C.":   {0, 0, 1},
		"something else":         {-1, 0, 0},
	}}

	t.Run("ShouldReturnEmptyForEmptyStore", func(t *testing.T) {
		r := NewRetriever(NewMemoryStore(), embedder)
		results, err := r.Retrieve(ctx, "What color is the sky?", 5, 0.3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("ShouldReturnFormattedResultAboveThreshold", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)

		r := NewRetriever(store, embedder)
		results, err := r.Retrieve(ctx, "What color is the sky?", 5, 0.9)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "PDF: a.pdf", results[0].Source)
		assert.InDelta(t, 1.0, float64(results[0].Similarity), 1e-5)
		assert.Equal(t, "[PDF: a.pdf]\nThe sky is blue.", results[0].Formatted())
	})

	t.Run("ShouldNeverReturnBelowThreshold", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)
		r := NewRetriever(store, embedder)

		for _, threshold := range []float32{0, 0.3, 0.5, 0.9, 1.0} {
			results, err := r.Retrieve(ctx, "What color is the sky?", 5, threshold)
			require.NoError(t, err)
			for _, res := range results {
				assert.GreaterOrEqual(t, res.Similarity, threshold)
			}
		}
	})

	t.Run("ShouldNotGrowWhenThresholdRises", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)
		r := NewRetriever(store, embedder)

		prev := -1
		for _, threshold := range []float32{0, 0.25, 0.5, 0.75, 1.0} {
			results, err := r.Retrieve(ctx, "What color is the sky?", 5, threshold)
			require.NoError(t, err)
			if prev >= 0 {
				assert.LessOrEqual(t, len(results), prev)
			}
			prev = len(results)
		}
	})

	t.Run("ShouldKeepSimilarityDescendingOrder", func(t *testing.T) {
		store := NewMemoryStore()
		seedStore(t, store)
		r := NewRetriever(store, embedder)

		results, err := r.Retrieve(ctx, "What color is the sky?", 5, 0)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity)
		}
	})
}
