package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder(t *testing.T) {
	t.Run("ShouldEmbedBatchInOrder", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/embed", r.URL.Path)

			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "all-minilm", req.Model)

			out := embedResponse{Embeddings: make([][]float32, len(req.Input))}
			for i := range req.Input {
				out.Embeddings[i] = []float32{float32(i), 1}
			}
			require.NoError(t, json.NewEncoder(w).Encode(out))
		}))
		defer srv.Close()

		e := NewOllamaEmbedder(srv.URL, DefaultModel)
		vectors, err := e.EmbedDocuments(context.Background(), []string{"one", "two", "three"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		assert.Equal(t, []float32{0, 1}, vectors[0])
		assert.Equal(t, []float32{2, 1}, vectors[2])
	})

	t.Run("ShouldReturnNilForEmptyBatch", func(t *testing.T) {
		e := NewOllamaEmbedder("http://unreachable", DefaultModel)
		vectors, err := e.EmbedDocuments(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, vectors)
	})

	t.Run("ShouldRejectVectorCountMismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"embeddings":[[1,2]]}`)
		}))
		defer srv.Close()

		e := NewOllamaEmbedder(srv.URL, DefaultModel)
		_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
		assert.Error(t, err)
	})

	t.Run("ShouldSurfaceAPIError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"model not loaded"}`)
		}))
		defer srv.Close()

		e := NewOllamaEmbedder(srv.URL, DefaultModel)
		_, err := e.EmbedQuery(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}
