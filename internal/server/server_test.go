package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragchat/ragchat/internal/chat"
	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/ingest"
	"github.com/ragchat/ragchat/internal/llm"
	"github.com/ragchat/ragchat/internal/rag"
	"github.com/ragchat/ragchat/internal/stream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	response  string
	fragments []string
}

func (p *stubProvider) Name() string  { return "ollama" }
func (p *stubProvider) Model() string { return "test-model" }

func (p *stubProvider) Generate(context.Context, string, llm.Options) (string, error) {
	return p.response, nil
}

func (p *stubProvider) GenerateStream(_ context.Context, _ string, _ llm.Options, emit func(string) error) error {
	for _, f := range p.fragments {
		if err := emit(f); err != nil {
			return err
		}
	}
	return nil
}

type constEmbedder struct{}

func (constEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e constEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newTestServer(t *testing.T, provider llm.Provider, seed bool) (*Server, core.VectorStore) {
	t.Helper()
	store := rag.NewMemoryStore()
	if seed {
		err := store.Upsert(context.Background(), []core.Chunk{
			{ID: "pdf_a.pdf_0", Text: "The sky is blue.", Source: "PDF: a.pdf", Type: core.SourcePDF},
		}, [][]float32{{1, 0, 0}})
		require.NoError(t, err)
	}
	engine := chat.NewEngine(store, constEmbedder{}, provider, chat.Config{})
	pipeline := ingest.NewPipeline(store, constEmbedder{}, 100, 20)
	return New(engine, pipeline, store, "all-minilm", ""), store
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHealthAndInfo(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{}, true)
	router := s.Router()

	t.Run("ShouldReportHealthy", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("ShouldReportModelInfo", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodGet, "/model-info", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ollama", body["ai_provider"])
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, "all-minilm", body["embedding_model"])
		assert.Equal(t, float64(1), body["database_documents"])
	})
}

func TestChatEndpoint(t *testing.T) {
	t.Run("ShouldAnswerFromKnowledgeBase", func(t *testing.T) {
		s, _ := newTestServer(t, &stubProvider{response: "The sky is blue."}, true)
		w, body := doJSON(t, s.Router(), http.MethodPost, "/chat", `{"message":"What color is the sky?"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "The sky is blue.", body["response"])
	})

	t.Run("ShouldExplainEmptyKnowledgeBase", func(t *testing.T) {
		s, _ := newTestServer(t, &stubProvider{}, false)
		w, body := doJSON(t, s.Router(), http.MethodPost, "/chat", `{"message":"Anything?"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, chat.EmptyKnowledgeBaseMessage, body["response"])
	})

	t.Run("ShouldRejectMissingMessage", func(t *testing.T) {
		s, _ := newTestServer(t, &stubProvider{}, true)
		w, _ := doJSON(t, s.Router(), http.MethodPost, "/chat", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChatStreamEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{fragments: []string{"The sky ", "is blue."}}, true)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(`{"message":"What color is the sky?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	var events []stream.Event
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		var ev stream.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].Done)

	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestDocumentEndpoints(t *testing.T) {
	t.Run("ShouldListDocumentsGroupedBySource", func(t *testing.T) {
		s, _ := newTestServer(t, &stubProvider{}, true)
		w, body := doJSON(t, s.Router(), http.MethodGet, "/documents", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), body["total_count"])

		grouped, ok := body["grouped_documents"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, grouped, "PDF: a.pdf")
	})

	t.Run("ShouldDeleteExistingDocument", func(t *testing.T) {
		s, store := newTestServer(t, &stubProvider{}, true)
		w, _ := doJSON(t, s.Router(), http.MethodDelete, "/documents/pdf_a.pdf_0", "")
		assert.Equal(t, http.StatusOK, w.Code)

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("ShouldReturn404ForUnknownDocument", func(t *testing.T) {
		s, _ := newTestServer(t, &stubProvider{}, true)
		w, _ := doJSON(t, s.Router(), http.MethodDelete, "/documents/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("ShouldDeleteBatchIgnoringUnknownIDs", func(t *testing.T) {
		s, store := newTestServer(t, &stubProvider{}, true)
		w, body := doJSON(t, s.Router(), http.MethodDelete, "/documents/batch", `["pdf_a.pdf_0","missing"]`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Deleted 1 documents successfully", body["message"])

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("ShouldDeleteBySourceType", func(t *testing.T) {
		s, _ := newTestServer(t, &stubProvider{}, true)
		w, body := doJSON(t, s.Router(), http.MethodDelete, "/delete-by-source?source_type=pdf", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Deleted 1 documents of type pdf", body["message"])
	})

	t.Run("ShouldClearKnowledgeBase", func(t *testing.T) {
		s, store := newTestServer(t, &stubProvider{}, true)
		w, _ := doJSON(t, s.Router(), http.MethodDelete, "/clear-knowledge-base", "")
		assert.Equal(t, http.StatusOK, w.Code)

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestStatsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{}, true)
	w, body := doJSON(t, s.Router(), http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total_chunks"])

	sources, ok := body["sources"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), sources["pdf"])
}
