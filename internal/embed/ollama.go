// Package embed provides the embedding service used by ingestion and
// retrieval. Vectors come from an Ollama server's embeddings API, which is
// deterministic for a fixed model version.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ragchat/ragchat/internal/logger"
)

// DefaultModel is the embedding model used unless EMBED_MODEL overrides
// it.
const DefaultModel = "all-minilm"

// OllamaEmbedder implements core.EmbedService over the Ollama /api/embed
// endpoint.
type OllamaEmbedder struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewOllamaEmbedder creates a new instance of OllamaEmbedder.
func NewOllamaEmbedder(host, model string) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:  host,
		model: model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// EmbedQuery embeds a single query string.
func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of texts, returning one vector per input
// in the same order.
func (e *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embedRequest{Model: e.model, Input: texts}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logger.RAGDebug("Embedding %d texts with model '%s'", len(texts), e.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API HTTP error (status %d): %s", resp.StatusCode, string(body))
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if embResp.Error != "" {
		return nil, fmt.Errorf("embeddings API error: %s", embResp.Error)
	}
	if len(embResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(embResp.Embeddings), len(texts))
	}

	return embResp.Embeddings, nil
}
