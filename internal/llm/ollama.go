package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ragchat/ragchat/internal/logger"
)

// OllamaService talks to a local Ollama server's chat API.
type OllamaService struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewOllamaService creates a new instance of OllamaService. host is the
// server base URL, e.g. http://localhost:11434.
func NewOllamaService(host, model string) *OllamaService {
	return &OllamaService{
		host:  host,
		model: model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Set a generous timeout for LLM responses
		},
	}
}

// Name implements the Provider interface.
func (s *OllamaService) Name() string { return "ollama" }

// Model implements the Provider interface.
func (s *OllamaService) Model() string { return s.model }

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error,omitempty"`
}

// Generate sends a batch chat request to Ollama.
func (s *OllamaService) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := s.send(ctx, prompt, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Error != "" {
		logger.LLMError("Ollama API error: %s", chatResp.Error)
		return "", fmt.Errorf("Ollama API error: %s", chatResp.Error)
	}

	return chatResp.Message.Content, nil
}

// GenerateStream sends a streaming chat request to Ollama and emits each
// NDJSON fragment's content as it arrives.
func (s *OllamaService) GenerateStream(ctx context.Context, prompt string, opts Options, emit func(delta string) error) error {
	resp, err := s.send(ctx, prompt, opts, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			logger.LLMDebug("Skipping undecodable stream line: %v", err)
			continue
		}
		if chunk.Error != "" {
			return fmt.Errorf("Ollama API error: %s", chunk.Error)
		}

		if chunk.Message.Content != "" {
			if err := emit(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}

func (s *OllamaService) send(ctx context.Context, prompt string, opts Options, stream bool) (*http.Response, error) {
	reqBody := ollamaChatRequest{
		Model:    s.model,
		Messages: []ollamaChatMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
		Options: ollamaOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logger.LLMInfo("Sending request to Ollama model '%s' (stream=%v)", s.model, stream)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.LLMError("Failed to send HTTP request to Ollama: %v", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		errMsg := fmt.Sprintf("Ollama API HTTP error (status %d): %s", resp.StatusCode, string(body))
		logger.LLMError("%s", errMsg)
		return nil, fmt.Errorf("%s", errMsg)
	}

	return resp, nil
}
