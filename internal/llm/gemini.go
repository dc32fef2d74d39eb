package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragchat/ragchat/internal/logger"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiService talks to the Gemini REST API.
type GeminiService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiService creates a new instance of GeminiService.
func NewGeminiService(apiKey, model string) *GeminiService {
	return &GeminiService{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name implements the Provider interface.
func (s *GeminiService) Name() string { return "gemini" }

// Model implements the Provider interface.
func (s *GeminiService) Model() string { return s.model }

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends a batch generateContent request to Gemini.
func (s *GeminiService) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)

	resp, err := s.send(ctx, url, prompt, opts)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	// Check for error in response body regardless of status code
	var gemResp geminiResponse
	if err := json.Unmarshal(body, &gemResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if gemResp.Error != nil {
		errMsg := fmt.Sprintf("Gemini API error (%s): %s", gemResp.Error.Status, gemResp.Error.Message)
		logger.LLMError("%s", errMsg)
		return "", fmt.Errorf("%s", errMsg)
	}
	if resp.StatusCode != http.StatusOK {
		errMsg := fmt.Sprintf("Gemini API HTTP error (status %d): %s", resp.StatusCode, string(body))
		logger.LLMError("%s", errMsg)
		return "", fmt.Errorf("%s", errMsg)
	}
	if len(gemResp.Candidates) == 0 {
		return "", fmt.Errorf("Gemini API returned no candidates")
	}

	var sb strings.Builder
	for _, part := range gemResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// GenerateStream sends a streamGenerateContent request and emits each SSE
// data frame's text as it arrives.
func (s *GeminiService) GenerateStream(ctx context.Context, prompt string, opts Options, emit func(delta string) error) error {
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s", s.baseURL, s.model, s.apiKey)

	resp, err := s.send(ctx, url, prompt, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		errMsg := fmt.Sprintf("Gemini API HTTP error (status %d): %s", resp.StatusCode, string(body))
		logger.LLMError("%s", errMsg)
		return fmt.Errorf("%s", errMsg)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "data: ")

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			logger.LLMDebug("Skipping undecodable stream line: %v", err)
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("Gemini API error (%s): %s", chunk.Error.Status, chunk.Error.Message)
		}
		if len(chunk.Candidates) == 0 {
			continue
		}

		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			if err := emit(part.Text); err != nil {
				return err
			}
		}
		if chunk.Candidates[0].FinishReason != "" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}

func (s *GeminiService) send(ctx context.Context, url, prompt string, opts Options) (*http.Response, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     opts.Temperature,
			TopP:            opts.TopP,
			MaxOutputTokens: opts.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logger.LLMInfo("Sending request to Gemini model '%s'", s.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.LLMError("Failed to send HTTP request to Gemini: %v", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}
