package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient generates completions using a local Ollama chat model.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
}

// NewOllamaClient creates a client calling Ollama's /api/chat endpoint.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout + 5*time.Second,
		},
		timeout: timeout,
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaChatOptions   `json:"options"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	req = normalizeRequest(req)
	return withTimeout(ctx, c.timeout, func(callCtx context.Context) (string, error) {
		body, err := json.Marshal(ollamaChatRequest{
			Model:    c.model,
			Messages: []ollamaChatMessage{{Role: "user", Content: req.Prompt}},
			Stream:   false,
			Options:  ollamaChatOptions{Temperature: req.Temperature},
		})
		if err != nil {
			return "", fmt.Errorf("llm: marshal ollama request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("llm: create ollama request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return "", fmt.Errorf("llm: ollama request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return "", fmt.Errorf("llm: ollama status %d: %s", resp.StatusCode, string(respBody))
		}

		var result ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", fmt.Errorf("llm: decode ollama response: %w", err)
		}
		return result.Message.Content, nil
	})
}
