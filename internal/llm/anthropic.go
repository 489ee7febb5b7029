package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient generates completions using the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// NewAnthropicClient creates a client for the given Claude model. apiKey
// must be non-empty; callers typically guard construction on its presence
// and fall back to NoopClient otherwise.
func NewAnthropicClient(apiKey, model string, timeout time.Duration, maxTokens int) *AnthropicClient {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
	}
}

func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	req = normalizeRequest(req)
	return withTimeout(ctx, c.timeout, func(callCtx context.Context) (string, error) {
		maxTokens := c.maxTokens
		if req.MaxTokens > 0 {
			maxTokens = req.MaxTokens
		}
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
			Temperature: anthropic.Float(req.Temperature),
		}

		resp, err := c.client.Messages.New(callCtx, params)
		if err != nil {
			return "", fmt.Errorf("llm: anthropic request failed: %w", err)
		}

		var out strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				out.WriteString(block.Text)
			}
		}
		if out.Len() == 0 {
			return "", fmt.Errorf("llm: anthropic returned no text content")
		}
		return out.String(), nil
	})
}
