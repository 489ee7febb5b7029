// Package llm provides the structured-text-completion client: a single
// generate(prompt) contract backed by Ollama, Anthropic, or a noop
// implementation, wrapped with a circuit breaker so callers always have a
// bounded-latency path even when the model runtime is unavailable.
package llm

import (
	"context"
	"errors"
	"time"
)

// Request is the generate() contract's input. Temperature defaults to 0.3
// when zero-valued by a caller that didn't set it explicitly.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ErrTimeout is wrapped into a caller-visible LLMTimeout classification.
var ErrTimeout = errors.New("llm: generation exceeded the configured timeout")

// ErrUnavailable is wrapped into a caller-visible LLMError classification
// for any failure that isn't a timeout (auth, malformed response, transport).
var ErrUnavailable = errors.New("llm: generation failed")

// Client generates structured text completions with bounded latency.
// Callers must handle failure by falling back to a rule-based path; no
// pipeline step may be unable to produce a result because the LLM is down.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const defaultTemperature = 0.3

func normalizeRequest(req Request) Request {
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	return req
}

// NoopClient always fails with ErrUnavailable, forcing every caller onto its
// rule-based fallback path. Used when no LLM provider is configured.
type NoopClient struct{}

func (NoopClient) Generate(_ context.Context, _ Request) (string, error) {
	return "", ErrUnavailable
}

// withTimeout runs generate under a deadline derived from the configured
// LLM timeout, translating context.DeadlineExceeded into ErrTimeout.
func withTimeout(ctx context.Context, timeout time.Duration, generate func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	text, err := generate(callCtx)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", errors.Join(ErrUnavailable, err)
	}
	return text, nil
}
