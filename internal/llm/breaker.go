package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerClient wraps a Client with a circuit breaker so a struggling model
// runtime fails fast instead of letting every caller pay its full timeout.
// Tripped or not, Generate only ever returns text or an error — callers are
// responsible for falling back to a rule-based path on either ErrTimeout or
// ErrUnavailable.
type BreakerClient struct {
	inner  Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

func NewBreakerClient(inner Client, logger *slog.Logger) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "llm-client",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("llm: circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}
	return &BreakerClient{
		inner:  inner,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

func (c *BreakerClient) Generate(ctx context.Context, req Request) (string, error) {
	v, err := c.cb.Execute(func() (any, error) {
		return c.inner.Generate(ctx, req)
	})
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("llm: generation unavailable, caller should fall back to rule-based path", "error", err)
		}
		if v == nil {
			return "", err
		}
	}
	text, _ := v.(string)
	return text, err
}
