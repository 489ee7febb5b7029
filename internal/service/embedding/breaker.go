package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/sony/gobreaker"
)

// BreakerProvider wraps a real Provider with a circuit breaker and a
// TrigramProvider fallback. Repeated failures trip the breaker so the
// pipeline stops paying the round-trip cost of a dead embedding runtime
// and goes straight to the fallback until the breaker's cooldown elapses.
type BreakerProvider struct {
	inner    Provider
	fallback *TrigramProvider
	cb       *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewBreakerProvider wraps inner with a circuit breaker that trips after
// consecutive failures and recovers after a cooldown window.
func NewBreakerProvider(inner Provider, logger *slog.Logger) *BreakerProvider {
	fallback := NewTrigramProvider(inner.Dimensions())
	settings := gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("embedding: circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}
	return &BreakerProvider{
		inner:    inner,
		fallback: fallback,
		cb:       gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

func (p *BreakerProvider) Dimensions() int { return p.inner.Dimensions() }

func (p *BreakerProvider) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	v, err := p.cb.Execute(func() (any, error) {
		return p.inner.Embed(ctx, text)
	})
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("embedding: degrading to trigram fallback", "error", err)
		}
		return p.fallback.Embed(ctx, text)
	}
	return v.(pgvector.Vector), nil
}

func (p *BreakerProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	v, err := p.cb.Execute(func() (any, error) {
		return p.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("embedding: degrading to trigram fallback for batch", "error", err)
		}
		return p.fallback.EmbedBatch(ctx, texts)
	}
	return v.([]pgvector.Vector), nil
}
