package veritas

import (
	"context"
)

// EmbeddingProvider generates vector embeddings from text.
// When provided via WithEmbeddingProvider, replaces the auto-detected
// Ollama/OpenAI/noop provider.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// LLMClient generates structured text completions used for claim
// extraction, negation labeling, merge-conflict narration, and answer
// synthesis. When provided via WithLLMClient, replaces the auto-detected
// Anthropic/Ollama/noop client.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Searcher is a vector search index over document sections.
// When provided via WithSearcher, replaces the pipeline's built-in
// embedding-column similarity search.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]SearchResult, error)
	Healthy(ctx context.Context) error
}

// ConflictScorer performs pairwise conflict scoring between two claims.
// A scorer provided via WithConflictScorer is stored but not passed to the
// pipeline: conflict detection always uses the built-in
// embedding-distance + LLM negation-label scorer.
type ConflictScorer interface {
	Score(ctx context.Context, a, b Claim) (ConflictScore, error)
}

// PolicyEvaluator checks a consolidation result against organizational
// rules before it is persisted. This interface reserves the extension
// point; no built-in evaluator ships with the OSS pipeline.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, doc Document, action string) ([]Violation, error)
}

// EventHook receives notifications when corpus lifecycle events occur (a
// document is ingested, a conflict is detected, a document is
// deprecated). Multiple hooks may be registered via multiple
// WithEventHook calls; App fires them from Run's background loops after
// each poll, not from the MCP request path itself, so a slow hook never
// adds latency to a tool call.
type EventHook interface {
	OnDocumentIngested(ctx context.Context, doc Document) error
	OnConflictDetected(ctx context.Context, conflict Conflict) error
	OnDocumentDeprecated(ctx context.Context, doc Document) error
}
