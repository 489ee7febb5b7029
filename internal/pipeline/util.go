package pipeline

import (
	"math"

	"github.com/veritas-labs/veritas/internal/conflicts"
)

// conflictsWithThreshold builds a one-off detector sharing p's embedder,
// LLM client, and logger but overriding the value-conflict threshold for a
// single call, rather than mutating the pipeline's shared detector.
func conflictsWithThreshold(p *Pipeline, threshold float64) *conflicts.Detector {
	return conflicts.New(p.embedder, p.logger,
		conflicts.WithValueConflictThreshold(threshold),
		conflicts.WithLLMNegationLabel(p.llmClient),
	)
}

// cosineSimilarity is duplicated per package rather than factored into a
// shared vecmath package, matching internal/entities, internal/conflicts,
// and internal/overlap — no vector-math library exists anywhere in the
// retrieval pack.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		da, db := float64(a[i]), float64(b[i])
		dot += da * db
		normA += da * da
		normB += db * db
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
