// Package conflicts classifies pairs of claims that share a normalized
// subject as agreements, value conflicts, or direct negations.
package conflicts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veritas-labs/veritas/internal/llm"
	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/service/embedding"
)

const defaultValueConflictThreshold = 0.35

// negationPairs is the closed, bilingual table of predicate phrases treated
// as negation-equivalents regardless of embedding similarity. Lookup is
// symmetric and case-insensitive.
var negationPairs = [][2]string{
	{"is", "is not"},
	{"are", "are not"},
	{"does support", "does not support"},
	{"supports", "does not support"},
	{"allows", "forbids"},
	{"allows", "disallows"},
	{"requires", "does not require"},
	{"enables", "disables"},
	{"must", "must not"},
	{"should", "should not"},
	{"can", "cannot"},
	{"includes", "excludes"},
	{"is enabled", "is disabled"},
	{"is required", "is optional"},
	{"es", "no es"},
	{"permite", "no permite"},
	{"requiere", "no requiere"},
	{"incluye", "excluye"},
	{"debe", "no debe"},
	{"puede", "no puede"},
}

// negationLookup indexes negationPairs for O(1) symmetric lookup.
var negationLookup = buildNegationLookup()

func buildNegationLookup() map[string]string {
	m := make(map[string]string, len(negationPairs)*2)
	for _, pair := range negationPairs {
		m[pair[0]] = pair[1]
		m[pair[1]] = pair[0]
	}
	return m
}

func isNegationPair(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	return negationLookup[a] == b
}

// Detector classifies claim pairs sharing a normalized subject into
// Conflict records, per the detector's deterministic algorithm: equal
// predicate+object is an agreement, a negation-equivalent predicate pair
// (table lookup or LLM label) is a direct negation, and otherwise the
// cosine distance between "{predicate} {object}" embeddings against a
// configurable threshold decides whether a value conflict is recorded.
type Detector struct {
	embedder   embedding.Provider
	llmClient  llm.Client
	threshold  float64
	maxWorkers int
	logger     *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithValueConflictThreshold overrides the default 0.35 strength threshold
// above which an embedding-distance classification becomes a value
// conflict.
func WithValueConflictThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// WithLLMNegationLabel wires an LLM client used to classify predicate pairs
// the closed negation table misses. Optional: without one, only the table
// lookup tier runs.
func WithLLMNegationLabel(client llm.Client) Option {
	return func(d *Detector) { d.llmClient = client }
}

// WithMaxWorkers bounds how many claim pairs are embedded and scored
// concurrently.
func WithMaxWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxWorkers = n
		}
	}
}

// New creates a Detector. embedder is required for the value-conflict tier;
// a nil embedder means every non-agreement, non-negation pair is skipped
// rather than scored.
func New(embedder embedding.Provider, logger *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		embedder:   embedder,
		threshold:  defaultValueConflictThreshold,
		maxWorkers: 4,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect buckets claims by normalized subject and classifies every
// unordered pair within a bucket, returning the conflicts found. The
// returned conflicts carry no confidence value; Conflict.ConfidenceSignal
// derives one from the two claims' confidences on demand.
func (d *Detector) Detect(ctx context.Context, claims []model.AtomicClaim) ([]model.Conflict, error) {
	buckets := make(map[string][]model.AtomicClaim)
	for _, c := range claims {
		key := c.NormalizedSubject()
		if key == "" {
			continue
		}
		buckets[key] = append(buckets[key], c)
	}

	type pair struct{ a, b model.AtomicClaim }
	var pairs []pair
	for _, bucket := range buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				pairs = append(pairs, pair{bucket[i], bucket[j]})
			}
		}
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	conflicts := make([]model.Conflict, len(pairs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxWorkers)
	var mu sync.Mutex
	results := make([]*model.Conflict, len(pairs))

	for idx, p := range pairs {
		idx, p := idx, p
		g.Go(func() error {
			conflict, ok, err := d.classify(gCtx, p.a, p.b)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			mu.Lock()
			results[idx] = &conflict
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("conflicts: detect: %w", err)
	}

	out := conflicts[:0]
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (d *Detector) classify(ctx context.Context, a, b model.AtomicClaim) (model.Conflict, bool, error) {
	claimA, claimB := orderClaims(a, b)

	if strings.EqualFold(claimA.Predicate, claimB.Predicate) && strings.EqualFold(claimA.Object, claimB.Object) {
		return newConflict(claimA, claimB, model.ConflictAgreement, 0), true, nil
	}

	if d.isNegation(ctx, claimA.Predicate, claimB.Predicate) {
		return newConflict(claimA, claimB, model.ConflictDirectNegation, 1.0), true, nil
	}

	if d.embedder == nil {
		return model.Conflict{}, false, nil
	}

	vecA, err := d.embedder.Embed(ctx, claimA.Predicate+" "+claimA.Object)
	if err != nil {
		return model.Conflict{}, false, fmt.Errorf("conflicts: embed claim a: %w", err)
	}
	vecB, err := d.embedder.Embed(ctx, claimB.Predicate+" "+claimB.Object)
	if err != nil {
		return model.Conflict{}, false, fmt.Errorf("conflicts: embed claim b: %w", err)
	}

	similarity := cosineSimilarity(vecA.Slice(), vecB.Slice())
	strength := 1 - similarity
	if strength < d.threshold {
		return model.Conflict{}, false, nil
	}
	return newConflict(claimA, claimB, model.ConflictValueConflict, strength), true, nil
}

// isNegation checks the closed table first, falling back to an LLM label
// only when a client is configured and the table misses.
func (d *Detector) isNegation(ctx context.Context, predicateA, predicateB string) bool {
	if isNegationPair(predicateA, predicateB) {
		return true
	}
	if d.llmClient == nil {
		return false
	}
	prompt := fmt.Sprintf(
		"Do these two predicate phrases negate each other in meaning? Answer with exactly one word, yes or no.\nA: %q\nB: %q",
		predicateA, predicateB,
	)
	text, err := d.llmClient.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0})
	if err != nil {
		if d.logger != nil {
			d.logger.Debug("conflicts: negation label unavailable, degrading to table lookup only", "error", err)
		}
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "yes")
}

// orderClaims returns the pair in canonical (smaller UUID first) order so
// ClaimAID/ClaimBID are stable regardless of iteration order.
func orderClaims(a, b model.AtomicClaim) (model.AtomicClaim, model.AtomicClaim) {
	if bytes.Compare(a.ID[:], b.ID[:]) > 0 {
		return b, a
	}
	return a, b
}

func newConflict(a, b model.AtomicClaim, t model.ConflictType, strength float64) model.Conflict {
	c := model.Conflict{
		ID:           uuid.New(),
		ClaimAID:     a.ID,
		ClaimBID:     b.ID,
		ConflictType: t,
		Strength:     strength,
	}
	return c
}

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
