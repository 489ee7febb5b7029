// Package overlap finds clusters of documents whose embeddings are
// mutually similar enough to be considered about the same subject, and
// summarizes each cluster's shared headers and claim-level conflicts.
package overlap

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/conflicts"
	"github.com/veritas-labs/veritas/internal/model"
)

const defaultSimilarityThreshold = 0.75

// Analyzer builds a similarity graph over a document subset and extracts
// its connected components of size >= 2 as overlap clusters.
type Analyzer struct {
	threshold float64
	detector  *conflicts.Detector
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSimilarityThreshold overrides the default 0.75 cosine threshold
// above which two documents get an edge in the similarity graph.
func WithSimilarityThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		if threshold > 0 {
			a.threshold = threshold
		}
	}
}

// WithConflictDetector wires a conflict detector so cluster summaries
// include a per-type conflict tally. Without one, every cluster's
// ConflictsSummary is all zeroes.
func WithConflictDetector(d *conflicts.Detector) Option {
	return func(a *Analyzer) { a.detector = d }
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{threshold: defaultSimilarityThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// pairKey formats two document ids as a stable map key for pairwise
// similarities, smaller-id-first so (a,b) and (b,a) collide.
func pairKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + "," + b.String()
}

// Cluster builds the similarity graph over docs (skipping any without an
// embedding) and returns every connected component of size >= 2, each with
// its member documents' pairwise similarities.
func (a *Analyzer) Cluster(docs []model.Document) []rawCluster {
	embedded := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if d.DocumentEmbedding != nil {
			embedded = append(embedded, d)
		}
	}

	adjacency := make(map[uuid.UUID][]uuid.UUID)
	similarities := make(map[string]float32)
	for i := 0; i < len(embedded); i++ {
		for j := i + 1; j < len(embedded); j++ {
			di, dj := embedded[i], embedded[j]
			sim := cosineSimilarity(di.DocumentEmbedding.Slice(), dj.DocumentEmbedding.Slice())
			if sim < a.threshold {
				continue
			}
			adjacency[di.ID] = append(adjacency[di.ID], dj.ID)
			adjacency[dj.ID] = append(adjacency[dj.ID], di.ID)
			similarities[pairKey(di.ID, dj.ID)] = float32(sim)
		}
	}

	byID := make(map[uuid.UUID]model.Document, len(embedded))
	for _, d := range embedded {
		byID[d.ID] = d
	}

	visited := make(map[uuid.UUID]bool)
	var clusters []rawCluster
	for _, d := range embedded {
		if visited[d.ID] {
			continue
		}
		if len(adjacency[d.ID]) == 0 {
			continue
		}
		component := bfs(d.ID, adjacency, visited)
		if len(component) < 2 {
			continue
		}
		members := make([]model.Document, len(component))
		for i, id := range component {
			members[i] = byID[id]
		}
		clusters = append(clusters, rawCluster{documents: members, similarities: similarities})
	}
	return clusters
}

type rawCluster struct {
	documents    []model.Document
	similarities map[string]float32
}

// Documents returns the cluster's member documents, letting callers filter
// clusters (e.g. by a minimum size) before calling Summarize.
func (c rawCluster) Documents() []model.Document {
	return c.documents
}

func bfs(start uuid.UUID, adjacency map[uuid.UUID][]uuid.UUID, visited map[uuid.UUID]bool) []uuid.UUID {
	queue := []uuid.UUID{start}
	visited[start] = true
	var component []uuid.UUID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		component = append(component, cur)
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return component
}

// Summarize builds a persistable model.OverlapCluster from a raw cluster,
// the sections belonging to its documents, and the claims touched by
// those documents. Conflict aggregation requires a detector to have been
// configured via WithConflictDetector; without one, ConflictsSummary is
// left zeroed.
func (a *Analyzer) Summarize(ctx context.Context, c rawCluster, sectionsByDoc map[uuid.UUID][]model.Section, claims []model.AtomicClaim) (model.OverlapCluster, error) {
	docIDs := make([]uuid.UUID, len(c.documents))
	docSet := make(map[uuid.UUID]bool, len(c.documents))
	for i, d := range c.documents {
		docIDs[i] = d.ID
		docSet[d.ID] = true
	}

	pairwise := make(map[string]float32)
	for i := 0; i < len(docIDs); i++ {
		for j := i + 1; j < len(docIDs); j++ {
			key := pairKey(docIDs[i], docIDs[j])
			if sim, ok := c.similarities[key]; ok {
				pairwise[key] = sim
			}
		}
	}

	headerCounts := make(map[string]int)
	for _, id := range docIDs {
		seen := make(map[string]bool)
		for _, s := range sectionsByDoc[id] {
			key := model.NormalizeMention(s.Header)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			headerCounts[key]++
		}
	}
	var sharedHeaders []string
	for header, count := range headerCounts {
		if count >= 2 {
			sharedHeaders = append(sharedHeaders, header)
		}
	}

	var summary model.ConflictsSummary
	if a.detector != nil {
		clusterClaims := make([]model.AtomicClaim, 0)
		for _, claim := range claims {
			if docSet[claim.DocumentID] {
				clusterClaims = append(clusterClaims, claim)
			}
		}
		clusterConflicts, err := a.detector.Detect(ctx, clusterClaims)
		if err != nil {
			return model.OverlapCluster{}, fmt.Errorf("overlap: summarize conflicts: %w", err)
		}
		for _, cf := range clusterConflicts {
			switch cf.ConflictType {
			case model.ConflictAgreement:
				summary.Agreement++
			case model.ConflictValueConflict:
				summary.ValueConflict++
			case model.ConflictDirectNegation:
				summary.DirectNegation++
			}
		}
	}

	return model.OverlapCluster{
		ClusterID:            uuid.New(),
		DocumentIDs:          docIDs,
		PairwiseSimilarities: pairwise,
		SharedHeaders:        sharedHeaders,
		ConflictsSummary:     summary,
	}, nil
}

// Analyze clusters docs and summarizes every cluster found, the single
// entry point the orchestrator's find_overlaps operation calls.
func (a *Analyzer) Analyze(ctx context.Context, docs []model.Document, sectionsByDoc map[uuid.UUID][]model.Section, claims []model.AtomicClaim) ([]model.OverlapCluster, error) {
	clusters := a.Cluster(docs)
	out := make([]model.OverlapCluster, 0, len(clusters))
	for _, c := range clusters {
		summary, err := a.Summarize(ctx, c, sectionsByDoc, claims)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
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
