package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/overlap"
	"github.com/veritas-labs/veritas/internal/pipelineerr"
)

const defaultMinClusterSize = 2

// OverlapsInput is the find_overlaps request. Exactly one of DocumentIDs,
// PathPatterns, or All selects the scope to scan.
type OverlapsInput struct {
	DocumentIDs           []uuid.UUID
	PathPatterns          []string
	All                   bool
	MinClusterSize        int
	SimilarityThreshold   float64
	IncludeClaimConflicts *bool
}

// OverlapsResult is the find_overlaps response.
type OverlapsResult struct {
	Clusters             []model.OverlapCluster `json:"clusters"`
	ProcessingTimeMillis int64                  `json:"processing_time_ms"`
}

// FindOverlaps resolves the requested document scope, clusters it by
// document-embedding similarity, and summarizes each cluster's shared
// headers and (optionally) claim conflicts.
func (p *Pipeline) FindOverlaps(ctx context.Context, in OverlapsInput) (OverlapsResult, error) {
	start := time.Now()

	docs, err := p.resolveScope(ctx, in.DocumentIDs, in.PathPatterns, in.All)
	if err != nil {
		return OverlapsResult{}, err
	}
	if len(docs) == 0 {
		return OverlapsResult{}, pipelineerr.InvalidInput("scope resolved to zero documents", nil)
	}

	threshold := in.SimilarityThreshold
	if threshold == 0 {
		threshold = 0.75
	}
	minSize := in.MinClusterSize
	if minSize == 0 {
		minSize = defaultMinClusterSize
	}

	analyzer := p.overlap
	if threshold != 0.75 {
		analyzer = overlap.New(overlap.WithSimilarityThreshold(threshold), overlap.WithConflictDetector(p.detector))
	}

	var claimsByDoc []model.AtomicClaim
	var sectionsByDoc map[uuid.UUID][]model.Section
	if boolOr(in.IncludeClaimConflicts, true) {
		sectionsByDoc = make(map[uuid.UUID][]model.Section, len(docs))
		for _, d := range docs {
			sections, err := p.db.FindSectionsByDocument(ctx, d.ID)
			if err != nil {
				return OverlapsResult{}, pipelineerr.Internal("section lookup failed", err)
			}
			sectionsByDoc[d.ID] = sections
			docClaims, err := p.db.FindClaimsByDocument(ctx, d.ID)
			if err != nil {
				return OverlapsResult{}, pipelineerr.Internal("claim lookup failed", err)
			}
			claimsByDoc = append(claimsByDoc, docClaims...)
		}
	}

	rawClusters := analyzer.Cluster(docs)
	clusters := make([]model.OverlapCluster, 0, len(rawClusters))
	for _, rc := range rawClusters {
		if len(rc.Documents()) < minSize {
			continue
		}
		summary, err := analyzer.Summarize(ctx, rc, sectionsByDoc, claimsByDoc)
		if err != nil {
			return OverlapsResult{}, pipelineerr.Internal("cluster summarization failed", err)
		}
		if _, err := p.db.InsertOverlapCluster(ctx, summary); err != nil {
			p.logger.Warn("find_overlaps: cluster persistence failed", "error", err)
		}
		clusters = append(clusters, summary)
	}

	return OverlapsResult{Clusters: clusters, ProcessingTimeMillis: elapsedMillis(start)}, nil
}

// resolveScope turns an ingest/overlap/consolidate scope union into a
// concrete document slice.
func (p *Pipeline) resolveScope(ctx context.Context, ids []uuid.UUID, pathPatterns []string, all bool) ([]model.Document, error) {
	set := 0
	if len(ids) > 0 {
		set++
	}
	if len(pathPatterns) > 0 {
		set++
	}
	if all {
		set++
	}
	if set != 1 {
		return nil, pipelineerr.InvalidInput("exactly one of document_ids, path patterns, or all must be set", nil)
	}

	switch {
	case all:
		return p.db.ListAllDocuments(ctx)
	case len(ids) > 0:
		docs, err := p.db.FindDocumentsByIDs(ctx, ids)
		if err != nil {
			return nil, pipelineerr.Internal("document lookup by id failed", err)
		}
		return docs, nil
	default:
		seen := make(map[uuid.UUID]bool)
		var out []model.Document
		for _, pattern := range pathPatterns {
			matches, err := p.db.FindDocumentsByPathPattern(ctx, pattern)
			if err != nil {
				return nil, pipelineerr.Internal("document lookup by path pattern failed", err)
			}
			for _, m := range matches {
				if !seen[m.ID] {
					seen[m.ID] = true
					out = append(out, m)
				}
			}
		}
		return out, nil
	}
}
