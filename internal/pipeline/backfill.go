package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/veritas-labs/veritas/internal/model"
)

const backfillMaxWorkers = 4

// BackfillResult reports how many rows the backfill sweep filled in.
type BackfillResult struct {
	DocumentsEmbedded int
	SectionsEmbedded  int
}

// BackfillEmbeddings embeds every document and section persisted without
// an embedding — typically because they were ingested while the embedding
// provider was unavailable or set to noop — and writes the result back.
// A no-op when no embedder is configured. Individual embed/persist
// failures are logged and skipped rather than aborting the sweep.
func (p *Pipeline) BackfillEmbeddings(ctx context.Context) (BackfillResult, error) {
	if p.embedder == nil {
		return BackfillResult{}, nil
	}

	var result BackfillResult

	docs, err := p.db.FindDocumentsMissingEmbedding(ctx)
	if err != nil {
		return result, fmt.Errorf("pipeline: backfill: find documents missing embedding: %w", err)
	}
	result.DocumentsEmbedded = p.backfillDocuments(ctx, docs)

	sections, err := p.db.FindSectionsMissingEmbedding(ctx)
	if err != nil {
		return result, fmt.Errorf("pipeline: backfill: find sections missing embedding: %w", err)
	}
	result.SectionsEmbedded = p.backfillSections(ctx, sections)

	p.logger.Info("pipeline: embedding backfill complete",
		"documents_embedded", result.DocumentsEmbedded, "sections_embedded", result.SectionsEmbedded)
	return result, nil
}

func (p *Pipeline) backfillDocuments(ctx context.Context, docs []model.Document) int {
	if len(docs) == 0 {
		return 0
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(backfillMaxWorkers)
	var count atomic.Int64
	for _, d := range docs {
		d := d
		g.Go(func() error {
			vec, err := p.embedder.Embed(gCtx, d.Title+"\n"+d.RawContent)
			if err != nil {
				p.logger.Warn("pipeline: backfill: document embed failed", "document_id", d.ID, "error", err)
				return nil
			}
			if err := p.db.UpdateDocumentEmbedding(gCtx, d.ID, vec); err != nil {
				p.logger.Warn("pipeline: backfill: document embedding persistence failed", "document_id", d.ID, "error", err)
				return nil
			}
			count.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(count.Load())
}

func (p *Pipeline) backfillSections(ctx context.Context, sections []model.Section) int {
	if len(sections) == 0 {
		return 0
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(backfillMaxWorkers)
	var count atomic.Int64
	for _, s := range sections {
		s := s
		g.Go(func() error {
			vec, err := p.embedder.Embed(gCtx, s.Header+"\n"+s.Content)
			if err != nil {
				p.logger.Warn("pipeline: backfill: section embed failed", "section_id", s.ID, "error", err)
				return nil
			}
			if err := p.db.UpdateEmbedding(gCtx, s.ID, vec); err != nil {
				p.logger.Warn("pipeline: backfill: section embedding persistence failed", "section_id", s.ID, "error", err)
				return nil
			}
			count.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(count.Load())
}
