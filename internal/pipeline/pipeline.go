// Package pipeline orchestrates the five tool operations (ingest_document,
// find_overlaps, consolidate_documents, get_source_of_truth,
// deprecate_document) over the document-parser, embedding, LLM, storage,
// claim-extraction, entity-resolution, conflict-detection, merge,
// verification, overlap, and answer-synthesis components. It is the single
// place that knows how those components compose; the mcp transport layer
// calls it and does nothing else.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/veritas-labs/veritas/internal/conflicts"
	"github.com/veritas-labs/veritas/internal/entities"
	"github.com/veritas-labs/veritas/internal/llm"
	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/overlap"
	"github.com/veritas-labs/veritas/internal/search"
	"github.com/veritas-labs/veritas/internal/service/embedding"
	"github.com/veritas-labs/veritas/internal/storage"
	"github.com/veritas-labs/veritas/internal/verify"
)

// Pipeline holds every component operation handlers need. All fields are
// constructor-injected so tests can swap the LLM client and embedding
// provider for deterministic stubs.
type Pipeline struct {
	db        *storage.DB
	embedder  embedding.Provider
	llmClient llm.Client
	resolver  *entities.Resolver
	detector  *conflicts.Detector
	overlap   *overlap.Analyzer
	verifier  *verify.Pipeline
	searcher  search.Searcher
	logger    *slog.Logger

	offlineCache *storage.OfflineCache

	buildEntityGraph bool
}

// Option configures a Pipeline beyond its required constructor arguments.
type Option func(*Pipeline)

// WithEntityGraph records an entity-graph setting on the Pipeline. Ingest
// does not read it: entity resolution and co-occurrence edge linking run
// whenever the request's BuildEntityGraph flag is true or unset.
func WithEntityGraph(enabled bool) Option {
	return func(p *Pipeline) { p.buildEntityGraph = enabled }
}

// WithSearcher plugs an external ANN index (e.g. Qdrant) into Query's
// candidate selection for full-corpus lookups. Without one, Query ranks
// sections with a pgvector similarity query in Postgres (SemanticSearch),
// restricted to the resolved document IDs when a scope is given and over
// the whole sections table when neither is given.
func WithSearcher(s search.Searcher) Option {
	return func(p *Pipeline) { p.searcher = s }
}

// WithOfflineCache mirrors document metadata into a local SQLite cache on
// every successful ingest/deprecate write, giving ListCorpus-style reads
// somewhere to degrade to if the Postgres pool goes unreachable.
func WithOfflineCache(c *storage.OfflineCache) Option {
	return func(p *Pipeline) { p.offlineCache = c }
}

// New wires a Pipeline from its required collaborators. codebaseRoot is
// passed to the verification pipeline; pass "" to disable filesystem
// verification signals (claim verification is additive, never a gate).
func New(db *storage.DB, embedder embedding.Provider, llmClient llm.Client, codebaseRoot string, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:        db,
		embedder:  embedder,
		llmClient: llmClient,
		resolver:  entities.New(db, embedder),
		detector:  conflicts.New(embedder, logger, conflicts.WithLLMNegationLabel(llmClient)),
		logger:    logger,
	}
	p.overlap = overlap.New(overlap.WithConflictDetector(p.detector))
	p.verifier = verify.New(codebaseRoot, llmClient)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func elapsedMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// mirrorOffline best-effort mirrors a document into the offline cache, if
// one is configured. A mirror failure only degrades the fallback read
// path, so it is logged and never returned to the caller.
func (p *Pipeline) mirrorOffline(ctx context.Context, doc model.Document) {
	if p.offlineCache == nil {
		return
	}
	if err := p.offlineCache.Mirror(ctx, doc); err != nil {
		p.logger.Warn("pipeline: offline cache mirror failed", "document_id", doc.ID, "error", err)
	}
}

// ListCorpus returns every document in the corpus, reading from Postgres
// and falling back to the offline cache (degraded: metadata only, no
// content or embeddings) when Postgres is unreachable and a cache is
// configured.
func (p *Pipeline) ListCorpus(ctx context.Context) ([]model.Document, error) {
	docs, err := p.db.ListAllDocuments(ctx)
	if err == nil {
		return docs, nil
	}
	if p.offlineCache == nil {
		return nil, err
	}
	p.logger.Warn("pipeline: corpus listing falling back to offline cache", "error", err)
	return p.offlineCache.ListCached(ctx)
}
