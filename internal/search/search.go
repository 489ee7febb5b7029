// Package search provides an optional external ANN index (Qdrant) for
// section embeddings, with an outbox worker that syncs it from Postgres
// at-least-once. It is a support layer for persistence and for query
// candidate selection: the pipeline's default path queries section
// embeddings directly out of Postgres, and only reaches for this package
// when QDRANT_URL is configured as a faster or larger-scale ANN backend.
// Overlap analysis compares embeddings in process and does not use it.
package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
)

// Result holds a section ID, its owning document ID, and the raw
// similarity score from the search index. The caller hydrates the full
// section/document from Postgres (source of truth); the index never
// stores more than what it needs to rank and point back.
type Result struct {
	SectionID  uuid.UUID
	DocumentID uuid.UUID
	Score      float32
}

// Filters narrows a Searcher query to a subset of the corpus.
type Filters struct {
	DocumentTypes []model.DocumentType
	AuthorityMin  *int
}

// Searcher is the interface for external vector search indexes.
// Implementations must be safe for concurrent use.
type Searcher interface {
	// Search returns section IDs matching the query vector, filtered.
	// Returns IDs + raw similarity scores; the caller hydrates from Postgres.
	Search(ctx context.Context, embedding []float32, filters Filters, limit int) ([]Result, error)

	// Healthy returns nil if the search index is reachable, or an error
	// describing the problem.
	Healthy(ctx context.Context) error
}

// CandidateFinder performs ANN search for internal use. No package in
// this module calls it yet: overlap clustering and conflict detection
// compare embeddings in process. Unlike Searcher
// (user-facing, with filter parameters), CandidateFinder is optimized for
// unfiltered nearest-neighbor lookups that exclude a single source
// section by ID.
//
// QdrantIndex implements both Searcher and CandidateFinder; callers that
// hold a Searcher can type-assert to CandidateFinder when they need
// internal ANN access.
type CandidateFinder interface {
	// FindSimilar returns sections similar to the given embedding,
	// excluding excludeID (the source section).
	FindSimilar(ctx context.Context, embedding []float32, excludeID uuid.UUID, limit int) ([]Result, error)
}
