// Package entities resolves claim-mention strings to canonical entities and
// maintains the co-occurrence graph linking entities that appear together in
// a claim.
package entities

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/service/embedding"
	"github.com/veritas-labs/veritas/internal/storage"
)

const defaultSimilarityThreshold = 0.88

// Resolver maps mention strings to canonical entities via normalize, exact
// lookup, alias lookup, and embedding nearest-neighbor tiers. Embeddings are
// optional: when provider is nil, the resolver still serves exact and alias
// lookups and mints a new canonical entity for every embedding-tier miss.
type Resolver struct {
	db        *storage.DB
	provider  embedding.Provider
	threshold float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSimilarityThreshold overrides the default 0.88 nearest-neighbor
// threshold above which a mention is folded into an existing entity as a
// new alias rather than minting a new canonical entity.
func WithSimilarityThreshold(threshold float64) Option {
	return func(r *Resolver) {
		if threshold > 0 {
			r.threshold = threshold
		}
	}
}

// New creates a Resolver. provider may be nil to disable the embedding
// nearest-neighbor tier.
func New(db *storage.DB, provider embedding.Provider, opts ...Option) *Resolver {
	r := &Resolver{db: db, provider: provider, threshold: defaultSimilarityThreshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps a single mention string to its canonical entity, creating one
// if no existing entity matches closely enough. The returned bool reports
// whether a new canonical entity was minted.
func (r *Resolver) Resolve(ctx context.Context, mention string) (model.Entity, bool, error) {
	normalized := model.NormalizeMention(mention)
	if normalized == "" {
		return model.Entity{}, false, fmt.Errorf("entities: empty mention after normalization")
	}

	if existing, err := r.db.FindEntityByExactForm(ctx, normalized); err != nil {
		return model.Entity{}, false, fmt.Errorf("entities: exact lookup: %w", err)
	} else if existing != nil {
		return *existing, false, nil
	}

	if r.provider != nil {
		if match, ok, err := r.nearestNeighbor(ctx, normalized); err != nil {
			return model.Entity{}, false, err
		} else if ok {
			if err := r.db.AddEntityAlias(ctx, match.CanonicalID, normalized); err != nil {
				return model.Entity{}, false, fmt.Errorf("entities: add alias: %w", err)
			}
			match.Aliases = append(match.Aliases, normalized)
			return match, false, nil
		}
	}

	entity := model.Entity{
		CanonicalID:   uuid.New(),
		CanonicalForm: normalized,
		Aliases:       []string{normalized},
	}
	if r.provider != nil {
		vec, err := r.provider.Embed(ctx, normalized)
		if err == nil {
			entity.Embedding = &vec
		}
	}
	created, err := r.db.InsertEntity(ctx, entity)
	if err != nil {
		return model.Entity{}, false, fmt.Errorf("entities: insert: %w", err)
	}
	return created, true, nil
}

// nearestNeighbor searches every embedded entity for the closest cosine
// match to the normalized mention, returning ok=false when nothing clears
// the resolver's threshold.
func (r *Resolver) nearestNeighbor(ctx context.Context, normalized string) (model.Entity, bool, error) {
	candidates, err := r.db.ListEntitiesWithEmbeddings(ctx)
	if err != nil {
		return model.Entity{}, false, fmt.Errorf("entities: list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return model.Entity{}, false, nil
	}

	vec, err := r.provider.Embed(ctx, normalized)
	if err != nil {
		// Degrade to "mint a new entity" rather than fail the pipeline.
		return model.Entity{}, false, nil
	}

	var best model.Entity
	bestScore := -1.0
	for _, c := range candidates {
		if c.Embedding == nil {
			continue
		}
		score := cosineSimilarity(vec.Slice(), c.Embedding.Slice())
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore >= r.threshold {
		return best, true, nil
	}
	return model.Entity{}, false, nil
}

// LinkClaimToEntity records a co-occurrence edge between two entities
// referenced together within the given claim and document.
func (r *Resolver) LinkClaimToEntity(ctx context.Context, claimID, fromEntity, toEntity, documentID uuid.UUID) error {
	return r.db.InsertEntityEdge(ctx, model.EntityEdge{
		ID:         uuid.New(),
		FromEntity: fromEntity,
		ToEntity:   toEntity,
		ClaimID:    claimID,
		DocumentID: documentID,
	})
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
