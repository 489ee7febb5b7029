package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/veritas/internal/model"
)

const entityColumns = `canonical_id, canonical_form, aliases, embedding`

func scanEntity(row pgx.Row) (model.Entity, error) {
	var e model.Entity
	err := row.Scan(&e.CanonicalID, &e.CanonicalForm, &e.Aliases, &e.Embedding)
	return e, err
}

// InsertEntity creates a new canonical entity.
func (db *DB) InsertEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	if e.CanonicalID == uuid.Nil {
		e.CanonicalID = uuid.New()
	}
	row := db.pool.QueryRow(ctx,
		`INSERT INTO entities (canonical_id, canonical_form, aliases, embedding)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+entityColumns,
		e.CanonicalID, e.CanonicalForm, e.Aliases, e.Embedding,
	)
	return scanEntity(row)
}

// FindEntityByExactForm looks up an entity whose canonical form or any
// alias matches the normalized mention exactly, the resolver's first and
// cheapest lookup tier.
func (db *DB) FindEntityByExactForm(ctx context.Context, normalizedMention string) (*model.Entity, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE canonical_form = $1 OR $1 = ANY(aliases)
		 LIMIT 1`, normalizedMention)
	e, err := scanEntity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: find entity by exact form: %w", err)
	}
	return &e, nil
}

// AddEntityAlias appends a new alias to an existing entity, used when the
// resolver folds a novel mention string into a match found via the
// embedding nearest-neighbor tier.
func (db *DB) AddEntityAlias(ctx context.Context, canonicalID uuid.UUID, alias string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE entities SET aliases = array_append(aliases, $2)
		 WHERE canonical_id = $1 AND NOT ($2 = ANY(aliases))`, canonicalID, alias)
	if err != nil {
		return fmt.Errorf("storage: add entity alias: %w", err)
	}
	return nil
}

// ListEntitiesWithEmbeddings returns every entity carrying an embedding, the
// candidate pool the resolver's nearest-neighbor tier searches when exact
// and alias lookups miss.
func (db *DB) ListEntitiesWithEmbeddings(ctx context.Context) ([]model.Entity, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("storage: list entities with embeddings: %w", err)
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// GetEntity retrieves a single entity by its canonical ID.
func (db *DB) GetEntity(ctx context.Context, canonicalID uuid.UUID) (*model.Entity, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE canonical_id = $1`, canonicalID)
	e, err := scanEntity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get entity: %w", err)
	}
	return &e, nil
}

// InsertEntityEdge records a co-occurrence edge between two entities
// referenced together by a single claim.
func (db *DB) InsertEntityEdge(ctx context.Context, edge model.EntityEdge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO entity_edges (id, from_entity, to_entity, claim_id, document_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING`,
		edge.ID, edge.FromEntity, edge.ToEntity, edge.ClaimID, edge.DocumentID,
	)
	if err != nil {
		return fmt.Errorf("storage: insert entity edge: %w", err)
	}
	return nil
}

// FindEntityEdges returns the co-occurrence edges touching an entity, used
// to surface related entities in source-of-truth answers.
func (db *DB) FindEntityEdges(ctx context.Context, canonicalID uuid.UUID) ([]model.EntityEdge, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, from_entity, to_entity, claim_id, document_id FROM entity_edges
		 WHERE from_entity = $1 OR to_entity = $1`, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("storage: find entity edges: %w", err)
	}
	defer rows.Close()

	var edges []model.EntityEdge
	for rows.Next() {
		var e model.EntityEdge
		if err := rows.Scan(&e.ID, &e.FromEntity, &e.ToEntity, &e.ClaimID, &e.DocumentID); err != nil {
			return nil, fmt.Errorf("storage: scan entity edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
