package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/veritas/internal/model"
)

// InsertConsolidationRecord persists the outcome of a consolidate_documents
// call: which documents fed in, what came out, and the conflict tally.
func (db *DB) InsertConsolidationRecord(ctx context.Context, r model.ConsolidationRecord) (model.ConsolidationRecord, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	row := db.pool.QueryRow(ctx,
		`INSERT INTO consolidation_records (id, source_document_ids, result_document_id, strategy,
		   conflicts_resolved, conflicts_pending, cluster_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 RETURNING id, source_document_ids, result_document_id, strategy, conflicts_resolved, conflicts_pending, cluster_id`,
		r.ID, r.SourceDocumentIDs, r.ResultDocumentID, string(r.Strategy), r.ConflictsResolved, r.ConflictsPending, r.ClusterID,
	)
	var out model.ConsolidationRecord
	err := row.Scan(&out.ID, &out.SourceDocumentIDs, &out.ResultDocumentID, &out.Strategy, &out.ConflictsResolved, &out.ConflictsPending, &out.ClusterID)
	if err != nil {
		return model.ConsolidationRecord{}, fmt.Errorf("storage: insert consolidation record: %w", err)
	}
	return out, nil
}

// GetConsolidationRecord retrieves a consolidation record by ID.
func (db *DB) GetConsolidationRecord(ctx context.Context, id uuid.UUID) (*model.ConsolidationRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, source_document_ids, result_document_id, strategy, conflicts_resolved, conflicts_pending, cluster_id
		 FROM consolidation_records WHERE id = $1`, id)
	var r model.ConsolidationRecord
	err := row.Scan(&r.ID, &r.SourceDocumentIDs, &r.ResultDocumentID, &r.Strategy, &r.ConflictsResolved, &r.ConflictsPending, &r.ClusterID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get consolidation record: %w", err)
	}
	return &r, nil
}

// InsertOverlapCluster persists a detected cluster of overlapping
// documents so a later consolidate_documents call can reference it by ID
// instead of re-listing member documents.
func (db *DB) InsertOverlapCluster(ctx context.Context, c model.OverlapCluster) (model.OverlapCluster, error) {
	if c.ClusterID == uuid.Nil {
		c.ClusterID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO overlap_clusters (cluster_id, document_ids, pairwise_similarities, shared_headers,
		   agreement_count, value_conflict_count, direct_negation_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		c.ClusterID, c.DocumentIDs, c.PairwiseSimilarities, c.SharedHeaders,
		c.ConflictsSummary.Agreement, c.ConflictsSummary.ValueConflict, c.ConflictsSummary.DirectNegation,
	)
	if err != nil {
		return model.OverlapCluster{}, fmt.Errorf("storage: insert overlap cluster: %w", err)
	}
	return c, nil
}

// GetOverlapCluster retrieves a persisted cluster by ID.
func (db *DB) GetOverlapCluster(ctx context.Context, clusterID uuid.UUID) (*model.OverlapCluster, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT cluster_id, document_ids, pairwise_similarities, shared_headers,
		   agreement_count, value_conflict_count, direct_negation_count
		 FROM overlap_clusters WHERE cluster_id = $1`, clusterID)
	var c model.OverlapCluster
	err := row.Scan(&c.ClusterID, &c.DocumentIDs, &c.PairwiseSimilarities, &c.SharedHeaders,
		&c.ConflictsSummary.Agreement, &c.ConflictsSummary.ValueConflict, &c.ConflictsSummary.DirectNegation)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get overlap cluster: %w", err)
	}
	return &c, nil
}
