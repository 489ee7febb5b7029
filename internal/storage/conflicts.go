package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/veritas/internal/model"
)

const conflictColumns = `id, claim_a_id, claim_b_id, conflict_type, strength, discovered_at`

func scanConflict(row pgx.Row) (model.Conflict, error) {
	var c model.Conflict
	err := row.Scan(&c.ID, &c.ClaimAID, &c.ClaimBID, &c.ConflictType, &c.Strength, &c.DiscoveredAt)
	return c, err
}

// InsertConflict records a detected conflict between two claims, canonically
// ordering the claim pair so (a,b) and (b,a) upsert into the same row.
func (db *DB) InsertConflict(ctx context.Context, c model.Conflict) error {
	a, b := c.ClaimAID, c.ClaimBID
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO conflicts (id, claim_a_id, claim_b_id, conflict_type, strength, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (claim_a_id, claim_b_id) DO UPDATE SET
		   conflict_type = EXCLUDED.conflict_type,
		   strength = EXCLUDED.strength,
		   discovered_at = now()`,
		c.ID, a, b, string(c.ConflictType), c.Strength,
	)
	if err != nil {
		return fmt.Errorf("storage: insert conflict: %w", err)
	}
	return nil
}

// FindConflictsByClaimIDs returns every stored conflict touching any claim
// in the set, newest first.
func (db *DB) FindConflictsByClaimIDs(ctx context.Context, claimIDs []uuid.UUID) ([]model.Conflict, error) {
	if len(claimIDs) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+conflictColumns+` FROM conflicts
		 WHERE claim_a_id = ANY($1) OR claim_b_id = ANY($1)
		 ORDER BY discovered_at DESC`, claimIDs)
	if err != nil {
		return nil, fmt.Errorf("storage: find conflicts by claim ids: %w", err)
	}
	defer rows.Close()
	return scanConflictRows(rows)
}

func scanConflictRows(rows pgx.Rows) ([]model.Conflict, error) {
	var conflicts []model.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// ListConflictsSince returns every conflict discovered at or after since,
// newest first. Used by App's notification loop to drive EventHook
// callbacks without requiring the conflict detector itself to know hooks
// exist.
func (db *DB) ListConflictsSince(ctx context.Context, since time.Time) ([]model.Conflict, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE discovered_at >= $1 ORDER BY discovered_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("storage: list conflicts since: %w", err)
	}
	defer rows.Close()
	return scanConflictRows(rows)
}

// FindConflictByClaimPair looks up an existing conflict row for a claim
// pair in either order, returning nil when none is stored.
func (db *DB) FindConflictByClaimPair(ctx context.Context, claimAID, claimBID uuid.UUID) (*model.Conflict, error) {
	a, b := claimAID, claimBID
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	row := db.pool.QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE claim_a_id = $1 AND claim_b_id = $2`, a, b)
	c, err := scanConflict(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: find conflict by claim pair: %w", err)
	}
	return &c, nil
}

// DeleteConflict removes a conflict row, used when the merge engine resolves
// it and it no longer needs surfacing.
func (db *DB) DeleteConflict(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM conflicts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete conflict: %w", err)
	}
	return nil
}

// InsertSupersession records that newDocumentID replaces oldDocumentID.
func (db *DB) InsertSupersession(ctx context.Context, s model.Supersession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO supersessions (id, old_document_id, new_document_id, reason, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		s.ID, s.OldDocumentID, s.NewDocumentID, s.Reason,
	)
	if err != nil {
		return fmt.Errorf("storage: insert supersession: %w", err)
	}
	return nil
}

// FindSupersessionChain walks forward from documentID following
// new_document_id links, returning the chain in traversal order. Callers
// use this to detect cycles before inserting a new supersession edge.
func (db *DB) FindSupersessionChain(ctx context.Context, documentID uuid.UUID) ([]model.Supersession, error) {
	rows, err := db.pool.Query(ctx,
		`WITH RECURSIVE chain AS (
			SELECT id, old_document_id, new_document_id, reason, created_at
			FROM supersessions WHERE old_document_id = $1
			UNION ALL
			SELECT s.id, s.old_document_id, s.new_document_id, s.reason, s.created_at
			FROM supersessions s
			JOIN chain c ON s.old_document_id = c.new_document_id
		 )
		 SELECT id, old_document_id, new_document_id, reason, created_at FROM chain`, documentID)
	if err != nil {
		return nil, fmt.Errorf("storage: find supersession chain: %w", err)
	}
	defer rows.Close()

	var chain []model.Supersession
	for rows.Next() {
		var s model.Supersession
		if err := rows.Scan(&s.ID, &s.OldDocumentID, &s.NewDocumentID, &s.Reason, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan supersession: %w", err)
		}
		chain = append(chain, s)
	}
	return chain, rows.Err()
}

// IsDocumentSuperseded reports whether documentID has an outgoing
// supersession edge (it has been replaced by a newer document).
func (db *DB) IsDocumentSuperseded(ctx context.Context, documentID uuid.UUID) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM supersessions WHERE old_document_id = $1)`, documentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: check document superseded: %w", err)
	}
	return exists, nil
}
