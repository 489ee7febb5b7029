package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/veritas/internal/model"
)

// InsertProvenanceEvent appends an audit-log entry for a document. The log
// is append-only: there is no update or delete.
func (db *DB) InsertProvenanceEvent(ctx context.Context, e model.ProvenanceEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("storage: marshal provenance details: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO provenance_events (id, document_id, event_type, details, occurred_at)
		 VALUES ($1, $2, $3, $4, now())`,
		e.ID, e.DocumentID, string(e.EventType), details,
	)
	if err != nil {
		return fmt.Errorf("storage: insert provenance event: %w", err)
	}
	return nil
}

// FindProvenanceByDocument returns a document's audit log in chronological
// order.
func (db *DB) FindProvenanceByDocument(ctx context.Context, documentID uuid.UUID) ([]model.ProvenanceEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, document_id, event_type, details, occurred_at FROM provenance_events
		 WHERE document_id = $1 ORDER BY occurred_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("storage: find provenance by document: %w", err)
	}
	defer rows.Close()

	var events []model.ProvenanceEvent
	for rows.Next() {
		var e model.ProvenanceEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.EventType, &details, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("storage: scan provenance event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("storage: unmarshal provenance details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// InsertVerificationResult persists the verification pipeline's per-claim
// annotation. Verification never gates a response, so callers overwrite
// rather than reject on repeat runs.
func (db *DB) InsertVerificationResult(ctx context.Context, r model.VerificationResult) error {
	signals, err := json.Marshal(r.Signals)
	if err != nil {
		return fmt.Errorf("storage: marshal verification signals: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO verification_results (claim_id, verified, signals, checked_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (claim_id) DO UPDATE SET verified = EXCLUDED.verified, signals = EXCLUDED.signals, checked_at = now()`,
		r.ClaimID, r.Verified, signals,
	)
	if err != nil {
		return fmt.Errorf("storage: insert verification result: %w", err)
	}
	return nil
}

// FindVerificationResult retrieves the most recent verification outcome for
// a claim, if one has been recorded.
func (db *DB) FindVerificationResult(ctx context.Context, claimID uuid.UUID) (*model.VerificationResult, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT claim_id, verified, signals FROM verification_results WHERE claim_id = $1`, claimID)
	var r model.VerificationResult
	var signals []byte
	err := row.Scan(&r.ClaimID, &r.Verified, &signals)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: find verification result: %w", err)
	}
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &r.Signals); err != nil {
			return nil, fmt.Errorf("storage: unmarshal verification signals: %w", err)
		}
	}
	return &r, nil
}
