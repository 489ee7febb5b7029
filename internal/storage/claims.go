package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/veritas/internal/model"
)

// InsertClaims bulk-inserts extracted claims for a document. Uses COPY for
// efficiency when ingesting many claims from a single section pass.
func (db *DB) InsertClaims(ctx context.Context, claims []model.AtomicClaim) error {
	if len(claims) == 0 {
		return nil
	}

	rows := make([][]any, len(claims))
	for i, c := range claims {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		rows[i] = []any{c.ID, c.Subject, c.Predicate, c.Object, c.OriginalText, c.Confidence, c.DocumentID, c.SourceSectionID, c.Deprecated, c.DeprecatedAt}
	}

	_, err := db.pool.CopyFrom(ctx,
		pgx.Identifier{"atomic_claims"},
		[]string{"id", "subject", "predicate", "object", "original_text", "confidence", "document_id", "source_section_id", "deprecated", "deprecated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("storage: insert claims: %w", err)
	}
	return nil
}

const claimColumns = `id, subject, predicate, object, original_text, confidence, document_id, source_section_id, deprecated, deprecated_at`

func scanClaim(row pgx.Row) (model.AtomicClaim, error) {
	var c model.AtomicClaim
	err := row.Scan(&c.ID, &c.Subject, &c.Predicate, &c.Object, &c.OriginalText, &c.Confidence, &c.DocumentID, &c.SourceSectionID, &c.Deprecated, &c.DeprecatedAt)
	return c, err
}

// FindClaimsByDocument returns every non-deprecated claim extracted from a
// document, in extraction order.
func (db *DB) FindClaimsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.AtomicClaim, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+claimColumns+` FROM atomic_claims
		 WHERE document_id = $1 AND NOT deprecated
		 ORDER BY source_section_id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("storage: find claims by document: %w", err)
	}
	defer rows.Close()

	var claims []model.AtomicClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// FindClaimsBySection returns every claim sourced from a single section.
func (db *DB) FindClaimsBySection(ctx context.Context, sectionID uuid.UUID) ([]model.AtomicClaim, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+claimColumns+` FROM atomic_claims WHERE source_section_id = $1`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("storage: find claims by section: %w", err)
	}
	defer rows.Close()

	var claims []model.AtomicClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// FindClaimsByNormalizedSubject finds non-deprecated claims whose subject
// normalizes to the given value, the grouping used to pair claims for
// conflict detection.
func (db *DB) FindClaimsByNormalizedSubject(ctx context.Context, normalizedSubject string) ([]model.AtomicClaim, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+claimColumns+` FROM atomic_claims
		 WHERE lower(regexp_replace(subject, '\s+', ' ', 'g')) = $1 AND NOT deprecated`, normalizedSubject)
	if err != nil {
		return nil, fmt.Errorf("storage: find claims by subject: %w", err)
	}
	defer rows.Close()

	var claims []model.AtomicClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// DeprecateClaim marks a claim as deprecated with the given timestamp, used
// when the document it came from is superseded or removed.
func (db *DB) DeprecateClaim(ctx context.Context, claimID uuid.UUID, at time.Time) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE atomic_claims SET deprecated = true, deprecated_at = $2 WHERE id = $1`, claimID, at)
	if err != nil {
		return fmt.Errorf("storage: deprecate claim: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("storage: deprecate claim: %w", ErrNotFound)
	}
	return nil
}

// DeprecateClaimsForDocument deprecates every claim sourced from a document,
// used when that document is superseded or deprecated as a whole.
func (db *DB) DeprecateClaimsForDocument(ctx context.Context, documentID uuid.UUID, at time.Time) (int64, error) {
	ct, err := db.pool.Exec(ctx,
		`UPDATE atomic_claims SET deprecated = true, deprecated_at = $2 WHERE document_id = $1 AND NOT deprecated`, documentID, at)
	if err != nil {
		return 0, fmt.Errorf("storage: deprecate claims for document: %w", err)
	}
	return ct.RowsAffected(), nil
}
