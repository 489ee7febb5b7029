package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/veritas-labs/veritas/internal/model"
)

const documentColumns = `id, source_path, content_hash, format, document_type, title,
	authority_level, raw_content, frontmatter, document_embedding, tags, created_at, updated_at`

func scanDocument(row pgx.Row) (model.Document, error) {
	var d model.Document
	var frontmatter []byte
	err := row.Scan(&d.ID, &d.SourcePath, &d.ContentHash, &d.Format, &d.DocumentType, &d.Title,
		&d.AuthorityLevel, &d.RawContent, &frontmatter, &d.DocumentEmbedding, &d.Tags, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, err
	}
	if len(frontmatter) > 0 {
		if err := json.Unmarshal(frontmatter, &d.Frontmatter); err != nil {
			return d, fmt.Errorf("storage: unmarshal frontmatter: %w", err)
		}
	}
	return d, nil
}

// InsertDocument inserts a newly-ingested document. Callers must have
// already deduplicated on content_hash; a duplicate hash is a unique
// constraint violation the caller translates into pipelineerr.Conflict.
func (db *DB) InsertDocument(ctx context.Context, d model.Document) (model.Document, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	frontmatter, err := json.Marshal(d.Frontmatter)
	if err != nil {
		return model.Document{}, fmt.Errorf("storage: marshal frontmatter: %w", err)
	}
	row := db.pool.QueryRow(ctx,
		`INSERT INTO documents (id, source_path, content_hash, format, document_type, title,
		   authority_level, raw_content, frontmatter, document_embedding, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		 RETURNING `+documentColumns,
		d.ID, d.SourcePath, d.ContentHash, string(d.Format), string(d.DocumentType), d.Title,
		d.AuthorityLevel, d.RawContent, frontmatter, d.DocumentEmbedding, d.Tags,
	)
	return scanDocument(row)
}

// FindDocumentByContentHash looks up an existing document by its content
// hash, used by ingest to detect a byte-identical re-submission.
func (db *DB) FindDocumentByContentHash(ctx context.Context, hash string) (*model.Document, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE content_hash = $1`, hash)
	d, err := scanDocument(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: find document by content hash: %w", err)
	}
	return &d, nil
}

// GetDocument retrieves a document by ID.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get document: %w", err)
	}
	return &d, nil
}

// FindDocumentsByPathPattern returns documents whose source_path matches a
// SQL LIKE pattern, used to resolve a query Scope's PathPatterns.
func (db *DB) FindDocumentsByPathPattern(ctx context.Context, pattern string) ([]model.Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE source_path LIKE $1 AND document_type != 'quarantined'
		 ORDER BY source_path`, pattern)
	if err != nil {
		return nil, fmt.Errorf("storage: find documents by path pattern: %w", err)
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// FindDocumentsByIDs fetches a set of documents by ID, preserving no
// particular order.
func (db *DB) FindDocumentsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("storage: find documents by ids: %w", err)
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListAllDocuments returns every non-quarantined document, used when a
// query Scope requests All.
func (db *DB) ListAllDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE document_type != 'quarantined' ORDER BY source_path`)
	if err != nil {
		return nil, fmt.Errorf("storage: list all documents: %w", err)
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListDocumentsUpdatedSince returns every document touched (inserted,
// re-ingested, or deprecated) at or after since, ordered oldest-first.
// Used by App's notification loop to drive EventHook callbacks without
// requiring the pipeline itself to know hooks exist.
func (db *DB) ListDocumentsUpdatedSince(ctx context.Context, since time.Time) ([]model.Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE updated_at >= $1 ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("storage: list documents updated since: %w", err)
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func scanDocumentRows(rows pgx.Rows) ([]model.Document, error) {
	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentType transitions a document to a new document_type, used by
// deprecate to move a document to archive and by ingest to quarantine a
// document whose sections failed to persist.
func (db *DB) UpdateDocumentType(ctx context.Context, id uuid.UUID, docType model.DocumentType) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE documents SET document_type = $2, updated_at = now() WHERE id = $1`, id, string(docType))
	if err != nil {
		return fmt.Errorf("storage: update document type: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("storage: update document type: %w", ErrNotFound)
	}
	return nil
}

// TouchDocument bumps a document's updated_at, used after in-place
// frontmatter or tag edits that don't warrant a full re-ingest.
func (db *DB) TouchDocument(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.pool.Exec(ctx, `UPDATE documents SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("storage: touch document: %w", err)
	}
	return nil
}

// UpdateDocumentFrontmatter replaces a document's frontmatter map in place,
// used by deprecate to record a deprecation note without a full re-ingest.
func (db *DB) UpdateDocumentFrontmatter(ctx context.Context, id uuid.UUID, frontmatter map[string]any) error {
	raw, err := json.Marshal(frontmatter)
	if err != nil {
		return fmt.Errorf("storage: marshal frontmatter: %w", err)
	}
	ct, err := db.pool.Exec(ctx,
		`UPDATE documents SET frontmatter = $2, updated_at = now() WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("storage: update document frontmatter: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("storage: update document frontmatter: %w", ErrNotFound)
	}
	return nil
}

// FindDocumentsMissingEmbedding returns every non-quarantined document with
// no document_embedding, used by the startup backfill sweep to catch up
// documents ingested before an embedding provider was configured.
func (db *DB) FindDocumentsMissingEmbedding(ctx context.Context) ([]model.Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE document_embedding IS NULL AND document_type != 'quarantined'`)
	if err != nil {
		return nil, fmt.Errorf("storage: find documents missing embedding: %w", err)
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// UpdateDocumentEmbedding persists a freshly computed document_embedding,
// the document-level counterpart to UpdateEmbedding on sections.
func (db *DB) UpdateDocumentEmbedding(ctx context.Context, id uuid.UUID, embedding pgvector.Vector) error {
	ct, err := db.pool.Exec(ctx, `UPDATE documents SET document_embedding = $2 WHERE id = $1`, id, embedding)
	if err != nil {
		return fmt.Errorf("storage: update document embedding: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("storage: update document embedding: %w", ErrNotFound)
	}
	return nil
}

// FindSimilarDocuments ranks every non-quarantined document other than
// excludeID by cosine similarity to embedding, clamping similarity to a
// non-negative floor and breaking ties by higher authority_level then newer
// created_at, returning at most k results.
func (db *DB) FindSimilarDocuments(ctx context.Context, embedding pgvector.Vector, k int, excludeID uuid.UUID) ([]model.DocumentSimilarity, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+`, GREATEST(1 - (document_embedding <=> $1), 0) AS similarity
		 FROM documents
		 WHERE document_embedding IS NOT NULL AND id != $2 AND document_type != 'quarantined'
		 ORDER BY similarity DESC, authority_level DESC, created_at DESC
		 LIMIT $3`, embedding, excludeID, k)
	if err != nil {
		return nil, fmt.Errorf("storage: find similar documents: %w", err)
	}
	defer rows.Close()

	var out []model.DocumentSimilarity
	for rows.Next() {
		var d model.Document
		var frontmatter []byte
		var similarity float32
		if err := rows.Scan(&d.ID, &d.SourcePath, &d.ContentHash, &d.Format, &d.DocumentType, &d.Title,
			&d.AuthorityLevel, &d.RawContent, &frontmatter, &d.DocumentEmbedding, &d.Tags, &d.CreatedAt, &d.UpdatedAt,
			&similarity); err != nil {
			return nil, fmt.Errorf("storage: scan similar document: %w", err)
		}
		if len(frontmatter) > 0 {
			if err := json.Unmarshal(frontmatter, &d.Frontmatter); err != nil {
				return nil, fmt.Errorf("storage: unmarshal frontmatter: %w", err)
			}
		}
		out = append(out, model.DocumentSimilarity{Document: d, Similarity: similarity})
	}
	return out, rows.Err()
}
