package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/veritas-labs/veritas/internal/model"
)

// OfflineCache is a local SQLite mirror of document metadata. It never
// backs a write: Postgres stays the system of record. It exists so the
// pipeline's read path has something to degrade to — a corpus listing,
// not full query answering — when the Postgres pool is unreachable.
type OfflineCache struct {
	db *sql.DB
}

// OpenOfflineCache opens (creating if needed) a SQLite file at path and
// ensures its schema exists.
func OpenOfflineCache(path string) (*OfflineCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open offline cache: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		title TEXT NOT NULL,
		document_type TEXT NOT NULL,
		authority_level INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create offline cache schema: %w", err)
	}
	return &OfflineCache{db: db}, nil
}

// Close releases the underlying SQLite file handle.
func (c *OfflineCache) Close() error {
	return c.db.Close()
}

// Mirror upserts a document's metadata into the cache. Called best-effort
// from the ingest and deprecate pipeline steps after the Postgres write
// succeeds; a mirror failure is never fatal to the caller.
func (c *OfflineCache) Mirror(ctx context.Context, d model.Document) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (id, source_path, title, document_type, authority_level, content_hash, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   source_path = excluded.source_path, title = excluded.title,
		   document_type = excluded.document_type, authority_level = excluded.authority_level,
		   content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
		d.ID.String(), d.SourcePath, d.Title, string(d.DocumentType), d.AuthorityLevel, d.ContentHash,
		d.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storage: mirror document to offline cache: %w", err)
	}
	return nil
}

// ListCached returns every document mirrored into the cache, the degraded
// read the pipeline falls back to when the Postgres pool is unreachable.
func (c *OfflineCache) ListCached(ctx context.Context) ([]model.Document, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, source_path, title, document_type, authority_level, content_hash, updated_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("storage: list offline cache: %w", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var idStr, docType, updatedAt string
		var d model.Document
		if err := rows.Scan(&idStr, &d.SourcePath, &d.Title, &docType, &d.AuthorityLevel, &d.ContentHash, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan offline cache row: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		d.ID = id
		d.DocumentType = model.DocumentType(docType)
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			d.UpdatedAt = t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
