package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/veritas-labs/veritas/internal/model"
)

const sectionColumns = `id, document_id, header, content, level, section_order, start_line, end_line, section_embedding`

func scanSection(row pgx.Row) (model.Section, error) {
	var s model.Section
	err := row.Scan(&s.ID, &s.DocumentID, &s.Header, &s.Content, &s.Level, &s.SectionOrder, &s.StartLine, &s.EndLine, &s.SectionEmbedding)
	return s, err
}

// InsertSections bulk-inserts a document's sections in parse order.
func (db *DB) InsertSections(ctx context.Context, sections []model.Section) error {
	if len(sections) == 0 {
		return nil
	}
	rows := make([][]any, len(sections))
	for i, s := range sections {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		rows[i] = []any{s.ID, s.DocumentID, s.Header, s.Content, s.Level, s.SectionOrder, s.StartLine, s.EndLine, s.SectionEmbedding}
	}
	_, err := db.pool.CopyFrom(ctx,
		pgx.Identifier{"sections"},
		[]string{"id", "document_id", "header", "content", "level", "section_order", "start_line", "end_line", "section_embedding"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("storage: insert sections: %w", err)
	}
	return nil
}

// FindSectionsByDocument returns a document's sections in order.
func (db *DB) FindSectionsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Section, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE document_id = $1 ORDER BY section_order`, documentID)
	if err != nil {
		return nil, fmt.Errorf("storage: find sections by document: %w", err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// GetSection retrieves a single section by ID.
func (db *DB) GetSection(ctx context.Context, id uuid.UUID) (*model.Section, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = $1`, id)
	s, err := scanSection(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get section: %w", err)
	}
	return &s, nil
}

// FindSectionsByHeaderAcrossDocuments finds sections sharing an identical
// (case-folded) header text in documents other than excludeDocumentID.
func (db *DB) FindSectionsByHeaderAcrossDocuments(ctx context.Context, header string, excludeDocumentID uuid.UUID) ([]model.Section, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+sectionColumns+` FROM sections
		 WHERE lower(header) = lower($1) AND document_id != $2`, header, excludeDocumentID)
	if err != nil {
		return nil, fmt.Errorf("storage: find sections by header: %w", err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// DeleteSectionsByDocument removes a document's sections, used before
// re-inserting a freshly-parsed set during re-ingest.
func (db *DB) DeleteSectionsByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM sections WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("storage: delete sections by document: %w", err)
	}
	return nil
}

// FindSectionsMissingEmbedding returns every section with no
// section_embedding, used by the startup backfill sweep.
func (db *DB) FindSectionsMissingEmbedding(ctx context.Context) ([]model.Section, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE section_embedding IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("storage: find sections missing embedding: %w", err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// UpdateEmbedding persists a freshly computed embedding for a section,
// used by the backfill sweep to fill in sections that were ingested before
// an embedding provider was configured.
func (db *DB) UpdateEmbedding(ctx context.Context, sectionID uuid.UUID, embedding pgvector.Vector) error {
	ct, err := db.pool.Exec(ctx, `UPDATE sections SET section_embedding = $2 WHERE id = $1`, sectionID, embedding)
	if err != nil {
		return fmt.Errorf("storage: update section embedding: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("storage: update section embedding: %w", ErrNotFound)
	}
	return nil
}

// SemanticSearch ranks sections by cosine similarity to embedding, scoped
// to scopeDocIDs when non-empty, for the in-process fallback path used when
// no external searcher is configured. Ties (equal similarity, which pgvector
// returns often on sparse corpora) break on the owning document's authority
// level, then on its creation time, newest first.
func (db *DB) SemanticSearch(ctx context.Context, embedding pgvector.Vector, k int, scopeDocIDs []uuid.UUID) ([]model.SectionSearchResult, error) {
	var rows pgx.Rows
	var err error
	if len(scopeDocIDs) > 0 {
		rows, err = db.pool.Query(ctx,
			`SELECT s.id, s.document_id, s.header, s.content,
			        GREATEST(1 - (s.section_embedding <=> $1), 0) AS similarity,
			        d.authority_level, d.created_at
			 FROM sections s
			 JOIN documents d ON d.id = s.document_id
			 WHERE s.section_embedding IS NOT NULL AND s.document_id = ANY($2)
			 ORDER BY similarity DESC, d.authority_level DESC, d.created_at DESC
			 LIMIT $3`, embedding, scopeDocIDs, k)
	} else {
		rows, err = db.pool.Query(ctx,
			`SELECT s.id, s.document_id, s.header, s.content,
			        GREATEST(1 - (s.section_embedding <=> $1), 0) AS similarity,
			        d.authority_level, d.created_at
			 FROM sections s
			 JOIN documents d ON d.id = s.document_id
			 WHERE s.section_embedding IS NOT NULL
			 ORDER BY similarity DESC, d.authority_level DESC, d.created_at DESC
			 LIMIT $2`, embedding, k)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: semantic search: %w", err)
	}
	defer rows.Close()

	var out []model.SectionSearchResult
	for rows.Next() {
		var r model.SectionSearchResult
		if err := rows.Scan(&r.SectionID, &r.DocumentID, &r.Header, &r.Content, &r.Similarity, &r.AuthorityLevel, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan semantic search result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
