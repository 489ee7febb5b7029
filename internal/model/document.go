// Package model defines the shared data model for the consolidation engine:
// documents, sections, atomic claims, entities, conflicts, supersessions,
// consolidation records, and provenance events.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Format enumerates the document formats the parser understands.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatText     Format = "text"
)

// DocumentType enumerates the kinds of documents the corpus can hold.
// "quarantined" is a reserved type: an ingest that failed partway through
// lands here instead of a fully-formed type so it is never surfaced by
// queries until repaired or removed.
type DocumentType string

const (
	DocTypeSpec        DocumentType = "spec"
	DocTypeGuide       DocumentType = "guide"
	DocTypeHandoff     DocumentType = "handoff"
	DocTypePrompt      DocumentType = "prompt"
	DocTypeReport      DocumentType = "report"
	DocTypeReference   DocumentType = "reference"
	DocTypeDecision    DocumentType = "decision"
	DocTypeArchive     DocumentType = "archive"
	DocTypeQuarantined DocumentType = "quarantined"
)

// Document is the ingested artifact. Never hard-deleted in the normal
// lifecycle: deprecate mutates frontmatter/document_type in place so that
// provenance links into it remain resolvable.
type Document struct {
	ID                uuid.UUID        `json:"id"`
	SourcePath        string           `json:"source_path"`
	ContentHash       string           `json:"content_hash"`
	Format            Format           `json:"format"`
	DocumentType      DocumentType     `json:"document_type"`
	Title             string           `json:"title"`
	AuthorityLevel    int              `json:"authority_level"`
	RawContent        string           `json:"raw_content"`
	Frontmatter       map[string]any   `json:"frontmatter"`
	DocumentEmbedding *pgvector.Vector `json:"-"`
	Tags              []string         `json:"tags"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// DocumentSimilarity pairs a document with a similarity score, returned by
// findSimilar and by overlap clustering.
type DocumentSimilarity struct {
	Document   Document `json:"document"`
	Similarity float32  `json:"similarity"`
}

// Section is a contiguous heading-delimited span of a document. Sections of
// a document form an ordered sequence: (document_id, section_order) is
// unique, and concatenating sections in order reproduces the document body
// modulo frontmatter.
type Section struct {
	ID               uuid.UUID        `json:"id"`
	DocumentID       uuid.UUID        `json:"document_id"`
	Header           string           `json:"header"`
	Content          string           `json:"content"`
	Level            int              `json:"level"`
	SectionOrder     int              `json:"section_order"`
	StartLine        int              `json:"start_line"`
	EndLine          int              `json:"end_line"`
	SectionEmbedding *pgvector.Vector `json:"-"`
}

// SectionSearchResult is returned by semantic search over sections.
type SectionSearchResult struct {
	SectionID      uuid.UUID `json:"section_id"`
	DocumentID     uuid.UUID `json:"document_id"`
	Header         string    `json:"header"`
	Content        string    `json:"content"`
	Similarity     float32   `json:"similarity"`
	AuthorityLevel int       `json:"authority_level"`
	CreatedAt      time.Time `json:"created_at"`
}

// TimeRange bounds a query by a half-open [From, To] interval; either bound
// may be nil to leave that side unbounded.
type TimeRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}
