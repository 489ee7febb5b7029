package model

import "github.com/google/uuid"

// Scope selects a subset of the corpus by exactly one of document ids, path
// patterns (glob/substring), or the literal "all".
type Scope struct {
	DocumentIDs  []uuid.UUID `json:"document_ids,omitempty"`
	PathPatterns []string    `json:"path_patterns,omitempty"`
	All          bool        `json:"all,omitempty"`
}

// QueryType shapes how the answer synthesizer prompts the LLM.
type QueryType string

const (
	QueryFactual     QueryType = "factual"
	QueryProcedural  QueryType = "procedural"
	QueryConceptual  QueryType = "conceptual"
	QueryComparative QueryType = "comparative"
)

// SourceRef is a citation-bearing excerpt backing a synthesized answer.
type SourceRef struct {
	DocumentID     uuid.UUID  `json:"document_id"`
	DocumentTitle  string     `json:"document_title"`
	SectionID      *uuid.UUID `json:"section_id,omitempty"`
	SectionHeader  string     `json:"section_header,omitempty"`
	RelevanceScore float32    `json:"relevance_score"`
	Excerpt        string     `json:"excerpt"`
	AuthorityLevel int        `json:"authority_level"`
}
