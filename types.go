package veritas

import (
	"time"

	"github.com/google/uuid"
)

// Document is the public representation of an ingested document.
// It is a curated view of internal/model.Document for use in extension
// interfaces — no internal package imports, safe to use from outside the
// module.
type Document struct {
	ID             uuid.UUID
	Title          string
	DocumentType   string
	SourcePath     string
	ContentHash    string
	AuthorityLevel int
	Tags           []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Claim is an atomic, verifiable statement extracted from a document section.
type Claim struct {
	ID              uuid.UUID
	DocumentID      uuid.UUID
	SourceSectionID uuid.UUID
	Subject         string
	Predicate       string
	Object          string
	Confidence      float32
	Deprecated      bool
}

// Conflict represents a detected disagreement between two claims.
type Conflict struct {
	ID          uuid.UUID
	ClaimAID    uuid.UUID
	ClaimBID    uuid.UUID
	Category    string // agreement | value_conflict | direct_negation
	Score       float32
	Explanation string
}

// ConflictScore is the result of a pairwise conflict scoring call.
type ConflictScore struct {
	// Score is the conflict intensity [0.0 = agreement, 1.0 = direct negation].
	Score       float32
	Category    string
	Explanation string
}

// Entity is a canonical real-world thing (service, person, system) that
// claim subjects/objects resolve to during entity-graph construction.
type Entity struct {
	ID            uuid.UUID
	CanonicalName string
	EntityType    string
	Aliases       []string
}

// SearchFilters narrows a vector search to a subset of the corpus.
// All fields are primitive or stdlib types — no internal package imports.
type SearchFilters struct {
	DocumentTypes   []string
	Tags            []string
	AuthorityMin    *int
	ExcludeDocument *uuid.UUID
}

// SearchResult holds a section ID, its owning document ID, and a
// similarity score from a Searcher.
type SearchResult struct {
	SectionID  uuid.UUID
	DocumentID uuid.UUID
	Score      float32
}

// Violation is a policy rule violation returned by a PolicyEvaluator.
// Defined here to reserve the extension point; no built-in evaluator
// ships with the OSS pipeline.
type Violation struct {
	Rule     string
	Severity string
	Message  string
}
