package model

import (
	"time"

	"github.com/google/uuid"
)

// AtomicClaim is an extracted factual assertion in subject-predicate-object
// form. Subject/predicate/object are always non-empty trimmed strings;
// original_text is either a verbatim substring of the source section or a
// paraphrase the extractor produced within its recorded confidence budget.
type AtomicClaim struct {
	ID              uuid.UUID  `json:"id"`
	Subject         string     `json:"subject"`
	Predicate       string     `json:"predicate"`
	Object          string     `json:"object"`
	OriginalText    string     `json:"original_text"`
	Confidence      float64    `json:"confidence"`
	DocumentID      uuid.UUID  `json:"document_id"`
	SourceSectionID uuid.UUID  `json:"source_section_id"`
	Deprecated      bool       `json:"deprecated"`
	DeprecatedAt    *time.Time `json:"deprecated_at,omitempty"`
}

// NormalizedSubject lowercases and whitespace-collapses the subject for
// bucketing claims into conflict-pairing groups and for subject lookups.
func (c AtomicClaim) NormalizedSubject() string {
	return normalizeMention(c.Subject)
}
