package model

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Entity is a canonical referent for claim subjects/objects. Aliases are
// mention strings the resolver has folded into this entity via exact, alias,
// or embedding nearest-neighbor lookup.
type Entity struct {
	CanonicalID   uuid.UUID        `json:"canonical_id"`
	CanonicalForm string           `json:"canonical_form"`
	Aliases       []string         `json:"aliases"`
	Embedding     *pgvector.Vector `json:"-"`
}

// EntityEdge is a directed co-occurrence edge: a claim referencing two
// entities together within one document.
type EntityEdge struct {
	ID         uuid.UUID `json:"id"`
	FromEntity uuid.UUID `json:"from_entity"`
	ToEntity   uuid.UUID `json:"to_entity"`
	ClaimID    uuid.UUID `json:"claim_id"`
	DocumentID uuid.UUID `json:"document_id"`
}

// normalizeMention lowercases, collapses whitespace, and strips punctuation
// from a mention string, per the entity resolver's normalization step.
func normalizeMention(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastWasSpace = true
		case unicode.IsPunct(r):
			// dropped entirely
		default:
			b.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeMention exposes normalizeMention for callers outside this
// package (the entity resolver and conflict detector both need it).
func NormalizeMention(s string) string {
	return normalizeMention(s)
}
