package model

import (
	"time"

	"github.com/google/uuid"
)

// ConflictType classifies how two claims relate.
type ConflictType string

const (
	ConflictAgreement      ConflictType = "agreement"
	ConflictValueConflict  ConflictType = "value_conflict"
	ConflictDirectNegation ConflictType = "direct_negation"
)

// Conflict is a detected incompatibility between two claims that share a
// normalized subject. Symmetric: (a,b) and (b,a) are the same conflict.
type Conflict struct {
	ID           uuid.UUID    `json:"id"`
	ClaimAID     uuid.UUID    `json:"claim_a_id"`
	ClaimBID     uuid.UUID    `json:"claim_b_id"`
	ConflictType ConflictType `json:"conflict_type"`
	Strength     float64      `json:"strength"`
	DiscoveredAt time.Time    `json:"discovered_at"`
}

// ConfidenceSignal is the average of the two claims' confidences. The merge
// engine's conflict router does not use it: Route buckets conflicts by
// Strength.
func (c Conflict) ConfidenceSignal(claimAConfidence, claimBConfidence float64) float64 {
	return (claimAConfidence + claimBConfidence) / 2
}

// Supersession records that NewDocumentID replaces OldDocumentID. The graph
// formed by all supersessions must stay acyclic.
type Supersession struct {
	ID            uuid.UUID `json:"id"`
	OldDocumentID uuid.UUID `json:"old_document_id"`
	NewDocumentID uuid.UUID `json:"new_document_id"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}
