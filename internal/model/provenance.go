package model

import (
	"time"

	"github.com/google/uuid"
)

// ProvenanceEventType enumerates the audit-log event kinds.
type ProvenanceEventType string

const (
	EventIngestion     ProvenanceEventType = "ingestion"
	EventConsolidation ProvenanceEventType = "consolidation"
	EventDeprecation   ProvenanceEventType = "deprecation"
	EventSupersession  ProvenanceEventType = "supersession"
)

// ProvenanceEvent is an append-only audit log entry attached to a document.
type ProvenanceEvent struct {
	ID         uuid.UUID           `json:"id"`
	DocumentID uuid.UUID           `json:"document_id"`
	EventType  ProvenanceEventType `json:"event_type"`
	Details    map[string]any      `json:"details,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// OverlapCluster is a connected component of the document similarity graph,
// persisted under a cluster id so a later consolidation call can reference
// it instead of re-listing documents.
type OverlapCluster struct {
	ClusterID            uuid.UUID          `json:"cluster_id"`
	DocumentIDs          []uuid.UUID        `json:"document_ids"`
	PairwiseSimilarities map[string]float32 `json:"pairwise_similarities"`
	SharedHeaders        []string           `json:"shared_headers"`
	ConflictsSummary     ConflictsSummary   `json:"conflicts_summary"`
}

// ConflictsSummary tallies conflicts by type within a cluster.
type ConflictsSummary struct {
	Agreement      int `json:"agreement"`
	ValueConflict  int `json:"value_conflict"`
	DirectNegation int `json:"direct_negation"`
}

// VerificationSignal is one piece of evidence contributing to a claim's
// verification result (filename existence, grep match, LLM judgement).
type VerificationSignal struct {
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// VerificationResult is the per-claim output of the verification pipeline.
// It never gates a response; it only annotates it.
type VerificationResult struct {
	ClaimID  uuid.UUID            `json:"claim_id"`
	Verified bool                 `json:"verified"`
	Signals  []VerificationSignal `json:"signals"`
}
