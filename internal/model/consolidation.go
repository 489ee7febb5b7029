package model

import (
	"github.com/google/uuid"
)

// MergeStrategyType selects how the merge engine auto-resolves conflicts
// and groups sections across source documents.
type MergeStrategyType string

const (
	MergeSmart         MergeStrategyType = "smart"
	MergeNewestWins    MergeStrategyType = "newest_wins"
	MergeAuthorityWins MergeStrategyType = "authority_wins"
	MergeAll           MergeStrategyType = "merge_all"
)

// MergeStrategy parameterizes a consolidation call.
type MergeStrategy struct {
	Type                  MergeStrategyType `json:"type"`
	AuthorityOrder        []uuid.UUID       `json:"authority_order,omitempty"`
	SemanticThreshold     float64           `json:"semantic_threshold"`
	AutoResolveTypes      []ConflictType    `json:"auto_resolve_types,omitempty"`
	RequireHumanReviewFor []ConflictType    `json:"require_human_review_for,omitempty"`
}

// ConsolidationStatus is the outcome of a consolidate_documents call.
type ConsolidationStatus string

const (
	ConsolidationCompleted     ConsolidationStatus = "completed"
	ConsolidationPendingReview ConsolidationStatus = "pending_review"
	ConsolidationFailed        ConsolidationStatus = "failed"
)

// ConsolidationRecord is emitted by a merge: which documents fed in, what
// came out, and how many conflicts were resolved versus left pending.
type ConsolidationRecord struct {
	ID                uuid.UUID         `json:"id"`
	SourceDocumentIDs []uuid.UUID       `json:"source_document_ids"`
	ResultDocumentID  *uuid.UUID        `json:"result_document_id,omitempty"`
	Strategy          MergeStrategyType `json:"strategy"`
	ConflictsResolved int               `json:"conflicts_resolved"`
	ConflictsPending  int               `json:"conflicts_pending"`
	ClusterID         *uuid.UUID        `json:"cluster_id,omitempty"`
}

// SectionProvenance records which source documents contributed to an
// output section of a merge.
type SectionProvenance struct {
	Header  string      `json:"header"`
	Sources []uuid.UUID `json:"sources"`
}
