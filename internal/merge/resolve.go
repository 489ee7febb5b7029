package merge

import (
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
)

// ClaimSource pairs a claim with the document it came from, the shape
// every per-strategy resolution rule needs to compare.
type ClaimSource struct {
	Claim    model.AtomicClaim
	Document model.Document
}

// Resolution is the outcome of auto-resolving one conflict: either a single
// winning claim, or both claims retained (merge_all leaves the conflict
// unresolved and surfaces both in the provenance map).
type Resolution struct {
	Winner       *ClaimSource
	BothRetained bool
}

// ResolveConflict applies a single strategy's auto-resolution rule to one
// conflict between two claim sources.
func ResolveConflict(strategy model.MergeStrategyType, a, b ClaimSource, authorityOrder []uuid.UUID) Resolution {
	switch strategy {
	case model.MergeNewestWins:
		return Resolution{Winner: pick(newestWins(a, b, authorityOrder))}
	case model.MergeAuthorityWins:
		return Resolution{Winner: pick(authorityWins(a, b, authorityOrder))}
	case model.MergeAll:
		return Resolution{BothRetained: true}
	case model.MergeSmart:
		fallthrough
	default:
		return Resolution{Winner: pick(smart(a, b, authorityOrder))}
	}
}

func pick(winner ClaimSource) *ClaimSource {
	w := winner
	return &w
}

// newestWins picks the claim from the document with the later UpdatedAt
// (falling back to CreatedAt when UpdatedAt is unset), tie-breaking on
// higher authority.
func newestWins(a, b ClaimSource, authorityOrder []uuid.UUID) ClaimSource {
	ta, tb := recencyOf(a.Document), recencyOf(b.Document)
	if !ta.Equal(tb) {
		if ta.After(tb) {
			return a
		}
		return b
	}
	if authorityRank(a.Document, authorityOrder) < authorityRank(b.Document, authorityOrder) {
		return a
	}
	return b
}

// authorityWins picks the claim whose document has the higher authority
// level, or an earlier position in authority_order when one is supplied,
// tie-breaking on recency.
func authorityWins(a, b ClaimSource, authorityOrder []uuid.UUID) ClaimSource {
	ra, rb := authorityRank(a.Document, authorityOrder), authorityRank(b.Document, authorityOrder)
	if ra != rb {
		if ra < rb {
			return a
		}
		return b
	}
	if recencyOf(a.Document).After(recencyOf(b.Document)) {
		return a
	}
	return b
}

// smart picks the claim with higher extraction confidence, tie-breaking on
// authority then recency.
func smart(a, b ClaimSource, authorityOrder []uuid.UUID) ClaimSource {
	if a.Claim.Confidence != b.Claim.Confidence {
		if a.Claim.Confidence > b.Claim.Confidence {
			return a
		}
		return b
	}
	ra, rb := authorityRank(a.Document, authorityOrder), authorityRank(b.Document, authorityOrder)
	if ra != rb {
		if ra < rb {
			return a
		}
		return b
	}
	if recencyOf(a.Document).After(recencyOf(b.Document)) {
		return a
	}
	return b
}

// recencyOf returns the document's UpdatedAt, falling back to CreatedAt
// when UpdatedAt is the zero value.
func recencyOf(d model.Document) time.Time {
	if !d.UpdatedAt.IsZero() {
		return d.UpdatedAt
	}
	return d.CreatedAt
}

// authorityRank returns a sortable priority for a document: a lower number
// wins. When authorityOrder is supplied, a document's index in it takes
// priority over AuthorityLevel; documents absent from authorityOrder (or
// when it's empty) fall back to -AuthorityLevel so a higher level ranks
// first.
func authorityRank(d model.Document, authorityOrder []uuid.UUID) int {
	for i, id := range authorityOrder {
		if id == d.ID {
			return i
		}
	}
	if len(authorityOrder) > 0 {
		return len(authorityOrder)
	}
	return -d.AuthorityLevel
}
