// Package merge resolves conflicts and assembles a single consolidated
// document from a set of source documents, their claims, and the
// conflicts detected between those claims.
package merge

import "github.com/veritas-labs/veritas/internal/model"

// Bucket classifies a conflict by how it should be handled during merge.
type Bucket string

const (
	BucketAuto          Bucket = "auto"
	BucketPendingReview Bucket = "pending_review"
	BucketHumanRequired Bucket = "human_required"
)

// RouteThresholds carries the two caller-supplied strength thresholds that
// partition conflicts into auto/pending/human buckets, plus the optional
// per-type overrides from MergeStrategy.
type RouteThresholds struct {
	AutoResolveBelow      float64
	RequireHumanAbove     float64
	AutoResolveTypes      []model.ConflictType
	RequireHumanReviewFor []model.ConflictType
}

// Route assigns a bucket to a single conflict. Type-list overrides take
// priority over the strength thresholds: a conflict type explicitly listed
// in RequireHumanReviewFor always requires a human, and one listed in
// AutoResolveTypes always auto-resolves, regardless of strength.
func Route(c model.Conflict, t RouteThresholds) Bucket {
	for _, ct := range t.RequireHumanReviewFor {
		if ct == c.ConflictType {
			return BucketHumanRequired
		}
	}
	for _, ct := range t.AutoResolveTypes {
		if ct == c.ConflictType {
			return BucketAuto
		}
	}
	switch {
	case c.Strength < t.AutoResolveBelow:
		return BucketAuto
	case c.Strength > t.RequireHumanAbove:
		return BucketHumanRequired
	default:
		return BucketPendingReview
	}
}

// RouteAll partitions every conflict in the slice into its bucket.
func RouteAll(conflicts []model.Conflict, t RouteThresholds) (auto, pending, human []model.Conflict) {
	for _, c := range conflicts {
		switch Route(c, t) {
		case BucketAuto:
			auto = append(auto, c)
		case BucketHumanRequired:
			human = append(human, c)
		default:
			pending = append(pending, c)
		}
	}
	return auto, pending, human
}
