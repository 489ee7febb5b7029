package merge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
)

// Request is everything the merge engine needs to produce one consolidated
// document from a set of source documents.
type Request struct {
	Documents         []model.Document
	Sections          []SectionSource
	Claims            []ClaimSource
	Conflicts         []model.Conflict
	Strategy          model.MergeStrategy
	AutoResolveBelow  float64
	RequireHumanAbove float64
	OutputFormat      model.Format
	IncludeProvenance bool
}

// ConflictResolution records what happened to one conflict during a
// consolidation: which bucket it landed in and, for auto-resolved
// conflicts, which claim won (or that both were retained under merge_all).
type ConflictResolution struct {
	Conflict Conflict
	Bucket   Bucket
	Winner   *model.AtomicClaim
	Retained bool
}

// Conflict is a thin alias kept local to avoid importing model twice under
// two names in call sites that already have a model.Conflict in scope.
type Conflict = model.Conflict

// Result is the merge engine's output: the assembled sections, the
// rendered document body, and a per-conflict accounting the orchestrator
// uses to build a consolidate_documents response.
type Result struct {
	Sections          []MergedSection
	RenderedContent   string
	ConflictsResolved []ConflictResolution
	ConflictsPending  []ConflictResolution
}

// Consolidate routes every conflict, auto-resolves the ones the strategy
// and thresholds allow, merges sections across the source documents, and
// renders the output in the requested format.
func Consolidate(req Request) (Result, error) {
	claimsByID := make(map[uuid.UUID]ClaimSource, len(req.Claims))
	for _, cs := range req.Claims {
		claimsByID[cs.Claim.ID] = cs
	}

	thresholds := RouteThresholds{
		AutoResolveBelow:      req.AutoResolveBelow,
		RequireHumanAbove:     req.RequireHumanAbove,
		AutoResolveTypes:      req.Strategy.AutoResolveTypes,
		RequireHumanReviewFor: req.Strategy.RequireHumanReviewFor,
	}

	var resolved, pending []ConflictResolution
	for _, c := range req.Conflicts {
		bucket := Route(c, thresholds)
		if bucket != BucketAuto {
			pending = append(pending, ConflictResolution{Conflict: c, Bucket: bucket})
			continue
		}

		a, okA := claimsByID[c.ClaimAID]
		b, okB := claimsByID[c.ClaimBID]
		if !okA || !okB {
			pending = append(pending, ConflictResolution{Conflict: c, Bucket: bucket})
			continue
		}

		res := ResolveConflict(req.Strategy.Type, a, b, req.Strategy.AuthorityOrder)
		cr := ConflictResolution{Conflict: c, Bucket: bucket, Retained: res.BothRetained}
		if res.Winner != nil {
			winner := res.Winner.Claim
			cr.Winner = &winner
		}
		resolved = append(resolved, cr)
	}

	sections := MergeSections(req.Sections, req.Strategy.Type, req.Strategy.AuthorityOrder)

	title := ""
	if len(req.Documents) > 0 {
		title = req.Documents[0].Title
	}
	content, err := Render(req.OutputFormat, title, sections, req.IncludeProvenance)
	if err != nil {
		return Result{}, fmt.Errorf("merge: consolidate: %w", err)
	}

	return Result{
		Sections:          sections,
		RenderedContent:   content,
		ConflictsResolved: resolved,
		ConflictsPending:  pending,
	}, nil
}
