package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/merge"
	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/pipelineerr"
)

// ConsolidateInput is the consolidate_documents request. Exactly one of
// DocumentIDs, ScopePatterns, or ClusterID selects the source documents.
type ConsolidateInput struct {
	DocumentIDs       []uuid.UUID
	ScopePatterns     []string
	ClusterID         *uuid.UUID
	Strategy          model.MergeStrategyType
	AuthorityOrder    []uuid.UUID
	ConflictThreshold float64
	AutoResolveBelow  float64
	RequireHumanAbove float64
	OutputFormat      model.Format
	IncludeProvenance *bool
	DryRun            bool
}

// ConsolidateResult is the consolidate_documents response.
type ConsolidateResult struct {
	ConsolidationID      uuid.UUID                 `json:"consolidation_id"`
	Status               model.ConsolidationStatus `json:"status"`
	OutputDocument       *OutputDocument           `json:"output_document,omitempty"`
	SourceDocuments      []SourceDocumentSummary   `json:"source_documents"`
	ConflictsResolved    int                       `json:"conflicts_resolved"`
	ConflictsPending     []PendingConflict         `json:"conflicts_pending"`
	ProvenanceMap        []model.SectionProvenance `json:"provenance_map"`
	ProcessingTimeMillis int64                     `json:"processing_time_ms"`
}

// OutputDocument describes the document a consolidation persisted. Absent
// from ConsolidateResult when the request was a dry run.
type OutputDocument struct {
	DocumentID uuid.UUID    `json:"document_id"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Format     model.Format `json:"format"`
}

// SourceDocumentSummary is one entry of ConsolidateResult.SourceDocuments:
// how much of a given source document made it into the merged output.
type SourceDocumentSummary struct {
	DocumentID     uuid.UUID `json:"document_id"`
	Title          string    `json:"title"`
	SectionsUsed   int       `json:"sections_used"`
	ClaimsIncluded int       `json:"claims_included"`
}

// PendingConflict is one entry of ConsolidateResult.ConflictsPending: a
// conflict the strategy routed to human review rather than auto-resolving.
type PendingConflict struct {
	ConflictID  uuid.UUID        `json:"conflict_id"`
	Description string           `json:"description"`
	Options     []ConflictOption `json:"options"`
}

// ConflictOption is one candidate claim a PendingConflict could resolve to.
type ConflictOption struct {
	SourceDocument uuid.UUID `json:"source_document"`
	Claim          string    `json:"claim"`
	Confidence     float64   `json:"confidence"`
}

// Consolidate resolves the requested scope, classifies conflicts among the
// scope's claims, merges sections per the chosen strategy, and — unless
// DryRun is set — persists the rendered output as a new document plus a
// consolidation record.
func (p *Pipeline) Consolidate(ctx context.Context, in ConsolidateInput) (ConsolidateResult, error) {
	start := time.Now()

	docs, err := p.resolveConsolidationScope(ctx, in)
	if err != nil {
		return ConsolidateResult{}, err
	}
	if len(docs) < 2 {
		return ConsolidateResult{}, pipelineerr.InvalidInput("consolidation requires at least two source documents", len(docs))
	}

	docByID := make(map[uuid.UUID]model.Document, len(docs))
	sourceIDs := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		docByID[d.ID] = d
		sourceIDs[i] = d.ID
	}

	var sectionSources []merge.SectionSource
	var claimSources []merge.ClaimSource
	var allClaims []model.AtomicClaim
	for _, d := range docs {
		sections, err := p.db.FindSectionsByDocument(ctx, d.ID)
		if err != nil {
			return ConsolidateResult{}, pipelineerr.Internal("section lookup failed", err)
		}
		for _, s := range sections {
			sectionSources = append(sectionSources, merge.SectionSource{Section: s, Document: d})
		}
		docClaims, err := p.db.FindClaimsByDocument(ctx, d.ID)
		if err != nil {
			return ConsolidateResult{}, pipelineerr.Internal("claim lookup failed", err)
		}
		for _, c := range docClaims {
			claimSources = append(claimSources, merge.ClaimSource{Claim: c, Document: d})
		}
		allClaims = append(allClaims, docClaims...)
	}

	detector := p.detector
	if in.ConflictThreshold != 0 {
		detector = conflictsWithThreshold(p, in.ConflictThreshold)
	}
	conflicts, err := detector.Detect(ctx, allClaims)
	if err != nil {
		return ConsolidateResult{}, pipelineerr.Internal("conflict detection failed", err)
	}
	var nonAgreement []model.Conflict
	for _, c := range conflicts {
		if c.ConflictType != model.ConflictAgreement {
			nonAgreement = append(nonAgreement, c)
		}
	}

	strategyType := in.Strategy
	if strategyType == "" {
		strategyType = model.MergeSmart
	}
	autoResolveBelow := in.AutoResolveBelow
	if autoResolveBelow == 0 {
		autoResolveBelow = 0.3
	}
	requireHumanAbove := in.RequireHumanAbove
	if requireHumanAbove == 0 {
		requireHumanAbove = 0.9
	}
	outputFormat := in.OutputFormat
	if outputFormat == "" {
		outputFormat = model.FormatMarkdown
	}
	includeProvenance := boolOr(in.IncludeProvenance, true)

	result, err := merge.Consolidate(merge.Request{
		Documents:         docs,
		Sections:          sectionSources,
		Claims:            claimSources,
		Conflicts:         nonAgreement,
		Strategy:          model.MergeStrategy{Type: strategyType, AuthorityOrder: in.AuthorityOrder},
		AutoResolveBelow:  autoResolveBelow,
		RequireHumanAbove: requireHumanAbove,
		OutputFormat:      outputFormat,
		IncludeProvenance: includeProvenance,
	})
	if err != nil {
		return ConsolidateResult{}, pipelineerr.Internal("merge failed", err)
	}

	status := model.ConsolidationCompleted
	if len(result.ConflictsPending) > 0 {
		status = model.ConsolidationPendingReview
	}

	provenance := make([]model.SectionProvenance, len(result.Sections))
	for i, s := range result.Sections {
		provenance[i] = model.SectionProvenance{Header: s.Header, Sources: s.Sources}
	}

	record := model.ConsolidationRecord{
		ID:                uuid.New(),
		SourceDocumentIDs: sourceIDs,
		Strategy:          strategyType,
		ConflictsResolved: len(result.ConflictsResolved),
		ConflictsPending:  len(result.ConflictsPending),
		ClusterID:         in.ClusterID,
	}

	claimByID := make(map[uuid.UUID]merge.ClaimSource, len(claimSources))
	for _, cs := range claimSources {
		claimByID[cs.Claim.ID] = cs
	}

	excludedClaims := make(map[uuid.UUID]bool)
	for _, cr := range result.ConflictsResolved {
		if cr.Retained || cr.Winner == nil {
			continue
		}
		loser := cr.Conflict.ClaimAID
		if cr.Conflict.ClaimAID == cr.Winner.ID {
			loser = cr.Conflict.ClaimBID
		}
		excludedClaims[loser] = true
	}

	sectionsUsedByDoc := make(map[uuid.UUID]int, len(docs))
	for _, s := range result.Sections {
		for _, id := range s.Sources {
			sectionsUsedByDoc[id]++
		}
	}
	claimsIncludedByDoc := make(map[uuid.UUID]int, len(docs))
	for _, cs := range claimSources {
		if excludedClaims[cs.Claim.ID] {
			continue
		}
		claimsIncludedByDoc[cs.Document.ID]++
	}
	sourceDocuments := make([]SourceDocumentSummary, len(sourceIDs))
	for i, id := range sourceIDs {
		sourceDocuments[i] = SourceDocumentSummary{
			DocumentID:     id,
			Title:          docByID[id].Title,
			SectionsUsed:   sectionsUsedByDoc[id],
			ClaimsIncluded: claimsIncludedByDoc[id],
		}
	}

	pendingConflicts := make([]PendingConflict, len(result.ConflictsPending))
	for i, cr := range result.ConflictsPending {
		var options []ConflictOption
		var subject string
		for _, cid := range []uuid.UUID{cr.Conflict.ClaimAID, cr.Conflict.ClaimBID} {
			cs, ok := claimByID[cid]
			if !ok {
				continue
			}
			if subject == "" {
				subject = cs.Claim.Subject
			}
			options = append(options, ConflictOption{
				SourceDocument: cs.Document.ID,
				Claim:          cs.Claim.OriginalText,
				Confidence:     cs.Claim.Confidence,
			})
		}
		pendingConflicts[i] = PendingConflict{
			ConflictID:  cr.Conflict.ID,
			Description: fmt.Sprintf("%s conflict over %q among source documents", cr.Conflict.ConflictType, subject),
			Options:     options,
		}
	}

	consolidateResult := ConsolidateResult{
		Status:               status,
		SourceDocuments:      sourceDocuments,
		ConflictsResolved:    len(result.ConflictsResolved),
		ConflictsPending:     pendingConflicts,
		ProvenanceMap:        provenance,
		ProcessingTimeMillis: elapsedMillis(start),
	}

	if in.DryRun {
		consolidateResult.ConsolidationID = record.ID
		return consolidateResult, nil
	}

	outputDoc := model.Document{
		ID:             uuid.New(),
		SourcePath:     "consolidated:" + record.ID.String(),
		ContentHash:    "",
		Format:         outputFormat,
		DocumentType:   highestAuthorityType(docs),
		Title:          "Consolidated: " + docByID[sourceIDs[0]].Title,
		AuthorityLevel: highestAuthorityLevel(docs),
		RawContent:     result.RenderedContent,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	created, err := p.db.InsertDocument(ctx, outputDoc)
	if err != nil {
		return ConsolidateResult{}, pipelineerr.Internal("consolidated document persistence failed", err)
	}
	record.ResultDocumentID = &created.ID
	if _, err := p.db.InsertConsolidationRecord(ctx, record); err != nil {
		p.logger.Warn("consolidate: consolidation record persistence failed", "error", err)
	}
	if err := p.db.InsertProvenanceEvent(ctx, model.ProvenanceEvent{
		ID:         uuid.New(),
		DocumentID: created.ID,
		EventType:  model.EventConsolidation,
		Details:    map[string]any{"source_document_ids": sourceIDs, "strategy": string(strategyType)},
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		p.logger.Warn("consolidate: provenance event failed", "error", err)
	}

	consolidateResult.ConsolidationID = record.ID
	consolidateResult.OutputDocument = &OutputDocument{
		DocumentID: created.ID,
		Title:      created.Title,
		Content:    result.RenderedContent,
		Format:     outputFormat,
	}
	return consolidateResult, nil
}

func (p *Pipeline) resolveConsolidationScope(ctx context.Context, in ConsolidateInput) ([]model.Document, error) {
	if in.ClusterID != nil {
		cluster, err := p.db.GetOverlapCluster(ctx, *in.ClusterID)
		if err != nil {
			return nil, pipelineerr.Internal("cluster lookup failed", err)
		}
		if cluster == nil {
			return nil, pipelineerr.NotFound("cluster not found")
		}
		docs, err := p.db.FindDocumentsByIDs(ctx, cluster.DocumentIDs)
		if err != nil {
			return nil, pipelineerr.Internal("document lookup by cluster failed", err)
		}
		return docs, nil
	}
	return p.resolveScope(ctx, in.DocumentIDs, in.ScopePatterns, false)
}

func highestAuthorityLevel(docs []model.Document) int {
	max := 0
	for _, d := range docs {
		if d.AuthorityLevel > max {
			max = d.AuthorityLevel
		}
	}
	return max
}

func highestAuthorityType(docs []model.Document) model.DocumentType {
	best := docs[0]
	for _, d := range docs[1:] {
		if d.AuthorityLevel > best.AuthorityLevel {
			best = d
		}
	}
	return best.DocumentType
}
