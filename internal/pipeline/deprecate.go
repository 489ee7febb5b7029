package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/pipelineerr"
)

// DeprecationStatus is the lifecycle state deprecate_document reports,
// independent of model.DocumentType: a non-archived document keeps its
// original document_type but is still reported as deprecated.
type DeprecationStatus string

const (
	StatusDeprecated DeprecationStatus = "deprecated"
	StatusArchived   DeprecationStatus = "archived"
)

// DeprecateInput is the deprecate_document request.
type DeprecateInput struct {
	DocumentID        uuid.UUID
	Reason            string
	SupersededBy      *uuid.UUID
	MigrateReferences *bool
	Archive           bool
}

// DeprecateResult is the deprecate_document response.
type DeprecateResult struct {
	DocumentID           uuid.UUID         `json:"document_id"`
	Title                string            `json:"title"`
	Status               DeprecationStatus `json:"status"`
	SupersededBy         *uuid.UUID        `json:"superseded_by,omitempty"`
	AffectedReferences   []uuid.UUID       `json:"affected_references"`
	ClaimsAffected       int64             `json:"claims_affected"`
	SectionsAffected     int               `json:"sections_affected"`
	DeprecationID        uuid.UUID         `json:"deprecation_id"`
	ProcessingTimeMillis int64             `json:"processing_time_ms"`
}

// Deprecate marks a document deprecated (or archived), cascading the
// deprecation to its claims and recording the supersession and provenance
// trail. The document row itself is never deleted: provenance links into
// it must stay resolvable.
func (p *Pipeline) Deprecate(ctx context.Context, in DeprecateInput) (DeprecateResult, error) {
	start := time.Now()

	if in.DocumentID == uuid.Nil {
		return DeprecateResult{}, pipelineerr.InvalidInput("document_id is required", nil)
	}
	if in.Reason == "" {
		return DeprecateResult{}, pipelineerr.InvalidInput("reason is required", nil)
	}

	doc, err := p.db.GetDocument(ctx, in.DocumentID)
	if err != nil {
		return DeprecateResult{}, pipelineerr.Internal("document lookup failed", err)
	}
	if doc == nil {
		return DeprecateResult{}, pipelineerr.NotFound("document not found")
	}

	if in.SupersededBy != nil {
		if already, err := p.db.IsDocumentSuperseded(ctx, *in.SupersededBy); err == nil && already {
			return DeprecateResult{}, pipelineerr.Conflict("superseded_by document is itself already superseded")
		}
	}

	now := time.Now().UTC()
	status := StatusDeprecated
	if in.Archive {
		status = StatusArchived
		if err := p.db.UpdateDocumentType(ctx, doc.ID, model.DocTypeArchive); err != nil {
			return DeprecateResult{}, pipelineerr.Internal("document type update failed", err)
		}
		doc.DocumentType = model.DocTypeArchive
	} else {
		frontmatter := doc.Frontmatter
		if frontmatter == nil {
			frontmatter = make(map[string]any, 3)
		}
		frontmatter["deprecated"] = true
		frontmatter["deprecation_reason"] = in.Reason
		frontmatter["deprecated_at"] = now
		if in.SupersededBy != nil {
			frontmatter["superseded_by"] = in.SupersededBy.String()
		}
		if err := p.db.UpdateDocumentFrontmatter(ctx, doc.ID, frontmatter); err != nil {
			return DeprecateResult{}, pipelineerr.Internal("frontmatter update failed", err)
		}
	}
	p.mirrorOffline(ctx, *doc)
	claimsAffected, err := p.db.DeprecateClaimsForDocument(ctx, doc.ID, now)
	if err != nil {
		return DeprecateResult{}, pipelineerr.Internal("claim deprecation failed", err)
	}
	sections, err := p.db.FindSectionsByDocument(ctx, doc.ID)
	if err != nil {
		p.logger.Warn("deprecate: section lookup failed", "error", err)
	}

	var affectedReferences []uuid.UUID
	if boolOr(in.MigrateReferences, true) && in.SupersededBy != nil {
		affectedReferences = p.migrateEntityReferences(ctx, doc.ID, *in.SupersededBy)
	}

	if in.SupersededBy != nil {
		if err := p.db.InsertSupersession(ctx, model.Supersession{
			ID:            uuid.New(),
			OldDocumentID: doc.ID,
			NewDocumentID: *in.SupersededBy,
			Reason:        in.Reason,
			CreatedAt:     now,
		}); err != nil {
			return DeprecateResult{}, pipelineerr.Internal("supersession persistence failed", err)
		}
	}

	deprecationID := uuid.New()
	if err := p.db.InsertProvenanceEvent(ctx, model.ProvenanceEvent{
		ID:         deprecationID,
		DocumentID: doc.ID,
		EventType:  model.EventDeprecation,
		Details: map[string]any{
			"reason":        in.Reason,
			"superseded_by": in.SupersededBy,
			"archived":      in.Archive,
		},
		OccurredAt: now,
	}); err != nil {
		return DeprecateResult{}, pipelineerr.Internal("provenance event failed", err)
	}

	return DeprecateResult{
		DocumentID:           doc.ID,
		Title:                doc.Title,
		Status:               status,
		SupersededBy:         in.SupersededBy,
		AffectedReferences:   affectedReferences,
		ClaimsAffected:       claimsAffected,
		SectionsAffected:     len(sections),
		DeprecationID:        deprecationID,
		ProcessingTimeMillis: elapsedMillis(start),
	}, nil
}

// migrateEntityReferences re-resolves oldDoc's claim subjects/objects and
// re-links their co-occurrence edges against newDoc, so the entity graph
// doesn't lose edges once oldDoc's claims are deprecated.
func (p *Pipeline) migrateEntityReferences(ctx context.Context, oldDoc, newDoc uuid.UUID) []uuid.UUID {
	claimsOfOld, err := p.db.FindClaimsByDocument(ctx, oldDoc)
	if err != nil {
		p.logger.Warn("deprecate: claim lookup for reference migration failed", "error", err)
		return nil
	}
	var migrated []uuid.UUID
	for _, claim := range claimsOfOld {
		subjectEntity, _, err := p.resolver.Resolve(ctx, claim.Subject)
		if err != nil {
			continue
		}
		objectEntity, _, err := p.resolver.Resolve(ctx, claim.Object)
		if err != nil {
			continue
		}
		if err := p.resolver.LinkClaimToEntity(ctx, claim.ID, subjectEntity.CanonicalID, objectEntity.CanonicalID, newDoc); err != nil {
			p.logger.Warn("deprecate: entity edge migration failed", "error", err)
			continue
		}
		migrated = append(migrated, claim.ID)
	}
	return migrated
}
