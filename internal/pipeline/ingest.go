package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/claims"
	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/parse"
	"github.com/veritas-labs/veritas/internal/pipelineerr"
)

const (
	defaultAuthorityLevel  = 5
	similarDocumentsReturn = 5
)

// IngestInput is the ingest_document request. Exactly one of FilePath,
// Content, or URL must be set.
type IngestInput struct {
	FilePath           string
	Content            string
	URL                string
	DocumentType       model.DocumentType
	Tags               []string
	AuthorityLevel     int
	Supersedes         *uuid.UUID
	ExtractClaims      *bool
	GenerateEmbeddings *bool
	BuildEntityGraph   *bool
}

// IngestResult is the ingest_document response.
type IngestResult struct {
	DocumentID           uuid.UUID         `json:"document_id"`
	Title                string            `json:"title"`
	SectionsExtracted    int               `json:"sections_extracted"`
	ClaimsExtracted      int               `json:"claims_extracted"`
	EntitiesIdentified   int               `json:"entities_identified"`
	EmbeddingsGenerated  int               `json:"embeddings_generated"`
	SimilarDocuments     []SimilarDocument `json:"similar_documents"`
	PotentialConflicts   int               `json:"potential_conflicts"`
	ProcessingTimeMillis int64             `json:"processing_time_ms"`
}

// SimilarDocument is one entry of IngestResult.SimilarDocuments.
type SimilarDocument struct {
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Similarity float32   `json:"similarity"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Ingest parses, embeds, extracts claims from, and persists a document,
// then reports similar existing documents and a same-subject conflict
// count. Embedding, claim-extraction, and entity-resolution failures
// degrade silently: Ingest still returns a complete result with reduced
// counts rather than an error, since those subsystems are optional per
// their own capability contracts.
func (p *Pipeline) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	start := time.Now()

	raw, sourcePath, err := resolveSource(ctx, in)
	if err != nil {
		return IngestResult{}, err
	}

	format := parse.DetectFormat(sourcePath)
	parsed, err := parse.Document(sourcePath, raw, format)
	if err != nil {
		return IngestResult{}, pipelineerr.InvalidInput("document could not be parsed", err.Error())
	}

	docType := in.DocumentType
	if docType == "" {
		docType = model.DocTypeReference
	}
	authority := in.AuthorityLevel
	if authority == 0 {
		authority = defaultAuthorityLevel
	}
	if authority < 1 || authority > 10 {
		return IngestResult{}, pipelineerr.InvalidInput("authority_level must be between 1 and 10", authority)
	}

	now := time.Now().UTC()
	doc := model.Document{
		ID:             uuid.New(),
		SourcePath:     sourcePath,
		ContentHash:    parsed.ContentHash,
		Format:         format,
		DocumentType:   docType,
		Title:          parsed.Title,
		AuthorityLevel: authority,
		RawContent:     string(raw),
		Frontmatter:    parsed.Frontmatter,
		Tags:           in.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if existing, err := p.db.FindDocumentByContentHash(ctx, doc.ContentHash); err != nil {
		return IngestResult{}, pipelineerr.Internal("content hash lookup failed", err)
	} else if existing != nil {
		return p.reIngestExisting(ctx, *existing, start)
	}

	var embeddingsGenerated int
	if boolOr(in.GenerateEmbeddings, true) && p.embedder != nil {
		if vec, err := p.embedder.Embed(ctx, doc.Title+"\n"+doc.RawContent); err == nil {
			doc.DocumentEmbedding = &vec
			embeddingsGenerated++
		} else {
			p.logger.Warn("ingest: document embedding failed, continuing without it", "error", err)
		}
	}

	for i := range parsed.Sections {
		parsed.Sections[i].ID = uuid.New()
		parsed.Sections[i].DocumentID = doc.ID
		parsed.Sections[i].SectionOrder = i
		if boolOr(in.GenerateEmbeddings, true) && p.embedder != nil {
			if vec, err := p.embedder.Embed(ctx, parsed.Sections[i].Header+"\n"+parsed.Sections[i].Content); err == nil {
				parsed.Sections[i].SectionEmbedding = &vec
				embeddingsGenerated++
			} else {
				p.logger.Warn("ingest: section embedding failed, continuing without it", "section", parsed.Sections[i].Header, "error", err)
			}
		}
	}

	created, err := p.db.InsertDocument(ctx, doc)
	if err != nil {
		return IngestResult{}, pipelineerr.Internal("document persistence failed", err)
	}
	p.mirrorOffline(ctx, created)
	if len(parsed.Sections) > 0 {
		if err := p.db.InsertSections(ctx, parsed.Sections); err != nil {
			if qerr := p.db.UpdateDocumentType(ctx, created.ID, model.DocTypeQuarantined); qerr != nil {
				p.logger.Warn("ingest: quarantining partially ingested document failed", "document_id", created.ID, "error", qerr)
			}
			return IngestResult{}, pipelineerr.Internal("section persistence failed", err)
		}
	}

	var extractedClaims []model.AtomicClaim
	if boolOr(in.ExtractClaims, true) {
		for _, section := range parsed.Sections {
			var sectionClaims []model.AtomicClaim
			if p.llmClient != nil {
				sectionClaims = claims.Extract(ctx, p.llmClient, section)
			} else {
				sectionClaims = claims.ExtractHeuristic(section)
			}
			extractedClaims = append(extractedClaims, sectionClaims...)
		}
		if len(extractedClaims) > 0 {
			if err := p.db.InsertClaims(ctx, extractedClaims); err != nil {
				p.logger.Warn("ingest: claim persistence failed, continuing with zero claims recorded", "error", err)
				extractedClaims = nil
			}
		}
	}

	var entitiesIdentified int
	if boolOr(in.BuildEntityGraph, true) && p.resolver != nil {
		entitiesIdentified = p.linkEntities(ctx, created.ID, extractedClaims)
	}

	similar, err := p.findSimilarDocuments(ctx, created)
	if err != nil {
		p.logger.Warn("ingest: similarity lookup failed", "error", err)
	}

	potentialConflicts := p.countPotentialConflicts(ctx, extractedClaims, created.ID)

	if in.Supersedes != nil {
		if err := p.db.InsertSupersession(ctx, model.Supersession{
			ID:            uuid.New(),
			OldDocumentID: *in.Supersedes,
			NewDocumentID: created.ID,
			Reason:        "superseded at ingest",
			CreatedAt:     now,
		}); err != nil {
			p.logger.Warn("ingest: supersession link failed", "error", err)
		}
	}

	if err := p.db.InsertProvenanceEvent(ctx, model.ProvenanceEvent{
		ID:         uuid.New(),
		DocumentID: created.ID,
		EventType:  model.EventIngestion,
		Details:    map[string]any{"sections": len(parsed.Sections), "claims": len(extractedClaims)},
		OccurredAt: now,
	}); err != nil {
		p.logger.Warn("ingest: provenance event failed", "error", err)
	}

	return IngestResult{
		DocumentID:           created.ID,
		Title:                created.Title,
		SectionsExtracted:    len(parsed.Sections),
		ClaimsExtracted:      len(extractedClaims),
		EntitiesIdentified:   entitiesIdentified,
		EmbeddingsGenerated:  embeddingsGenerated,
		SimilarDocuments:     similar,
		PotentialConflicts:   potentialConflicts,
		ProcessingTimeMillis: elapsedMillis(start),
	}, nil
}

// reIngestExisting handles a re-ingest of content already on file: it
// touches the document's updated_at and returns the existing result
// without reprocessing, satisfying idempotent re-ingest.
func (p *Pipeline) reIngestExisting(ctx context.Context, existing model.Document, start time.Time) (IngestResult, error) {
	if err := p.db.TouchDocument(ctx, existing.ID, time.Now().UTC()); err != nil {
		p.logger.Warn("ingest: touch on re-ingest failed", "error", err)
	}
	sections, err := p.db.FindSectionsByDocument(ctx, existing.ID)
	if err != nil {
		return IngestResult{}, pipelineerr.Internal("section lookup on re-ingest failed", err)
	}
	existingClaims, err := p.db.FindClaimsByDocument(ctx, existing.ID)
	if err != nil {
		return IngestResult{}, pipelineerr.Internal("claim lookup on re-ingest failed", err)
	}
	return IngestResult{
		DocumentID:           existing.ID,
		Title:                existing.Title,
		SectionsExtracted:    len(sections),
		ClaimsExtracted:      len(existingClaims),
		ProcessingTimeMillis: elapsedMillis(start),
	}, nil
}

func (p *Pipeline) linkEntities(ctx context.Context, documentID uuid.UUID, extracted []model.AtomicClaim) int {
	seen := make(map[uuid.UUID]bool)
	for _, claim := range extracted {
		subjectEntity, _, err := p.resolver.Resolve(ctx, claim.Subject)
		if err != nil {
			p.logger.Warn("ingest: entity resolution failed for subject", "subject", claim.Subject, "error", err)
			continue
		}
		objectEntity, _, err := p.resolver.Resolve(ctx, claim.Object)
		if err != nil {
			p.logger.Warn("ingest: entity resolution failed for object", "object", claim.Object, "error", err)
			continue
		}
		seen[subjectEntity.CanonicalID] = true
		seen[objectEntity.CanonicalID] = true
		if err := p.resolver.LinkClaimToEntity(ctx, claim.ID, subjectEntity.CanonicalID, objectEntity.CanonicalID, documentID); err != nil {
			p.logger.Warn("ingest: entity edge insert failed", "error", err)
		}
	}
	return len(seen)
}

// findSimilarDocuments delegates ranking to the repository's cosine-distance
// query, which clamps similarity to non-negative and tie-breaks on higher
// authority_level then newer created_at so results are stable regardless of
// how many documents tie on similarity.
func (p *Pipeline) findSimilarDocuments(ctx context.Context, doc model.Document) ([]SimilarDocument, error) {
	if doc.DocumentEmbedding == nil {
		return nil, nil
	}
	sims, err := p.db.FindSimilarDocuments(ctx, *doc.DocumentEmbedding, similarDocumentsReturn, doc.ID)
	if err != nil {
		return nil, err
	}
	out := make([]SimilarDocument, len(sims))
	for i, s := range sims {
		out[i] = SimilarDocument{DocumentID: s.Document.ID, Title: s.Document.Title, Similarity: s.Similarity}
	}
	return out, nil
}

// countPotentialConflicts counts how many of the document's newly
// extracted claims share a normalized subject with a claim from a
// different document, without running the full classifier (a cheap
// same-subject signal, not a conflict count).
func (p *Pipeline) countPotentialConflicts(ctx context.Context, extracted []model.AtomicClaim, documentID uuid.UUID) int {
	count := 0
	for _, claim := range extracted {
		others, err := p.db.FindClaimsByNormalizedSubject(ctx, claim.NormalizedSubject())
		if err != nil {
			continue
		}
		for _, other := range others {
			if other.DocumentID != documentID {
				count++
				break
			}
		}
	}
	return count
}

func resolveSource(ctx context.Context, in IngestInput) ([]byte, string, error) {
	set := 0
	if in.FilePath != "" {
		set++
	}
	if in.Content != "" {
		set++
	}
	if in.URL != "" {
		set++
	}
	if set != 1 {
		return nil, "", pipelineerr.InvalidInput("exactly one of file_path, content, or url must be set", nil)
	}

	switch {
	case in.FilePath != "":
		raw, err := os.ReadFile(in.FilePath)
		if err != nil {
			return nil, "", pipelineerr.InvalidInput("file_path could not be read", err.Error())
		}
		return raw, in.FilePath, nil
	case in.Content != "":
		return []byte(in.Content), "inline", nil
	default:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
		if err != nil {
			return nil, "", pipelineerr.InvalidInput("url is malformed", err.Error())
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, "", pipelineerr.DependencyUnavailable("fetching url failed", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", pipelineerr.DependencyUnavailable(fmt.Sprintf("url returned status %d", resp.StatusCode), nil)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", pipelineerr.DependencyUnavailable("reading url body failed", err)
		}
		return raw, in.URL, nil
	}
}
