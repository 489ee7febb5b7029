package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/veritas-labs/veritas/internal/answer"
	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/pipelineerr"
	"github.com/veritas-labs/veritas/internal/search"
	"github.com/veritas-labs/veritas/internal/verify"
)

const (
	defaultMaxSources          = 5
	defaultConfidenceThreshold = 0.7
)

// QueryInput is the get_source_of_truth request.
type QueryInput struct {
	Query               string
	QueryType           answer.QueryType
	DocumentIDs         []uuid.UUID
	PathPatterns        []string
	IncludeDeprecated   bool
	ConfidenceThreshold float64
	MaxSources          int
	VerifyClaims        *bool
	CodebasePath        string
}

// QueryResult is the get_source_of_truth response.
type QueryResult struct {
	QueryID              uuid.UUID           `json:"query_id"`
	Answer               string              `json:"answer"`
	Confidence           float64             `json:"confidence"`
	Sources              []answer.Source     `json:"sources"`
	SupportingClaims     []model.AtomicClaim `json:"supporting_claims"`
	ConflictingClaims    []model.AtomicClaim `json:"conflicting_claims"`
	KnowledgeGaps        []string            `json:"knowledge_gaps"`
	ProcessingTimeMillis int64               `json:"processing_time_ms"`
}

// Query answers a source-of-truth question by scoring sections across the
// requested scope against the question's embedding, verifying the claims
// those sections ground, and synthesizing a cited answer.
func (p *Pipeline) Query(ctx context.Context, in QueryInput) (QueryResult, error) {
	start := time.Now()

	if in.Query == "" {
		return QueryResult{}, pipelineerr.InvalidInput("query is required", nil)
	}

	all := len(in.DocumentIDs) == 0 && len(in.PathPatterns) == 0
	docs, err := p.resolveScope(ctx, in.DocumentIDs, in.PathPatterns, all)
	if err != nil {
		return QueryResult{}, err
	}
	if !in.IncludeDeprecated {
		docs = filterDeprecated(docs)
	}

	maxSources := in.MaxSources
	if maxSources == 0 {
		maxSources = defaultMaxSources
	}
	if maxSources < 1 || maxSources > 20 {
		return QueryResult{}, pipelineerr.InvalidInput("max_sources must be between 1 and 20", maxSources)
	}
	confidenceThreshold := in.ConfidenceThreshold
	if confidenceThreshold == 0 {
		confidenceThreshold = defaultConfidenceThreshold
	}

	var queryEmbedding []float32
	if p.embedder != nil {
		if vec, err := p.embedder.Embed(ctx, in.Query); err == nil {
			queryEmbedding = vec.Slice()
		} else {
			p.logger.Warn("query: query embedding failed, ranking sources by authority only", "error", err)
		}
	}

	var candidates []scoredSection
	if all && p.searcher != nil && queryEmbedding != nil {
		candidates, err = p.searchCandidates(ctx, queryEmbedding, docs, maxSources)
		if err != nil {
			p.logger.Warn("query: searcher lookup failed, falling back to in-process scan", "error", err)
			candidates = nil
		}
	}
	if candidates == nil && queryEmbedding != nil {
		candidates, err = p.semanticScan(ctx, queryEmbedding, docs, all, maxSources)
		if err != nil {
			p.logger.Warn("query: semantic search failed, falling back to unranked scan", "error", err)
			candidates = nil
		}
	}
	if candidates == nil {
		for _, d := range docs {
			sections, err := p.db.FindSectionsByDocument(ctx, d.ID)
			if err != nil {
				return QueryResult{}, pipelineerr.Internal("section lookup failed", err)
			}
			for _, s := range sections {
				candidates = append(candidates, scoredSection{doc: d, section: s, score: 0})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.doc.AuthorityLevel != b.doc.AuthorityLevel {
			return a.doc.AuthorityLevel > b.doc.AuthorityLevel
		}
		return a.doc.CreatedAt.After(b.doc.CreatedAt)
	})
	if len(candidates) > maxSources {
		candidates = candidates[:maxSources]
	}

	sources := make([]answer.Source, len(candidates))
	var sourceClaims []model.AtomicClaim
	for i, c := range candidates {
		sectionID := c.section.ID
		sources[i] = answer.Source{
			DocumentID:     c.doc.ID,
			DocumentTitle:  c.doc.Title,
			SectionID:      &sectionID,
			SectionHeader:  c.section.Header,
			RelevanceScore: c.score,
			Excerpt:        answer.TruncateExcerpt(c.section.Content),
			AuthorityLevel: c.doc.AuthorityLevel,
		}
		claimsForSection, err := p.db.FindClaimsBySection(ctx, c.section.ID)
		if err != nil {
			p.logger.Warn("query: claim lookup by section failed", "error", err)
			continue
		}
		sourceClaims = append(sourceClaims, claimsForSection...)
	}

	verifier := p.verifier
	if in.CodebasePath != "" {
		verifier = verify.New(in.CodebasePath, p.llmClient)
	}

	var supporting, conflicting []model.AtomicClaim
	if boolOr(in.VerifyClaims, true) && len(sourceClaims) > 0 {
		results := verifier.VerifyBatch(ctx, sourceClaims)
		verifiedByClaim := make(map[uuid.UUID]bool, len(results))
		for _, r := range results {
			verifiedByClaim[r.ClaimID] = r.Verified
			if err := p.db.InsertVerificationResult(ctx, r); err != nil {
				p.logger.Warn("query: verification result persistence failed", "error", err)
			}
		}
		for _, c := range sourceClaims {
			if verifiedByClaim[c.ID] {
				supporting = append(supporting, c)
			}
		}
	} else {
		supporting = sourceClaims
	}

	conflicts, err := p.detector.Detect(ctx, sourceClaims)
	if err == nil {
		conflictedIDs := make(map[uuid.UUID]bool)
		for _, c := range conflicts {
			if c.ConflictType == model.ConflictAgreement {
				continue
			}
			conflictedIDs[c.ClaimAID] = true
			conflictedIDs[c.ClaimBID] = true
		}
		for _, c := range sourceClaims {
			if conflictedIDs[c.ID] {
				conflicting = append(conflicting, c)
			}
		}
	} else {
		p.logger.Warn("query: conflict detection over sources failed", "error", err)
	}

	result := answer.Synthesize(ctx, p.llmClient, answer.Request{
		Query:               in.Query,
		QueryType:           in.QueryType,
		Sources:             sources,
		ConfidenceThreshold: confidenceThreshold,
	})

	return QueryResult{
		QueryID:              uuid.New(),
		Answer:               result.Answer,
		Confidence:           result.Confidence,
		Sources:              sources,
		SupportingClaims:     supporting,
		ConflictingClaims:    conflicting,
		KnowledgeGaps:        result.KnowledgeGaps,
		ProcessingTimeMillis: elapsedMillis(start),
	}, nil
}

// scoredSection pairs a section and its owning document with a relevance
// score, shared between Query's in-process scan and searchCandidates so
// both paths produce an identical ranking type.
type scoredSection struct {
	doc     model.Document
	section model.Section
	score   float32
}

// searchCandidates ranks sections via the external searcher instead of
// scoring every section in scope in-process. Results are hydrated against
// docs (the already-resolved, already-filtered scope) and Postgres, so a
// stale or missing searcher entry is silently dropped rather than surfaced
// as an error.
func (p *Pipeline) searchCandidates(ctx context.Context, queryEmbedding []float32, docs []model.Document, maxSources int) ([]scoredSection, error) {
	byID := make(map[uuid.UUID]model.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results, err := p.searcher.Search(ctx, queryEmbedding, search.Filters{}, maxSources*3)
	if err != nil {
		return nil, err
	}

	candidates := make([]scoredSection, 0, len(results))
	for _, r := range results {
		d, ok := byID[r.DocumentID]
		if !ok {
			continue
		}
		sec, err := p.db.GetSection(ctx, r.SectionID)
		if err != nil || sec == nil {
			continue
		}
		candidates = append(candidates, scoredSection{doc: d, section: *sec, score: r.Score})
	}
	return candidates, nil
}

// semanticScan ranks sections in scope by pgvector cosine similarity to
// queryEmbedding via SemanticSearch, the in-process fallback path used
// whenever no external searcher is configured (or a scope narrows the
// search below the whole corpus). docs is the already-resolved,
// already-filtered scope; unscoped is passed when all is true so the
// repository searches the full sections table in one query instead of
// building an ANY($n) list of every document ID in the corpus.
func (p *Pipeline) semanticScan(ctx context.Context, queryEmbedding []float32, docs []model.Document, all bool, maxSources int) ([]scoredSection, error) {
	byID := make(map[uuid.UUID]model.Document, len(docs))
	var scopeDocIDs []uuid.UUID
	if !all {
		scopeDocIDs = make([]uuid.UUID, 0, len(docs))
	}
	for _, d := range docs {
		byID[d.ID] = d
		if !all {
			scopeDocIDs = append(scopeDocIDs, d.ID)
		}
	}

	results, err := p.db.SemanticSearch(ctx, pgvector.NewVector(queryEmbedding), maxSources*3, scopeDocIDs)
	if err != nil {
		return nil, err
	}

	candidates := make([]scoredSection, 0, len(results))
	for _, r := range results {
		d, ok := byID[r.DocumentID]
		if !ok {
			continue
		}
		candidates = append(candidates, scoredSection{
			doc: d,
			section: model.Section{
				ID:         r.SectionID,
				DocumentID: r.DocumentID,
				Header:     r.Header,
				Content:    r.Content,
			},
			score: r.Similarity,
		})
	}
	return candidates, nil
}

func filterDeprecated(docs []model.Document) []model.Document {
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if d.DocumentType == model.DocTypeArchive {
			continue
		}
		if deprecated, _ := d.Frontmatter["deprecated"].(bool); deprecated {
			continue
		}
		out = append(out, d)
	}
	return out
}
