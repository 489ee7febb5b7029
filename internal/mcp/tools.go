package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/answer"
	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/pipeline"
	"github.com/veritas-labs/veritas/internal/pipelineerr"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("ingest_document",
			mcplib.WithDescription("Parse, embed, and extract claims from a document, reporting similar existing documents and a same-subject conflict count"),
			mcplib.WithString("file_path", mcplib.Description("Path to a file on disk. Exactly one of file_path, content, or url is required.")),
			mcplib.WithString("content", mcplib.Description("Inline document content. Exactly one of file_path, content, or url is required.")),
			mcplib.WithString("url", mcplib.Description("URL to fetch the document from. Exactly one of file_path, content, or url is required.")),
			mcplib.WithString("document_type", mcplib.Description("spec, guide, handoff, prompt, report, reference, or decision (default reference)")),
			mcplib.WithArray("tags", mcplib.WithStringItems(), mcplib.Description("Tags to attach to the document")),
			mcplib.WithNumber("authority_level", mcplib.Description("1-10, higher wins merge conflicts (default 5)")),
			mcplib.WithString("supersedes", mcplib.Description("Document id this ingest supersedes, if any")),
			mcplib.WithBoolean("extract_claims", mcplib.Description("Extract atomic claims from sections (default true)")),
			mcplib.WithBoolean("generate_embeddings", mcplib.Description("Generate section and document embeddings (default true)")),
			mcplib.WithBoolean("build_entity_graph", mcplib.Description("Resolve claim subjects/objects to entities (default true)")),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
		),
		s.handleIngest,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("find_overlaps",
			mcplib.WithDescription("Cluster documents by section-embedding similarity and summarize shared headers and claim conflicts per cluster"),
			mcplib.WithArray("document_ids", mcplib.WithStringItems(), mcplib.Description("Document ids to scan. Exactly one of document_ids, path_patterns, or all is required.")),
			mcplib.WithArray("path_patterns", mcplib.WithStringItems(), mcplib.Description("Source path glob patterns to scan. Exactly one of document_ids, path_patterns, or all is required.")),
			mcplib.WithBoolean("all", mcplib.Description("Scan the entire corpus. Exactly one of document_ids, path_patterns, or all is required.")),
			mcplib.WithNumber("min_cluster_size", mcplib.Description("Minimum documents per reported cluster (default 2")),
			mcplib.WithNumber("similarity_threshold", mcplib.Description("Cosine similarity required to join a cluster (default 0.75)")),
			mcplib.WithBoolean("include_claim_conflicts", mcplib.Description("Tally claim conflicts per cluster (default true)")),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
		),
		s.handleFindOverlaps,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("consolidate_documents",
			mcplib.WithDescription("Merge an overlapping set of documents into one, resolving conflicts under the chosen strategy"),
			mcplib.WithArray("document_ids", mcplib.WithStringItems(), mcplib.Description("Document ids to consolidate. Exactly one of document_ids, scope, or cluster_id is required.")),
			mcplib.WithArray("scope", mcplib.WithStringItems(), mcplib.Description("Source path glob patterns selecting documents to consolidate. Exactly one of document_ids, scope, or cluster_id is required.")),
			mcplib.WithString("cluster_id", mcplib.Description("Id of a cluster previously returned by find_overlaps. Exactly one of document_ids, scope, or cluster_id is required.")),
			mcplib.WithString("strategy", mcplib.Description("smart, newest_wins, authority_wins, or merge_all (default smart)")),
			mcplib.WithArray("authority_order", mcplib.WithStringItems(), mcplib.Description("Document ids in descending authority order, for authority_wins")),
			mcplib.WithNumber("conflict_threshold", mcplib.Description("Value-conflict detection threshold (default 0.7)")),
			mcplib.WithNumber("auto_resolve_below", mcplib.Description("Conflicts whose strength is below this auto-resolve (default 0.3)")),
			mcplib.WithNumber("require_human_above", mcplib.Description("Conflicts whose strength is above this never auto-resolve (default 0.9)")),
			mcplib.WithString("output_format", mcplib.Description("markdown, json, or yaml (default markdown)")),
			mcplib.WithBoolean("include_provenance", mcplib.Description("Include a section-header to source-document provenance map (default true)")),
			mcplib.WithBoolean("dry_run", mcplib.Description("Render the output without persisting a new document (default false)")),
			mcplib.WithDestructiveHintAnnotation(true),
		),
		s.handleConsolidate,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("get_source_of_truth",
			mcplib.WithDescription("Answer a question with a cited, confidence-scored synthesis over the corpus"),
			mcplib.WithString("query", mcplib.Required(), mcplib.Description("The question to answer")),
			mcplib.WithString("query_type", mcplib.Description("factual, procedural, conceptual, or comparative (default factual)")),
			mcplib.WithArray("document_ids", mcplib.WithStringItems(), mcplib.Description("Restrict the answer to these document ids")),
			mcplib.WithArray("path_patterns", mcplib.WithStringItems(), mcplib.Description("Restrict the answer to documents matching these source path patterns")),
			mcplib.WithBoolean("include_deprecated", mcplib.Description("Include deprecated documents' sections (default false)")),
			mcplib.WithNumber("confidence_threshold", mcplib.Description("Minimum confidence to report an answer rather than a gap (default 0.7)")),
			mcplib.WithNumber("max_sources", mcplib.Description("1-20, how many sources to cite (default 5)")),
			mcplib.WithBoolean("verify_claims", mcplib.Description("Run filesystem/LLM verification signals over supporting claims (default true)")),
			mcplib.WithString("codebase_path", mcplib.Description("Override the codebase root used for verification signals on this call")),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleQuery,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("deprecate_document",
			mcplib.WithDescription("Retire a document, cascading the deprecation to its claims"),
			mcplib.WithString("document_id", mcplib.Required(), mcplib.Description("Document to deprecate")),
			mcplib.WithString("reason", mcplib.Required(), mcplib.Description("Why this document is being deprecated")),
			mcplib.WithString("superseded_by", mcplib.Description("Document id that replaces this one, if any")),
			mcplib.WithBoolean("migrate_references", mcplib.Description("Re-point entity edges from this document's claims to superseded_by (default true)")),
			mcplib.WithBoolean("archive", mcplib.Description("Set document_type to archive rather than leaving it deprecated in place (default false)")),
			mcplib.WithDestructiveHintAnnotation(true),
		),
		s.handleDeprecate,
	)
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(raw))
	for i, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func asPipelineError(err error) *mcplib.CallToolResult {
	if perr, ok := pipelineerr.As(err); ok {
		return errorResult(perr.Error())
	}
	return errorResult(err.Error())
}

func (s *Server) handleIngest(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	supersedes, err := optionalUUID(request.GetString("supersedes", ""))
	if err != nil {
		return errorResult("supersedes is not a valid document id: " + err.Error()), nil
	}

	extractClaims := request.GetBool("extract_claims", true)
	generateEmbeddings := request.GetBool("generate_embeddings", true)
	buildEntityGraph := request.GetBool("build_entity_graph", true)

	in := pipeline.IngestInput{
		FilePath:           request.GetString("file_path", ""),
		Content:            request.GetString("content", ""),
		URL:                request.GetString("url", ""),
		DocumentType:       model.DocumentType(request.GetString("document_type", "")),
		Tags:               request.GetStringSlice("tags", nil),
		AuthorityLevel:     request.GetInt("authority_level", 0),
		Supersedes:         supersedes,
		ExtractClaims:      &extractClaims,
		GenerateEmbeddings: &generateEmbeddings,
		BuildEntityGraph:   &buildEntityGraph,
	}

	if err := s.validate.Var(in.FilePath, "omitempty,filepath"); err != nil && in.FilePath != "" {
		return errorResult("file_path is malformed: " + err.Error()), nil
	}

	result, err := s.pipe.Ingest(ctx, in)
	if err != nil {
		return asPipelineError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleFindOverlaps(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ids, err := parseUUIDs(request.GetStringSlice("document_ids", nil))
	if err != nil {
		return errorResult("document_ids contains an invalid document id: " + err.Error()), nil
	}

	includeClaimConflicts := request.GetBool("include_claim_conflicts", true)

	in := pipeline.OverlapsInput{
		DocumentIDs:           ids,
		PathPatterns:          request.GetStringSlice("path_patterns", nil),
		All:                   request.GetBool("all", false),
		MinClusterSize:        request.GetInt("min_cluster_size", 0),
		SimilarityThreshold:   request.GetFloat("similarity_threshold", 0),
		IncludeClaimConflicts: &includeClaimConflicts,
	}

	result, err := s.pipe.FindOverlaps(ctx, in)
	if err != nil {
		return asPipelineError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleConsolidate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	docIDs, err := parseUUIDs(request.GetStringSlice("document_ids", nil))
	if err != nil {
		return errorResult("document_ids contains an invalid document id: " + err.Error()), nil
	}
	authorityOrder, err := parseUUIDs(request.GetStringSlice("authority_order", nil))
	if err != nil {
		return errorResult("authority_order contains an invalid document id: " + err.Error()), nil
	}
	clusterID, err := optionalUUID(request.GetString("cluster_id", ""))
	if err != nil {
		return errorResult("cluster_id is not a valid id: " + err.Error()), nil
	}

	includeProvenance := request.GetBool("include_provenance", true)

	in := pipeline.ConsolidateInput{
		DocumentIDs:       docIDs,
		ScopePatterns:     request.GetStringSlice("scope", nil),
		ClusterID:         clusterID,
		Strategy:          model.MergeStrategyType(request.GetString("strategy", "")),
		AuthorityOrder:    authorityOrder,
		ConflictThreshold: request.GetFloat("conflict_threshold", 0),
		AutoResolveBelow:  request.GetFloat("auto_resolve_below", 0),
		RequireHumanAbove: request.GetFloat("require_human_above", 0),
		OutputFormat:      model.Format(request.GetString("output_format", "")),
		IncludeProvenance: &includeProvenance,
		DryRun:            request.GetBool("dry_run", false),
	}

	result, err := s.pipe.Consolidate(ctx, in)
	if err != nil {
		return asPipelineError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleQuery(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if err := s.validate.Var(query, "required"); err != nil {
		return errorResult("query is required"), nil
	}

	docIDs, err := parseUUIDs(request.GetStringSlice("document_ids", nil))
	if err != nil {
		return errorResult("document_ids contains an invalid document id: " + err.Error()), nil
	}

	verifyClaims := request.GetBool("verify_claims", true)

	in := pipeline.QueryInput{
		Query:               query,
		QueryType:           answer.QueryType(request.GetString("query_type", string(answer.QueryFactual))),
		DocumentIDs:         docIDs,
		PathPatterns:        request.GetStringSlice("path_patterns", nil),
		IncludeDeprecated:   request.GetBool("include_deprecated", false),
		ConfidenceThreshold: request.GetFloat("confidence_threshold", 0),
		MaxSources:          request.GetInt("max_sources", 0),
		VerifyClaims:        &verifyClaims,
		CodebasePath:        request.GetString("codebase_path", ""),
	}

	result, err := s.pipe.Query(ctx, in)
	if err != nil {
		return asPipelineError(err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleDeprecate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	documentID := request.GetString("document_id", "")
	reason := request.GetString("reason", "")
	if err := s.validate.Var(documentID, "required,uuid"); err != nil {
		return errorResult("document_id is required and must be a valid id"), nil
	}
	if err := s.validate.Var(reason, "required"); err != nil {
		return errorResult("reason is required"), nil
	}

	docID, err := uuid.Parse(documentID)
	if err != nil {
		return errorResult("document_id is not a valid id: " + err.Error()), nil
	}
	supersededBy, err := optionalUUID(request.GetString("superseded_by", ""))
	if err != nil {
		return errorResult("superseded_by is not a valid id: " + err.Error()), nil
	}

	migrateReferences := request.GetBool("migrate_references", true)

	in := pipeline.DeprecateInput{
		DocumentID:        docID,
		Reason:            reason,
		SupersededBy:      supersededBy,
		MigrateReferences: &migrateReferences,
		Archive:           request.GetBool("archive", false),
	}

	result, err := s.pipe.Deprecate(ctx, in)
	if err != nil {
		return asPipelineError(err), nil
	}
	return jsonResult(result)
}
