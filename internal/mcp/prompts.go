package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// before-consolidate — guides the agent through checking for overlaps
	// before merging a set of documents.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("before-consolidate",
			mcplib.WithPromptDescription("Guide for checking overlaps before consolidating documents"),
			mcplib.WithArgument("topic",
				mcplib.ArgumentDescription("The subject area you're about to consolidate (e.g., deployment, auth, onboarding)"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleBeforeConsolidatePrompt,
	)

	// after-consolidate — reminds the agent to verify the merged result.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("after-consolidate",
			mcplib.WithPromptDescription("Reminder to verify a consolidation and handle pending conflicts"),
			mcplib.WithArgument("topic",
				mcplib.ArgumentDescription("The subject area that was consolidated"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("pending_count",
				mcplib.ArgumentDescription("How many conflicts were left pending review"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleAfterConsolidatePrompt,
	)

	// agent-setup — full system prompt snippet explaining the workflow.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("agent-setup",
			mcplib.WithPromptDescription("System prompt snippet explaining the ingest/overlap/consolidate/query/deprecate workflow"),
		),
		s.handleAgentSetupPrompt,
	)
}

func (s *Server) handleBeforeConsolidatePrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	topic := request.Params.Arguments["topic"]
	if topic == "" {
		return nil, fmt.Errorf("topic argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Check for overlaps before consolidating %s documents", topic),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Before consolidating %s documents, follow these steps:

1. CALL find_overlaps scoped to %s to discover which documents actually
   cover the same ground and how many conflicting claims separate them.

2. REVIEW the returned clusters:
   - If a cluster has a high conflict count, read the conflicting claims
     before choosing a merge strategy. Don't let "smart" auto-resolve
     paper over a real disagreement.
   - If no cluster is found, there may be nothing to consolidate yet.

3. CALL consolidate_documents on the cluster (or an explicit document
   set) with the strategy that fits: smart for automatic confidence-based
   resolution, authority_wins when one source should always dominate,
   newest_wins for fast-changing procedural content.

4. CHECK the response's pending conflicts. Anything above the
   require-human-review threshold needs a person, not another tool call.`, topic, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleAfterConsolidatePrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	topic := request.Params.Arguments["topic"]
	pendingCount := request.Params.Arguments["pending_count"]
	if topic == "" || pendingCount == "" {
		return nil, fmt.Errorf("topic and pending_count arguments are required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Verify the %s consolidation", topic),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`You just consolidated %s documents, leaving %s conflicts pending review.

CALL get_source_of_truth with a question that exercises the merged
content to confirm the output actually answers it and cites the right
sources.

If %s is nonzero:
- Surface the pending conflicts to a human reviewer rather than
  re-running consolidate_documents with a looser threshold to make
  them disappear.

Once superseded source documents are no longer needed, CALL
deprecate_document on each of them with superseded_by set to the new
consolidated document, so future queries don't cite stale content.`, topic, pendingCount, pendingCount),
				},
			},
		},
	}, nil
}

func (s *Server) handleAgentSetupPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "veritas document consolidation workflow for AI agents",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `You have access to veritas, a document consolidation engine that turns a
pile of overlapping, possibly-contradictory documents into one answerable
source of truth.

## The Pattern: Ingest, Find, Consolidate, Query, Deprecate

### Ingesting:
Call ingest_document for each new markdown/JSON/YAML/text document. It
extracts claims, embeds sections, and reports similar existing documents
plus a same-subject conflict count so you know right away whether this
document needs consolidating with something else.

### Before consolidating:
Call find_overlaps over a scope (document ids, path patterns, or the
whole corpus) to discover clusters of documents covering the same
subject, with shared headers and a conflict tally per cluster.

### Consolidating:
Call consolidate_documents on an overlapping cluster to merge it into one
document, auto-resolving conflicts under the chosen strategy and leaving
the rest pending review.

### Querying:
Call get_source_of_truth with a question to get a cited, confidence-
scored answer synthesized from the corpus, with supporting and
conflicting claims called out separately.

### Retiring:
Call deprecate_document once a document has been superseded by a
consolidation, cascading the deprecation to its claims so queries stop
citing it.

## Available Tools

- ingest_document: Add a document to the corpus (use FIRST for new content)
- find_overlaps: Discover clusters of documents covering the same ground
- consolidate_documents: Merge an overlapping cluster into one document
- get_source_of_truth: Ask a question, get a cited answer
- deprecate_document: Retire a document once it's been superseded

## Merge Strategies

Use the strategy that fits the content:
- smart: the claim with the higher extraction confidence wins a conflict
- authority_wins: the highest-authority source always wins a conflict
- newest_wins: the most recently updated source always wins
- merge_all: keep every conflicting claim, annotated by source

## Confidence Thresholds

Be deliberate about the thresholds you pass:
- auto_resolve_below: conflicts whose strength is below this resolve
  automatically (default 0.3)
- require_human_above: conflicts whose strength is above this never
  auto-resolve, under any strategy (default 0.9)`,
				},
			},
		},
	}, nil
}
