// Package mcp implements the Model Context Protocol server exposing the
// consolidation engine's five operations as tools: ingest_document,
// find_overlaps, consolidate_documents, get_source_of_truth, and
// deprecate_document.
package mcp

import (
	"encoding/json"
	"log/slog"

	"github.com/go-playground/validator/v10"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/veritas-labs/veritas/internal/pipeline"
)

const serverInstructions = `You have access to veritas, a document consolidation engine.

WORKFLOW:

1. Call ingest_document to add a markdown/JSON/YAML/text document to the
   corpus. It extracts claims, embeds sections, and reports similar
   existing documents and a same-subject conflict count.

2. Call find_overlaps over a scope (document ids, path patterns, or the
   whole corpus) to discover clusters of documents covering the same
   subject, with shared headers and a conflict tally per cluster.

3. Call consolidate_documents on an overlapping cluster (or an explicit
   document set) to merge them into one document, auto-resolving
   conflicts under the chosen strategy and leaving the rest pending.

4. Call get_source_of_truth with a question to get a cited, confidence-
   scored answer synthesized from the corpus, with supporting and
   conflicting claims called out separately.

5. Call deprecate_document to retire a document once it has been
   superseded, cascading the deprecation to its claims.`

// Server wraps the MCP server around the orchestration pipeline.
type Server struct {
	mcpServer *mcpserver.MCPServer
	pipe      *pipeline.Pipeline
	validate  *validator.Validate
	logger    *slog.Logger
}

// New creates and configures an MCP server exposing the five tools.
func New(pipe *pipeline.Pipeline, logger *slog.Logger, version string) *Server {
	s := &Server{
		pipe:     pipe,
		validate: validator.New(),
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"veritas",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: " + err.Error()), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}
