package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testServer *Server

func TestMain(m *testing.M) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// testServer is wired with a nil pipeline: these tests only exercise
	// request parsing and validation, paths that return before the
	// pipeline is ever touched. Pipeline-level behavior is covered by
	// internal/pipeline's own tests.
	testServer = New(nil, logger, "test")
	os.Exit(m.Run())
}

func callToolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestHandleIngest_RejectsMalformedSupersedes(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleIngest(ctx, callToolRequest("ingest_document", map[string]any{
		"content":    "# Title\nbody",
		"supersedes": "not-a-uuid",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleFindOverlaps_RejectsMalformedDocumentID(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleFindOverlaps(ctx, callToolRequest("find_overlaps", map[string]any{
		"document_ids": []any{"not-a-uuid"},
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleConsolidate_RejectsMalformedClusterID(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleConsolidate(ctx, callToolRequest("consolidate_documents", map[string]any{
		"cluster_id": "not-a-uuid",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleConsolidate_RejectsMalformedAuthorityOrder(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleConsolidate(ctx, callToolRequest("consolidate_documents", map[string]any{
		"dry_run":         true,
		"authority_order": []any{"not-a-uuid"},
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleQuery_RejectsEmptyQuery(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleQuery(ctx, callToolRequest("get_source_of_truth", map[string]any{
		"query": "",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleQuery_RejectsMalformedDocumentIDs(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleQuery(ctx, callToolRequest("get_source_of_truth", map[string]any{
		"query":        "how many retries?",
		"document_ids": []any{"not-a-uuid"},
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleDeprecate_RequiresDocumentID(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleDeprecate(ctx, callToolRequest("deprecate_document", map[string]any{
		"reason": "superseded",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleDeprecate_RequiresReason(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleDeprecate(ctx, callToolRequest("deprecate_document", map[string]any{
		"document_id": "b6f1e6c2-6f0a-4b8e-9b7a-8f6b2f3e9a11",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleDeprecate_RejectsMalformedSupersededBy(t *testing.T) {
	ctx := context.Background()
	result, err := testServer.handleDeprecate(ctx, callToolRequest("deprecate_document", map[string]any{
		"document_id":   "b6f1e6c2-6f0a-4b8e-9b7a-8f6b2f3e9a11",
		"reason":        "superseded",
		"superseded_by": "not-a-uuid",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestErrorResult(t *testing.T) {
	result := errorResult("boom")
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	assert.Equal(t, "boom", tc.Text)
}

func TestJSONResult(t *testing.T) {
	result, err := jsonResult(map[string]string{"hello": "world"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "hello")
	assert.Contains(t, tc.Text, "world")
}
