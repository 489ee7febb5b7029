package mcp

import (
	"context"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPrompts(t *testing.T) {
	// testServer is initialized in TestMain (tools_test.go).
	assert.NotNil(t, testServer, "testServer should be initialized by TestMain")
	assert.NotNil(t, testServer.mcpServer, "MCPServer should be initialized")
}

func TestBeforeConsolidatePrompt(t *testing.T) {
	ctx := context.Background()

	result, err := testServer.handleBeforeConsolidatePrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "before-consolidate",
			Arguments: map[string]string{"topic": "deployment"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, result.Description, "deployment",
		"description should reference the topic")
	require.NotEmpty(t, result.Messages, "expected at least one message")

	msg := result.Messages[0]
	assert.Equal(t, mcplib.RoleUser, msg.Role)

	tc, ok := msg.Content.(mcplib.TextContent)
	require.True(t, ok, "message content should be TextContent")
	assert.Contains(t, tc.Text, "find_overlaps",
		"prompt should instruct the agent to call find_overlaps first")
	assert.Contains(t, tc.Text, "consolidate_documents",
		"prompt should instruct the agent to call consolidate_documents after")
	assert.Contains(t, tc.Text, "deployment",
		"prompt should reference the specific topic")
}

func TestBeforeConsolidatePrompt_MissingTopic(t *testing.T) {
	ctx := context.Background()

	_, err := testServer.handleBeforeConsolidatePrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "before-consolidate",
			Arguments: map[string]string{},
		},
	})
	require.Error(t, err, "should error when topic is missing")
	assert.Contains(t, err.Error(), "topic")
}

func TestBeforeConsolidatePrompt_EmptyTopic(t *testing.T) {
	ctx := context.Background()

	_, err := testServer.handleBeforeConsolidatePrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "before-consolidate",
			Arguments: map[string]string{"topic": ""},
		},
	})
	require.Error(t, err, "should error when topic is empty")
	assert.Contains(t, err.Error(), "topic")
}

func TestAfterConsolidatePrompt(t *testing.T) {
	ctx := context.Background()

	result, err := testServer.handleAfterConsolidatePrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name: "after-consolidate",
			Arguments: map[string]string{
				"topic":         "auth",
				"pending_count": "2",
			},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, result.Description, "auth",
		"description should reference the topic")
	require.NotEmpty(t, result.Messages)

	msg := result.Messages[0]
	assert.Equal(t, mcplib.RoleUser, msg.Role)

	tc, ok := msg.Content.(mcplib.TextContent)
	require.True(t, ok, "message content should be TextContent")
	assert.Contains(t, tc.Text, "get_source_of_truth",
		"prompt should instruct the agent to call get_source_of_truth")
	assert.Contains(t, tc.Text, "deprecate_document",
		"prompt should instruct the agent to deprecate superseded sources")
	assert.Contains(t, tc.Text, "auth",
		"prompt should reference the specific topic")
}

func TestAfterConsolidatePrompt_MissingFields(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]string
	}{
		{
			name: "missing both",
			args: map[string]string{},
		},
		{
			name: "missing pending_count",
			args: map[string]string{"topic": "auth"},
		},
		{
			name: "missing topic",
			args: map[string]string{"pending_count": "0"},
		},
		{
			name: "empty topic",
			args: map[string]string{"topic": "", "pending_count": "0"},
		},
		{
			name: "empty pending_count",
			args: map[string]string{"topic": "auth", "pending_count": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testServer.handleAfterConsolidatePrompt(ctx, mcplib.GetPromptRequest{
				Params: mcplib.GetPromptParams{
					Name:      "after-consolidate",
					Arguments: tt.args,
				},
			})
			require.Error(t, err, "should error when required fields are missing")
			assert.Contains(t, err.Error(), "required")
		})
	}
}

func TestAgentSetupPrompt(t *testing.T) {
	ctx := context.Background()

	result, err := testServer.handleAgentSetupPrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name: "agent-setup",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Description)
	require.NotEmpty(t, result.Messages)

	msg := result.Messages[0]
	assert.Equal(t, mcplib.RoleUser, msg.Role)

	tc, ok := msg.Content.(mcplib.TextContent)
	require.True(t, ok, "message content should be TextContent")

	assert.Contains(t, tc.Text, "Ingest, Find, Consolidate, Query, Deprecate",
		"setup prompt should explain the workflow stages")
	assert.Contains(t, tc.Text, "ingest_document",
		"setup prompt should mention ingest_document tool")
	assert.Contains(t, tc.Text, "find_overlaps",
		"setup prompt should mention find_overlaps tool")
	assert.Contains(t, tc.Text, "consolidate_documents",
		"setup prompt should mention consolidate_documents tool")
	assert.Contains(t, tc.Text, "get_source_of_truth",
		"setup prompt should mention get_source_of_truth tool")
	assert.Contains(t, tc.Text, "deprecate_document",
		"setup prompt should mention deprecate_document tool")
	assert.Contains(t, tc.Text, "Merge Strategies",
		"setup prompt should explain merge strategies")
	assert.Contains(t, tc.Text, "Confidence Thresholds",
		"setup prompt should explain confidence thresholds")
}

func TestAgentSetupPrompt_NoArgs(t *testing.T) {
	ctx := context.Background()

	// agent-setup takes no arguments. Calling with empty args should work.
	result, err := testServer.handleAgentSetupPrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "agent-setup",
			Arguments: map[string]string{},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Messages)
}

func TestBeforeConsolidatePrompt_VariousTopics(t *testing.T) {
	ctx := context.Background()

	topics := []string{"deployment", "auth", "onboarding", "incident-response", "data-retention"}
	for _, topic := range topics {
		t.Run(topic, func(t *testing.T) {
			result, err := testServer.handleBeforeConsolidatePrompt(ctx, mcplib.GetPromptRequest{
				Params: mcplib.GetPromptParams{
					Name:      "before-consolidate",
					Arguments: map[string]string{"topic": topic},
				},
			})
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Contains(t, result.Description, topic)

			tc, ok := result.Messages[0].Content.(mcplib.TextContent)
			require.True(t, ok)
			assert.Contains(t, tc.Text, topic)
		})
	}
}
