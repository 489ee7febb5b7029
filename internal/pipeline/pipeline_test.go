package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/pipelineerr"
)

func TestResolveSourceRejectsZeroArms(t *testing.T) {
	_, _, err := resolveSource(context.Background(), IngestInput{})
	require.Error(t, err)
	perr, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.CodeInvalidInput, perr.Code)
}

func TestResolveSourceRejectsMultipleArms(t *testing.T) {
	_, _, err := resolveSource(context.Background(), IngestInput{
		FilePath: "/tmp/doc.md",
		Content:  "inline content",
	})
	require.Error(t, err)
	perr, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.CodeInvalidInput, perr.Code)
}

func TestResolveSourceAcceptsInlineContent(t *testing.T) {
	raw, sourcePath, err := resolveSource(context.Background(), IngestInput{Content: "# Title\nbody"})
	require.NoError(t, err)
	assert.Equal(t, "inline", sourcePath)
	assert.Equal(t, "# Title\nbody", string(raw))
}

func TestResolveSourceRejectsUnreadableFile(t *testing.T) {
	_, _, err := resolveSource(context.Background(), IngestInput{FilePath: "/nonexistent/path/does/not/exist.md"})
	require.Error(t, err)
	perr, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.CodeInvalidInput, perr.Code)
}

// resolveScope's discriminator check runs before any storage access, so a
// nil *Pipeline receiver is safe for the rejection paths exercised here.
func TestResolveScopeRejectsZeroArms(t *testing.T) {
	var p *Pipeline
	_, err := p.resolveScope(context.Background(), nil, nil, false)
	require.Error(t, err)
	perr, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.CodeInvalidInput, perr.Code)
}

func TestResolveScopeRejectsMultipleArms(t *testing.T) {
	var p *Pipeline
	_, err := p.resolveScope(context.Background(), []uuid.UUID{uuid.New()}, []string{"docs/*.md"}, false)
	require.Error(t, err)
	perr, ok := pipelineerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pipelineerr.CodeInvalidInput, perr.Code)
}

func TestResolveScopeRejectsAllCombinedWithIDs(t *testing.T) {
	var p *Pipeline
	_, err := p.resolveScope(context.Background(), []uuid.UUID{uuid.New()}, nil, true)
	require.Error(t, err)
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	sim := cosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0})
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	sim := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarityMismatchedLengthsReturnsZero(t *testing.T) {
	sim := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.Equal(t, 0.0, sim)
}

func TestBoolOrUsesDefaultWhenNil(t *testing.T) {
	assert.True(t, boolOr(nil, true))
	assert.False(t, boolOr(nil, false))
}

func TestBoolOrUsesPointerValue(t *testing.T) {
	v := false
	assert.False(t, boolOr(&v, true))
}

func TestHighestAuthorityLevelAndType(t *testing.T) {
	docs := []model.Document{
		{ID: uuid.New(), AuthorityLevel: 5, DocumentType: model.DocTypeGuide},
		{ID: uuid.New(), AuthorityLevel: 8, DocumentType: model.DocTypeSpec},
		{ID: uuid.New(), AuthorityLevel: 3, DocumentType: model.DocTypeReference},
	}
	assert.Equal(t, 8, highestAuthorityLevel(docs))
	assert.Equal(t, model.DocTypeSpec, highestAuthorityType(docs))
}

func TestFilterDeprecatedDropsArchived(t *testing.T) {
	docs := []model.Document{
		{ID: uuid.New(), DocumentType: model.DocTypeGuide},
		{ID: uuid.New(), DocumentType: model.DocTypeArchive},
	}
	out := filterDeprecated(docs)
	require.Len(t, out, 1)
	assert.Equal(t, model.DocTypeGuide, out[0].DocumentType)
}
