package overlap

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas/internal/model"
)

func vec(values ...float32) *pgvector.Vector {
	v := pgvector.NewVector(values)
	return &v
}

func TestClusterFindsConnectedComponent(t *testing.T) {
	docA := model.Document{ID: uuid.New(), DocumentEmbedding: vec(1, 0, 0)}
	docB := model.Document{ID: uuid.New(), DocumentEmbedding: vec(1, 0, 0)}
	docC := model.Document{ID: uuid.New(), DocumentEmbedding: vec(0, 1, 0)}

	a := New(WithSimilarityThreshold(0.9))
	clusters := a.Cluster([]model.Document{docA, docB, docC})
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].documents, 2)
}

func TestClusterSkipsDocsWithoutEmbeddings(t *testing.T) {
	docA := model.Document{ID: uuid.New()}
	docB := model.Document{ID: uuid.New()}
	a := New()
	clusters := a.Cluster([]model.Document{docA, docB})
	assert.Empty(t, clusters)
}

func TestSummarizeReportsSharedHeaders(t *testing.T) {
	docA := model.Document{ID: uuid.New(), DocumentEmbedding: vec(1, 0)}
	docB := model.Document{ID: uuid.New(), DocumentEmbedding: vec(1, 0)}

	a := New(WithSimilarityThreshold(0.9))
	clusters := a.Cluster([]model.Document{docA, docB})
	require.Len(t, clusters, 1)

	sectionsByDoc := map[uuid.UUID][]model.Section{
		docA.ID: {{Header: "Retry Policy"}},
		docB.ID: {{Header: "retry policy"}},
	}
	summary, err := a.Summarize(context.Background(), clusters[0], sectionsByDoc, nil)
	require.NoError(t, err)
	require.Len(t, summary.SharedHeaders, 1)
	assert.Equal(t, "retry policy", summary.SharedHeaders[0])
	assert.Len(t, summary.DocumentIDs, 2)
	assert.Len(t, summary.PairwiseSimilarities, 1)
}

func TestAnalyzeReturnsNoClustersForDisjointDocs(t *testing.T) {
	docA := model.Document{ID: uuid.New(), DocumentEmbedding: vec(1, 0)}
	docB := model.Document{ID: uuid.New(), DocumentEmbedding: vec(0, 1)}
	a := New()
	clusters, err := a.Analyze(context.Background(), []model.Document{docA, docB}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}
