package entities

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas/internal/service/embedding"
	"github.com/veritas-labs/veritas/internal/storage"
	"github.com/veritas-labs/veritas/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()
	tc := testutil.MustStartTimescaleDB()
	defer tc.Terminate()

	db, err := tc.NewTestDB(ctx, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		panic(err)
	}
	testDB = db

	os.Exit(m.Run())
}

func TestResolveNewMentionMintsCanonicalEntity(t *testing.T) {
	ctx := context.Background()
	r := New(testDB, embedding.NewTrigramProvider(32))

	entity, isNew, err := r.Resolve(ctx, "Acme Corp.")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "acme corp", entity.CanonicalForm)
}

func TestResolveRepeatedExactMentionReusesEntity(t *testing.T) {
	ctx := context.Background()
	r := New(testDB, embedding.NewTrigramProvider(32))

	first, _, err := r.Resolve(ctx, "Northwind Traders")
	require.NoError(t, err)

	second, isNew, err := r.Resolve(ctx, "Northwind Traders")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.CanonicalID, second.CanonicalID)
}

func TestResolveWithoutProviderStillServesExactLookups(t *testing.T) {
	ctx := context.Background()
	r := New(testDB, nil)

	first, isNew, err := r.Resolve(ctx, "Standalone Inc")
	require.NoError(t, err)
	assert.True(t, isNew)

	second, isNew2, err := r.Resolve(ctx, "standalone inc")
	require.NoError(t, err)
	assert.False(t, isNew2)
	assert.Equal(t, first.CanonicalID, second.CanonicalID)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(nil, []float32{1}))
}
