package conflicts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/service/embedding"
)

func claim(subject, predicate, object string) model.AtomicClaim {
	return model.AtomicClaim{
		ID:         uuid.New(),
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Confidence: 0.8,
	}
}

func TestDetectAgreementWhenPredicateAndObjectMatch(t *testing.T) {
	d := New(embedding.NewTrigramProvider(32), nil)
	a := claim("retry limit", "is", "three")
	b := claim("retry limit", "is", "three")

	conflicts, err := d.Detect(context.Background(), []model.AtomicClaim{a, b})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictAgreement, conflicts[0].ConflictType)
	assert.Equal(t, 0.0, conflicts[0].Strength)
}

func TestDetectDirectNegationFromClosedTable(t *testing.T) {
	d := New(embedding.NewTrigramProvider(32), nil)
	a := claim("feature flag", "enables", "dark mode")
	b := claim("feature flag", "disables", "dark mode")

	conflicts, err := d.Detect(context.Background(), []model.AtomicClaim{a, b})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictDirectNegation, conflicts[0].ConflictType)
	assert.Equal(t, 1.0, conflicts[0].Strength)
}

func TestDetectOnlyPairsSharedNormalizedSubjects(t *testing.T) {
	d := New(embedding.NewTrigramProvider(32), nil)
	a := claim("retry limit", "is", "three")
	b := claim("timeout", "is", "thirty seconds")

	conflicts, err := d.Detect(context.Background(), []model.AtomicClaim{a, b})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectValueConflictAboveThreshold(t *testing.T) {
	d := New(embedding.NewTrigramProvider(32), nil, WithValueConflictThreshold(0.01))
	a := claim("retry limit", "is", "three attempts")
	b := claim("retry limit", "is", "ten thousand attempts")

	conflicts, err := d.Detect(context.Background(), []model.AtomicClaim{a, b})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictValueConflict, conflicts[0].ConflictType)
}

func TestIsNegationPairSymmetric(t *testing.T) {
	assert.True(t, isNegationPair("enables", "disables"))
	assert.True(t, isNegationPair("disables", "enables"))
	assert.False(t, isNegationPair("enables", "supports"))
}

func TestOrderClaimsIsCanonical(t *testing.T) {
	a := claim("x", "is", "y")
	b := claim("x", "is", "z")
	a1, b1 := orderClaims(a, b)
	a2, b2 := orderClaims(b, a)
	assert.Equal(t, a1.ID, a2.ID)
	assert.Equal(t, b1.ID, b2.ID)
}
