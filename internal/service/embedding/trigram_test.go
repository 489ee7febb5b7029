package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigramProviderDeterministic(t *testing.T) {
	p := NewTrigramProvider(256)
	v1, err := p.Embed(context.Background(), "retries are capped at three attempts")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "retries are capped at three attempts")
	require.NoError(t, err)
	assert.Equal(t, v1.Slice(), v2.Slice())
}

func TestTrigramProviderDimensions(t *testing.T) {
	p := NewTrigramProvider(384)
	assert.Equal(t, 384, p.Dimensions())
	v, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, v.Slice(), 384)
}

func TestTrigramProviderSimilarTextsScoreCloser(t *testing.T) {
	p := NewTrigramProvider(512)
	a, _ := p.Embed(context.Background(), "the retry limit is three attempts")
	b, _ := p.Embed(context.Background(), "the retry limit is three tries")
	c, _ := p.Embed(context.Background(), "quarterly revenue grew by double digits")

	simAB := cosine(a.Slice(), b.Slice())
	simAC := cosine(a.Slice(), c.Slice())
	assert.Greater(t, simAB, simAC)
}

func TestTrigramProviderEmptyText(t *testing.T) {
	p := NewTrigramProvider(128)
	v, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, v.Slice(), 128)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
