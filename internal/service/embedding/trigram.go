package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// TrigramProvider is the declared fallback embedder: a deterministic
// bag-of-character-trigrams hashed into a fixed-width vector. It never
// fails and never calls out, so downstream similarity comparisons stay
// total when the real embedding runtime is unavailable, at documented
// quality loss relative to a learned embedding.
type TrigramProvider struct {
	dims int
}

// NewTrigramProvider creates a fallback embedder producing vectors of the
// given width.
func NewTrigramProvider(dims int) *TrigramProvider {
	if dims <= 0 {
		dims = 1024
	}
	return &TrigramProvider{dims: dims}
}

func (p *TrigramProvider) Dimensions() int { return p.dims }

// Embed hashes every character trigram of the normalized text into a bucket
// of the output vector and L2-normalizes the result, so cosine similarity
// between two trigram vectors approximates lexical overlap.
func (p *TrigramProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	return pgvector.NewVector(hashTrigrams(text, p.dims)), nil
}

func (p *TrigramProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vecs := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func hashTrigrams(text string, dims int) []float32 {
	out := make([]float32, dims)
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	runes := []rune(normalized)
	if len(runes) < 3 {
		if len(runes) > 0 {
			bucketInto(out, string(runes))
		}
		return l2Normalize(out)
	}
	for i := 0; i+3 <= len(runes); i++ {
		bucketInto(out, string(runes[i:i+3]))
	}
	return l2Normalize(out)
}

func bucketInto(out []float32, trigram string) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trigram))
	idx := int(h.Sum32()) % len(out)
	if idx < 0 {
		idx += len(out)
	}
	out[idx]++
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
	return v
}
