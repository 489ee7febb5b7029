package veritas

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/veritas-labs/veritas/internal/llm"
	"github.com/veritas-labs/veritas/internal/search"
)

// externalEmbeddingAdapter wraps a veritas.EmbeddingProvider to satisfy
// embedding.Provider, converting between the public []float32 shape and
// the pgvector.Vector the pipeline's storage layer persists.
type externalEmbeddingAdapter struct {
	p EmbeddingProvider
}

func (a *externalEmbeddingAdapter) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	v, err := a.p.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, err
	}
	return pgvector.NewVector(v), nil
}

func (a *externalEmbeddingAdapter) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vs, err := a.p.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]pgvector.Vector, len(vs))
	for i, v := range vs {
		out[i] = pgvector.NewVector(v)
	}
	return out, nil
}

func (a *externalEmbeddingAdapter) Dimensions() int {
	return a.p.Dimensions()
}

// externalLLMAdapter wraps a veritas.LLMClient to satisfy llm.Client.
type externalLLMAdapter struct {
	c LLMClient
}

func (a *externalLLMAdapter) Generate(ctx context.Context, req llm.Request) (string, error) {
	return a.c.Generate(ctx, req.Prompt, req.Temperature, req.MaxTokens)
}

// searcherAdapter wraps a veritas.Searcher to satisfy internal/search.Searcher,
// converting between the public string-typed SearchFilters and the internal
// model.DocumentType-typed Filters.
type searcherAdapter struct {
	s Searcher
}

func (a *searcherAdapter) Search(ctx context.Context, embedding []float32, filters search.Filters, limit int) ([]search.Result, error) {
	pub := SearchFilters{AuthorityMin: filters.AuthorityMin}
	for _, dt := range filters.DocumentTypes {
		pub.DocumentTypes = append(pub.DocumentTypes, string(dt))
	}
	results, err := a.s.Search(ctx, embedding, pub, limit)
	if err != nil {
		return nil, err
	}
	out := make([]search.Result, len(results))
	for i, r := range results {
		out[i] = search.Result{SectionID: r.SectionID, DocumentID: r.DocumentID, Score: r.Score}
	}
	return out, nil
}

func (a *searcherAdapter) Healthy(ctx context.Context) error {
	return a.s.Healthy(ctx)
}
