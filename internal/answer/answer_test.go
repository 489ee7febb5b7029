package answer

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/veritas-labs/veritas/internal/llm"
)

type stubClient struct {
	text string
	err  error
}

func (s stubClient) Generate(_ context.Context, _ llm.Request) (string, error) {
	return s.text, s.err
}

func TestSynthesizeParsesValidResponse(t *testing.T) {
	req := Request{
		Query: "What is the retry limit?",
		Sources: []Source{
			{DocumentID: uuid.New(), DocumentTitle: "Retry Policy", Excerpt: "The retry limit is three.", RelevanceScore: 0.9},
		},
	}
	resp := `{"answer":"The retry limit is three [1].","confidence":0.85,"knowledge_gaps":[]}`
	result := Synthesize(context.Background(), stubClient{text: resp}, req)
	assert.Equal(t, "The retry limit is three [1].", result.Answer)
	assert.Equal(t, 0.85, result.Confidence)
	assert.Empty(t, result.KnowledgeGaps)
}

func TestSynthesizeFallsBackOnClientError(t *testing.T) {
	req := Request{
		Query: "What is the retry limit?",
		Sources: []Source{
			{Excerpt: "The retry limit is three.", RelevanceScore: 0.8},
		},
	}
	result := Synthesize(context.Background(), stubClient{err: llm.ErrUnavailable}, req)
	assert.Equal(t, "The retry limit is three.", result.Answer)
	assert.InDelta(t, 0.4, result.Confidence, 1e-6)
}

func TestSynthesizeFallsBackPicksHighestRelevance(t *testing.T) {
	req := Request{
		Sources: []Source{
			{Excerpt: "Low relevance excerpt.", RelevanceScore: 0.2},
			{Excerpt: "High relevance excerpt.", RelevanceScore: 0.9},
		},
	}
	result := Synthesize(context.Background(), nil, req)
	assert.Equal(t, "High relevance excerpt.", result.Answer)
	assert.InDelta(t, 0.45, result.Confidence, 1e-6)
}

func TestSynthesizeNoSourcesReturnsKnowledgeGap(t *testing.T) {
	req := Request{Query: "unanswerable question"}
	result := Synthesize(context.Background(), stubClient{text: "irrelevant"}, req)
	assert.Equal(t, []string{"unanswerable question"}, result.KnowledgeGaps)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestTruncateExcerptShortStringUnchanged(t *testing.T) {
	s := "A short excerpt."
	assert.Equal(t, s, TruncateExcerpt(s))
}

func TestTruncateExcerptLongStringEndsWithEllipsis(t *testing.T) {
	long := strings.Repeat("This is a sentence. ", 50)
	out := TruncateExcerpt(long)
	assert.LessOrEqual(t, len(out), maxExcerptLength+3)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestSynthesizeClampsConfidence(t *testing.T) {
	req := Request{Sources: []Source{{Excerpt: "x", RelevanceScore: 0.5}}}
	resp := `{"answer":"ok","confidence":5,"knowledge_gaps":[]}`
	result := Synthesize(context.Background(), stubClient{text: resp}, req)
	assert.Equal(t, 1.0, result.Confidence)
}
