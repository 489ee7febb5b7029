// Package answer synthesizes a cited, confidence-scored answer to a
// source-of-truth query from a scoped set of sources and verified claims.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/claims"
	"github.com/veritas-labs/veritas/internal/llm"
)

// QueryType classifies the shape of question being asked, informing the
// synthesis prompt's register (a procedural question expects steps, a
// comparative one expects a side-by-side).
type QueryType string

const (
	QueryFactual     QueryType = "factual"
	QueryProcedural  QueryType = "procedural"
	QueryConceptual  QueryType = "conceptual"
	QueryComparative QueryType = "comparative"
)

const maxExcerptLength = 500

// Source is one piece of retrieved evidence the synthesizer may cite.
// Citation numbering matches the source's position in this slice.
type Source struct {
	DocumentID     uuid.UUID  `json:"document_id"`
	DocumentTitle  string     `json:"document_title"`
	SectionID      *uuid.UUID `json:"section_id,omitempty"`
	SectionHeader  string     `json:"section_header,omitempty"`
	RelevanceScore float32    `json:"relevance_score"`
	Excerpt        string     `json:"excerpt"`
	AuthorityLevel int        `json:"authority_level"`
}

// Request bundles everything the synthesis prompt needs.
type Request struct {
	Query               string
	QueryType           QueryType
	Sources             []Source
	ConfidenceThreshold float64
}

// Result is the synthesizer's output: a cited answer, a confidence score,
// and anything the model says it could not find among the given sources.
type Result struct {
	Answer        string
	Confidence    float64
	KnowledgeGaps []string
}

type rawResult struct {
	Answer        string   `json:"answer"`
	Confidence    float64  `json:"confidence"`
	KnowledgeGaps []string `json:"knowledge_gaps"`
}

// Synthesize prompts the LLM under a fixed JSON schema and falls back to
// the single most-relevant source excerpt (confidence = relevance * 0.5)
// when the client errors or returns something unparseable. Synthesize
// itself never errors: a degraded answer is still an answer.
func Synthesize(ctx context.Context, client llm.Client, req Request) Result {
	if len(req.Sources) == 0 {
		return Result{Answer: "", Confidence: 0, KnowledgeGaps: []string{req.Query}}
	}
	if client == nil {
		return fallback(req)
	}

	text, err := client.Generate(ctx, llm.Request{Prompt: buildPrompt(req), Temperature: 0.2})
	if err != nil {
		return fallback(req)
	}

	raw, err := parseResult(text)
	if err != nil {
		return fallback(req)
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Result{Answer: raw.Answer, Confidence: confidence, KnowledgeGaps: raw.KnowledgeGaps}
}

// fallback answers with the most-relevant source's excerpt when the LLM
// path is unavailable or fails.
func fallback(req Request) Result {
	best := req.Sources[0]
	for _, s := range req.Sources[1:] {
		if s.RelevanceScore > best.RelevanceScore {
			best = s
		}
	}
	return Result{
		Answer:        TruncateExcerpt(best.Excerpt),
		Confidence:    float64(best.RelevanceScore) * 0.5,
		KnowledgeGaps: nil,
	}
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the numbered sources below. ")
	b.WriteString("Cite sources by their number in brackets, e.g. [2]. ")
	b.WriteString("List in knowledge_gaps anything the question asks about that the sources do not cover. ")
	b.WriteString("Respond with only a JSON object of the form ")
	b.WriteString(`{"answer": string, "confidence": number between 0 and 1, "knowledge_gaps": [string]}, no surrounding prose.`)
	b.WriteString("\n\nQuery type: " + string(req.QueryType))
	b.WriteString("\nQuestion: " + req.Query + "\n\nSources:\n")
	for i, s := range req.Sources {
		fmt.Fprintf(&b, "[%d] %s", i+1, s.DocumentTitle)
		if s.SectionHeader != "" {
			fmt.Fprintf(&b, " / %s", s.SectionHeader)
		}
		b.WriteString("\n")
		b.WriteString(s.Excerpt)
		b.WriteString("\n\n")
	}
	return b.String()
}

func parseResult(text string) (rawResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return rawResult{}, fmt.Errorf("answer: decode synthesis response: %w", err)
	}
	if raw.Answer == "" {
		return rawResult{}, fmt.Errorf("answer: empty answer field")
	}
	return raw, nil
}

// TruncateExcerpt trims s to the last complete sentence that fits within
// maxExcerptLength characters, suffixing "..." when trimmed. Excerpts
// already within the limit are returned unchanged.
func TruncateExcerpt(s string) string {
	if len(s) <= maxExcerptLength {
		return s
	}
	sentences := claims.SplitSentences(s)
	var b strings.Builder
	for _, sentence := range sentences {
		if b.Len()+len(sentence)+1 > maxExcerptLength {
			break
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
	}
	if b.Len() == 0 {
		return s[:maxExcerptLength-3] + "..."
	}
	return b.String() + "..."
}
