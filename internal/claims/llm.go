package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/llm"
	"github.com/veritas-labs/veritas/internal/model"
)

const extractionPrompt = `Extract every atomic factual claim from the section text below as a JSON array. Each element must have exactly these fields:
  "subject": the thing the claim is about
  "predicate": the relationship or property, lower case
  "object": the value or target of the predicate
  "original_text": the verbatim sentence or clause the claim came from
  "confidence": a number between 0 and 1
  "paraphrased": true if original_text is not a verbatim substring of the section

Respond with only the JSON array, no surrounding prose.

Section header: %s
Section text:
%s`

type rawClaim struct {
	Subject      string  `json:"subject"`
	Predicate    string  `json:"predicate"`
	Object       string  `json:"object"`
	OriginalText string  `json:"original_text"`
	Confidence   float64 `json:"confidence"`
	Paraphrased  bool    `json:"paraphrased"`
}

// Extract segments a section into atomic claims, preferring the LLM path
// and falling back to ExtractHeuristic when the client fails. The LLM
// response is validated and repaired per the extractor's contract: claims
// missing any triple field are dropped, confidence is clamped to [0,1],
// and a claim whose original_text is not found verbatim in the section,
// and that the model did not flag as paraphrased, is kept with its
// confidence scaled by 0.8. The returned claims do not record whether
// they were paraphrased.
func Extract(ctx context.Context, client llm.Client, section model.Section) []model.AtomicClaim {
	text, err := client.Generate(ctx, llm.Request{
		Prompt:      fmt.Sprintf(extractionPrompt, section.Header, section.Content),
		Temperature: 0,
	})
	if err != nil {
		return ExtractHeuristic(section)
	}

	raws, err := parseClaimArray(text)
	if err != nil || len(raws) == 0 {
		return ExtractHeuristic(section)
	}

	claims := make([]model.AtomicClaim, 0, len(raws))
	for _, rc := range raws {
		claim, ok := validateAndRepair(rc, section)
		if !ok {
			continue
		}
		claims = append(claims, claim)
	}
	if len(claims) == 0 {
		return ExtractHeuristic(section)
	}
	return claims
}

// parseClaimArray decodes the LLM's JSON array response, tolerating a
// fenced code block around it (models routinely wrap JSON in ```json).
func parseClaimArray(text string) ([]rawClaim, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raws []rawClaim
	if err := json.Unmarshal([]byte(text), &raws); err != nil {
		return nil, fmt.Errorf("claims: decode extraction response: %w", err)
	}
	return raws, nil
}

func validateAndRepair(rc rawClaim, section model.Section) (model.AtomicClaim, bool) {
	subject := strings.TrimSpace(rc.Subject)
	predicate := strings.ToLower(strings.TrimSpace(rc.Predicate))
	object := strings.TrimSpace(rc.Object)
	originalText := strings.TrimSpace(rc.OriginalText)
	if subject == "" || predicate == "" || object == "" || originalText == "" {
		return model.AtomicClaim{}, false
	}

	confidence := rc.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	if !rc.Paraphrased && !strings.Contains(section.Content, originalText) {
		// The model claimed a verbatim span that isn't actually present;
		// keep the claim at a discounted confidence rather than dropping it.
		confidence *= 0.8
	}

	return model.AtomicClaim{
		ID:              uuid.New(),
		Subject:         subject,
		Predicate:       predicate,
		Object:          object,
		OriginalText:    originalText,
		Confidence:      confidence,
		DocumentID:      section.DocumentID,
		SourceSectionID: section.ID,
	}, true
}
