// Package claims extracts atomic (subject, predicate, object) claims from
// section text, preferring an LLM-backed extractor and falling back to a
// deterministic heuristic when the LLM is unavailable.
package claims

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas/internal/model"
)

const heuristicConfidence = 0.5

// subjectVerbRest splits a sentence into a short leading noun phrase, a
// verb-like predicate, and the remainder. It is deliberately permissive:
// the heuristic path trades precision for always producing something.
var subjectVerbRest = regexp.MustCompile(`(?i)^([A-Za-z0-9][\w' -]*?)\s+(is|are|was|were|has|have|had|does|do|did|will|must|should|can|may|\w+s|\w+ed)\s+(.+)$`)

// ExtractHeuristic segments a section into one claim per sentence using a
// subject-verb-rest regex, with confidence fixed at 0.5. Used when the LLM
// client is unavailable.
func ExtractHeuristic(section model.Section) []model.AtomicClaim {
	sentences := SplitSentences(section.Content)

	claims := make([]model.AtomicClaim, 0, len(sentences))
	for _, sentence := range sentences {
		m := subjectVerbRest.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		subject := strings.TrimSpace(m[1])
		predicate := strings.ToLower(strings.TrimSpace(m[2]))
		object := strings.TrimRight(strings.TrimSpace(m[3]), ".!?")
		if subject == "" || predicate == "" || object == "" {
			continue
		}
		claims = append(claims, model.AtomicClaim{
			ID:              uuid.New(),
			Subject:         subject,
			Predicate:       predicate,
			Object:          object,
			OriginalText:    sentence,
			Confidence:      heuristicConfidence,
			DocumentID:      section.DocumentID,
			SourceSectionID: section.ID,
		})
	}
	return claims
}

// SplitSentences splits text on sentence-ending punctuation followed by
// whitespace, treating an uppercase or digit character after the boundary
// as confirmation (so "v1.5 release" doesn't split mid-version-number).
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] == ' ' {
			j++
		}
		if j >= len(runes) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = j
			continue
		}
		if j == i+1 {
			continue
		}
		next := runes[j]
		if unicode.IsUpper(next) || unicode.IsDigit(next) || next == '(' || next == '"' || next == '\'' {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = j
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
