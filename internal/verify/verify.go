// Package verify grounds extracted claims against an optional code tree:
// filename existence, grep-level substring matches, and, when neither of
// those fires, an LLM plausibility judgement of the claim's subject,
// predicate and object (no retrieved evidence is sent to the model).
// Verification never gates a response; it only annotates one with a
// confidence-adjacent signal set.
package verify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/veritas-labs/veritas/internal/llm"
	"github.com/veritas-labs/veritas/internal/model"
)

const (
	SignalFilenameExists = "filename_exists"
	SignalGrepMatch      = "grep_match"
	SignalLLMJudgement   = "llm_judgement"

	weightFilenameExists = 0.3
	weightGrepMatch      = 0.5
	weightLLMJudgement   = 0.7

	verifiedThreshold = 0.5
	maxGrepFileBytes  = 2 << 20 // skip files over 2MB, grep-level check isn't meant to index binaries
)

// quotedOrPathLike pulls out tokens from a claim's object/original_text
// that look like filenames or paths, the only strings a filename-existence
// check can usefully test.
var quotedOrPathLike = regexp.MustCompile(`[\w./-]+\.\w{1,10}`)

// Pipeline verifies a batch of claims. codebaseRoot may be empty, in which
// case only the LLM-judgement tier (when a client is configured) runs.
type Pipeline struct {
	codebaseRoot string
	llmClient    llm.Client
}

// New creates a Pipeline. llmClient may be nil to skip the LLM-judgement
// tier entirely.
func New(codebaseRoot string, llmClient llm.Client) *Pipeline {
	return &Pipeline{codebaseRoot: codebaseRoot, llmClient: llmClient}
}

// VerifyClaim attempts to ground a single claim, returning every signal
// that fired and whether their combined weight clears verifiedThreshold.
func (p *Pipeline) VerifyClaim(ctx context.Context, claim model.AtomicClaim) model.VerificationResult {
	var signals []model.VerificationSignal

	if p.codebaseRoot != "" {
		if p.filenameExists(claim) {
			signals = append(signals, model.VerificationSignal{Type: SignalFilenameExists, Weight: weightFilenameExists})
		}
		if p.grepMatch(claim) {
			signals = append(signals, model.VerificationSignal{Type: SignalGrepMatch, Weight: weightGrepMatch})
		}
	}

	if p.llmClient != nil && len(signals) == 0 {
		if p.llmJudgement(ctx, claim) {
			signals = append(signals, model.VerificationSignal{Type: SignalLLMJudgement, Weight: weightLLMJudgement})
		}
	}

	return model.VerificationResult{
		ClaimID:  claim.ID,
		Verified: totalWeight(signals) >= verifiedThreshold,
		Signals:  signals,
	}
}

// VerifyBatch verifies every claim in the slice independently.
func (p *Pipeline) VerifyBatch(ctx context.Context, claims []model.AtomicClaim) []model.VerificationResult {
	results := make([]model.VerificationResult, len(claims))
	for i, c := range claims {
		results[i] = p.VerifyClaim(ctx, c)
	}
	return results
}

func totalWeight(signals []model.VerificationSignal) float64 {
	var total float64
	for _, s := range signals {
		total += s.Weight
	}
	return total
}

// filenameExists checks whether any filename-shaped token referenced by
// the claim exists somewhere under the codebase root.
func (p *Pipeline) filenameExists(claim model.AtomicClaim) bool {
	candidates := quotedOrPathLike.FindAllString(claim.Object+" "+claim.OriginalText, -1)
	if len(candidates) == 0 {
		return false
	}
	found := false
	_ = filepath.Walk(p.codebaseRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || found {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		name := filepath.Base(path)
		for _, c := range candidates {
			if name == filepath.Base(c) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found
}

// grepMatch checks whether the claim's original text appears verbatim as
// a substring anywhere in a text file under the codebase root.
func (p *Pipeline) grepMatch(claim model.AtomicClaim) bool {
	needle := strings.TrimSpace(claim.OriginalText)
	if needle == "" {
		return false
	}
	found := false
	_ = filepath.Walk(p.codebaseRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || found {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Size() > maxGrepFileBytes {
			return nil
		}
		if fileContainsSubstring(path, needle) {
			found = true
		}
		return nil
	})
	return found
}

func fileContainsSubstring(path, needle string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), needle) {
			return true
		}
	}
	return false
}

const judgementPrompt = `Does the following claim accurately describe the codebase, based on your general knowledge of common conventions? Answer with exactly one word, yes or no, with no explanation.

Claim: %s %s %s`

// llmJudgement asks the LLM client to judge claim plausibility when
// neither filesystem tier could confirm it. Any client error degrades to
// "not judged" rather than failing verification outright.
func (p *Pipeline) llmJudgement(ctx context.Context, claim model.AtomicClaim) bool {
	prompt := fmt.Sprintf(judgementPrompt, claim.Subject, claim.Predicate, claim.Object)
	text, err := p.llmClient.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0})
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "yes")
}
