package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas/internal/llm"
	"github.com/veritas-labs/veritas/internal/model"
)

func writeTempFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestVerifyClaimFilenameExists(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "retry.go", "package retry\n")

	p := New(dir, nil)
	claim := model.AtomicClaim{ID: uuid.New(), Subject: "retry logic", Predicate: "lives in", Object: "retry.go"}
	result := p.VerifyClaim(context.Background(), claim)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, SignalFilenameExists, result.Signals[0].Type)
}

func TestVerifyClaimGrepMatch(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "notes.txt", "The retry limit is three attempts.\n")

	p := New(dir, nil)
	claim := model.AtomicClaim{ID: uuid.New(), OriginalText: "The retry limit is three attempts."}
	result := p.VerifyClaim(context.Background(), claim)
	found := false
	for _, s := range result.Signals {
		if s.Type == SignalGrepMatch {
			found = true
		}
	}
	assert.True(t, found)
	assert.True(t, result.Verified)
}

func TestVerifyClaimNoSignalsWhenNothingMatches(t *testing.T) {
	dir := t.TempDir()
	p := New(dir, nil)
	claim := model.AtomicClaim{ID: uuid.New(), OriginalText: "nothing here matches anything"}
	result := p.VerifyClaim(context.Background(), claim)
	assert.Empty(t, result.Signals)
	assert.False(t, result.Verified)
}

type stubLLM struct{ response string }

func (s stubLLM) Generate(_ context.Context, _ llm.Request) (string, error) {
	return s.response, nil
}

func TestVerifyClaimLLMJudgementYes(t *testing.T) {
	p := New("", stubLLM{response: "yes"})
	claim := model.AtomicClaim{ID: uuid.New(), Subject: "x", Predicate: "is", Object: "y"}
	result := p.VerifyClaim(context.Background(), claim)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, SignalLLMJudgement, result.Signals[0].Type)
}

func TestVerifyBatchReturnsOnePerClaim(t *testing.T) {
	p := New("", nil)
	claims := []model.AtomicClaim{{ID: uuid.New()}, {ID: uuid.New()}}
	results := p.VerifyBatch(context.Background(), claims)
	assert.Len(t, results, 2)
}
