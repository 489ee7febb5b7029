package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_INT_BAD="abc" is not a valid integer`, err.Error())
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	require.Error(t, err)
	assert.Equal(t, `TEST_BOOL_BAD="maybe" is not a valid boolean`, err.Error())
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.42")
	v, err := envFloat("TEST_FLOAT", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)
}

func TestEnvFloatInvalid(t *testing.T) {
	t.Setenv("TEST_FLOAT_BAD", "not-a-float")
	_, err := envFloat("TEST_FLOAT_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_FLOAT_BAD="not-a-float" is not a valid float`, err.Error())
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, v)
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_DUR_BAD="five-seconds" is not a valid duration`, err.Error())
}

func TestLoadFailsOnInvalidEmbeddingDimensions(t *testing.T) {
	t.Setenv("VERITAS_EMBEDDING_DIMENSIONS", "abc")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VERITAS_EMBEDDING_DIMENSIONS")
	assert.Contains(t, err.Error(), "abc")
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("VERITAS_EMBEDDING_DIMENSIONS", "abc")
	t.Setenv("VERITAS_LLM_MAX_TOKENS", "xyz")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VERITAS_EMBEDDING_DIMENSIONS")
	assert.Contains(t, err.Error(), "VERITAS_LLM_MAX_TOKENS")
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.EmbeddingDimensions)
	assert.Equal(t, "smart", cfg.DefaultMergeStrategy)
	assert.Equal(t, 5, cfg.DefaultAuthorityLevel)
	assert.Equal(t, 0.35, cfg.ValueConflictThreshold)
	assert.Equal(t, 0.88, cfg.EntityMatchThreshold)
	assert.Equal(t, 0.75, cfg.OverlapSimilarityThreshold)
}

func TestLoadRejectsUnrecognizedMergeStrategy(t *testing.T) {
	t.Setenv("VERITAS_DEFAULT_MERGE_STRATEGY", "bogus")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestLoadRejectsOutOfRangeAuthorityLevel(t *testing.T) {
	t.Setenv("VERITAS_DEFAULT_AUTHORITY_LEVEL", "11")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VERITAS_DEFAULT_AUTHORITY_LEVEL")
}

func TestLoad_OTELEndpointParsing(t *testing.T) {
	endpoint := "https://otel.example.com:4317"
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", endpoint)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, endpoint, cfg.OTELEndpoint)
}

func TestLoad_EmbeddingProviderSelection(t *testing.T) {
	t.Setenv("VERITAS_EMBEDDING_PROVIDER", "ollama")
	t.Setenv("OLLAMA_URL", "http://localhost:11434")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.EmbeddingProvider)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaURL)
}

func TestLoad_LLMProviderSelection(t *testing.T) {
	t.Setenv("VERITAS_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, "test-key", cfg.AnthropicAPIKey)
}

func TestLoad_QdrantURLValidation(t *testing.T) {
	t.Run("explicit URL", func(t *testing.T) {
		qdrantURL := "https://qdrant.example.com:6334"
		t.Setenv("QDRANT_URL", qdrantURL)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, qdrantURL, cfg.QdrantURL)
	})

	t.Run("empty default", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Empty(t, cfg.QdrantURL)
	})
}

func TestLoad_AllEnvVarsHonored(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/testdb")
	t.Setenv("NOTIFY_URL", "postgres://test:test@db:5432/testdb_notify")
	t.Setenv("VERITAS_EMBEDDING_DIMENSIONS", "768")
	t.Setenv("OTEL_SERVICE_NAME", "veritas-test")
	t.Setenv("VERITAS_LOG_LEVEL", "debug")
	t.Setenv("VERITAS_SKIP_EMBEDDED_MIGRATIONS", "true")
	t.Setenv("VERITAS_VALUE_CONFLICT_THRESHOLD", "0.4")
	t.Setenv("VERITAS_ENTITY_MATCH_THRESHOLD", "0.9")
	t.Setenv("VERITAS_OVERLAP_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("VERITAS_DEFAULT_MERGE_STRATEGY", "authority_wins")
	t.Setenv("VERITAS_LLM_TIMEOUT", "15s")
	t.Setenv("VERITAS_LLM_MAX_TOKENS", "2048")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://test:test@db:5432/testdb", cfg.DatabaseURL)
	assert.Equal(t, "postgres://test:test@db:5432/testdb_notify", cfg.NotifyURL)
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
	assert.Equal(t, "veritas-test", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.SkipEmbeddedMigrations)
	assert.Equal(t, 0.4, cfg.ValueConflictThreshold)
	assert.Equal(t, 0.9, cfg.EntityMatchThreshold)
	assert.Equal(t, 0.8, cfg.OverlapSimilarityThreshold)
	assert.Equal(t, "authority_wins", cfg.DefaultMergeStrategy)
	assert.Equal(t, 15*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 2048, cfg.LLMMaxTokens)
}
