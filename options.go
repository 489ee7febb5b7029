package veritas

import (
	"io/fs"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	databaseURL       string
	notifyURL         string
	codebaseRoot      string
	logger            *slog.Logger
	version           string
	embeddingProvider EmbeddingProvider
	llmClient         LLMClient
	searcher          Searcher
	conflictScorer    ConflictScorer
	policyEvaluator   PolicyEvaluator
	eventHooks        []EventHook
	buildEntityGraph  bool
	extraMigrations   []fs.FS
}

// WithDatabaseURL overrides the database connection string from config
// (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY
// (NOTIFY_URL env var). Set this when using a connection pooler (e.g.
// PgBouncer) for queries — LISTEN/NOTIFY requires a direct connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithCodebasePath sets the repository root the verification subsystem
// checks claims against (e.g. "this env var exists" resolved against
// actual config files). Pass "" (the default) to disable filesystem
// verification signals — claim verification is additive, never a gate.
func WithCodebasePath(path string) Option {
	return func(o *resolvedOptions) { o.codebaseRoot = path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported to MCP clients and in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEmbeddingProvider replaces the auto-detected embedding provider
// (Ollama/OpenAI/noop).
func WithEmbeddingProvider(p EmbeddingProvider) Option {
	return func(o *resolvedOptions) { o.embeddingProvider = p }
}

// WithLLMClient replaces the auto-detected LLM client (Anthropic/Ollama/noop)
// used for claim extraction, negation labeling, and answer synthesis.
func WithLLMClient(c LLMClient) Option {
	return func(o *resolvedOptions) { o.llmClient = c }
}

// WithSearcher replaces the pipeline's built-in section-embedding search.
func WithSearcher(s Searcher) Option {
	return func(o *resolvedOptions) { o.searcher = s }
}

// WithConflictScorer records a pairwise conflict scorer. Only the last call
// wins. New does not pass it to the pipeline, so conflict detection always
// uses the built-in scorer.
func WithConflictScorer(cs ConflictScorer) Option {
	return func(o *resolvedOptions) { o.conflictScorer = cs }
}

// WithPolicyEvaluator sets the policy engine for consolidation review.
// Only the last call wins. Not wired to any call sites yet — this option
// reserves the extension point for a future release.
func WithPolicyEvaluator(pe PolicyEvaluator) Option {
	return func(o *resolvedOptions) { o.policyEvaluator = pe }
}

// WithEventHook registers an event hook to receive corpus lifecycle
// notifications. Multiple hooks may be registered; all registered hooks
// receive every event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithEntityGraph sets the pipeline's entity-graph option. Ingest does not
// consult it: entity resolution and co-occurrence edge linking run whenever
// an ingest request leaves build_entity_graph unset or true.
func WithEntityGraph(enabled bool) Option {
	return func(o *resolvedOptions) { o.buildEntityGraph = enabled }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the built-in migrations. Multiple filesystems may be registered;
// they are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
