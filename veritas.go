// Package veritas is a document consolidation engine: it ingests
// overlapping, possibly-contradictory markdown/JSON/YAML/text documents,
// finds which ones cover the same ground, merges them into a single
// source of truth, and answers questions against the merged corpus with
// cited, confidence-scored responses.
//
// Embed it in a host process:
//
//	app, err := veritas.New(veritas.WithVersion("1.4.0"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// New resolves configuration from the environment (DATABASE_URL,
// VERITAS_EMBEDDING_PROVIDER, VERITAS_LLM_PROVIDER, and friends — see
// internal/config) unless overridden by an Option. Run blocks, serving
// the five MCP tools over stdio, until ctx is canceled or the MCP
// transport fails, then calls Shutdown itself.
//
// internal/* packages never import this package — it is a thin
// composition root, not a shared dependency.
package veritas

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/veritas-labs/veritas/internal/config"
	"github.com/veritas-labs/veritas/internal/llm"
	"github.com/veritas-labs/veritas/internal/mcp"
	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/pipeline"
	"github.com/veritas-labs/veritas/internal/search"
	"github.com/veritas-labs/veritas/internal/service/embedding"
	"github.com/veritas-labs/veritas/internal/storage"
	"github.com/veritas-labs/veritas/internal/telemetry"
	"github.com/veritas-labs/veritas/migrations"
)

// App wires storage, the embedding/LLM providers, the orchestration
// pipeline, and the MCP transport into a single runnable unit.
type App struct {
	cfg          config.Config
	db           *storage.DB
	offlineCache *storage.OfflineCache
	pipe         *pipeline.Pipeline
	mcp          *mcp.Server
	outbox       *search.OutboxWorker
	eventHooks   []EventHook
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New resolves configuration, connects to storage, runs migrations, picks
// an embedding provider and LLM client, and constructs the pipeline and
// MCP server. It does not start serving — call Run for that.
func New(opts ...Option) (*App, error) {
	_ = godotenv.Load()

	o := &resolvedOptions{
		logger:  slog.Default(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("veritas: load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}

	logger := o.logger

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, o.version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("veritas: init telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("veritas: connect storage: %w", err)
	}

	if !cfg.SkipEmbeddedMigrations {
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("veritas: run migrations: %w", err)
		}
	}
	for _, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("veritas: run extra migrations: %w", err)
		}
	}

	embedder := resolveEmbeddingProvider(cfg, o, logger)
	llmClient := resolveLLMClient(cfg, o, logger)

	searcher, outbox, err := resolveSearcher(context.Background(), cfg, o, db, logger)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("veritas: init search index: %w", err)
	}

	var offlineCache *storage.OfflineCache
	if cfg.OfflineCachePath != "" {
		offlineCache, err = storage.OpenOfflineCache(cfg.OfflineCachePath)
		if err != nil {
			logger.Warn("veritas: offline cache unavailable, corpus listing will not have a fallback", "error", err)
			offlineCache = nil
		}
	}

	pipeOpts := []pipeline.Option{pipeline.WithEntityGraph(o.buildEntityGraph)}
	if searcher != nil {
		pipeOpts = append(pipeOpts, pipeline.WithSearcher(searcher))
	}
	if offlineCache != nil {
		pipeOpts = append(pipeOpts, pipeline.WithOfflineCache(offlineCache))
	}
	pipe := pipeline.New(db, embedder, llmClient, o.codebaseRoot, logger, pipeOpts...)

	mcpSrv := mcp.New(pipe, logger, o.version)

	return &App{
		cfg:          cfg,
		db:           db,
		offlineCache: offlineCache,
		pipe:         pipe,
		mcp:          mcpSrv,
		outbox:       outbox,
		eventHooks:   o.eventHooks,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      o.version,
	}, nil
}

// resolveSearcher picks the ANN search backend in priority order: an
// explicit Option override, then an auto-wired Qdrant index when
// QDRANT_URL is configured, then nil (Query falls back to a pgvector
// similarity query in Postgres). When Qdrant is wired, it also returns an
// outbox worker that syncs the index from the search_outbox table; Run
// starts it and Shutdown drains it.
func resolveSearcher(ctx context.Context, cfg config.Config, o *resolvedOptions, db *storage.DB, logger *slog.Logger) (search.Searcher, *search.OutboxWorker, error) {
	if o.searcher != nil {
		return &searcherAdapter{s: o.searcher}, nil, nil
	}
	if cfg.QdrantURL == "" {
		return nil, nil, nil
	}

	idx, err := search.NewQdrantIndex(search.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Dims:       uint64(cfg.EmbeddingDimensions),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("new qdrant index: %w", err)
	}
	if err := idx.EnsureCollection(ctx); err != nil {
		return nil, nil, fmt.Errorf("ensure qdrant collection: %w", err)
	}

	outbox := search.NewOutboxWorker(db.Pool(), idx, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	return idx, outbox, nil
}

// Run serves the MCP tools over stdio until ctx is canceled, a fatal
// transport error occurs, or the process receives a termination signal
// handled by the caller. It always calls Shutdown before returning.
func (a *App) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- mcpserver.ServeStdio(a.mcp.MCPServer())
	}()

	if len(a.eventHooks) > 0 {
		go a.notifyLoop(ctx)
	}
	if a.outbox != nil {
		a.outbox.Start(ctx)
	}
	go a.backfillEmbeddings(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("veritas: context canceled, shutting down")
	case err := <-errc:
		if err != nil {
			a.logger.Error("veritas: mcp transport failed", "error", err)
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("veritas: shutdown error", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// Shutdown releases storage and telemetry resources. Safe to call even if
// Run was never started.
func (a *App) Shutdown(ctx context.Context) error {
	if a.outbox != nil {
		a.outbox.Drain(ctx)
	}
	if a.offlineCache != nil {
		if err := a.offlineCache.Close(); err != nil {
			a.logger.Warn("veritas: offline cache close failed", "error", err)
		}
	}
	a.db.Close(ctx)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			return fmt.Errorf("veritas: shutdown telemetry: %w", err)
		}
	}
	return nil
}

// backfillEmbeddings runs once at startup to embed any document or section
// that was persisted before an embedding provider was configured. It runs
// off the request path so a large backlog never delays serving tool calls.
func (a *App) backfillEmbeddings(ctx context.Context) {
	if _, err := a.pipe.BackfillEmbeddings(ctx); err != nil {
		a.logger.Warn("veritas: embedding backfill failed", "error", err)
	}
}

// notifyLoop polls storage for documents and conflicts touched since the
// last poll and fires registered EventHooks. It runs out of the MCP
// request path so a slow hook never adds latency to a tool call; a failed
// hook is logged and does not affect the next poll.
func (a *App) notifyLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.ConflictRefreshInterval)
	defer ticker.Stop()

	since := time.Now().UTC()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := time.Now().UTC()
			a.fireDocumentHooks(ctx, since)
			a.fireConflictHooks(ctx, since)
			since = next
		}
	}
}

func (a *App) fireDocumentHooks(ctx context.Context, since time.Time) {
	docs, err := a.db.ListDocumentsUpdatedSince(ctx, since)
	if err != nil {
		a.logger.Warn("veritas: list documents for event hooks failed", "error", err)
		return
	}
	for _, d := range docs {
		pub := toPublicDocument(d)
		for _, hook := range a.eventHooks {
			var hookErr error
			if d.DocumentType == model.DocTypeQuarantined || d.DocumentType == model.DocTypeArchive {
				hookErr = hook.OnDocumentDeprecated(ctx, pub)
			} else {
				hookErr = hook.OnDocumentIngested(ctx, pub)
			}
			if hookErr != nil {
				a.logger.Warn("veritas: event hook failed", "error", hookErr, "document_id", d.ID)
			}
		}
	}
}

func (a *App) fireConflictHooks(ctx context.Context, since time.Time) {
	conflicts, err := a.db.ListConflictsSince(ctx, since)
	if err != nil {
		a.logger.Warn("veritas: list conflicts for event hooks failed", "error", err)
		return
	}
	for _, c := range conflicts {
		pub := toPublicConflict(c)
		for _, hook := range a.eventHooks {
			if err := hook.OnConflictDetected(ctx, pub); err != nil {
				a.logger.Warn("veritas: event hook failed", "error", err, "conflict_id", c.ID)
			}
		}
	}
}

func toPublicDocument(d model.Document) Document {
	return Document{
		ID:             d.ID,
		Title:          d.Title,
		DocumentType:   string(d.DocumentType),
		SourcePath:     d.SourcePath,
		ContentHash:    d.ContentHash,
		AuthorityLevel: d.AuthorityLevel,
		Tags:           d.Tags,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func toPublicConflict(c model.Conflict) Conflict {
	return Conflict{
		ID:          c.ID,
		ClaimAID:    c.ClaimAID,
		ClaimBID:    c.ClaimBID,
		Category:    string(c.ConflictType),
		Score:       float32(c.Strength),
		Explanation: "",
	}
}

// resolveEmbeddingProvider picks an embedding provider in priority order:
// an explicit Option override, then config-driven openai/ollama/noop, then
// auto-detection (probe Ollama, fall back to OpenAI if a key is set, else
// noop). The OpenAI and Ollama providers are wrapped in a circuit breaker
// so a struggling embedding runtime degrades to a trigram fallback instead
// of blocking every pipeline call; an Option override and the noop
// provider are used unwrapped.
func resolveEmbeddingProvider(cfg config.Config, o *resolvedOptions, logger *slog.Logger) embedding.Provider {
	if o.embeddingProvider != nil {
		return &externalEmbeddingAdapter{p: o.embeddingProvider}
	}

	dims := cfg.EmbeddingDimensions
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY required when VERITAS_EMBEDDING_PROVIDER=openai")
			return embedding.NewNoopProvider(dims)
		}
		logger.Info("embedding provider: openai", "model", cfg.EmbeddingModel, "dimensions", dims)
		p, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, dims)
		if err != nil {
			logger.Error("openai provider init failed", "error", err)
			return embedding.NewNoopProvider(dims)
		}
		return embedding.NewBreakerProvider(p, logger)
	case "ollama":
		logger.Info("embedding provider: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel, "dimensions", dims)
		return embedding.NewBreakerProvider(embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, dims), logger)
	case "noop":
		logger.Info("embedding provider: noop (semantic search disabled)")
		return embedding.NewNoopProvider(dims)
	case "auto":
		fallthrough
	default:
		if ollamaReachable(cfg.OllamaURL) {
			logger.Info("embedding provider: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaModel, "dimensions", dims)
			return embedding.NewBreakerProvider(embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, dims), logger)
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Info("embedding provider: openai (auto-detected)", "model", cfg.EmbeddingModel, "dimensions", dims)
			p, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, dims)
			if err != nil {
				logger.Error("openai provider init failed", "error", err)
				return embedding.NewNoopProvider(dims)
			}
			return embedding.NewBreakerProvider(p, logger)
		}
		logger.Warn("no embedding provider available, using noop (semantic search disabled)")
		return embedding.NewNoopProvider(dims)
	}
}

// resolveLLMClient picks an LLM client in priority order: an explicit
// Option override, then config-driven anthropic/ollama/noop, then
// auto-detection. Wrapped in a circuit breaker so claim extraction and
// answer synthesis fail fast onto their rule-based fallbacks instead of
// paying a struggling model runtime's full timeout on every call.
func resolveLLMClient(cfg config.Config, o *resolvedOptions, logger *slog.Logger) llm.Client {
	if o.llmClient != nil {
		return &externalLLMAdapter{c: o.llmClient}
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			logger.Error("ANTHROPIC_API_KEY required when VERITAS_LLM_PROVIDER=anthropic")
			return llm.NoopClient{}
		}
		logger.Info("llm client: anthropic", "model", cfg.AnthropicModel)
		return llm.NewBreakerClient(llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTimeout, cfg.LLMMaxTokens), logger)
	case "ollama":
		logger.Info("llm client: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaLLMModel)
		return llm.NewBreakerClient(llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaLLMModel, cfg.LLMTimeout), logger)
	case "noop":
		logger.Info("llm client: noop (claim extraction and synthesis fall back to rule-based paths)")
		return llm.NoopClient{}
	case "auto":
		fallthrough
	default:
		if cfg.AnthropicAPIKey != "" {
			logger.Info("llm client: anthropic (auto-detected)", "model", cfg.AnthropicModel)
			return llm.NewBreakerClient(llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTimeout, cfg.LLMMaxTokens), logger)
		}
		if ollamaReachable(cfg.OllamaURL) {
			logger.Info("llm client: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaLLMModel)
			return llm.NewBreakerClient(llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaLLMModel, cfg.LLMTimeout), logger)
		}
		logger.Warn("no llm client available, using noop (claim extraction and synthesis fall back to rule-based paths)")
		return llm.NoopClient{}
	}
}

func ollamaReachable(baseURL string) bool {
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(c, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
