package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/veritas-labs/veritas/migrations"
)

// testPool is the shared connection pool for all integration tests in this file.
var testPool *pgxpool.Pool

// testLogger is the shared logger for tests.
var testLogger *slog.Logger

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg17",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "veritas",
			"POSTGRES_PASSWORD": "veritas",
			"POSTGRES_DB":       "veritas",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("postgres://veritas:veritas@%s:%s/veritas?sslmode=disable", host, port.Port())

	bootstrapConn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap connection: %v\n", err)
		os.Exit(1)
	}
	if _, err := bootstrapConn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create vector extension: %v\n", err)
		os.Exit(1)
	}
	_ = bootstrapConn.Close(ctx)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse pool config: %v\n", err)
		os.Exit(1)
	}
	poolCfg.AfterConnect = pgxvector.RegisterTypes

	testPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}

	if err := runMigrations(ctx, dsn); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	code := m.Run()

	testPool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// runMigrations applies all SQL migration files from the embedded FS.
func runMigrations(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect for migrations: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read migration dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) < 5 || name[len(name)-4:] != ".sql" {
			continue
		}
		data, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := conn.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// createTestDocument inserts a minimal document and returns its ID.
func createTestDocument(ctx context.Context, t *testing.T, docType string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := testPool.QueryRow(ctx,
		`INSERT INTO documents (source_path, content_hash, format, document_type, title, authority_level, raw_content, frontmatter, tags)
		 VALUES ($1, $2, 'markdown', $3, 'Test Doc', 1, 'body', '{}'::jsonb, '{}')
		 RETURNING id`,
		fmt.Sprintf("/docs/%s.md", uuid.New()), uuid.New().String(), docType,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// createTestSection inserts a section with an embedding and returns its ID.
func createTestSection(ctx context.Context, t *testing.T, documentID uuid.UUID, embedding []float32) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	emb := pgvector.NewVector(embedding)
	err := testPool.QueryRow(ctx,
		`INSERT INTO sections (document_id, header, content, level, section_order, start_line, end_line, section_embedding)
		 VALUES ($1, 'Heading', 'body text', 1, 0, 1, 5, $2)
		 RETURNING id`,
		documentID, emb,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// createTestSectionNoEmbedding inserts a section without an embedding.
func createTestSectionNoEmbedding(ctx context.Context, t *testing.T, documentID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := testPool.QueryRow(ctx,
		`INSERT INTO sections (document_id, header, content, level, section_order, start_line, end_line)
		 VALUES ($1, 'Heading', 'body text', 1, 0, 1, 5)
		 RETURNING id`,
		documentID,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// insertOutboxEntry inserts a search_outbox entry and returns its ID.
func insertOutboxEntry(ctx context.Context, t *testing.T, entityType string, entityID uuid.UUID, operation string) int64 {
	t.Helper()
	var id int64
	err := testPool.QueryRow(ctx,
		`INSERT INTO search_outbox (entity_type, entity_id, operation) VALUES ($1, $2, $3) RETURNING id`,
		entityType, entityID, operation,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// outboxEntryProcessed reports whether an outbox entry has been marked processed.
func outboxEntryProcessed(ctx context.Context, t *testing.T, id int64) bool {
	t.Helper()
	var processedAt *time.Time
	err := testPool.QueryRow(ctx, `SELECT processed_at FROM search_outbox WHERE id = $1`, id).Scan(&processedAt)
	require.NoError(t, err)
	return processedAt != nil
}

// cleanOutboxTables removes all rows from the tables these tests touch, for isolation.
func cleanOutboxTables(ctx context.Context, t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(ctx, `DELETE FROM search_outbox`)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx, `DELETE FROM sections`)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx, `DELETE FROM documents`)
	require.NoError(t, err)
}

// newTestWorker creates an OutboxWorker with the test pool and nil index, so
// DB-only code paths can be exercised without a running Qdrant server.
func newTestWorker() *OutboxWorker {
	return NewOutboxWorker(testPool, nil, testLogger, 100*time.Millisecond, 50)
}

// newTestWorkerWithIndex creates an OutboxWorker with the test pool and a
// QdrantIndex pointing at a non-existent server, exercising the full
// select/upsert/delete pipeline up to (and including) the failing RPC.
func newTestWorkerWithIndex(t *testing.T) *OutboxWorker {
	t.Helper()
	idx, err := NewQdrantIndex(QdrantConfig{
		URL:        "http://localhost:16335",
		Collection: "test_outbox",
		Dims:       3,
	}, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return NewOutboxWorker(testPool, idx, testLogger, 100*time.Millisecond, 50)
}

func TestFetchSectionsForIndex(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	docID := createTestDocument(ctx, t, "guide")
	secID := createTestSection(ctx, t, docID, []float32{0.1, 0.2, 0.3})

	w := newTestWorker()
	results, err := w.fetchSectionsForIndex(ctx, []uuid.UUID{secID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, secID, results[0].SectionID)
	assert.Equal(t, docID, results[0].DocumentID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, results[0].Embedding)
}

func TestFetchSectionsForIndex_SkipsMissingEmbedding(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	docID := createTestDocument(ctx, t, "guide")
	secID := createTestSectionNoEmbedding(ctx, t, docID)

	w := newTestWorker()
	results, err := w.fetchSectionsForIndex(ctx, []uuid.UUID{secID})
	require.NoError(t, err)
	assert.Empty(t, results, "sections with no embedding are not ready for indexing")
}

func TestFetchSectionsForIndex_EmptyInput(t *testing.T) {
	w := newTestWorker()
	results, err := w.fetchSectionsForIndex(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMarkProcessed(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	docID := createTestDocument(ctx, t, "guide")
	secID := createTestSection(ctx, t, docID, []float32{0.1, 0.2, 0.3})
	entryID := insertOutboxEntry(ctx, t, "section", secID, "upsert")

	w := newTestWorker()
	w.markProcessed(ctx, []outboxEntry{{ID: entryID}})

	assert.True(t, outboxEntryProcessed(ctx, t, entryID))
}

func TestMarkProcessed_Empty(t *testing.T) {
	w := newTestWorker()
	w.markProcessed(context.Background(), nil) // must not panic or query
}

func TestProcessBatch_NilPool(t *testing.T) {
	w := &OutboxWorker{pool: nil, index: &QdrantIndex{}, logger: testLogger}
	w.processBatch(context.Background()) // must not panic
}

func TestProcessBatch_NilIndex(t *testing.T) {
	w := &OutboxWorker{pool: testPool, index: nil, logger: testLogger}
	w.processBatch(context.Background()) // must not panic
}

func TestProcessBatch_EmptyOutbox(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	w := newTestWorker()
	w.processBatch(ctx) // no entries, should return cleanly
}

func TestProcessBatch_SectionUpsert_NoIndex(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	docID := createTestDocument(ctx, t, "spec")
	secID := createTestSection(ctx, t, docID, []float32{0.4, 0.5, 0.6})
	entryID := insertOutboxEntry(ctx, t, "section", secID, "upsert")

	w := newTestWorker() // nil index: processBatch should skip entirely
	w.processBatch(ctx)

	assert.False(t, outboxEntryProcessed(ctx, t, entryID), "nil index means the entry is left for a later poll")
}

func TestProcessBatch_SectionUpsert_WithIndex(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	docID := createTestDocument(ctx, t, "spec")
	secID := createTestSection(ctx, t, docID, []float32{0.4, 0.5, 0.6})
	insertOutboxEntry(ctx, t, "section", secID, "upsert")

	w := newTestWorkerWithIndex(t)
	w.processBatch(ctx) // Qdrant upsert fails (no server); entry stays unprocessed

	var processedAt *time.Time
	err := testPool.QueryRow(ctx, `SELECT processed_at FROM search_outbox WHERE entity_id = $1`, secID).Scan(&processedAt)
	require.NoError(t, err)
	assert.Nil(t, processedAt, "a failed qdrant upsert must not mark the entry processed")
}

func TestProcessBatch_SectionUpsert_PendingEmbedding(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	docID := createTestDocument(ctx, t, "spec")
	secID := createTestSectionNoEmbedding(ctx, t, docID)
	entryID := insertOutboxEntry(ctx, t, "section", secID, "upsert")

	w := newTestWorkerWithIndex(t)
	w.processBatch(ctx)

	assert.False(t, outboxEntryProcessed(ctx, t, entryID), "entry with no ready embedding is deferred, not processed")
}

func TestProcessBatch_SectionDelete_WithIndex(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	insertOutboxEntry(ctx, t, "section", uuid.New(), "delete")

	w := newTestWorkerWithIndex(t)
	w.processBatch(ctx) // Qdrant delete fails (no server); entry stays unprocessed

	var count int
	err := testPool.QueryRow(ctx, `SELECT count(*) FROM search_outbox WHERE processed_at IS NULL`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessBatch_DocumentDelete_WithIndex(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	insertOutboxEntry(ctx, t, "document", uuid.New(), "delete")

	w := newTestWorkerWithIndex(t)
	w.processBatch(ctx) // Qdrant delete fails (no server); entry stays unprocessed

	var count int
	err := testPool.QueryRow(ctx, `SELECT count(*) FROM search_outbox WHERE processed_at IS NULL`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessBatch_UnrecognizedEntryIsSkipped(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	id := insertOutboxEntry(ctx, t, "claim", uuid.New(), "upsert")

	w := newTestWorkerWithIndex(t)
	w.processBatch(ctx) // must not panic on an unknown entity_type/operation pair

	assert.False(t, outboxEntryProcessed(ctx, t, id))
}

func TestOutboxWorker_FullCycle(t *testing.T) {
	ctx := context.Background()
	cleanOutboxTables(ctx, t)

	docID := createTestDocument(ctx, t, "guide")
	secID := createTestSection(ctx, t, docID, []float32{0.7, 0.8, 0.9})
	entryID := insertOutboxEntry(ctx, t, "section", secID, "upsert")

	w := newTestWorker() // nil index: the batch is a no-op, but Start/Drain must not hang
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.Start(runCtx)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer drainCancel()
	w.Drain(drainCtx)

	assert.False(t, outboxEntryProcessed(ctx, t, entryID))
}
