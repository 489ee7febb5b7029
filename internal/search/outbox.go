package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/metric"

	"github.com/veritas-labs/veritas/internal/model"
	"github.com/veritas-labs/veritas/internal/telemetry"
)

// outboxEntry represents a single row from the search_outbox table.
type outboxEntry struct {
	ID         int64
	EntityType string // "section" | "document"
	EntityID   uuid.UUID
	Operation  string // "upsert" | "delete"
}

// SectionForIndex holds the fields needed to build a Qdrant point.
// Populated by the outbox worker from Postgres.
type SectionForIndex struct {
	SectionID      uuid.UUID
	DocumentID     uuid.UUID
	DocumentType   model.DocumentType
	AuthorityLevel int
	CreatedAt      time.Time
	Embedding      []float32
}

// OutboxWorker polls the search_outbox table and syncs changes to Qdrant;
// it is the only thing that talks to Qdrant on the write path. No code in
// this module inserts search_outbox rows (the ingest and deprecate pipeline
// steps do not), so the worker only processes rows written by other means.
type OutboxWorker struct {
	pool         *pgxpool.Pool
	index        *QdrantIndex
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int

	started    atomic.Bool
	cancelLoop context.CancelFunc
	done       chan struct{}
	once       sync.Once // guards close(done)
	drainOnce  sync.Once // guards Drain to prevent double-drain panics
	drainCh    chan context.Context
}

// NewOutboxWorker creates a new outbox worker.
func NewOutboxWorker(pool *pgxpool.Pool, index *QdrantIndex, logger *slog.Logger, pollInterval time.Duration, batchSize int) *OutboxWorker {
	return &OutboxWorker{
		pool:         pool,
		index:        index,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		done:         make(chan struct{}),
		drainCh:      make(chan context.Context, 1),
	}
}

// Start begins the background poll loop. It is safe to call only once;
// subsequent calls are no-ops and log a warning.
func (w *OutboxWorker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("search outbox: Start called more than once, ignoring")
		return
	}
	w.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancelLoop = cancel
	go w.pollLoop(loopCtx)
}

// Drain signals the poll loop to stop, processes remaining entries, and blocks
// until done or the context expires. The ctx parameter is passed to the final
// poll so it respects the caller's deadline. Safe to call multiple times;
// only the first call triggers the drain.
func (w *OutboxWorker) Drain(ctx context.Context) {
	w.drainOnce.Do(func() {
		sendCtx, sendCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		select {
		case w.drainCh <- ctx:
		case <-sendCtx.Done():
			w.logger.Warn("search outbox: drain context channel busy, final poll will use fallback timeout")
		}
		sendCancel()
		if w.cancelLoop != nil {
			w.cancelLoop()
		}
	})
	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn("search outbox: drain timed out")
	}
}

func (w *OutboxWorker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			var drainCtx context.Context
			select {
			case drainCtx = <-w.drainCh:
			default:
			}
			if drainCtx != nil {
				w.processBatch(drainCtx)
			} else {
				fallbackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				w.processBatch(fallbackCtx)
				cancel()
			}
			w.once.Do(func() { close(w.done) })
			return
		case <-ticker.C:
			batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			w.processBatch(batchCtx)
			cancel()
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) {
	if w.pool == nil {
		w.logger.Warn("search outbox: skipping batch, pool is nil")
		return
	}
	if w.index == nil {
		w.logger.Warn("search outbox: skipping batch, index is nil")
		return
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		w.logger.Error("search outbox: begin tx", "error", err)
		return
	}

	rows, err := tx.Query(ctx,
		`SELECT id, entity_type, entity_id, operation
		 FROM search_outbox
		 WHERE processed_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		w.batchSize,
	)
	if err != nil {
		w.logger.Error("search outbox: select pending", "error", err)
		_ = tx.Rollback(ctx)
		return
	}

	entries, err := scanOutboxEntries(rows)
	if err != nil {
		w.logger.Error("search outbox: scan entries", "error", err)
		_ = tx.Rollback(ctx)
		return
	}
	if len(entries) == 0 {
		_ = tx.Rollback(ctx)
		return
	}

	// Commit immediately to release the row locks; the Qdrant round-trip
	// below can take longer than we want to hold a transaction open.
	if err := tx.Commit(ctx); err != nil {
		w.logger.Error("search outbox: commit select", "error", err)
		return
	}

	var sectionUpserts, sectionDeletes, documentDeletes []outboxEntry
	for _, e := range entries {
		switch {
		case e.EntityType == "section" && e.Operation == "upsert":
			sectionUpserts = append(sectionUpserts, e)
		case e.EntityType == "section" && e.Operation == "delete":
			sectionDeletes = append(sectionDeletes, e)
		case e.EntityType == "document" && e.Operation == "delete":
			documentDeletes = append(documentDeletes, e)
		default:
			w.logger.Warn("search outbox: unrecognized entry", "entity_type", e.EntityType, "operation", e.Operation)
		}
	}

	if len(sectionUpserts) > 0 {
		w.processSectionUpserts(ctx, sectionUpserts)
	}
	if len(sectionDeletes) > 0 {
		w.processSectionDeletes(ctx, sectionDeletes)
	}
	if len(documentDeletes) > 0 {
		w.processDocumentDeletes(ctx, documentDeletes)
	}
}

func (w *OutboxWorker) processSectionUpserts(ctx context.Context, entries []outboxEntry) {
	sectionIDs := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		sectionIDs[i] = e.EntityID
	}

	sections, err := w.fetchSectionsForIndex(ctx, sectionIDs)
	if err != nil {
		w.logger.Error("search outbox: fetch sections", "error", err, "count", len(sectionIDs))
		return
	}

	byID := make(map[uuid.UUID]SectionForIndex, len(sections))
	for _, s := range sections {
		byID[s.SectionID] = s
	}

	points := make([]Point, 0, len(sections))
	ready := make([]outboxEntry, 0, len(sections))
	var pending []outboxEntry
	for _, e := range entries {
		s, ok := byID[e.EntityID]
		if !ok {
			// Section has no embedding yet or no longer exists (e.g. re-ingest
			// replaced it before the outbox worker got to it). Leave
			// unprocessed; the next poll picks it up again.
			pending = append(pending, e)
			continue
		}
		points = append(points, Point{
			SectionID:      s.SectionID,
			DocumentID:     s.DocumentID,
			DocumentType:   s.DocumentType,
			AuthorityLevel: s.AuthorityLevel,
			CreatedAt:      s.CreatedAt,
			Embedding:      s.Embedding,
		})
		ready = append(ready, e)
	}

	if len(pending) > 0 {
		w.logger.Info("search outbox: deferring entries with no ready embedding", "count", len(pending))
	}

	if len(points) == 0 {
		return
	}

	if err := w.index.Upsert(ctx, points); err != nil {
		w.logger.Error("search outbox: qdrant upsert", "error", err, "count", len(points))
		return
	}

	w.markProcessed(ctx, ready)
	w.logger.Info("search outbox: upserted", "count", len(points))
}

func (w *OutboxWorker) processSectionDeletes(ctx context.Context, entries []outboxEntry) {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.EntityID
	}

	if err := w.index.DeleteByIDs(ctx, ids); err != nil {
		w.logger.Error("search outbox: qdrant delete", "error", err, "count", len(ids))
		return
	}

	w.markProcessed(ctx, entries)
	w.logger.Info("search outbox: deleted sections", "count", len(ids))
}

func (w *OutboxWorker) processDocumentDeletes(ctx context.Context, entries []outboxEntry) {
	for _, e := range entries {
		if err := w.index.DeleteByDocument(ctx, e.EntityID); err != nil {
			w.logger.Error("search outbox: qdrant delete by document", "error", err, "document_id", e.EntityID)
			continue
		}
		w.markProcessed(ctx, []outboxEntry{e})
	}
	w.logger.Info("search outbox: deleted documents", "count", len(entries))
}

func (w *OutboxWorker) markProcessed(ctx context.Context, entries []outboxEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if _, err := w.pool.Exec(ctx,
		`UPDATE search_outbox SET processed_at = now() WHERE id = ANY($1)`, ids,
	); err != nil {
		w.logger.Error("search outbox: mark processed", "error", err)
	}
}

func (w *OutboxWorker) fetchSectionsForIndex(ctx context.Context, ids []uuid.UUID) ([]SectionForIndex, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := w.pool.Query(ctx,
		`SELECT s.id, s.document_id, d.document_type, d.authority_level, d.created_at, s.section_embedding
		 FROM sections s
		 JOIN documents d ON d.id = s.document_id
		 WHERE s.id = ANY($1) AND s.section_embedding IS NOT NULL`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("search outbox: query sections: %w", err)
	}
	defer rows.Close()

	var results []SectionForIndex
	for rows.Next() {
		var s SectionForIndex
		var emb pgvector.Vector
		if err := rows.Scan(&s.SectionID, &s.DocumentID, &s.DocumentType, &s.AuthorityLevel, &s.CreatedAt, &emb); err != nil {
			return nil, fmt.Errorf("search outbox: scan section: %w", err)
		}
		s.Embedding = emb.Slice()
		results = append(results, s)
	}
	return results, rows.Err()
}

// registerMetrics registers an observable OTEL gauge for outbox health monitoring.
func (w *OutboxWorker) registerMetrics() {
	meter := telemetry.Meter("veritas/outbox")

	_, _ = meter.Int64ObservableGauge("veritas.outbox.depth",
		metric.WithDescription("Unprocessed entries in the search outbox"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			var count int64
			err := w.pool.QueryRow(ctx,
				`SELECT count(*) FROM search_outbox WHERE processed_at IS NULL`,
			).Scan(&count)
			if err != nil {
				return nil // Non-fatal: just skip this observation.
			}
			o.Observe(count)
			return nil
		}),
	)
}

func scanOutboxEntries(rows pgx.Rows) ([]outboxEntry, error) {
	defer rows.Close()
	var entries []outboxEntry
	for rows.Next() {
		var e outboxEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Operation); err != nil {
			return nil, fmt.Errorf("search outbox: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
