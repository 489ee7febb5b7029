package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas/internal/model"
)

// mockRows implements pgx.Rows for unit testing scanOutboxEntries.
type mockRows struct {
	rows    [][]any
	cursor  int
	closed  bool
	scanErr error
}

func (m *mockRows) Close()                                       { m.closed = true }
func (m *mockRows) Err() error                                   { return nil }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }
func (m *mockRows) Values() ([]any, error)                       { return m.rows[m.cursor-1], nil }

func (m *mockRows) Next() bool {
	if m.cursor >= len(m.rows) {
		return false
	}
	m.cursor++
	return true
}

func (m *mockRows) Scan(dest ...any) error {
	if m.scanErr != nil {
		return m.scanErr
	}
	row := m.rows[m.cursor-1]
	if len(dest) != len(row) {
		return fmt.Errorf("mockRows: scan %d dest into %d columns", len(dest), len(row))
	}
	for i, val := range row {
		switch d := dest[i].(type) {
		case *int64:
			*d = val.(int64)
		case *uuid.UUID:
			*d = val.(uuid.UUID)
		case *string:
			*d = val.(string)
		default:
			return fmt.Errorf("mockRows: unsupported dest type %T", d)
		}
	}
	return nil
}

func TestScanOutboxEntries(t *testing.T) {
	id1 := uuid.New()
	id2 := uuid.New()

	rows := &mockRows{
		rows: [][]any{
			{int64(1), "section", id1, "upsert"},
			{int64(2), "document", id2, "delete"},
		},
	}

	entries, err := scanOutboxEntries(rows)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, "section", entries[0].EntityType)
	assert.Equal(t, id1, entries[0].EntityID)
	assert.Equal(t, "upsert", entries[0].Operation)

	assert.Equal(t, int64(2), entries[1].ID)
	assert.Equal(t, "document", entries[1].EntityType)
	assert.Equal(t, id2, entries[1].EntityID)
	assert.Equal(t, "delete", entries[1].Operation)

	assert.True(t, rows.closed, "rows should be closed after scan")
}

func TestScanOutboxEntries_Empty(t *testing.T) {
	rows := &mockRows{rows: nil}

	entries, err := scanOutboxEntries(rows)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.True(t, rows.closed)
}

func TestScanOutboxEntries_ScanError(t *testing.T) {
	rows := &mockRows{
		rows:    [][]any{{int64(1), "section", uuid.New(), "upsert"}},
		scanErr: fmt.Errorf("column decode error"),
	}

	entries, err := scanOutboxEntries(rows)
	assert.Error(t, err)
	assert.Nil(t, entries)
	assert.Contains(t, err.Error(), "scan entry")
	assert.True(t, rows.closed)
}

func TestNewOutboxWorker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewOutboxWorker(nil, nil, logger, 5*time.Second, 50)

	require.NotNil(t, w)
	assert.Nil(t, w.pool, "pool should be nil when passed nil")
	assert.Nil(t, w.index, "index should be nil when passed nil")
	assert.NotNil(t, w.logger)
	assert.Equal(t, 5*time.Second, w.pollInterval)
	assert.Equal(t, 50, w.batchSize)
	assert.NotNil(t, w.done, "done channel should be initialized")
	assert.NotNil(t, w.drainCh, "drainCh channel should be initialized")
	assert.False(t, w.started.Load(), "worker should not be started on creation")
}

func TestNewOutboxWorker_Defaults(t *testing.T) {
	w1 := NewOutboxWorker(nil, nil, slog.Default(), time.Second, 10)
	w2 := NewOutboxWorker(nil, nil, slog.Default(), 30*time.Second, 100)

	assert.Equal(t, time.Second, w1.pollInterval)
	assert.Equal(t, 10, w1.batchSize)
	assert.Equal(t, 30*time.Second, w2.pollInterval)
	assert.Equal(t, 100, w2.batchSize)
}

func TestOutboxWorker_StartStop(t *testing.T) {
	// Create a worker with nil pool/index (cannot process batches).
	// Start it, verify it is running, then drain to stop it cleanly.
	w := NewOutboxWorker(nil, nil, slog.Default(), 100*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	assert.True(t, w.started.Load(), "worker should be marked as started")

	// Calling Start again should be a no-op (idempotent).
	w.Start(ctx)
	assert.True(t, w.started.Load(), "double-start should still be started")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()

	w.Drain(drainCtx)

	select {
	case <-w.done:
	default:
		t.Fatal("done channel should be closed after drain")
	}
}

func TestOutboxWorker_DrainIdempotent(t *testing.T) {
	w := NewOutboxWorker(nil, nil, slog.Default(), 100*time.Millisecond, 10)

	ctx := context.Background()
	w.Start(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.Drain(drainCtx)

	drainCtx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	w.Drain(drainCtx2) // should not panic or hang
}

func TestOutboxWorkerDrain_WithoutStart(t *testing.T) {
	// Drain without Start should return promptly via the ctx.Done() path,
	// since pollLoop was never started and done is never closed.
	w := NewOutboxWorker(nil, nil, slog.Default(), time.Second, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Drain(ctx)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestProcessBatch_NilPoolAndIndex(t *testing.T) {
	w := NewOutboxWorker(nil, nil, slog.Default(), time.Second, 10)
	// Must not panic when pool/index are nil.
	w.processBatch(context.Background())
}

func TestSectionForIndex_Fields(t *testing.T) {
	id := uuid.New()
	docID := uuid.New()
	now := time.Now()

	s := SectionForIndex{
		SectionID:      id,
		DocumentID:     docID,
		DocumentType:   model.DocTypeSpec,
		AuthorityLevel: 3,
		CreatedAt:      now,
		Embedding:      []float32{0.1, 0.2},
	}

	assert.Equal(t, id, s.SectionID)
	assert.Equal(t, docID, s.DocumentID)
	assert.Equal(t, model.DocTypeSpec, s.DocumentType)
	assert.Equal(t, 3, s.AuthorityLevel)
	assert.Equal(t, []float32{0.1, 0.2}, s.Embedding)
}
