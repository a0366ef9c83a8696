package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/audit"
	"github.com/mcdev12/draftroom/go/internal/draft/memstore"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(action string) models.AuditLog {
	return models.NewAuditLog(action, uuid.New(), models.Actor{Type: models.ActorCaptain, IP: "203.0.113.7"}, map[string]any{"pick_number": 0})
}

// blockingRepo holds every write until release is closed.
type blockingRepo struct {
	release chan struct{}
}

func (b *blockingRepo) InsertAuditLog(ctx context.Context, _ models.AuditLog) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRecorder_WritesQueuedEntries(t *testing.T) {
	store := memstore.New()
	clock := clockwork.NewFakeClock()
	rec := audit.NewRecorder(store, clock, audit.Config{QueueSize: 8, Workers: 2})
	require.NoError(t, rec.Start())

	rec.Record(entry(models.AuditPickValidated))
	rec.Record(entry(models.AuditPickCommitted))

	require.NoError(t, rec.Stop(context.Background()))

	logs := store.AuditLogs()
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.NotEqual(t, uuid.Nil, l.ID)
		assert.True(t, l.CreatedAt.Equal(clock.Now()))
		assert.Equal(t, models.ActorCaptain, l.ActorType)
		assert.Equal(t, "203.0.113.7", l.IPAddress)
	}
	assert.Zero(t, rec.Dropped())
	assert.Zero(t, rec.Failed())
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	store := memstore.New()
	rec := audit.NewRecorder(store, clockwork.NewFakeClock(), audit.Config{QueueSize: 2, Workers: 1})

	// nothing drains the queue until Start
	for i := 0; i < 5; i++ {
		rec.Record(entry(models.AuditPickRejected))
	}
	assert.Equal(t, int64(3), rec.Dropped())

	require.NoError(t, rec.Start())
	require.NoError(t, rec.Stop(context.Background()))
	assert.Len(t, store.AuditLogs(), 2)
}

func TestRecorder_WriteFailureIsSwallowed(t *testing.T) {
	store := memstore.New()
	store.Fail(memstore.OpInsertAudit, errors.New("db down"))
	rec := audit.NewRecorder(store, clockwork.NewFakeClock(), audit.Config{QueueSize: 4, Workers: 1})
	require.NoError(t, rec.Start())

	rec.Record(entry(models.AuditPickCommitted))
	rec.Record(entry(models.AuditPickCommitted))
	require.NoError(t, rec.Stop(context.Background()))

	assert.Equal(t, int64(2), rec.Failed())
	assert.Empty(t, store.AuditLogs())
}

func TestRecorder_Lifecycle(t *testing.T) {
	store := memstore.New()
	rec := audit.NewRecorder(store, clockwork.NewFakeClock(), audit.Config{})

	require.NoError(t, rec.Start())
	assert.ErrorIs(t, rec.Start(), audit.ErrAlreadyStarted)

	require.NoError(t, rec.Stop(context.Background()))
	require.NoError(t, rec.Stop(context.Background()))

	rec.Record(entry(models.AuditPickCommitted))
	assert.Equal(t, int64(1), rec.Dropped())
}

func TestRecorder_StopWithoutStart(t *testing.T) {
	rec := audit.NewRecorder(memstore.New(), clockwork.NewFakeClock(), audit.DefaultConfig())
	rec.Record(entry(models.AuditPickCommitted))
	assert.NoError(t, rec.Stop(context.Background()))
}

func TestRecorder_StopGivesUpAfterDeadline(t *testing.T) {
	repo := &blockingRepo{release: make(chan struct{})}
	defer close(repo.release)

	rec := audit.NewRecorder(repo, clockwork.NewFakeClock(), audit.Config{QueueSize: 4, Workers: 1, WriteTimeout: time.Minute})
	require.NoError(t, rec.Start())
	rec.Record(entry(models.AuditPickCommitted))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rec.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecorder_Run(t *testing.T) {
	store := memstore.New()
	rec := audit.NewRecorder(store, clockwork.NewFakeClock(), audit.Config{QueueSize: 4, Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	rec.Record(entry(models.AuditDraftStarted))

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, time.Second) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Len(t, store.AuditLogs(), 1)
}
