package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("audit recorder already started")

// AuditRepository persists audit entries.
type AuditRepository interface {
	InsertAuditLog(ctx context.Context, entry models.AuditLog) error
}

type Config struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:    1024,
		Workers:      2,
		WriteTimeout: 2 * time.Second,
	}
}

// Recorder queues audit entries and writes them from background workers. Recording never
// blocks the caller: when the queue is full the entry is dropped and logged.
type Recorder struct {
	repo   AuditRepository
	clock  clockwork.Clock
	config Config

	queue   chan models.AuditLog
	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewRecorder creates a new audit Recorder
func NewRecorder(repo AuditRepository, clock clockwork.Clock, cfg Config) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Recorder{
		repo:   repo,
		clock:  clock,
		config: cfg,
		queue:  make(chan models.AuditLog, cfg.QueueSize),
	}
}

// Record enqueues an entry. ID and CreatedAt are filled in when unset.
func (r *Recorder) Record(entry models.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		r.drop(entry, "recorder stopped")
		return
	}

	select {
	case r.queue <- entry:
	default:
		r.drop(entry, "queue full")
	}
}

func (r *Recorder) drop(entry models.AuditLog, reason string) {
	r.dropped.Add(1)
	log.Warn().
		Str("action", entry.Action).
		Str("league_id", entry.LeagueID.String()).
		Str("reason", reason).
		Msg("audit entry dropped")
}

// Start launches the writer goroutines. They run until Stop.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	log.Info().
		Int("workers", r.config.Workers).
		Int("queue_size", r.config.QueueSize).
		Msg("audit recorder started")
	return nil
}

// Stop closes the queue and waits for the workers to write what is already queued.
// Entries still queued when ctx is done are lost.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().
			Int64("written", r.written.Load()).
			Int64("failed", r.failed.Load()).
			Int64("dropped", r.dropped.Load()).
			Msg("audit recorder stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit recorder drain: %w", ctx.Err())
	}
}

// Run starts the recorder and stops it when ctx is cancelled.
func (r *Recorder) Run(ctx context.Context, drainTimeout time.Duration) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return r.Stop(drainCtx)
}

// Dropped returns how many entries were discarded without being written.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Failed returns how many writes failed.
func (r *Recorder) Failed() int64 {
	return r.failed.Load()
}

func (r *Recorder) worker(workerID int) {
	defer r.wg.Done()

	for entry := range r.queue {
		r.write(workerID, entry)
	}
}

func (r *Recorder) write(workerID int, entry models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.repo.InsertAuditLog(ctx, entry); err != nil {
		r.failed.Add(1)
		log.Error().
			Err(err).
			Int("worker_id", workerID).
			Str("action", entry.Action).
			Str("league_id", entry.LeagueID.String()).
			Msg("failed to write audit entry")
		return
	}
	r.written.Add(1)
}
