// Package syncer drains the outbox: on a fixed cadence, and once more at
// shutdown, it resolves every queued card to its latest progress record,
// uploads one batch and clears the entries it carried only when the
// catalog service confirms it. Failures are logged and retried on the next
// tick; study never waits on the network.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mzalewski/fiszki/internal/catalog"
	"github.com/mzalewski/fiszki/internal/session"
	"github.com/mzalewski/fiszki/internal/storage"
)

// Engine is the background sync loop for one session.
type Engine struct {
	store    *storage.DB
	client   *catalog.Client
	session  *session.Session
	interval time.Duration

	scheduler *gocron.Scheduler

	// mu serializes sync cycles: a new batch must not start while the
	// previous one's commit or rollback is in flight, or the counter
	// could be uploaded twice.
	mu sync.Mutex
}

// New creates an engine draining the outbox every interval.
func New(store *storage.DB, client *catalog.Client, sess *session.Session, interval time.Duration) *Engine {
	return &Engine{
		store:     store,
		client:    client,
		session:   sess,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start begins the periodic drain in the background.
func (e *Engine) Start() error {
	_, err := e.scheduler.Every(e.interval).SingletonMode().Do(e.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	e.scheduler.StartAsync()
	return nil
}

// Stop cancels the periodic drain. It does not flush; call Flush for the
// shutdown best-effort push.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

func (e *Engine) tick() {
	if err := e.Flush(context.Background()); err != nil {
		// Non-fatal: the outbox is untouched and the next tick retries.
		slog.Warn("sync failed, will retry", "session_id", e.session.ID(), "error", err)
	}
}

// Flush runs one sync cycle. An empty outbox is a successful no-op. The
// cycle snapshots the outbox high-water mark before pushing; on confirmed
// acceptance it clears only the entries the batch carried and subtracts
// only the counter value it sent, so an answer recorded while the push was
// in flight stays queued for the next tick. On any failure everything is
// left untouched for the retry.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	highWater, err := e.store.OutboxHighWater()
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}
	if highWater == 0 {
		return nil
	}

	pending, err := e.store.PendingReviews(e.session.UserID(), highWater)
	if err != nil {
		return fmt.Errorf("failed to resolve outbox: %w", err)
	}
	batch := catalog.ProgressBatch{
		Progress:      pending,
		NewCardsShown: e.session.NewCardsShown(),
	}

	if err := e.client.PushProgressBatch(ctx, batch); err != nil {
		return err
	}

	if err := e.store.ClearOutboxThrough(highWater); err != nil {
		// The server accepted the batch; resending it later is a
		// harmless idempotent upsert, so only the clear is retried.
		return fmt.Errorf("failed to clear outbox after confirmed sync: %w", err)
	}
	e.session.MarkNewCardsSynced(batch.NewCardsShown)

	slog.Info("progress synced",
		"session_id", e.session.ID(),
		"cards", len(pending),
		"through_id", highWater,
		"new_cards_shown", batch.NewCardsShown,
	)
	return nil
}
