package feed

import (
	"context"
	"sync"
	"time"

	"repoEventsCache/internal/logger"
	"repoEventsCache/internal/model"
	"repoEventsCache/internal/store"

	"go.uber.org/zap"
)

// Archive receives every freshly fetched event for long-term lookup and is
// told when the aggregated snapshot it may be caching went stale.
type Archive interface {
	Save(e *model.Event) error
	InvalidateSnapshot()
}

// Fetcher is the fetch side of a refresh cycle.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Event, error)
}

// Refresher runs refresh cycles against one feed. Cycles are single-flight:
// a Refresh arriving while another is in flight waits for that cycle instead
// of starting a second fetch, so two fetches can never race to merge against
// a stale snapshot.
type Refresher struct {
	fetcher Fetcher
	store   *store.Store
	archive Archive

	mu       sync.Mutex
	inflight chan struct{}
}

// NewRefresher wires a fetcher, the bounded store and the archive together.
func NewRefresher(f Fetcher, s *store.Store, a Archive) *Refresher {
	return &Refresher{fetcher: f, store: s, archive: a}
}

// Refresh runs one refresh cycle, or joins the cycle already in flight. It
// returns the event count of the current snapshot once the cycle has ended.
// Every failure inside the cycle degrades to a no-op; Refresh never errors.
func (r *Refresher) Refresh(ctx context.Context) int {
	r.mu.Lock()
	if r.inflight != nil {
		done := r.inflight
		r.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return len(r.store.Events())
	}
	done := make(chan struct{})
	r.inflight = done
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inflight = nil
		r.mu.Unlock()
		close(done)
	}()

	r.cycle(ctx)
	return len(r.store.Events())
}

func (r *Refresher) cycle(ctx context.Context) {
	events, err := r.fetcher.Fetch(ctx)
	if err != nil {
		logger.Lg.Warn("refresh_noop", zap.Error(err))
		return
	}
	r.store.Merge(events)

	for i := range events {
		if err := r.archive.Save(&events[i]); err != nil {
			logger.Lg.Warn("archive_save", zap.String("id", events[i].ID), zap.Error(err))
		}
	}
	r.archive.InvalidateSnapshot()
}

// Run refreshes immediately, then on every tick of interval until ctx is
// cancelled. It is the background half of pull-to-refresh: manual Refresh
// calls coalesce with ticks through the single-flight gate.
func (r *Refresher) Run(ctx context.Context, wg *sync.WaitGroup, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Lg.Info("refresh worker stopping")
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}
