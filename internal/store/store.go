package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"repoEventsCache/internal/logger"
	"repoEventsCache/internal/model"

	"go.uber.org/zap"
)

// RetentionLimit is the maximum number of events held in memory and on disk.
const RetentionLimit = 50

// Store is a bounded, disk-backed collection of events, most-recent-first.
// All mutation happens under one lock, so merge-truncate-persist is a single
// critical section and concurrent mergers cannot lose each other's updates.
type Store struct {
	path string

	mu     sync.Mutex
	events []model.Event
	subs   map[chan []model.Event]struct{}
}

// New creates a Store persisting to the given cache file path.
// Call Load to pick up a previously persisted collection.
func New(path string) *Store {
	return &Store{
		path: path,
		subs: make(map[chan []model.Event]struct{}),
	}
}

// Load reads the cache file and replaces the in-memory collection with its
// contents. Any failure (missing file, unreadable, malformed JSON) leaves the
// store empty; Load never fails.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		logger.Lg.Info("cache_load_empty", zap.String("path", s.path), zap.Error(err))
		return
	}
	events, err := model.DecodeEvents(data)
	if err != nil {
		logger.Lg.Warn("cache_load_malformed", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
	logger.Lg.Info("cache_loaded", zap.Int("events", len(events)))
}

// Merge prepends newEvents to the current collection, keeping each side's
// internal order. If the result exceeds RetentionLimit it is truncated to the
// first RetentionLimit events and the truncated list is persisted to disk;
// at or under the limit the cache file is left untouched. The resulting
// snapshot is published to all subscribers and returned.
func (s *Store) Merge(newEvents []model.Event) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]model.Event, 0, len(newEvents)+len(s.events))
	merged = append(merged, newEvents...)
	merged = append(merged, s.events...)

	if len(merged) > RetentionLimit {
		merged = merged[:RetentionLimit]
		s.persist(merged)
	}

	s.events = merged
	snap := snapshot(merged)
	s.publish(snap)
	return snap
}

// Events returns a copy of the current collection.
func (s *Store) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.events)
}

// Subscribe registers a current-value stream. The latest snapshot is
// delivered immediately; afterwards every merge delivers the new snapshot.
// A subscriber that has not consumed the previous snapshot only ever sees
// the newest one, there is no backlog.
func (s *Store) Subscribe() chan []model.Event {
	ch := make(chan []model.Event, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- snapshot(s.events)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Store) Unsubscribe(ch chan []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; !ok {
		return
	}
	delete(s.subs, ch)
	close(ch)
}

// publish replaces any undelivered snapshot with the new one. Caller holds mu.
func (s *Store) publish(snap []model.Event) {
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// persist writes events to the cache file via a temp file and rename, so a
// concurrent reader never observes a partially written file. Write failures
// are logged and swallowed; the previous file contents stay in place.
// Caller holds mu.
func (s *Store) persist(events []model.Event) {
	data, err := json.Marshal(events)
	if err != nil {
		logger.Lg.Error("cache_encode", zap.Error(err))
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Lg.Error("cache_mkdir", zap.String("dir", dir), zap.Error(err))
		return
	}
	tmp, err := os.CreateTemp(dir, "events-*.json")
	if err != nil {
		logger.Lg.Error("cache_tempfile", zap.Error(err))
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		logger.Lg.Error("cache_write", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		logger.Lg.Error("cache_close", zap.Error(err))
		return
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		logger.Lg.Error("cache_rename", zap.Error(err))
		return
	}
	logger.Lg.Info("cache_persisted", zap.Int("events", len(events)))
}

func snapshot(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	return out
}
