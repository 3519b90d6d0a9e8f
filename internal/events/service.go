package events

import (
	"context"
	"encoding/json"

	"repoEventsCache/internal/logger"
	"repoEventsCache/internal/model"

	"go.uber.org/zap"
)

// snapshotTTL is how long the aggregated snapshot may be served from redis
// before it is rebuilt from the store.
const snapshotTTL = 60

// Source exposes the current bounded event collection. *store.Store
// satisfies it.
type Source interface {
	Events() []model.Event
}

// SnapshotCache caches the aggregated snapshot JSON.
type SnapshotCache interface {
	GetSnapshot() ([]byte, bool, error)
	SetSnapshot(data []byte, ttlSeconds int) error
}

// Lookup resolves single events by ID from the archive.
type Lookup interface {
	GetByID(id string) (*model.Event, error)
}

// Refresher runs one refresh cycle and reports the resulting event count.
type Refresher interface {
	Refresh(ctx context.Context) int
}

type Service interface {
	Snapshot() ([]byte, error)
	GetByID(id string) (*model.Event, error)
	Refresh(ctx context.Context) int
}

type service struct {
	source    Source
	cache     SnapshotCache
	lookup    Lookup
	refresher Refresher
}

func NewService(src Source, c SnapshotCache, l Lookup, r Refresher) Service {
	return &service{source: src, cache: c, lookup: l, refresher: r}
}

func (s *service) GetByID(id string) (*model.Event, error) { return s.lookup.GetByID(id) }

func (s *service) Refresh(ctx context.Context) int { return s.refresher.Refresh(ctx) }

// Snapshot returns the current collection as JSON, served from the redis
// cache when fresh. A cache failure falls through to the store, it never
// fails the read.
func (s *service) Snapshot() ([]byte, error) {
	data, hit, err := s.cache.GetSnapshot()
	if err != nil {
		logger.Lg.Warn("snapshot cache read failed", zap.Error(err))
	} else if hit {
		return data, nil
	}

	events := s.source.Events()
	jsonbytes, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetSnapshot(jsonbytes, snapshotTTL); err != nil {
		logger.Lg.Warn("snapshot cache store failed", zap.Error(err))
	}
	return jsonbytes, nil
}
