package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"repoEventsCache/internal/logger"
	"repoEventsCache/internal/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	// keepRows bounds the sqlite history to the most recent rows.
	keepRows = 500

	// hotKeys is how many per-event redis entries are tracked for eviction.
	hotKeys = 10

	snapshotKey    = "events:agg"
	eventKeyPrefix = "event:"
	hotKeysList    = "event_cache_keys"
)

var ctx = context.Background()

// Archive is the long-term lookup history of every event ever fetched,
// backed by sqlite with a redis cache in front. It outlives the bounded
// in-memory window, so old events stay resolvable by ID.
type Archive struct {
	db  *sql.DB
	rdb *redis.Client
}

// Open opens the sqlite database and the redis client for an Archive.
func Open(dbPath, redisAddr string) (*sql.DB, *redis.Client, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	return db, rdb, nil
}

// CreateTable creates the events table if it does not exist yet.
func CreateTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT,
		actor TEXT,
		avatar TEXT,
		repo TEXT,
		created_at TEXT
	);`)
	return err
}

func New(db *sql.DB, rdb *redis.Client) *Archive {
	return &Archive{db: db, rdb: rdb}
}

// Save upserts one event and trims the table to the keepRows most recent
// rows. The event is also placed in the redis per-event cache; redis
// failures degrade to sqlite-only and are only logged.
func (a *Archive) Save(e *model.Event) error {
	_, err := a.db.Exec(`
		INSERT OR REPLACE INTO events
		(id, type, actor, avatar, repo, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Actor.Login, e.Actor.AvatarURL, e.Repo.Name, e.CreatedAt,
	)
	if err != nil {
		return err
	}
	if _, err := a.db.Exec(`
		DELETE FROM events
		WHERE id NOT IN (
			SELECT id FROM events
			ORDER BY created_at DESC
			LIMIT ?
		)`, keepRows); err != nil {
		logger.Lg.Warn("archive_trim", zap.Error(err))
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := a.rdb.Set(ctx, eventKeyPrefix+e.ID, data, 0).Err(); err != nil {
		logger.Lg.Warn("archive_redis_set", zap.Error(err))
		return nil
	}
	a.rdb.LPush(ctx, hotKeysList, e.ID)
	a.rdb.LTrim(ctx, hotKeysList, 0, hotKeys-1)

	// evict per-event entries that fell off the hot list
	evicted, _ := a.rdb.LRange(ctx, hotKeysList, hotKeys, -1).Result()
	for _, k := range evicted {
		a.rdb.Del(ctx, eventKeyPrefix+k)
	}
	return nil
}

// GetByID resolves one event, redis first, sqlite on a miss. A sqlite hit
// is written back into the redis cache.
func (a *Archive) GetByID(id string) (*model.Event, error) {
	val, err := a.rdb.Get(ctx, eventKeyPrefix+id).Result()
	if err == nil {
		var e model.Event
		if err := json.Unmarshal([]byte(val), &e); err == nil {
			return &e, nil
		}
	}

	row := a.db.QueryRow(`
		SELECT id, type, actor, avatar, repo, created_at
		FROM events WHERE id = ?`, id)

	var e model.Event
	if err := row.Scan(
		&e.ID,
		&e.Type,
		&e.Actor.Login,
		&e.Actor.AvatarURL,
		&e.Repo.Name,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}

	if data, err := json.Marshal(e); err == nil {
		if err := a.rdb.Set(ctx, eventKeyPrefix+id, data, 0).Err(); err != nil {
			logger.Lg.Warn("archive_redis_backfill", zap.Error(err))
		}
	}
	return &e, nil
}

// GetSnapshot returns the cached aggregated snapshot JSON, if present.
func (a *Archive) GetSnapshot() ([]byte, bool, error) {
	val, err := a.rdb.Get(ctx, snapshotKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}

// SetSnapshot caches the aggregated snapshot JSON for ttlSeconds.
func (a *Archive) SetSnapshot(data []byte, ttlSeconds int) error {
	return a.rdb.Set(ctx, snapshotKey, data, time.Duration(ttlSeconds)*time.Second).Err()
}

// InvalidateSnapshot drops the aggregated snapshot cache. Called after every
// merge so readers never serve a pre-merge snapshot for a full TTL.
func (a *Archive) InvalidateSnapshot() {
	if err := a.rdb.Del(ctx, snapshotKey).Err(); err != nil {
		logger.Lg.Warn("archive_invalidate", zap.Error(err))
	}
}
