package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// CacheFileName is the fixed name of the on-disk event cache inside CacheDir.
const CacheFileName = "events.json"

// Config holds all runtime settings, loaded from environment variables.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`

	// FeedOwner/FeedRepo identify the repository whose public event feed is
	// polled, e.g. "golang" / "go".
	FeedOwner string `env:"FEED_OWNER" envDefault:"golang"`
	FeedRepo  string `env:"FEED_REPO"  envDefault:"go"`
	FeedBase  string `env:"FEED_BASE_URL" envDefault:"https://api.github.com"`

	CacheDir      string        `env:"CACHE_DIR"`
	DBPath        string        `env:"DB_PATH"     envDefault:"./events.db"`
	RedisAddr     string        `env:"REDIS_ADDR"  envDefault:"localhost:6379"`
	FetchInterval time.Duration `env:"FETCH_INTERVAL" envDefault:"3m"`
}

// Load parses the environment into a Config. CacheDir defaults to a
// per-application directory under the OS user cache dir.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = "."
		}
		cfg.CacheDir = filepath.Join(base, "repoEventsCache")
	}
	return cfg, nil
}

// CacheFile returns the full path of the persisted event cache.
func (c Config) CacheFile() string {
	return filepath.Join(c.CacheDir, CacheFileName)
}

// FeedURL returns the events endpoint for the configured repository.
func (c Config) FeedURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/events", c.FeedBase, c.FeedOwner, c.FeedRepo)
}
