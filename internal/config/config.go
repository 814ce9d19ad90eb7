package config

import "time"

// Config holds runtime settings for the Tandem sync agent.
//
// Fields:
//   - DatabasePath: path of the local SQLite database file.
//   - SyncEndpoint: base URL of the remote sync service; empty disables sync.
//   - SyncInterval: how often a push/pull pass runs.
//   - SyncPageSize: max rows per push batch and per pull page.
//   - PurgeRetentionDays: age in days before a synced tombstone is purged.
//   - SecureDir: directory of the encrypted secure-store backend.
type Config struct {
	DatabasePath       string
	SyncEndpoint       string
	SyncInterval       time.Duration
	SyncPageSize       int
	PurgeRetentionDays int
	SecureDir          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "tandem.db"
	c.SyncEndpoint = ""
	c.SyncInterval = 5 * time.Minute
	c.SyncPageSize = 200
	c.PurgeRetentionDays = 30
	c.SecureDir = ".tandem-secure"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
