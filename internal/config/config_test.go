package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"tandem"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	assert.Equal(t, "tandem.db", cfg.DatabasePath)
	assert.Empty(t, cfg.SyncEndpoint)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 200, cfg.SyncPageSize)
	assert.Equal(t, 30, cfg.PurgeRetentionDays)
	assert.Equal(t, ".tandem-secure", cfg.SecureDir)
}

func TestLoadConfig_NoSources(t *testing.T) {
	withArgs(t)

	cfg := LoadConfig()
	assert.Equal(t, "tandem.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
}

func TestLoadConfig_JSONOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database_path": "/data/tandem.db",
		"sync_endpoint": "https://sync.example.com",
		"sync_interval": "45s",
		"sync_page_size": 50
	}`), 0o600))

	withArgs(t, "-c", path)

	cfg := LoadConfig()
	assert.Equal(t, "/data/tandem.db", cfg.DatabasePath)
	assert.Equal(t, "https://sync.example.com", cfg.SyncEndpoint)
	assert.Equal(t, 45*time.Second, cfg.SyncInterval)
	assert.Equal(t, 50, cfg.SyncPageSize)
	assert.Equal(t, 30, cfg.PurgeRetentionDays, "untouched fields keep their defaults")
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database_path": "/data/from-json.db",
		"sync_interval": "10m"
	}`), 0o600))

	withArgs(t, "-c", path, "-d", "/data/from-flag.db", "-i", "30")

	cfg := LoadConfig()
	assert.Equal(t, "/data/from-flag.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
}

func TestLoadConfig_Flags(t *testing.T) {
	withArgs(t, "-e", "https://sync.example.com", "-r", "7", "-s", "/tmp/sec")

	cfg := LoadConfig()
	assert.Equal(t, "https://sync.example.com", cfg.SyncEndpoint)
	assert.Equal(t, 7, cfg.PurgeRetentionDays)
	assert.Equal(t, "/tmp/sec", cfg.SecureDir)
}
