package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/tandemapp/tandem/internal/flagx"
	"github.com/tandemapp/tandem/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "5m"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	DatabasePath       string         `json:"database_path"`
	SyncEndpoint       string         `json:"sync_endpoint"`
	SyncInterval       timex.Duration `json:"sync_interval"`
	SyncPageSize       int            `json:"sync_page_size"`
	PurgeRetentionDays int            `json:"purge_retention_days"`
	SecureDir          string         `json:"secure_dir"`
}

// parseJSON overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c/-config flags via flagx.JsonConfigFlags();
// when no path is given, nothing is loaded. Read or unmarshal errors panic
// (startup should not continue on a broken config file).
//
// Intended usage is: defaults -> parseJSON -> parseFlags, where later stages
// override earlier ones.
func parseJSON(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.SyncEndpoint != "" {
		cfg.SyncEndpoint = jc.SyncEndpoint
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.SyncPageSize != 0 {
		cfg.SyncPageSize = jc.SyncPageSize
	}
	if jc.PurgeRetentionDays != 0 {
		cfg.PurgeRetentionDays = jc.PurgeRetentionDays
	}
	if jc.SecureDir != "" {
		cfg.SecureDir = jc.SecureDir
	}
}
