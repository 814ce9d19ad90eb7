package config

import (
	"flag"
	"os"
	"time"

	"github.com/tandemapp/tandem/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   path of the local database file
//	-e string   base URL of the remote sync service
//	-i int      sync interval in seconds
//	-r int      purge retention in days
//	-s string   secure-store directory
//
// Note: the function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-e", "-i", "-r", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database file")
	fs.StringVar(&cfg.SyncEndpoint, "e", cfg.SyncEndpoint, "base URL of the remote sync service")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.IntVar(&cfg.PurgeRetentionDays, "r", cfg.PurgeRetentionDays, "purge retention (in days)")
	fs.StringVar(&cfg.SecureDir, "s", cfg.SecureDir, "secure-store directory")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
