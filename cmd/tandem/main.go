// Command tandem runs the device sync agent: it opens the local store,
// purges aged tombstones, and keeps pushing/pulling against the configured
// remote until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/tandemapp/tandem/internal/auth"
	"github.com/tandemapp/tandem/internal/buildinfo"
	"github.com/tandemapp/tandem/internal/common"
	"github.com/tandemapp/tandem/internal/config"
	"github.com/tandemapp/tandem/internal/logging"
	"github.com/tandemapp/tandem/internal/securestore"
	"github.com/tandemapp/tandem/internal/store"
	"github.com/tandemapp/tandem/internal/syncer"
	"github.com/tandemapp/tandem/internal/transport"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tandem: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	passphrase, err := readPassphrase()
	if err != nil {
		return err
	}

	backend, err := securestore.NewFileBackend(cfg.SecureDir, passphrase, 0)
	if err != nil {
		return fmt.Errorf("open secure store: %w", err)
	}
	sessions := auth.NewStorage(backend, log)

	sess, err := sessions.LoadRequired(ctx)
	if errors.Is(err, common.ErrNoSession) {
		return fmt.Errorf("%w; sign in from the app first", err)
	}
	if err != nil {
		return err
	}
	if sess.ExpiresWithin(0) {
		log.Warn(ctx, "access token already expired, pushes will fail until the app refreshes the session")
	}

	st := store.New(cfg.DatabasePath, log)
	if err := st.Open(ctx); err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Purge(ctx, cfg.PurgeRetentionDays); err != nil {
		log.Warn(ctx, "startup purge failed", "error", err)
	}

	if cfg.SyncEndpoint == "" {
		log.Info(ctx, "no sync endpoint configured, running offline")
		return nil
	}

	tr := transport.NewHTTPClient(cfg.SyncEndpoint, func() string {
		return sess.AccessToken
	})
	s := syncer.New(st, tr, cfg.SyncPageSize, log)

	log.Info(ctx, "sync agent started",
		"endpoint", cfg.SyncEndpoint, "interval", cfg.SyncInterval)
	s.Run(ctx, cfg.SyncInterval)
	return nil
}

// readPassphrase takes the secure-store passphrase from TANDEM_PASSPHRASE
// when set (non-interactive use), otherwise prompts on the terminal.
func readPassphrase() (string, error) {
	if p := os.Getenv("TANDEM_PASSPHRASE"); p != "" {
		return p, nil
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}
