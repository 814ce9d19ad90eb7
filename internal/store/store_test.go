package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemapp/tandem/internal/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "tandem.db"), logging.Nop())
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	require.NoError(t, s.Open(context.Background()))
	assert.Same(t, db, s.DB(), "re-opening must return the existing handle")
}

func TestOpen_MigratesToLatestVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Every registry table must exist after migration.
	for _, tbl := range Tables {
		var name string
		err := s.DB().QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, tbl.Name()).Scan(&name)
		require.NoError(t, err, "table %s missing", tbl)
	}

	var name string
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='sync_meta'`).Scan(&name))

	// The Go delta added the mood column to checkins.
	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('checkins') WHERE name='mood'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_ReopenDoesNotRerunDeltas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tandem.db")
	ctx := context.Background()

	s1 := New(path, logging.Nop())
	require.NoError(t, s1.Open(ctx))
	_, err := s1.Insert(ctx, TableJournalEntries, &Record{OwnerID: "u1"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Same file again: deltas are version-gated no-ops and data survives.
	s2 := New(path, logging.Nop())
	require.NoError(t, s2.Open(ctx))
	defer s2.Close()

	rows, err := s2.List(ctx, TableJournalEntries, nil, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWipeAll_EmptiesEveryTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, tbl := range Tables {
		_, err := s.Insert(ctx, tbl, &Record{OwnerID: "u1"})
		require.NoError(t, err)
	}
	require.NoError(t, s.SetSyncMeta(ctx, TableVibes, Meta{Cursor: "c1"}))

	require.NoError(t, s.WipeAll(ctx))

	for _, tbl := range Tables {
		var n int
		require.NoError(t, s.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+tbl.Name()).Scan(&n))
		assert.Zero(t, n, "table %s not wiped", tbl)
	}
	meta, err := s.SyncMeta(ctx, TableVibes)
	require.NoError(t, err)
	assert.Empty(t, meta.Cursor)
}
