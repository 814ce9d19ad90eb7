package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tandemapp/tandem/internal/dbx"
)

// UpsertOutcome is the result of applying one remote row. skipped is a
// normal outcome, not an error: last-write-wins discarded an older (or tied)
// remote version in favor of the local row.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
	UpsertSkipped
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// BatchResult aggregates the outcomes of one batch pull application.
type BatchResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

// PendingSync returns the exact push candidate set for t: rows whose status
// is pending and whose last write did not originate from a pull, oldest
// updated_at first. Tombstones are included; their deletion must reach the
// remote too. A non-positive limit means unbounded.
func (s *Store) PendingSync(ctx context.Context, t Table, limit int) ([]*Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = -1
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE sync_status = 'pending' AND sync_source != 'remote'
		ORDER BY updated_at ASC, id ASC LIMIT ?`, selectList(t), t.Name())

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync %s: %w", t, err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(t, rows)
		if err != nil {
			return nil, fmt.Errorf("pending sync %s scan: %w", t, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending sync %s rows: %w", t, err)
	}
	return result, nil
}

// MarkSynced flips sync_status to synced for exactly the given ids, after a
// successful upstream push. An empty id list is a no-op; no statement with
// zero conditions is ever issued.
func (s *Store) MarkSynced(ctx context.Context, t Table, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	db, err := s.handle()
	if err != nil {
		return err
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`UPDATE %s SET sync_status = 'synced' WHERE id IN (%s)`,
		t.Name(), placeholders(len(ids)))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark synced %s: %w", t, err)
	}
	return nil
}

// UpsertRemote applies one remote row to t with last-write-wins resolution:
//
//   - no local row with that id: insert it, outcome inserted;
//   - remote updated_at strictly newer than local: overwrite the content
//     columns and deleted_at, outcome updated;
//   - otherwise: discard the remote row, outcome skipped. Ties favor the
//     local row. Wall-clock comparison is a documented simplification; clock
//     skew between devices can discard a genuinely later edit.
//
// Either way the applied row lands with sync_status synced and sync_source
// remote, so it never re-enters the push candidate set.
func (s *Store) UpsertRemote(ctx context.Context, t Table, rec *Record) (UpsertOutcome, error) {
	db, err := s.handle()
	if err != nil {
		return UpsertSkipped, err
	}
	return upsertRemote(ctx, db, t, rec)
}

// BatchUpsertRemote applies a page of remote rows inside one all-or-nothing
// transaction. If any row fails, the whole batch rolls back: a half-applied
// pull must never be observable.
func (s *Store) BatchUpsertRemote(ctx context.Context, t Table, recs []*Record) (BatchResult, error) {
	var result BatchResult

	db, err := s.handle()
	if err != nil {
		return result, err
	}

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, rec := range recs {
			outcome, err := upsertRemote(ctx, tx, t, rec)
			if err != nil {
				return err
			}
			switch outcome {
			case UpsertInserted:
				result.Inserted++
			case UpsertUpdated:
				result.Updated++
			case UpsertSkipped:
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("batch upsert %s: %w", t, err)
	}
	return result, nil
}

func upsertRemote(ctx context.Context, db dbx.DBTX, t Table, rec *Record) (UpsertOutcome, error) {
	if rec.ID == "" {
		return UpsertSkipped, fmt.Errorf("upsert %s: remote row without id", t)
	}
	if rec.UpdatedAt.IsZero() {
		return UpsertSkipped, fmt.Errorf("upsert %s id %s: remote row without updated_at", t, rec.ID)
	}
	for name := range rec.Columns {
		if !t.hasContentColumn(name) {
			return UpsertSkipped, fmt.Errorf("upsert %s id %s: unknown column %q", t, rec.ID, name)
		}
	}

	var localUpdated string
	query := fmt.Sprintf(`SELECT updated_at FROM %s WHERE id = ?`, t.Name())
	err := db.QueryRowContext(ctx, query, rec.ID).Scan(&localUpdated)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return UpsertInserted, insertRemote(ctx, db, t, rec)
	case err != nil:
		return UpsertSkipped, fmt.Errorf("upsert %s id %s: %w", t, rec.ID, err)
	}

	local, err := parseTime(localUpdated)
	if err != nil {
		return UpsertSkipped, fmt.Errorf("upsert %s id %s: %w", t, rec.ID, err)
	}
	if !rec.UpdatedAt.After(local) {
		return UpsertSkipped, nil
	}
	return UpsertUpdated, updateRemote(ctx, db, t, rec)
}

func insertRemote(ctx context.Context, db dbx.DBTX, t Table, rec *Record) error {
	content := t.ContentColumns()
	cols := append([]string{"id", "owner_id", "couple_id"}, content...)
	cols = append(cols, syncColumns...)

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = rec.UpdatedAt
	}

	args := []any{rec.ID, rec.OwnerID, rec.CoupleID}
	for _, name := range content {
		args = append(args, contentValue(rec, name))
	}
	var deletedAt sql.NullString
	if rec.DeletedAt != nil {
		deletedAt = sql.NullString{String: formatTime(*rec.DeletedAt), Valid: true}
	}
	args = append(args, formatTime(createdAt), formatTime(rec.UpdatedAt), deletedAt,
		string(StatusSynced), int64(0), string(SourceRemote))

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		t.Name(), strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert remote %s id %s: %w", t, rec.ID, err)
	}
	return nil
}

func updateRemote(ctx context.Context, db dbx.DBTX, t Table, rec *Record) error {
	var sets strings.Builder
	var args []any
	for _, name := range t.ContentColumns() {
		sets.WriteString(name + " = ?, ")
		args = append(args, contentValue(rec, name))
	}

	var deletedAt sql.NullString
	if rec.DeletedAt != nil {
		deletedAt = sql.NullString{String: formatTime(*rec.DeletedAt), Valid: true}
	}
	args = append(args, deletedAt, formatTime(rec.UpdatedAt), rec.ID)

	// sync_version is a local mutation counter; a pull is not a local
	// mutation, so it is left untouched here.
	query := fmt.Sprintf(`UPDATE %s SET %s deleted_at = ?, updated_at = ?,
		sync_status = 'synced', sync_source = 'remote' WHERE id = ?`, t.Name(), sets.String())
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update remote %s id %s: %w", t, rec.ID, err)
	}
	return nil
}

// Meta is the per-table sync bookkeeping row: when the table last pushed
// and pulled, and the opaque remote pagination cursor. Zero times mean
// never.
type Meta struct {
	LastPulledAt time.Time
	LastPushedAt time.Time
	Cursor       string
}

// SyncMeta returns the sync bookkeeping row for t. A table that has never
// synced yields a zero Meta and no error.
func (s *Store) SyncMeta(ctx context.Context, t Table) (Meta, error) {
	var meta Meta

	db, err := s.handle()
	if err != nil {
		return meta, err
	}

	var pulled, pushed sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT last_pulled_at, last_pushed_at, cursor FROM sync_meta WHERE table_name = ?`,
		t.Name()).Scan(&pulled, &pushed, &meta.Cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("sync meta %s: %w", t, err)
	}

	if pulled.Valid {
		if meta.LastPulledAt, err = parseTime(pulled.String); err != nil {
			return Meta{}, fmt.Errorf("sync meta %s: %w", t, err)
		}
	}
	if pushed.Valid {
		if meta.LastPushedAt, err = parseTime(pushed.String); err != nil {
			return Meta{}, fmt.Errorf("sync meta %s: %w", t, err)
		}
	}
	return meta, nil
}

// SetSyncMeta upserts the sync bookkeeping row for t.
func (s *Store) SetSyncMeta(ctx context.Context, t Table, meta Meta) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	var pulled, pushed sql.NullString
	if !meta.LastPulledAt.IsZero() {
		pulled = sql.NullString{String: formatTime(meta.LastPulledAt), Valid: true}
	}
	if !meta.LastPushedAt.IsZero() {
		pushed = sql.NullString{String: formatTime(meta.LastPushedAt), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sync_meta (table_name, last_pulled_at, last_pushed_at, cursor) VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			last_pulled_at = excluded.last_pulled_at,
			last_pushed_at = excluded.last_pushed_at,
			cursor = excluded.cursor
	`, t.Name(), pulled, pushed, meta.Cursor)
	if err != nil {
		return fmt.Errorf("set sync meta %s: %w", t, err)
	}
	return nil
}
