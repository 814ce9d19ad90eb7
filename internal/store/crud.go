package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tandemapp/tandem/internal/common"
	"github.com/tandemapp/tandem/internal/dbx"
)

// syncColumns are the bookkeeping columns shared by every synced table.
// They are stamped by the store, never written directly by callers.
var syncColumns = []string{
	"created_at", "updated_at", "deleted_at",
	"sync_status", "sync_version", "sync_source",
}

// selectList returns the full column list of t in scan order.
func selectList(t Table) string {
	cols := append([]string{"id", "owner_id", "couple_id"}, t.ContentColumns()...)
	cols = append(cols, syncColumns...)
	return strings.Join(cols, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row produced by a selectList query.
func scanRecord(t Table, row scanner) (*Record, error) {
	content := t.ContentColumns()

	rec := &Record{Columns: make(map[string]string, len(content))}
	values := make([]sql.NullString, len(content))

	dest := []any{&rec.ID, &rec.OwnerID, &rec.CoupleID}
	for i := range values {
		dest = append(dest, &values[i])
	}

	var createdAt, updatedAt string
	var deletedAt sql.NullString
	dest = append(dest, &createdAt, &updatedAt, &deletedAt,
		&rec.SyncStatus, &rec.SyncVersion, &rec.SyncSource)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for i, name := range content {
		if values[i].Valid {
			rec.Columns[name] = values[i].String
		}
	}

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		d, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, err
		}
		rec.DeletedAt = &d
	}

	return rec, nil
}

func contentValue(rec *Record, name string) sql.NullString {
	if v, ok := rec.Columns[name]; ok {
		return sql.NullString{String: v, Valid: true}
	}
	return sql.NullString{}
}

// InsertResult reports the identity and timestamps stamped on a new row.
type InsertResult struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Insert persists a new row in t. A missing id, created_at or updated_at is
// stamped by the store; sync_status defaults to pending, sync_source to
// local, sync_version to 0. Unknown content column names are a programming
// error and are rejected with common.ErrUnknownColumn.
func (s *Store) Insert(ctx context.Context, t Table, rec *Record) (*InsertResult, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	for name := range rec.Columns {
		if !t.hasContentColumn(name) {
			return nil, fmt.Errorf("%w: %q in %s", common.ErrUnknownColumn, name, t)
		}
	}

	now := time.Now().UTC()

	id := rec.ID
	if id == "" {
		id = NewID(t, now)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	status := rec.SyncStatus
	if status == "" {
		status = StatusPending
	}
	source := rec.SyncSource
	if source == "" {
		source = SourceLocal
	}

	content := t.ContentColumns()
	cols := append([]string{"id", "owner_id", "couple_id"}, content...)
	cols = append(cols, syncColumns...)

	args := []any{id, rec.OwnerID, rec.CoupleID}
	for _, name := range content {
		args = append(args, contentValue(rec, name))
	}
	var deletedAt sql.NullString
	if rec.DeletedAt != nil {
		deletedAt = sql.NullString{String: formatTime(*rec.DeletedAt), Valid: true}
	}
	args = append(args, formatTime(createdAt), formatTime(updatedAt), deletedAt,
		string(status), rec.SyncVersion, string(source))

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		t.Name(), strings.Join(cols, ", "), placeholders(len(cols)))

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t, err)
	}

	return &InsertResult{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

// Update writes the supplied content columns of a live row. Only a table's
// content columns are mutable; anything else in fields is dropped. Every
// effective update stamps updated_at, forces sync_status back to pending,
// bumps sync_version, and tags the write as local. Returns the updated row,
// or (nil, nil) when no mutable field was supplied.
func (s *Store) Update(ctx context.Context, t Table, id string, fields map[string]string) (*Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if t.hasContentColumn(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	var sets strings.Builder
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		sets.WriteString(name + " = ?, ")
		args = append(args, fields[name])
	}

	query := fmt.Sprintf(`UPDATE %s SET %s updated_at = ?,
		sync_status = 'pending', sync_version = sync_version + 1, sync_source = 'local'
		WHERE id = ? AND deleted_at IS NULL`, t.Name(), sets.String())
	args = append(args, formatTime(time.Now().UTC()), id)

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", t, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s rows affected: %w", t, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("update %s id %s: %w", t, id, common.ErrNotFound)
	}

	return s.Get(ctx, t, id)
}

// SoftDelete turns a live row into a tombstone: deleted_at and updated_at
// are stamped, the row re-enters pending so the deletion syncs upstream,
// and sync_version is bumped. The row is not physically removed until Purge.
func (s *Store) SoftDelete(ctx context.Context, t Table, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = ?, updated_at = ?,
		sync_status = 'pending', sync_version = sync_version + 1, sync_source = 'local'
		WHERE id = ? AND deleted_at IS NULL`, t.Name())

	res, err := db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", t, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete %s rows affected: %w", t, err)
	}
	if n == 0 {
		return fmt.Errorf("soft delete %s id %s: %w", t, id, common.ErrNotFound)
	}
	return nil
}

// Get returns a live row by id, or common.ErrNotFound. Tombstones are not
// visible through Get.
func (s *Store) Get(ctx context.Context, t Table, id string) (*Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND deleted_at IS NULL`,
		selectList(t), t.Name())
	rec, err := scanRecord(t, db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s id %s: %w", t, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t, err)
	}
	return rec, nil
}

// ListOptions bound a List call. A non-positive Limit means unbounded.
type ListOptions struct {
	Limit  int
	Offset int
}

// List returns live rows of t matching every equality filter, newest first.
// Filter keys must be id, owner_id, couple_id, or a plaintext metadata
// column of t; filtering on a cipher column or an unknown name is rejected
// with common.ErrUnknownColumn rather than silently returning wrong rows.
func (s *Store) List(ctx context.Context, t Table, filters map[string]string, opt ListOptions) ([]*Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(filters))
	for name := range filters {
		if !t.filterable(name) {
			return nil, fmt.Errorf("%w: filter %q on %s", common.ErrUnknownColumn, name, t)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var where strings.Builder
	where.WriteString("deleted_at IS NULL")
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		where.WriteString(" AND " + name + " = ?")
		args = append(args, filters[name])
	}

	limit := opt.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, opt.Offset)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`,
		selectList(t), t.Name(), where.String())

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(t, rows)
		if err != nil {
			return nil, fmt.Errorf("list %s scan: %w", t, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s rows: %w", t, err)
	}
	return result, nil
}

// Purge permanently removes tombstones older than daysOld across every
// table, but only those already acknowledged by remote. A pending
// tombstone survives regardless of age; deleting it before the remote has
// seen the deletion would resurrect the row on the next pull.
func (s *Store) Purge(ctx context.Context, daysOld int) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	cutoff := formatTime(time.Now().UTC().AddDate(0, 0, -daysOld))

	var total int64
	for _, t := range Tables {
		query := fmt.Sprintf(`DELETE FROM %s
			WHERE deleted_at IS NOT NULL AND deleted_at <= ? AND sync_status = 'synced'`, t.Name())
		res, err := db.ExecContext(ctx, query, cutoff)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", t, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("purge %s rows affected: %w", t, err)
		}
		total += n
	}

	if total > 0 {
		s.log.Info(ctx, "purged tombstones", "count", total, "days_old", daysOld)
	}
	return total, nil
}

// WipeAll unconditionally empties every table, including sync_meta. Used on
// sign-out or account deletion; no soft-delete semantics apply.
func (s *Store) WipeAll(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, t := range Tables {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, t.Name())); err != nil {
				return fmt.Errorf("wipe %s: %w", t, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_meta`); err != nil {
			return fmt.Errorf("wipe sync_meta: %w", err)
		}
		return nil
	})
}
