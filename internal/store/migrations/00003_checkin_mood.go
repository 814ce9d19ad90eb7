package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCheckinMood, downCheckinMood)
}

// upCheckinMood adds the plaintext mood column to checkins. SQLite has no
// ADD COLUMN IF NOT EXISTS, so the delta checks pragma_table_info first;
// re-running it is a no-op rather than an error.
func upCheckinMood(ctx context.Context, tx *sql.Tx) error {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('checkins') WHERE name = 'mood'`).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx, `ALTER TABLE checkins ADD COLUMN mood TEXT`)
	return err
}

func downCheckinMood(ctx context.Context, tx *sql.Tx) error {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('checkins') WHERE name = 'mood'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx, `ALTER TABLE checkins DROP COLUMN mood`)
	return err
}
