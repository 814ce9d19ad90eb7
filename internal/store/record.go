package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the local mutation-intent state of a row. It says what the
// device intends to do, not what the remote has actually seen.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSynced   Status = "synced"
	StatusConflict Status = "conflict"
)

// Source tags the provenance of the last write to a row. Rows written by a
// pull are tagged SourceRemote and are never offered for push again, which
// is what breaks the pull -> push feedback loop.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Record is one row of any synced table. Content columns (ciphertext blobs
// and plaintext metadata) live in Columns keyed by column name; the store
// never parses cipher values.
type Record struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	CoupleID string `json:"couple_id"`

	// Columns holds the table-specific content columns. A missing key is
	// stored as NULL.
	Columns map[string]string `json:"columns"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	SyncStatus  Status `json:"sync_status"`
	SyncVersion int64  `json:"sync_version"`
	SyncSource  Source `json:"sync_source"`
}

// Deleted reports whether the record is a tombstone.
func (r *Record) Deleted() bool {
	return r.DeletedAt != nil
}

// NewID builds a client-generated id for table t: a short table prefix, the
// creation instant in unix milliseconds, and random entropy. Ids sort
// roughly by creation time and never change after creation.
func NewID(t Table, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", t.spec().idPrefix, now.UnixMilli(), uuid.NewString()[:8])
}

// Timestamps are persisted as ISO-8601 text in UTC with fixed-width
// fractional seconds, so stored values compare correctly as text in SQL
// and keep enough precision that distinct mutations never collapse into
// ties.
const writeTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(writeTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
