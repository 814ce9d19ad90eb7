// Package syncer moves the local store toward eventual consistency with the
// remote service: it pushes pending rows upstream and applies pulled pages
// locally, without double-sending and without pull->push feedback loops.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tandemapp/tandem/internal/logging"
	"github.com/tandemapp/tandem/internal/store"
)

// PushResult is the per-row outcome the transport reports for one pushed
// record. Only ids reported OK are marked synced locally.
type PushResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Page is one pull page from the remote. NextCursor is opaque and is
// persisted per table so a later pull resumes incrementally.
type Page struct {
	Rows       []*store.Record `json:"rows"`
	NextCursor string          `json:"next_cursor"`
	HasMore    bool            `json:"has_more"`
}

// Transport is the remote collaborator contract. Timeouts and retries on
// the network leg are the transport's responsibility; the syncer only acts
// on the success/failure results it is given.
type Transport interface {
	// PushBatch sends pending rows of one table upstream and returns a
	// per-row result for every row sent.
	PushBatch(ctx context.Context, table store.Table, rows []*store.Record) ([]PushResult, error)

	// PullPage fetches one page of remote rows at the given cursor.
	PullPage(ctx context.Context, table store.Table, cursor string, limit int) (*Page, error)
}

// Store is the slice of the local store the syncer needs.
type Store interface {
	PendingSync(ctx context.Context, t store.Table, limit int) ([]*store.Record, error)
	MarkSynced(ctx context.Context, t store.Table, ids []string) error
	BatchUpsertRemote(ctx context.Context, t store.Table, recs []*store.Record) (store.BatchResult, error)
	SyncMeta(ctx context.Context, t store.Table) (store.Meta, error)
	SetSyncMeta(ctx context.Context, t store.Table, meta store.Meta) error
}

// Syncer runs push/pull passes over every table. Its row-level operations
// are not safe to run concurrently against the same table from two passes;
// Run guards against overlapping ticks with a non-blocking busy flag, and
// external callers of SyncAll own that responsibility themselves.
type Syncer struct {
	store     Store
	transport Transport
	log       logging.Logger
	pageSize  int

	busy atomic.Bool
	now  func() time.Time
}

// New wires a Syncer. pageSize bounds both push batches and pull pages; a
// non-positive value falls back to 100.
func New(st Store, tr Transport, pageSize int, log logging.Logger) *Syncer {
	if pageSize <= 0 {
		pageSize = 100
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Syncer{store: st, transport: tr, log: log, pageSize: pageSize, now: time.Now}
}

// Push sends the pending rows of one table upstream in batches. Rows the
// transport reports successful are marked synced; failed rows stay pending
// and are retried on the next pass. Nothing is marked synced unless the
// upstream call succeeded, so an abandoned in-flight call corrupts nothing.
func (s *Syncer) Push(ctx context.Context, t store.Table) error {
	pushedAny := false

	for {
		pending, err := s.store.PendingSync(ctx, t, s.pageSize)
		if err != nil {
			return fmt.Errorf("push %s: %w", t, err)
		}
		if len(pending) == 0 {
			break
		}

		results, err := s.transport.PushBatch(ctx, t, pending)
		if err != nil {
			return fmt.Errorf("push %s: %w", t, err)
		}

		var okIDs []string
		for _, r := range results {
			if r.OK {
				okIDs = append(okIDs, r.ID)
			} else {
				s.log.Warn(ctx, "row rejected by remote", "table", t, "id", r.ID, "error", r.Error)
			}
		}

		if err := s.store.MarkSynced(ctx, t, okIDs); err != nil {
			return fmt.Errorf("push %s: %w", t, err)
		}
		pushedAny = pushedAny || len(okIDs) > 0

		s.log.Debug(ctx, "pushed batch", "table", t, "sent", len(pending), "accepted", len(okIDs))

		// Rows the remote rejected stay pending; without progress another
		// iteration would resend the same batch forever.
		if len(okIDs) == 0 {
			break
		}
		if len(pending) < s.pageSize {
			break
		}
	}

	if pushedAny {
		meta, err := s.store.SyncMeta(ctx, t)
		if err != nil {
			return fmt.Errorf("push %s: %w", t, err)
		}
		meta.LastPushedAt = s.now().UTC()
		if err := s.store.SetSyncMeta(ctx, t, meta); err != nil {
			return fmt.Errorf("push %s: %w", t, err)
		}
	}
	return nil
}

// Pull fetches remote pages for one table starting at the persisted cursor
// and applies each page in a single transaction. The cursor advances only
// after a page has been fully applied, so a torn-down pull resumes at the
// last durable page.
func (s *Syncer) Pull(ctx context.Context, t store.Table) error {
	meta, err := s.store.SyncMeta(ctx, t)
	if err != nil {
		return fmt.Errorf("pull %s: %w", t, err)
	}

	cursor := meta.Cursor
	for {
		page, err := s.transport.PullPage(ctx, t, cursor, s.pageSize)
		if err != nil {
			return fmt.Errorf("pull %s: %w", t, err)
		}

		if len(page.Rows) > 0 {
			res, err := s.store.BatchUpsertRemote(ctx, t, page.Rows)
			if err != nil {
				return fmt.Errorf("pull %s: %w", t, err)
			}
			s.log.Debug(ctx, "applied pull page", "table", t,
				"inserted", res.Inserted, "updated", res.Updated, "skipped", res.Skipped)
		}

		meta.Cursor = page.NextCursor
		meta.LastPulledAt = s.now().UTC()
		if err := s.store.SetSyncMeta(ctx, t, meta); err != nil {
			return fmt.Errorf("pull %s: %w", t, err)
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	return nil
}

// SyncAll runs a push then a pull for every table. Per-table failures do
// not stop the pass; they are joined and returned at the end.
func (s *Syncer) SyncAll(ctx context.Context) error {
	var errs []error
	for _, t := range store.Tables {
		if err := s.Push(ctx, t); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.Pull(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TrySync runs SyncAll unless another pass is already in flight, in which
// case it reports false and does nothing. This is the debounce for timers
// and connectivity handlers firing close together.
func (s *Syncer) TrySync(ctx context.Context) (bool, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.busy.Store(false)
	return true, s.SyncAll(ctx)
}

// Run performs an immediate pass and then one per interval until ctx is
// cancelled. Overlapping ticks are skipped, not queued.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ran, err := s.TrySync(ctx)
		if err != nil {
			s.log.Error(ctx, "sync pass failed", "error", err)
		} else if !ran {
			s.log.Debug(ctx, "sync pass skipped, previous pass still running")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
