// Package auth persists the device's session blob (tokens and identity)
// through the chunked secure-store adapter. Session blobs routinely exceed
// enclave item caps, which is exactly why the adapter exists.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tandemapp/tandem/internal/common"
	"github.com/tandemapp/tandem/internal/logging"
	"github.com/tandemapp/tandem/internal/securestore"
)

// Prefix namespaces auth keys inside the shared secure-storage service.
const Prefix = "tandem_auth__"

const sessionKey = "session"

// Session is the authenticated device state. The tokens are opaque to this
// package except for the unverified expiry peek below.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	CoupleID     string `json:"couple_id"`
}

// ExpiresWithin reports whether the access token's exp claim falls within d
// from now. The claim is read without signature verification; the device
// only needs a refresh hint, not a trust decision. An unparsable token
// counts as expiring.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return time.Until(claims.ExpiresAt.Time) < d
}

// Storage saves and loads the session through a chunked adapter.
type Storage struct {
	items *securestore.Adapter
	log   logging.Logger
}

func NewStorage(backend securestore.Backend, log logging.Logger) *Storage {
	if log == nil {
		log = logging.Nop()
	}
	adapter := securestore.NewAdapter(backend, log, securestore.WithPrefix(Prefix))
	return &Storage{items: adapter, log: log}
}

// Save persists the session best-effort; like the adapter underneath it
// never fails the caller, because the session stays usable in memory.
func (s *Storage) Save(ctx context.Context, sess *Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		s.log.Warn(ctx, "session marshal failed", "error", err)
		return
	}
	s.items.SetItem(ctx, sessionKey, string(data))
}

// Load returns the stored session, or nil when none is stored.
func (s *Storage) Load(ctx context.Context) (*Session, error) {
	data, ok, err := s.items.GetItem(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// LoadRequired returns the stored session, or common.ErrNoSession when none
// is stored. Callers that cannot proceed unauthenticated use this instead of
// Load.
func (s *Storage) LoadRequired(ctx context.Context) (*Session, error) {
	sess, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, common.ErrNoSession
	}
	return sess, nil
}

// Clear removes the stored session (sign-out).
func (s *Storage) Clear(ctx context.Context) error {
	return s.items.RemoveItem(ctx, sessionKey)
}
