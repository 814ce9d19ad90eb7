package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemapp/tandem/internal/common"
	"github.com/tandemapp/tandem/internal/logging"
	"github.com/tandemapp/tandem/internal/securestore"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestStorage_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	backend := securestore.NewMemoryBackend()
	st := NewStorage(backend, logging.Nop())

	sess := &Session{
		AccessToken:  "at",
		RefreshToken: "rt",
		UserID:       "u1",
		CoupleID:     "c1",
	}
	st.Save(ctx, sess)

	got, err := st.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess, got)

	require.NoError(t, st.Clear(ctx))

	got, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStorage_LoadRequired(t *testing.T) {
	ctx := context.Background()
	st := NewStorage(securestore.NewMemoryBackend(), logging.Nop())

	got, err := st.LoadRequired(ctx)
	require.ErrorIs(t, err, common.ErrNoSession)
	assert.Nil(t, got)

	st.Save(ctx, &Session{AccessToken: "at", UserID: "u1"})

	got, err = st.LoadRequired(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, st.Clear(ctx))

	_, err = st.LoadRequired(ctx)
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestStorage_LoadWithoutSave(t *testing.T) {
	st := NewStorage(securestore.NewMemoryBackend(), logging.Nop())

	got, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStorage_KeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	backend := securestore.NewMemoryBackend()
	st := NewStorage(backend, logging.Nop())

	st.Save(ctx, &Session{AccessToken: "at"})

	assert.Equal(t, []string{Prefix + "session"}, backend.Keys())
}

func TestStorage_LargeSessionSurvivesSmallItemCap(t *testing.T) {
	ctx := context.Background()
	backend := securestore.NewMemoryBackend()
	st := NewStorage(backend, logging.Nop())

	// Tokens far beyond a typical enclave cap still round-trip.
	sess := &Session{
		AccessToken:  signedToken(t, time.Now().Add(time.Hour)),
		RefreshToken: strings.Repeat("r", 4*securestore.DefaultChunkSize),
		UserID:       "u1",
	}
	st.Save(ctx, sess)

	got, err := st.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.RefreshToken, got.RefreshToken)
}

func TestExpiresWithin(t *testing.T) {
	tests := []struct {
		name  string
		token string
		d     time.Duration
		want  bool
	}{
		{
			name:  "far future exp",
			token: signedToken(t, time.Now().Add(2*time.Hour)),
			d:     time.Minute,
			want:  false,
		},
		{
			name:  "exp inside window",
			token: signedToken(t, time.Now().Add(30*time.Second)),
			d:     time.Minute,
			want:  true,
		},
		{
			name:  "already expired",
			token: signedToken(t, time.Now().Add(-time.Hour)),
			d:     time.Minute,
			want:  true,
		},
		{
			name:  "expired with zero window",
			token: signedToken(t, time.Now().Add(-time.Second)),
			d:     0,
			want:  true,
		},
		{
			name:  "valid with zero window",
			token: signedToken(t, time.Now().Add(time.Hour)),
			d:     0,
			want:  false,
		},
		{
			name:  "garbage token",
			token: "not.a.jwt",
			d:     time.Minute,
			want:  true,
		},
		{
			name:  "empty token",
			token: "",
			d:     time.Minute,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &Session{AccessToken: tt.token}
			assert.Equal(t, tt.want, sess.ExpiresWithin(tt.d))
		})
	}
}

func TestExpiresWithin_NoExpClaim(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	sess := &Session{AccessToken: s}
	assert.True(t, sess.ExpiresWithin(time.Minute), "a token without exp is treated as expiring")
}
