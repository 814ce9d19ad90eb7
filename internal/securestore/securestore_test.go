package securestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemapp/tandem/internal/logging"
)

func TestSetGet_SmallValueStoredDirectly(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop())

	a.SetItem(ctx, "token", "short-value")

	got, ok, err := a.GetItem(ctx, "token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "short-value", got)

	assert.Equal(t, []string{"token"}, m.Keys(), "no chunk keys for a small value")
}

func TestSetGet_LargeValueChunked(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop(), WithChunkSize(10))

	value := strings.Repeat("abcdefghij", 5) + "tail" // 54 bytes, 6 chunks
	a.SetItem(ctx, "big", value)

	got, ok, err := a.GetItem(ctx, "big")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value, got)

	assert.Len(t, m.Keys(), 7, "6 chunks plus the count marker")
	assert.Contains(t, m.Keys(), "big__chunks")
	assert.Contains(t, m.Keys(), "big__chunk_0")
	assert.Contains(t, m.Keys(), "big__chunk_5")
}

func TestSetItem_ChunkBoundaryExact(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop(), WithChunkSize(10))

	// Exactly the threshold stays un-chunked; one byte over splits.
	a.SetItem(ctx, "edge", strings.Repeat("x", 10))
	assert.Equal(t, []string{"edge"}, m.Keys())

	a.SetItem(ctx, "edge", strings.Repeat("x", 11))
	got, ok, err := a.GetItem(ctx, "edge")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 11)
	assert.Contains(t, m.Keys(), "edge__chunks")
}

func TestSetItem_ShorterOverwriteLeavesNoStrayChunks(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop(), WithChunkSize(10))

	a.SetItem(ctx, "k", strings.Repeat("a", 35))
	require.Contains(t, m.Keys(), "k__chunks")

	a.SetItem(ctx, "k", "tiny")

	got, ok, err := a.GetItem(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tiny", got)
	assert.Equal(t, []string{"k"}, m.Keys(), "old chunk set fully cleared")
}

func TestGetItem_MissingChunkMeansAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop(), WithChunkSize(10))

	a.SetItem(ctx, "k", strings.Repeat("a", 25))
	require.NoError(t, m.Delete(ctx, "k__chunk_1"))

	got, ok, err := a.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "partial chunk set must not return truncated data")
	assert.Empty(t, got)
}

func TestGetItem_CorruptMarkerMeansAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop())

	require.NoError(t, m.Set(ctx, "k__chunks", "not-a-number"))

	_, ok, err := a.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetItem_Missing(t *testing.T) {
	a := NewAdapter(NewMemoryBackend(), logging.Nop())

	got, ok, err := a.GetItem(context.Background(), "never-set")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop(), WithChunkSize(10))

	a.SetItem(ctx, "small", "v")
	a.SetItem(ctx, "big", strings.Repeat("a", 45))

	require.NoError(t, a.RemoveItem(ctx, "big"))
	assert.Equal(t, []string{"small"}, m.Keys())

	require.NoError(t, a.RemoveItem(ctx, "small"))
	assert.Empty(t, m.Keys())

	require.NoError(t, a.RemoveItem(ctx, "small"), "removing an absent key is fine")
}

func TestWithPrefix_NamespacesKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	a := NewAdapter(m, logging.Nop(), WithPrefix("tandem_auth__"))
	b := NewAdapter(m, logging.Nop(), WithPrefix("other__"))

	a.SetItem(ctx, "session", "a-value")
	b.SetItem(ctx, "session", "b-value")

	got, ok, err := a.GetItem(ctx, "session")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a-value", got)

	got, ok, err = b.GetItem(ctx, "session")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b-value", got)

	assert.ElementsMatch(t, []string{"tandem_auth__session", "other__session"}, m.Keys())
}

func TestSetItem_BackendFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	m.MaxItemSize = 4
	a := NewAdapter(m, logging.Nop())

	// Set exceeds the backend cap; SetItem logs and carries on.
	a.SetItem(ctx, "k", "way too large for the cap")

	_, ok, err := a.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
