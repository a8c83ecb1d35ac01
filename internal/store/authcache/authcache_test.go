package authcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-central/central-system/internal/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return New(mr.Addr(), "", 0, time.Minute), mr
}

func TestCache_GetMissOnEmptyCache(t *testing.T) {
	cache, _ := newTestCache(t)
	_, ok := cache.Get(context.Background(), "TAG-1")
	assert.False(t, ok)
}

func TestCache_SetThenGet(t *testing.T) {
	cache, _ := newTestCache(t)
	rec := &domain.AuthorizationRecord{IDTag: "TAG-1", Status: domain.AuthAccepted}

	require.NoError(t, cache.Set(context.Background(), rec))

	got, ok := cache.Get(context.Background(), "TAG-1")
	require.True(t, ok)
	assert.Equal(t, domain.AuthAccepted, got.Status)
}

func TestCache_InvalidateRemovesEntry(t *testing.T) {
	cache, _ := newTestCache(t)
	rec := &domain.AuthorizationRecord{IDTag: "TAG-1", Status: domain.AuthAccepted}
	require.NoError(t, cache.Set(context.Background(), rec))

	require.NoError(t, cache.Invalidate(context.Background(), "TAG-1"))

	_, ok := cache.Get(context.Background(), "TAG-1")
	assert.False(t, ok)
}

func TestCache_EntryExpiresAfterTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache := New(mr.Addr(), "", 0, 50*time.Millisecond)
	rec := &domain.AuthorizationRecord{IDTag: "TAG-1", Status: domain.AuthAccepted}
	require.NoError(t, cache.Set(context.Background(), rec))

	mr.FastForward(time.Second)

	_, ok := cache.Get(context.Background(), "TAG-1")
	assert.False(t, ok)
}

func TestCache_PingSucceedsAgainstMiniredis(t *testing.T) {
	cache, _ := newTestCache(t)
	assert.NoError(t, cache.Ping(context.Background()))
}

func TestCache_Close(t *testing.T) {
	cache, _ := newTestCache(t)
	assert.NoError(t, cache.Close())
}
