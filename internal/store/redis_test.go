package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

func setupCachedStore(t *testing.T) (*CachedStore, *MemoryStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	primary := NewMemoryStore()
	primary.Load(testBook())
	return NewCachedStore(primary, rdb, time.Minute), primary, mr
}

func TestCachedStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	s, primary, mr := setupCachedStore(t)

	hedges, err := s.ListHedges(ctx)
	require.NoError(t, err)
	require.Len(t, hedges, 1)
	assert.True(t, mr.Exists(hedgesKey), "first read should populate the cache")

	// Change the primary behind the cache's back: the cached copy is served.
	primary.Load(model.Book{})
	cached, err := s.ListHedges(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.True(t, cached[0].ContractPrice.Equal(d(2200)), "decimals survive the JSON round trip")

	mr.FastForward(2 * time.Minute)
	fresh, err := s.ListHedges(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh, "expired entries fall back to the primary")
}

func TestCachedStore_QuoteInvalidatesRfq(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupCachedStore(t)

	r, err := s.GetRfq(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, r.CounterpartyQuotes, 1)
	require.True(t, mr.Exists(rfqKey("r1")))

	require.NoError(t, s.InsertQuote(ctx, "r1", &model.RfqQuote{ID: "q2", CounterpartyID: "B"}))
	assert.False(t, mr.Exists(rfqKey("r1")))

	r, err = s.GetRfq(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, r.CounterpartyQuotes, 2)
}

func TestCachedStore_SnapshotInvalidates(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupCachedStore(t)

	_, err := s.ListMTMSnapshots(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(snapshotsKey))

	require.NoError(t, s.InsertMTMSnapshot(ctx, &model.MTMSnapshot{ID: "s1"}))
	assert.False(t, mr.Exists(snapshotsKey))

	snaps, err := s.ListMTMSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestCachedStore_PricesNotCached(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupCachedStore(t)

	_, err := s.ListMarketPrices(ctx, "ALI")
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCachedStore_NotFoundNotCached(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupCachedStore(t)

	_, err := s.GetHedge(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(hedgeKey("missing")))
}

func TestCachedStore_RedisDownFallsBack(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupCachedStore(t)
	mr.Close()

	exposures, err := s.ListExposures(ctx)
	require.NoError(t, err)
	assert.Len(t, exposures, 1)
}
