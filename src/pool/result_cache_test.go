package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/consensus"
	"github.com/mosaicnetworks/ledgerpool/src/store"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestGetCacheOptions(t *testing.T) {
	nw, client := newTestNetwork(t, 4)
	require.NoError(t, nw.Put("answer", 42))

	p := openTestPool(t, newTestConfig(t, nw, client))
	clock := &fakeClock{t: time.Unix(1600000000, 0)}
	p.results.now = clock.now

	ctx := context.Background()
	op := getOp("answer")

	res, err := p.Get(ctx, op, GetCacheOptions{})
	require.NoError(t, err)
	require.False(t, res.Cached)
	require.True(t, res.Value.Equal(valueOf(t, "42")))
	require.Equal(t, uint64(1), res.Metadata.LastSeqNo)

	require.NoError(t, nw.Put("answer", 43))

	res, err = p.Get(ctx, op, GetCacheOptions{})
	require.NoError(t, err)
	require.True(t, res.Cached)
	require.True(t, res.Value.Equal(valueOf(t, "42")))
	require.True(t, clock.t.Equal(res.StoredAt))
	require.Equal(t, uint64(1), res.Metadata.LastSeqNo)

	// the pool is asked, and the fresh value replaces the cached one
	res, err = p.Get(ctx, op, GetCacheOptions{NoCache: true})
	require.NoError(t, err)
	require.False(t, res.Cached)
	require.True(t, res.Value.Equal(valueOf(t, "43")))

	res, err = p.Get(ctx, op, GetCacheOptions{NoUpdate: true})
	require.NoError(t, err)
	require.True(t, res.Cached)
	require.True(t, res.Value.Equal(valueOf(t, "43")))

	clock.advance(time.Hour)

	_, err = p.Get(ctx, op, GetCacheOptions{NoUpdate: true, MinFresh: time.Minute})
	require.True(t, common.IsPool(err, common.NotFound), "got %v", err)

	res, err = p.Get(ctx, op, GetCacheOptions{MinFresh: time.Minute})
	require.NoError(t, err)
	require.False(t, res.Cached)
	require.True(t, clock.t.Equal(res.StoredAt))

	res, err = p.Get(ctx, op, GetCacheOptions{NoUpdate: true, MinFresh: time.Minute})
	require.NoError(t, err)
	require.True(t, res.Cached)
}

func TestGetNoStore(t *testing.T) {
	nw, client := newTestNetwork(t, 4)
	require.NoError(t, nw.Put("answer", 42))

	p := openTestPool(t, newTestConfig(t, nw, client))
	ctx := context.Background()

	res, err := p.Get(ctx, getOp("answer"), GetCacheOptions{NoStore: true})
	require.NoError(t, err)
	require.False(t, res.Cached)

	_, err = p.Get(ctx, getOp("answer"), GetCacheOptions{NoUpdate: true})
	require.True(t, common.IsPool(err, common.NotFound), "got %v", err)
}

func TestGetDoesNotCacheRejections(t *testing.T) {
	nw, client := newTestNetwork(t, 4)
	p := openTestPool(t, newTestConfig(t, nw, client))
	ctx := context.Background()

	res, err := p.Get(ctx, getOp("missing"), GetCacheOptions{})
	require.NoError(t, err)
	require.Equal(t, consensus.KindReject, res.Value.Kind)

	_, err = p.Get(ctx, getOp("missing"), GetCacheOptions{NoUpdate: true})
	require.True(t, common.IsPool(err, common.NotFound), "got %v", err)
}

func TestResultCacheRecords(t *testing.T) {
	st := store.NewInmemStore()
	c := NewResultCache(st, "test")

	op := getOp("doc")
	want := &CachedResult{
		Value:    valueOf(t, `{"b": [1, 2], "a": "x"}`),
		Metadata: consensus.Metadata{LastSeqNo: 9, LastTxnTime: 1600000000},
		StoredAt: time.Unix(1600000000, 42),
	}
	require.NoError(t, c.Store(&op, want))

	got, err := c.Load(&op)
	require.NoError(t, err)
	require.True(t, got.Cached)
	require.Equal(t, consensus.KindRecord, got.Value.Kind)
	require.True(t, got.Value.Equal(want.Value))
	require.Equal(t, want.Metadata, got.Metadata)
	require.True(t, want.StoredAt.Equal(got.StoredAt))

	// other pools sharing the store do not see it
	other := NewResultCache(st, "other")
	_, err = other.Load(&op)
	require.True(t, common.IsPool(err, common.NotFound))

	// corrupt entries are misses
	key, err := c.key(&op)
	require.NoError(t, err)
	require.NoError(t, st.Put(key, []byte("garbage")))
	_, err = c.Load(&op)
	require.True(t, common.IsPool(err, common.NotFound))
}

func TestResultCachePurge(t *testing.T) {
	st := store.NewInmemStore()
	clock := &fakeClock{t: time.Unix(1600000000, 0)}

	c := NewResultCache(st, "test")
	c.now = clock.now

	other := NewResultCache(st, "other")

	put := func(c *ResultCache, key string, at time.Time) {
		op := getOp(key)
		require.NoError(t, c.Store(&op, &CachedResult{
			Value:    valueOf(t, "1"),
			StoredAt: at,
		}))
	}

	put(c, "old1", clock.t.Add(-2*time.Hour))
	put(c, "old2", clock.t.Add(-3*time.Hour))
	put(c, "new", clock.t.Add(-time.Minute))
	put(other, "old", clock.t.Add(-2*time.Hour))

	n, err := c.Purge(PurgeOptions{MaxAge: time.Hour})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	op := getOp("new")
	_, err = c.Load(&op)
	require.NoError(t, err)
	op = getOp("old1")
	_, err = c.Load(&op)
	require.True(t, common.IsPool(err, common.NotFound))

	n, err = c.Purge(PurgeOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	op = getOp("old")
	_, err = other.Load(&op)
	require.NoError(t, err)
}

func TestPurgeCacheClosed(t *testing.T) {
	nw, client := newTestNetwork(t, 4)
	p, err := Open(context.Background(), newTestConfig(t, nw, client))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.PurgeCache(PurgeOptions{})
	require.True(t, common.IsPool(err, common.Closed))
}
