package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/consensus"
	"github.com/mosaicnetworks/ledgerpool/src/crypto"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/store"
)

// GetCacheOptions control how Get uses the result cache.
type GetCacheOptions struct {
	// NoCache skips the cache and always asks the pool.
	NoCache bool
	// NoUpdate only uses cached data, never asking the pool.
	NoUpdate bool
	// NoStore does not store a result fetched from the pool.
	NoStore bool
	// MinFresh only uses cached data stored less than MinFresh ago. Zero
	// accepts any age.
	MinFresh time.Duration
}

// PurgeOptions control which cached results Purge deletes.
type PurgeOptions struct {
	// MaxAge only purges results stored more than MaxAge ago. Zero purges
	// all.
	MaxAge time.Duration
}

// CachedResult is an accepted read result, from the pool or from the cache.
type CachedResult struct {
	Value    consensus.Value
	Metadata consensus.Metadata
	StoredAt time.Time
	// Cached is true when the result was served from the cache.
	Cached bool
}

type cacheEntry struct {
	Kind     string             `cbor:"1,keyasint"`
	Value    []byte             `cbor:"2,keyasint"`
	Metadata consensus.Metadata `cbor:"3,keyasint"`
	StoredAt int64              `cbor:"4,keyasint"`
}

// ResultCache keeps accepted read results in the credential store, keyed by
// the digest of the operation that produced them.
type ResultCache struct {
	store  store.CredentialStore
	prefix string
	now    func() time.Time
}

// NewResultCache creates a ResultCache for the named pool.
func NewResultCache(st store.CredentialStore, pool string) *ResultCache {
	return &ResultCache{
		store:  st,
		prefix: fmt.Sprintf("result/%s/", pool),
		now:    time.Now,
	}
}

func (c *ResultCache) key(op *net.Operation) ([]byte, error) {
	raw, err := common.CanonicalJSON(op)
	if err != nil {
		return nil, err
	}
	return []byte(c.prefix + common.EncodeToString(crypto.SHA256(raw))), nil
}

// Load returns the cached result of op. A missing or undecodable entry is
// NotFound.
func (c *ResultCache) Load(op *net.Operation) (*CachedResult, error) {
	key, err := c.key(op)
	if err != nil {
		return nil, err
	}

	raw, err := c.store.Get(key)
	if err != nil {
		return nil, err
	}

	var e cacheEntry
	if err := cbor.Unmarshal(raw, &e); err != nil {
		return nil, common.NewPoolErr(common.NotFound, "corrupt cached result", err)
	}

	val, err := consensus.DecodeValue(consensus.Kind(e.Kind), e.Value)
	if err != nil {
		return nil, common.NewPoolErr(common.NotFound, "corrupt cached result", err)
	}

	return &CachedResult{
		Value:    val,
		Metadata: e.Metadata,
		StoredAt: time.Unix(0, e.StoredAt),
		Cached:   true,
	}, nil
}

// Store saves the result of op.
func (c *ResultCache) Store(op *net.Operation, res *CachedResult) error {
	key, err := c.key(op)
	if err != nil {
		return err
	}

	raw, err := cbor.Marshal(&cacheEntry{
		Kind:     string(res.Value.Kind),
		Value:    res.Value.Canonical(),
		Metadata: res.Metadata,
		StoredAt: res.StoredAt.UnixNano(),
	})
	if err != nil {
		return common.NewPoolErr(common.StoreUnavailable, "encode cached result", err)
	}

	return c.store.Put(key, raw)
}

// Purge deletes cached results per opts and returns how many were deleted.
func (c *ResultCache) Purge(opts PurgeOptions) (int, error) {
	now := c.now()

	var stale [][]byte
	err := c.store.Scan([]byte(c.prefix), func(key, value []byte) error {
		if opts.MaxAge > 0 {
			var e cacheEntry
			if err := cbor.Unmarshal(value, &e); err == nil &&
				now.Sub(time.Unix(0, e.StoredAt)) <= opts.MaxAge {
				return nil
			}
		}
		stale = append(stale, key)
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i, key := range stale {
		if err := c.store.Delete(key); err != nil {
			return i, err
		}
	}

	return len(stale), nil
}

// Get answers a read operation, from the result cache when opts allow it,
// otherwise from the pool. Rejections are returned as results but never
// cached.
func (p *Pool) Get(ctx context.Context, op net.Operation, opts GetCacheOptions) (*CachedResult, error) {
	if !opts.NoCache {
		cached, err := p.results.Load(&op)
		switch {
		case err == nil:
			if opts.MinFresh <= 0 || p.results.now().Sub(cached.StoredAt) <= opts.MinFresh {
				return cached, nil
			}
			if opts.NoUpdate {
				return nil, common.Errorf(common.NotFound, "cached result older than %v", opts.MinFresh)
			}
		case common.IsPool(err, common.NotFound):
			if opts.NoUpdate {
				return nil, err
			}
		default:
			p.logger.WithError(err).Warn("Reading result cache")
			if opts.NoUpdate {
				return nil, err
			}
		}
	}

	req, err := p.NewRequest(op, net.ReadRequest)
	if err != nil {
		return nil, err
	}

	res, err := p.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &CachedResult{
		Value:    res.Value,
		Metadata: res.Metadata(),
		StoredAt: p.results.now(),
	}

	if !opts.NoStore && !res.Rejected() {
		if err := p.results.Store(&op, out); err != nil {
			p.logger.WithError(err).Warn("Storing result")
		}
	}

	return out, nil
}

// PurgeCache deletes cached read results.
func (p *Pool) PurgeCache(opts PurgeOptions) (int, error) {
	if p.isClosed() {
		return 0, common.Errorf(common.Closed, "pool %s", p.conf.PoolName)
	}
	return p.results.Purge(opts)
}
