package store

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

const snapshotVersion = 1

// snapshot is the persisted form of a registry. Entries are kept in their JSON
// wire form so that signatures and attestations survive unchanged.
type snapshot struct {
	Version uint64   `cbor:"1,keyasint"`
	Seq     uint64   `cbor:"2,keyasint"`
	Root    []byte   `cbor:"3,keyasint"`
	Entries [][]byte `cbor:"4,keyasint"`
}

// Cache persists the verified pool ledger of one pool in a CredentialStore.
type Cache struct {
	store CredentialStore
	key   []byte
}

// NewCache returns a Cache for the named pool.
func NewCache(store CredentialStore, pool string) *Cache {
	return &Cache{
		store: store,
		key:   []byte(fmt.Sprintf("pool/%s/snapshot", pool)),
	}
}

// Load rebuilds the last saved registry by replaying its history. A missing
// snapshot, or one that fails to decode or replay to its recorded seq and
// root, is reported as NotFound: the caller falls back to genesis and
// catch-up.
func (c *Cache) Load() (*peers.Registry, error) {
	raw, err := c.store.Get(c.key)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := cbor.Unmarshal(raw, &snap); err != nil {
		return nil, common.NewPoolErr(common.NotFound, "corrupt pool snapshot", err)
	}
	if snap.Version != snapshotVersion {
		return nil, common.Errorf(common.NotFound, "pool snapshot version %d", snap.Version)
	}

	txns := make([]peers.PoolTxn, len(snap.Entries))
	for i, e := range snap.Entries {
		if err := txns[i].Unmarshal(e); err != nil {
			return nil, common.NewPoolErr(common.NotFound,
				fmt.Sprintf("corrupt pool snapshot entry %d", i), err)
		}
	}

	reg, err := peers.FromHistory(txns)
	if err != nil {
		return nil, common.NewPoolErr(common.NotFound, "pool snapshot does not replay", err)
	}

	if err := reg.Verify(); err != nil {
		return nil, common.NewPoolErr(common.NotFound, "pool snapshot history", err)
	}

	if reg.Seq() != snap.Seq || !bytes.Equal(reg.Root(), snap.Root) {
		return nil, common.Errorf(common.NotFound,
			"pool snapshot replays to seq %d root %s, recorded seq %d root %s",
			reg.Seq(), reg.RootHex(), snap.Seq, common.EncodeToString(snap.Root))
	}

	return reg, nil
}

// Save persists reg, replacing any previous snapshot.
func (c *Cache) Save(reg *peers.Registry) error {
	history := reg.History()
	snap := snapshot{
		Version: snapshotVersion,
		Seq:     reg.Seq(),
		Root:    reg.Root(),
		Entries: make([][]byte, len(history)),
	}
	for i := range history {
		e, err := history[i].Marshal()
		if err != nil {
			return common.NewPoolErr(common.StoreUnavailable, "encode pool entry", err)
		}
		snap.Entries[i] = e
	}

	raw, err := cbor.Marshal(&snap)
	if err != nil {
		return common.NewPoolErr(common.StoreUnavailable, "encode pool snapshot", err)
	}

	return c.store.Put(c.key, raw)
}

// Clear deletes the snapshot.
func (c *Cache) Clear() error {
	return c.store.Delete(c.key)
}
