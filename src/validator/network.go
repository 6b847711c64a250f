package validator

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/crypto"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
	"github.com/mosaicnetworks/ledgerpool/src/proof"
)

// LedgerID identifies the domain ledger in multi-signatures.
const LedgerID = 1

// snapshot is one attested version of the ledger state.
type snapshot struct {
	state     *proof.StateTrie
	ledgerSeq uint64
	multiSig  *proof.MultiSignature
}

// write is the receipt of an applied write, kept to answer retries.
type write struct {
	seqNo   uint64
	txnTime uint64
	key     string
	data    []byte
}

// Network is a simulated pool of validators sharing one ledger.
type Network struct {
	sync.RWMutex

	nodes   []*Node
	byAlias map[string]*Node

	ledger   []peers.PoolTxn
	registry *peers.Registry

	snapshots []*snapshot
	writes    map[uint64]*write

	addr   func(alias string) string
	clock  func() time.Time
	logger *logrus.Entry
}

// Config describes a Network to create.
type Config struct {
	// Size is the number of nodes in the genesis.
	Size int
	// Addr returns the network address of a node. Nil uses the alias.
	Addr func(alias string) string
	// Logger. Nil discards logs.
	Logger *logrus.Entry
}

// NewNetwork creates keys for every node, builds the genesis, and an empty
// attested ledger state.
func NewNetwork(conf Config) (*Network, error) {
	if conf.Size <= 0 {
		return nil, fmt.Errorf("network size must be positive")
	}

	logger := conf.Logger
	if logger == nil {
		l := logrus.New()
		l.Level = logrus.PanicLevel
		logger = logrus.NewEntry(l)
	}

	addr := conf.Addr
	if addr == nil {
		addr = func(alias string) string { return alias }
	}

	n := &Network{
		byAlias:  make(map[string]*Node),
		registry: peers.NewRegistry(),
		writes:   make(map[uint64]*write),
		addr:     addr,
		clock:    time.Now,
		logger:   logger,
	}

	for i := 1; i <= conf.Size; i++ {
		node, err := n.newNode(fmt.Sprintf("Node%d", i))
		if err != nil {
			return nil, err
		}

		txn, err := n.registry.NewTxn(node.addBody(), node.key)
		if err != nil {
			return nil, err
		}

		if err := n.commit(txn); err != nil {
			return nil, err
		}
	}

	n.snapshots = []*snapshot{{state: proof.NewStateTrie()}}
	if err := n.attestLatest(); err != nil {
		return nil, err
	}

	return n, nil
}

func (n *Network) newNode(alias string) (*Node, error) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	blsKey, err := bls.GenerateKey(nil)
	if err != nil {
		return nil, err
	}

	node := &Node{
		Alias:   alias,
		Addr:    n.addr(alias),
		key:     key,
		blsKey:  blsKey,
		network: n,
		logger:  n.logger.WithField("node", alias),
	}

	n.nodes = append(n.nodes, node)
	n.byAlias[alias] = node

	return node, nil
}

// commit applies txn to the registry and appends it to the pool ledger.
func (n *Network) commit(txn *peers.PoolTxn) error {
	next, err := n.registry.Apply(txn)
	if err != nil {
		return err
	}
	n.registry = next
	n.ledger = append(n.ledger, *txn)
	return nil
}

// Nodes returns the simulated nodes, in admission order.
func (n *Network) Nodes() []*Node {
	n.RLock()
	defer n.RUnlock()
	return append([]*Node{}, n.nodes...)
}

// Node returns the named node.
func (n *Network) Node(alias string) *Node {
	n.RLock()
	defer n.RUnlock()
	return n.byAlias[alias]
}

// Genesis returns the genesis entries, without attestations.
func (n *Network) Genesis(size int) []peers.PoolTxn {
	n.RLock()
	defer n.RUnlock()

	res := make([]peers.PoolTxn, size)
	copy(res, n.ledger[:size])
	for i := range res {
		res[i].Attestation = nil
	}
	return res
}

// PoolLedger returns a copy of the whole pool ledger.
func (n *Network) PoolLedger() []peers.PoolTxn {
	n.RLock()
	defer n.RUnlock()
	return append([]peers.PoolTxn{}, n.ledger...)
}

// Registry returns the registry as validators see it.
func (n *Network) Registry() *peers.Registry {
	n.RLock()
	defer n.RUnlock()
	return n.registry
}

// SetClock replaces the clock used to timestamp attestations.
func (n *Network) SetClock(clock func() time.Time) {
	n.Lock()
	defer n.Unlock()
	n.clock = clock
}

// LedgerSeq returns the number of writes applied to the ledger.
func (n *Network) LedgerSeq() uint64 {
	n.RLock()
	defer n.RUnlock()
	return n.snapshots[len(n.snapshots)-1].ledgerSeq
}

// Put writes the canonical JSON encoding of value under key, producing a new
// attested state.
func (n *Network) Put(key string, value interface{}) error {
	raw, err := common.CanonicalJSON(value)
	if err != nil {
		return err
	}

	n.Lock()
	defer n.Unlock()

	_, err = n.put(key, raw)
	return err
}

func (n *Network) put(key string, raw []byte) (uint64, error) {
	latest := n.snapshots[len(n.snapshots)-1]

	state := latest.state.Copy()
	if err := state.Put(key, raw); err != nil {
		return 0, err
	}

	n.snapshots = append(n.snapshots, &snapshot{
		state:     state,
		ledgerSeq: latest.ledgerSeq + 1,
	})

	if err := n.attestLatest(); err != nil {
		return 0, err
	}

	return latest.ledgerSeq + 1, nil
}

// attestLatest multi-signs the latest state with every active node.
func (n *Network) attestLatest() error {
	snap := n.snapshots[len(n.snapshots)-1]

	value := proof.MultiSignatureValue{
		LedgerID:          LedgerID,
		StateRootHash:     snap.state.RootHash(),
		PoolStateRootHash: n.registry.RootHex(),
		TxnRootHash:       common.EncodeToString(crypto.SHA256([]byte(fmt.Sprintf("txn-%d", snap.ledgerSeq)))),
		Timestamp:         uint64(n.clock().Unix()),
	}

	msg, err := value.SigningBytes()
	if err != nil {
		return err
	}

	att, err := n.attest(msg)
	if err != nil {
		return err
	}

	snap.multiSig = &proof.MultiSignature{
		Attestation: *att,
		Value:       value,
	}

	return nil
}

// attest signs msg with the BLS keys of all active nodes.
func (n *Network) attest(msg []byte) (*peers.Attestation, error) {
	var (
		aliases []string
		blsKeys []*bls.PrivateKey
	)
	for _, info := range n.registry.Active() {
		node := n.byAlias[info.Alias]
		aliases = append(aliases, node.Alias)
		blsKeys = append(blsKeys, node.blsKey)
	}
	return peers.Attest(msg, aliases, blsKeys)
}

// appendPoolTxn builds, attests, and commits a pool ledger entry signed by
// key.
func (n *Network) appendPoolTxn(body peers.PoolTxnBody, key *ecdsa.PrivateKey) error {
	txn, err := n.registry.NewTxn(body, key)
	if err != nil {
		return err
	}

	root, err := txn.RootBytes()
	if err != nil {
		return err
	}

	att, err := n.attest(root)
	if err != nil {
		return err
	}
	txn.Attestation = att

	if err := n.commit(txn); err != nil {
		return err
	}

	return n.attestLatest()
}

// AddNode admits a new node to the pool.
func (n *Network) AddNode(alias string) (*Node, error) {
	n.Lock()
	defer n.Unlock()

	if _, ok := n.byAlias[alias]; ok {
		return nil, fmt.Errorf("node %s already exists", alias)
	}

	node, err := n.newNode(alias)
	if err != nil {
		return nil, err
	}

	if err := n.appendPoolTxn(node.addBody(), node.key); err != nil {
		return nil, err
	}

	return node, nil
}

// RemoveNode retires a node.
func (n *Network) RemoveNode(alias string) error {
	n.Lock()
	defer n.Unlock()

	node, ok := n.byAlias[alias]
	if !ok {
		return fmt.Errorf("unknown node %s", alias)
	}

	return n.appendPoolTxn(peers.PoolTxnBody{
		Type:  peers.NodeRemove,
		Alias: alias,
	}, node.key)
}

// RotateKey gives a node a new multi-signature key.
func (n *Network) RotateKey(alias string) error {
	n.Lock()
	defer n.Unlock()

	node, ok := n.byAlias[alias]
	if !ok {
		return fmt.Errorf("unknown node %s", alias)
	}

	blsKey, err := bls.GenerateKey(nil)
	if err != nil {
		return err
	}

	// entries are attested by the keys in force before them
	if err := n.appendPoolTxn(peers.PoolTxnBody{
		Type:   peers.KeyRotate,
		Alias:  alias,
		BLSKey: bls.PublicKeyHex(blsKey.PublicKey()),
	}, node.key); err != nil {
		return err
	}

	node.blsKey = blsKey

	return n.attestLatest()
}
