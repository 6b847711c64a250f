package peers

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/crypto"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
)

// Registry is a versioned view of the validator nodes. A Registry value is
// never modified once built: Apply returns a new Registry, so readers can keep
// using the one they hold while catch-up advances the pool.
type Registry struct {
	nodes   []NodeInfo
	byAlias map[string]int
	history []PoolTxn
	seq     uint64
	root    []byte
}

// NewRegistry returns an empty registry at sequence 0.
func NewRegistry() *Registry {
	return &Registry{
		byAlias: make(map[string]int),
		root:    crypto.EmptyRoot,
	}
}

// FromHistory rebuilds a registry by applying txns in order to an empty one.
func FromHistory(txns []PoolTxn) (*Registry, error) {
	reg := NewRegistry()
	for i := range txns {
		next, err := reg.Apply(&txns[i])
		if err != nil {
			return nil, err
		}
		reg = next
	}
	return reg, nil
}

// Seq returns the sequence number of the last applied entry.
func (r *Registry) Seq() uint64 {
	return r.seq
}

// Root returns the digest of the registry.
func (r *Registry) Root() []byte {
	return append([]byte{}, r.root...)
}

// RootHex returns the hex encoded digest.
func (r *Registry) RootHex() string {
	return common.EncodeToString(r.root)
}

// Len returns the number of nodes ever admitted.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Nodes returns a copy of all the nodes, in admission order, including
// retired ones.
func (r *Registry) Nodes() []NodeInfo {
	res := make([]NodeInfo, len(r.nodes))
	copy(res, r.nodes)
	return res
}

// Active returns a copy of the active nodes, in admission order.
func (r *Registry) Active() []NodeInfo {
	res := make([]NodeInfo, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.Active {
			res = append(res, n)
		}
	}
	return res
}

// ActiveLen returns the number of active nodes.
func (r *Registry) ActiveLen() int {
	c := 0
	for _, n := range r.nodes {
		if n.Active {
			c++
		}
	}
	return c
}

// Node returns a copy of the node at index i.
func (r *Registry) Node(i int) (NodeInfo, bool) {
	if i < 0 || i >= len(r.nodes) {
		return NodeInfo{}, false
	}
	return r.nodes[i], true
}

// ByAlias returns a copy of the named node and its index.
func (r *Registry) ByAlias(alias string) (NodeInfo, int, bool) {
	i, ok := r.byAlias[alias]
	if !ok {
		return NodeInfo{}, -1, false
	}
	return r.nodes[i], i, true
}

// History returns a copy of the applied entries.
func (r *Registry) History() []PoolTxn {
	res := make([]PoolTxn, len(r.history))
	copy(res, r.history)
	return res
}

// Verify recomputes the digest from the retained history and compares it with
// the stored one.
func (r *Registry) Verify() error {
	root := crypto.EmptyRoot
	for i := range r.history {
		body := &r.history[i].Body
		if body.Seq != uint64(i+1) {
			return common.Errorf(common.SequenceGap, "history entry %d has seq %d", i+1, body.Seq)
		}
		next, err := NextRoot(root, body)
		if err != nil {
			return common.NewPoolErr(common.InvalidTransaction, fmt.Sprintf("history entry %d", body.Seq), err)
		}
		root = next
	}
	if !bytes.Equal(root, r.root) {
		return common.Errorf(common.RootMismatch, "recomputed %s, stored %s",
			common.EncodeToString(root), common.EncodeToString(r.root))
	}
	return nil
}

// Apply returns the registry obtained by applying txn. The receiver is left
// untouched whatever the outcome.
func (r *Registry) Apply(txn *PoolTxn) (*Registry, error) {
	body := &txn.Body

	if body.Seq != r.seq+1 {
		return nil, common.Errorf(common.SequenceGap, "expected seq %d, got %d", r.seq+1, body.Seq)
	}

	next := r.clone()

	var (
		signer *ecdsa.PublicKey
		err    error
	)

	switch body.Type {
	case NodeAdd:
		signer, err = next.applyAdd(body)
	case NodeRemove:
		signer, err = next.applyRemove(body)
	case KeyRotate:
		signer, err = next.applyRotate(body)
	default:
		err = fmt.Errorf("unknown type %q", body.Type)
	}
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidTransaction, txn.String(), err)
	}

	ok, err := txn.Verify(signer)
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidTransaction, txn.String(), err)
	}
	if !ok {
		return nil, common.Errorf(common.InvalidTransaction, "%s: bad signature", txn)
	}

	root, err := NextRoot(r.root, body)
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidTransaction, txn.String(), err)
	}

	embedded, err := txn.RootBytes()
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidTransaction, txn.String()+": root", err)
	}
	if !bytes.Equal(root, embedded) {
		return nil, common.Errorf(common.RootMismatch, "%s: computed %s, entry says %s",
			txn, common.EncodeToString(root), txn.Root)
	}

	next.seq = body.Seq
	next.root = root
	next.history = append(next.history, *txn)

	return next, nil
}

func (r *Registry) applyAdd(body *PoolTxnBody) (*ecdsa.PublicKey, error) {
	node := NodeInfo{
		Alias:      body.Alias,
		Addr:       body.Addr,
		SigningKey: body.SigningKey,
		BLSKey:     body.BLSKey,
		Active:     true,
	}
	if err := node.validate(); err != nil {
		return nil, err
	}

	if i, ok := r.byAlias[body.Alias]; ok {
		// Known alias. Only the node itself may come back, possibly at a new
		// address or with a new multi-signature key.
		existing := r.nodes[i]
		if existing.SigningKey != body.SigningKey {
			return nil, fmt.Errorf("alias %s already bound to another signing key", body.Alias)
		}
		r.nodes[i] = node
		return node.SigningPubKey()
	}

	r.byAlias[node.Alias] = len(r.nodes)
	r.nodes = append(r.nodes, node)

	return node.SigningPubKey()
}

func (r *Registry) applyRemove(body *PoolTxnBody) (*ecdsa.PublicKey, error) {
	i, ok := r.byAlias[body.Alias]
	if !ok {
		return nil, fmt.Errorf("unknown node %s", body.Alias)
	}
	if !r.nodes[i].Active {
		return nil, fmt.Errorf("node %s is already inactive", body.Alias)
	}

	node := r.nodes[i]
	node.Active = false
	r.nodes[i] = node

	return node.SigningPubKey()
}

func (r *Registry) applyRotate(body *PoolTxnBody) (*ecdsa.PublicKey, error) {
	i, ok := r.byAlias[body.Alias]
	if !ok {
		return nil, fmt.Errorf("unknown node %s", body.Alias)
	}

	pub, err := bls.ParsePublicKeyHex(body.BLSKey)
	if err != nil {
		return nil, fmt.Errorf("node %s bls key: %v", body.Alias, err)
	}

	node := r.nodes[i]
	node.BLSKey = body.BLSKey
	node.blsPub = pub
	r.nodes[i] = node

	return node.SigningPubKey()
}

func (r *Registry) clone() *Registry {
	c := &Registry{
		nodes:   make([]NodeInfo, len(r.nodes), len(r.nodes)+1),
		byAlias: make(map[string]int, len(r.byAlias)+1),
		history: r.history[:len(r.history):len(r.history)],
		seq:     r.seq,
		root:    r.root,
	}
	copy(c.nodes, r.nodes)
	for k, v := range r.byAlias {
		c.byAlias[k] = v
	}
	return c
}

// NewTxn builds the entry that would follow the registry, and signs it with
// key. It is used by tools that produce genesis files.
func (r *Registry) NewTxn(body PoolTxnBody, key *ecdsa.PrivateKey) (*PoolTxn, error) {
	body.Seq = r.seq + 1

	root, err := NextRoot(r.root, &body)
	if err != nil {
		return nil, err
	}

	txn := &PoolTxn{
		Body: body,
		Root: common.EncodeToString(root),
	}
	if err := txn.Sign(key); err != nil {
		return nil, err
	}

	return txn, nil
}
