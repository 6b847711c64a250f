package validator

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

// Node is a simulated validator.
type Node struct {
	Alias string
	Addr  string

	key    *ecdsa.PrivateKey
	blsKey *bls.PrivateKey

	behavior uint32
	lag      uint32
	delay    int64

	network *Network
	logger  *logrus.Entry

	trans    net.Transport
	shutdown chan struct{}
	wg       sync.WaitGroup
	served   uint64
}

func (n *Node) addBody() peers.PoolTxnBody {
	return peers.PoolTxnBody{
		Type:       peers.NodeAdd,
		Alias:      n.Alias,
		Addr:       n.Addr,
		SigningKey: keys.PublicKeyHex(&n.key.PublicKey),
		BLSKey:     bls.PublicKeyHex(n.blsKey.PublicKey()),
	}
}

// Key returns the node's signing key.
func (n *Node) Key() *ecdsa.PrivateKey {
	return n.key
}

// SetBehavior changes how the node answers.
func (n *Node) SetBehavior(b Behavior) {
	atomic.StoreUint32(&n.behavior, uint32(b))
}

// Behavior returns the current behavior.
func (n *Node) Behavior() Behavior {
	return Behavior(atomic.LoadUint32(&n.behavior))
}

// SetLag makes the node answer from the state lag writes behind the latest.
func (n *Node) SetLag(lag int) {
	atomic.StoreUint32(&n.lag, uint32(lag))
}

// SetDelay makes the node wait before answering.
func (n *Node) SetDelay(d time.Duration) {
	atomic.StoreInt64(&n.delay, int64(d))
}

// Served returns the number of client requests the node received.
func (n *Node) Served() uint64 {
	return atomic.LoadUint64(&n.served)
}

// Serve answers the RPCs arriving on trans until Stop is called.
func (n *Node) Serve(trans net.Transport) {
	n.trans = trans
	n.shutdown = make(chan struct{})

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case rpc := <-trans.Consumer():
				n.wg.Add(1)
				go func() {
					defer n.wg.Done()
					n.processRPC(rpc)
				}()
			case <-n.shutdown:
				return
			}
		}
	}()
}

// Stop stops serving and closes the transport.
func (n *Node) Stop() {
	if n.shutdown == nil {
		return
	}
	close(n.shutdown)
	n.wg.Wait()
	n.trans.Close()
	n.shutdown = nil
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.Request:
		n.processRequest(rpc, cmd)
	case *net.LedgerStatusRequest:
		n.processLedgerStatus(rpc, cmd)
	case *net.CatchupRequest:
		n.processCatchup(rpc, cmd)
	default:
		n.logger.WithField("cmd", fmt.Sprintf("%T", rpc.Command)).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func (n *Node) processLedgerStatus(rpc net.RPC, cmd *net.LedgerStatusRequest) {
	n.network.RLock()
	resp := &net.LedgerStatusResponse{
		From:     n.Alias,
		PoolSize: uint64(len(n.network.ledger)),
		PoolRoot: n.network.registry.RootHex(),
	}
	n.network.RUnlock()

	n.logger.WithFields(logrus.Fields{
		"from":      cmd.From,
		"pool_size": resp.PoolSize,
	}).Debug("LedgerStatus")

	if n.Behavior() == Silent {
		return
	}
	rpc.Respond(resp, nil)
}

func (n *Node) processCatchup(rpc net.RPC, cmd *net.CatchupRequest) {
	n.network.RLock()
	size := uint64(len(n.network.ledger))
	var txns []peers.PoolTxn
	if cmd.From >= 1 && cmd.From <= cmd.To {
		to := cmd.To
		if to > size {
			to = size
		}
		if cmd.From <= to {
			txns = append(txns, n.network.ledger[cmd.From-1:to]...)
		}
	}
	n.network.RUnlock()

	n.logger.WithFields(logrus.Fields{
		"from": cmd.From,
		"to":   cmd.To,
		"sent": len(txns),
	}).Debug("Catchup")

	if n.Behavior() == Silent {
		return
	}
	rpc.Respond(&net.CatchupResponse{From: n.Alias, Txns: txns}, nil)
}
