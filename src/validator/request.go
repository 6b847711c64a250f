package validator

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/net"
)

// Operation types understood by simulated validators.
const (
	OpGet    = "GET"
	OpPut    = "PUT"
	OpStatus = "STATUS"
)

func (n *Node) processRequest(rpc net.RPC, req *net.Request) {
	atomic.AddUint64(&n.served, 1)

	if d := time.Duration(atomic.LoadInt64(&n.delay)); d > 0 {
		select {
		case <-time.After(d):
		case <-n.shutdown:
			return
		}
	}

	behavior := n.Behavior()
	if behavior == Silent {
		return
	}

	reply, err := n.buildReply(req)
	if err != nil {
		n.logger.WithError(err).Error("Building reply")
		rpc.Respond(nil, err)
		return
	}

	n.misbehave(behavior, reply)

	signer := n.key
	if behavior == BadSignature {
		signer, _ = keys.GenerateECDSAKey()
	}

	msg, err := reply.SigningBytes()
	if err == nil {
		reply.Signature, err = keys.Sign(signer, msg)
	}
	if err != nil {
		rpc.Respond(nil, err)
		return
	}

	rpc.Respond(reply, nil)
}

func (n *Node) buildReply(req *net.Request) (*net.Reply, error) {
	nw := n.network

	switch req.Operation.Type {
	case OpGet:
		// tries cache hashes as they are read, so even reads are exclusive
		nw.Lock()
		defer nw.Unlock()

		snap := nw.snapshotAt(int(atomic.LoadUint32(&n.lag)))

		raw, err := snap.state.Get(req.Operation.Key)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return n.reject(req, fmt.Sprintf("key %s not found", req.Operation.Key)), nil
		}

		sp, err := snap.state.Prove(req.Operation.Key)
		if err != nil {
			return nil, err
		}

		ms := *snap.multiSig
		return &net.Reply{
			Body: net.ReplyBody{
				ReqID:          req.ReqID,
				From:           n.Alias,
				Op:             net.ReplyOp,
				Result:         raw,
				StateProof:     sp,
				MultiSignature: &ms,
				LedgerSeq:      snap.ledgerSeq,
				PoolSize:       uint64(len(nw.ledger)),
			},
		}, nil

	case OpPut:
		nw.Lock()
		defer nw.Unlock()

		w, err := nw.applyWrite(req)
		if err != nil {
			return n.reject(req, err.Error()), nil
		}

		var data interface{}
		if err := common.DecodeJSON(w.data, &data); err != nil {
			return nil, err
		}

		receipt, err := json.Marshal(map[string]interface{}{
			"seq_no":   w.seqNo,
			"txn_time": w.txnTime,
			"type":     OpPut,
			"data": map[string]interface{}{
				"key":   w.key,
				"value": data,
			},
		})
		if err != nil {
			return nil, err
		}

		return &net.Reply{
			Body: net.ReplyBody{
				ReqID:     req.ReqID,
				From:      n.Alias,
				Op:        net.ReplyOp,
				Kind:      "txn",
				Result:    receipt,
				LedgerSeq: nw.snapshots[len(nw.snapshots)-1].ledgerSeq,
				PoolSize:  uint64(len(nw.ledger)),
			},
		}, nil

	case OpStatus:
		nw.Lock()
		defer nw.Unlock()

		snap := nw.snapshotAt(int(atomic.LoadUint32(&n.lag)))

		status, err := json.Marshal(map[string]interface{}{
			"ledger_seq": snap.ledgerSeq,
			"pool_size":  len(nw.ledger),
			"state_root": snap.state.RootHash(),
		})
		if err != nil {
			return nil, err
		}

		return &net.Reply{
			Body: net.ReplyBody{
				ReqID:     req.ReqID,
				From:      n.Alias,
				Op:        net.ReplyOp,
				Kind:      "status",
				Result:    status,
				LedgerSeq: snap.ledgerSeq,
				PoolSize:  uint64(len(nw.ledger)),
			},
		}, nil

	default:
		nw.RLock()
		defer nw.RUnlock()
		return n.reject(req, fmt.Sprintf("unknown operation %q", req.Operation.Type)), nil
	}
}

// reject must be called with the network lock held.
func (n *Node) reject(req *net.Request, reason string) *net.Reply {
	return &net.Reply{
		Body: net.ReplyBody{
			ReqID:     req.ReqID,
			From:      n.Alias,
			Op:        net.RejectOp,
			Reason:    reason,
			LedgerSeq: n.network.snapshots[len(n.network.snapshots)-1].ledgerSeq,
			PoolSize:  uint64(len(n.network.ledger)),
		},
	}
}

func (n *Node) misbehave(b Behavior, reply *net.Reply) {
	body := &reply.Body
	switch b {
	case TamperProof:
		if body.StateProof != nil && len(body.StateProof.Nodes) > 0 {
			first := append([]byte{}, body.StateProof.Nodes[0]...)
			first[len(first)/2] ^= 0x01
			nodes := append([][]byte{first}, body.StateProof.Nodes[1:]...)
			tampered := *body.StateProof
			tampered.Nodes = nodes
			body.StateProof = &tampered
		}
	case WrongResult:
		if body.Result != nil {
			body.Result = []byte(`"forged"`)
		}
	case Unattested:
		body.MultiSignature = nil
	}
}

// snapshotAt returns the state lag writes behind the latest. It must be
// called with the network lock held.
func (nw *Network) snapshotAt(lag int) *snapshot {
	i := len(nw.snapshots) - 1 - lag
	if i < 0 {
		i = 0
	}
	return nw.snapshots[i]
}

// applyWrite applies a PUT once per request id; retries get the original
// receipt. It must be called with the network write lock held.
func (nw *Network) applyWrite(req *net.Request) (*write, error) {
	if w, ok := nw.writes[req.ReqID]; ok {
		return w, nil
	}

	if req.Operation.Key == "" {
		return nil, fmt.Errorf("missing key")
	}

	raw, err := common.CanonicalizeJSON(req.Operation.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %v", err)
	}

	seq, err := nw.put(req.Operation.Key, raw)
	if err != nil {
		return nil, err
	}

	w := &write{
		seqNo:   seq,
		txnTime: nw.snapshots[len(nw.snapshots)-1].multiSig.Value.Timestamp,
		key:     req.Operation.Key,
		data:    raw,
	}
	nw.writes[req.ReqID] = w

	return w, nil
}
