package net

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// NewInmemAddr returns a new in-memory addr with
// a randomly generate UUID as the ID.
func NewInmemAddr() string {
	return generateUUID()
}

// generateUUID is used to generate a random UUID.
func generateUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// InmemTransport Implements the Transport interface, to allow the pool to be
// tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
}

// NewInmemTransport is used to initialize a new transport
// and generates a random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Submit implements the Transport interface.
func (i *InmemTransport) Submit(ctx context.Context, target string, args *Request, resp *Reply) error {
	rpcResp, err := i.makeRPC(ctx, target, args)
	if err != nil {
		return err
	}

	out, ok := rpcResp.Response.(*Reply)
	if !ok {
		return common.Errorf(common.NetworkUnavailable, "%s: unexpected response %T", target, rpcResp.Response)
	}
	*resp = *out
	return nil
}

// LedgerStatus implements the Transport interface.
func (i *InmemTransport) LedgerStatus(ctx context.Context, target string, args *LedgerStatusRequest, resp *LedgerStatusResponse) error {
	rpcResp, err := i.makeRPC(ctx, target, args)
	if err != nil {
		return err
	}

	out, ok := rpcResp.Response.(*LedgerStatusResponse)
	if !ok {
		return common.Errorf(common.NetworkUnavailable, "%s: unexpected response %T", target, rpcResp.Response)
	}
	*resp = *out
	return nil
}

// Catchup implements the Transport interface.
func (i *InmemTransport) Catchup(ctx context.Context, target string, args *CatchupRequest, resp *CatchupResponse) error {
	rpcResp, err := i.makeRPC(ctx, target, args)
	if err != nil {
		return err
	}

	out, ok := rpcResp.Response.(*CatchupResponse)
	if !ok {
		return common.Errorf(common.NetworkUnavailable, "%s: unexpected response %T", target, rpcResp.Response)
	}
	*resp = *out
	return nil
}

func (i *InmemTransport) makeRPC(ctx context.Context, target string, args interface{}) (rpcResp RPCResponse, err error) {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		err = common.Errorf(common.NetworkUnavailable, "failed to connect to peer: %v", target)
		return
	}

	// Buffered so that a late response does not block the responder
	respCh := make(chan RPCResponse, 1)

	select {
	case peer.consumerCh <- RPC{
		Command:  args,
		RespChan: respCh,
	}:
	case <-ctx.Done():
		err = classify(ctx, target, ctx.Err())
		return
	}

	select {
	case rpcResp = <-respCh:
		if rpcResp.Error != nil {
			err = &RemoteError{Target: target, Msg: rpcResp.Error.Error()}
		}
	case <-ctx.Done():
		err = classify(ctx, target, ctx.Err())
	}
	return
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}
