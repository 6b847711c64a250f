package net

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
	"github.com/mosaicnetworks/ledgerpool/src/proof"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

// newTestPair returns a serving transport and a client transport that can
// reach it at the returned address.
func newTestPair(ttype int, t *testing.T) (server Transport, client Transport, addr string) {
	switch ttype {
	case INMEM:
		addr1, it1 := NewInmemTransport("")
		_, it2 := NewInmemTransport("")
		it2.Connect(addr1, it1)
		return it1, it2, addr1
	case TCP:
		tt, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t, common.TestLogLevel))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		ct := NewTCPClientTransport(2, time.Second, common.NewTestEntry(t, common.TestLogLevel))
		return tt, ct, tt.LocalAddr()
	default:
		panic("Unknown transport type")
	}
}

func testReply() *Reply {
	return &Reply{
		Body: ReplyBody{
			ReqID:  7,
			From:   "node1",
			Op:     ReplyOp,
			Kind:   "scalar",
			Result: []byte(`42`),
			StateProof: &proof.StateProof{
				RootHash: "0XAB",
				Key:      "answer",
				Nodes:    [][]byte{{1, 2, 3}, {4, 5}},
			},
			MultiSignature: &proof.MultiSignature{
				Attestation: peers.Attestation{
					Participants: []string{"node1", "node2", "node3"},
					Signature:    "0X0102",
				},
				Value: proof.MultiSignatureValue{
					LedgerID:      1,
					StateRootHash: "0XAB",
					Timestamp:     1700000000,
				},
			},
			LedgerSeq: 12,
			PoolSize:  4,
		},
		Signature: "abc|def",
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		server, client, _ := newTestPair(ttype, t)
		if err := client.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
		if err := server.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_Submit(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		server, client, addr := newTestPair(ttype, t)

		args := Request{
			ReqID:           7,
			Identifier:      "V4SGRU86Z58d6TV7PBUe6f",
			Operation:       Operation{Type: "GET", Key: "answer"},
			ProtocolVersion: 2,
			Class:           ReadRequest,
			Signature:       "sig",
		}
		resp := testReply()

		go func() {
			select {
			case rpc := <-server.Consumer():
				req := rpc.Command.(*Request)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}
				rpc.Respond(resp, nil)
			case <-time.After(time.Second):
				t.Errorf("timeout")
			}
		}()

		var out Reply
		if err := client.Submit(context.Background(), addr, &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(&out, resp) {
			t.Fatalf("transport %d: reply mismatch: %#v %#v", ttype, out, *resp)
		}

		client.Close()
		server.Close()
	}
}

func TestTransport_CatchupAndStatus(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		server, client, addr := newTestPair(ttype, t)

		status := &LedgerStatusResponse{From: "node1", PoolSize: 5, PoolRoot: "0XFF"}
		catchup := &CatchupResponse{
			From: "node1",
			Txns: []peers.PoolTxn{
				{
					Body:      peers.PoolTxnBody{Seq: 5, Type: peers.NodeRemove, Alias: "node4"},
					Root:      "0XFF",
					Signature: "a|b",
					Attestation: &peers.Attestation{
						Participants: []string{"node1"},
						Signature:    "0X01",
					},
				},
			},
		}

		go func() {
			for i := 0; i < 2; i++ {
				rpc := <-server.Consumer()
				switch cmd := rpc.Command.(type) {
				case *LedgerStatusRequest:
					rpc.Respond(status, nil)
				case *CatchupRequest:
					if cmd.From != 5 || cmd.To != 5 {
						t.Errorf("wrong catchup range %d-%d", cmd.From, cmd.To)
					}
					rpc.Respond(catchup, nil)
				}
			}
		}()

		var outStatus LedgerStatusResponse
		if err := client.LedgerStatus(context.Background(), addr, &LedgerStatusRequest{From: "client"}, &outStatus); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(&outStatus, status) {
			t.Fatalf("status mismatch: %#v", outStatus)
		}

		var outCatchup CatchupResponse
		if err := client.Catchup(context.Background(), addr, &CatchupRequest{From: 5, To: 5}, &outCatchup); err != nil {
			t.Fatalf("err: %v", err)
		}
		if !reflect.DeepEqual(&outCatchup, catchup) {
			t.Fatalf("catchup mismatch: %#v", outCatchup)
		}

		client.Close()
		server.Close()
	}
}

func TestTransport_RemoteError(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		server, client, addr := newTestPair(ttype, t)

		go func() {
			rpc := <-server.Consumer()
			rpc.Respond(nil, errors.New("unknown operation"))
		}()

		var out Reply
		err := client.Submit(context.Background(), addr, &Request{ReqID: 1}, &out)

		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("transport %d: expected RemoteError, got %v", ttype, err)
		}
		if remote.Msg != "unknown operation" {
			t.Fatalf("wrong remote message %q", remote.Msg)
		}

		client.Close()
		server.Close()
	}
}

func TestTransport_Timeout(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		server, client, addr := newTestPair(ttype, t)

		// consume the request but never answer
		go func() {
			<-server.Consumer()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		start := time.Now()

		var out Reply
		err := client.Submit(ctx, addr, &Request{ReqID: 1}, &out)
		cancel()

		if !common.IsPool(err, common.Timeout) {
			t.Fatalf("transport %d: expected Timeout, got %v", ttype, err)
		}
		if time.Since(start) > time.Second {
			t.Fatalf("transport %d: timeout took too long", ttype)
		}

		client.Close()
		server.Close()
	}
}

func TestTransport_Cancel(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		server, client, addr := newTestPair(ttype, t)

		go func() {
			<-server.Consumer()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		var out Reply
		err := client.Submit(ctx, addr, &Request{ReqID: 1}, &out)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("transport %d: expected context.Canceled, got %v", ttype, err)
		}

		client.Close()
		server.Close()
	}
}

func TestTransport_Unreachable(t *testing.T) {
	_, it := NewInmemTransport("")
	var out Reply
	err := it.Submit(context.Background(), "nowhere", &Request{}, &out)
	if !common.IsPool(err, common.NetworkUnavailable) {
		t.Fatalf("expected NetworkUnavailable, got %v", err)
	}

	ct := NewTCPClientTransport(1, time.Second, common.NewTestEntry(t, common.TestLogLevel))
	defer ct.Close()
	// port 1 is reserved and nothing listens on it
	err = ct.Submit(context.Background(), "127.0.0.1:1", &Request{}, &out)
	if !common.IsPool(err, common.NetworkUnavailable) {
		t.Fatalf("expected NetworkUnavailable, got %v", err)
	}
}
