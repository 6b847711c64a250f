package net

import (
	"context"
	"errors"
	"net"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// Transport provides an interface for network transports to allow the pool
// client to communicate with validator nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// Submit, LedgerStatus, and Catchup send the appropriate RPC to the
	// target node. They return when the response arrives or ctx is done.

	Submit(ctx context.Context, target string, args *Request, resp *Reply) error

	LedgerStatus(ctx context.Context, target string, args *LedgerStatusRequest, resp *LedgerStatusResponse) error

	Catchup(ctx context.Context, target string, args *CatchupRequest, resp *CatchupResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}

// RemoteError is an error reported by the remote node itself, as opposed to a
// failure to reach it.
type RemoteError struct {
	Target string
	Msg    string
}

func (e *RemoteError) Error() string {
	return e.Target + ": " + e.Msg
}

// classify maps a failed exchange with target onto the pool error kinds.
// Cancellation is returned untouched: it is the caller's decision, not a
// failure of the node.
func classify(ctx context.Context, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || (ctx.Err() == context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return common.NewPoolErr(common.Timeout, target, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.NewPoolErr(common.Timeout, target, err)
	}
	var remote *RemoteError
	if common.AsPool(err) != nil || errors.As(err, &remote) {
		return err
	}
	return common.NewPoolErr(common.NetworkUnavailable, target, err)
}
