package pool

import (
	"sync"
	"sync/atomic"
)

// State captures the catch-up state of a Pool: Synced, CatchingUp, Failed, or
// Closed.
type State uint32

const (
	// Synced is the initial state; the registry is assumed current.
	Synced State = iota
	// CatchingUp means pool ledger entries are being fetched and applied.
	CatchingUp
	// Failed means the last catch-up stopped on an error. The verified
	// prefix it applied is kept.
	Failed
	// Closed means the pool has been closed.
	Closed
)

func (s State) String() string {
	switch s {
	case Synced:
		return "Synced"
	case CatchingUp:
		return "CatchingUp"
	case Failed:
		return "Failed"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.goFunc
const WGLIMIT = 20

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32

	// stopped is set by stopRoutines; goFunc refuses new goroutines after it
	wgLock  sync.Mutex
	stopped bool

	reasonLock sync.Mutex
	reason     error
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// setFailed records why catch-up stopped.
func (b *state) setFailed(reason error) {
	b.reasonLock.Lock()
	b.reason = reason
	b.reasonLock.Unlock()
	b.setState(Failed)
}

func (b *state) failReason() error {
	b.reasonLock.Lock()
	defer b.reasonLock.Unlock()
	return b.reason
}

// Start a goroutine and add it to waitgroup. Calls beyond WGLIMIT, or after
// stopRoutines, are dropped.
func (b *state) goFunc(f func()) bool {
	b.wgLock.Lock()
	defer b.wgLock.Unlock()

	if b.stopped {
		return false
	}
	tempWgCount := atomic.LoadInt32(&b.wgCount)
	if tempWgCount >= WGLIMIT {
		return false
	}
	b.wg.Add(1)
	atomic.AddInt32(&b.wgCount, 1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
	return true
}

// stopRoutines prevents new goroutines and waits for the running ones.
func (b *state) stopRoutines() {
	b.wgLock.Lock()
	b.stopped = true
	b.wgLock.Unlock()

	b.wg.Wait()
}
