package pool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoFuncLimit(t *testing.T) {
	var s state

	release := make(chan struct{})
	started := 0
	for i := 0; i < WGLIMIT+5; i++ {
		if s.goFunc(func() { <-release }) {
			started++
		}
	}
	require.Equal(t, WGLIMIT, started)

	close(release)
	s.stopRoutines()
	require.Equal(t, int32(0), atomic.LoadInt32(&s.wgCount))
}

func TestGoFuncAfterStop(t *testing.T) {
	var s state

	var ran int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.goFunc(func() { atomic.AddInt32(&ran, 1) })
		}()
	}
	s.stopRoutines()
	wg.Wait()

	// whatever was started before the stop has finished
	done := atomic.LoadInt32(&ran)
	require.False(t, s.goFunc(func() { atomic.AddInt32(&ran, 1) }))
	require.Equal(t, done, atomic.LoadInt32(&ran))
}
