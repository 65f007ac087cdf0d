package flag

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSPSCSetBeforeAwait(t *testing.T) {
	var f SPSC
	f.Set()
	require.True(t, f.IsSet())
	f.Await() // must not block
}

func TestSPSCAwaitThenSet(t *testing.T) {
	var f SPSC
	done := make(chan struct{})
	go func() {
		f.Await()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	f.Set()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never resumed")
	}
}

func TestSPSCResetThenAwaitBlocks(t *testing.T) {
	var f SPSC
	f.Set()
	f.Reset()
	require.False(t, f.IsSet())

	done := make(chan struct{})
	go func() {
		f.Await()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Await returned before a fresh Set")
	case <-time.After(50 * time.Millisecond):
	}
	f.Set()
	<-done
}

func TestSPSCConcurrentAwaitPanics(t *testing.T) {
	var f SPSC
	started := make(chan struct{})
	go func() {
		close(started)
		f.Await()
	}()
	<-started
	time.Sleep(10 * time.Millisecond)
	require.Panics(t, func() { f.Await() })
	f.Set()
}

func TestMPMCBroadcastsToAllWaiters(t *testing.T) {
	var f MPMC
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			f.Await()
		}()
	}

	time.Sleep(20 * time.Millisecond)
	f.Set()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all MPMC waiters resumed")
	}
}

func TestMPMCAwaitAfterSetDoesNotBlock(t *testing.T) {
	var f MPMC
	f.Set()
	done := make(chan struct{})
	go func() {
		f.Await()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await blocked despite flag already set")
	}
}
