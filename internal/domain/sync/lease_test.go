package sync

import (
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeaseRegistry(t *testing.T) {
	leases := newLeaseRegistry()

	assert.True(t, leases.TryAcquire(1))
	assert.False(t, leases.TryAcquire(1), "second acquire must fail while held")
	assert.True(t, leases.TryAcquire(2), "different connections do not contend")

	leases.Release(1)
	assert.True(t, leases.TryAcquire(1), "released lease is reacquirable")
}

func TestLeaseRegistry_SingleWinnerUnderContention(t *testing.T) {
	leases := newLeaseRegistry()

	const goroutines = 32
	var wg gosync.WaitGroup
	var winners gosync.Map
	wins := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if leases.TryAcquire(7) {
				winners.Store(n, true)
				wins <- struct{}{}
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, wins, 1, "exactly one goroutine wins the lease")
}
