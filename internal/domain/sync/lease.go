package sync

import "sync"

// leaseRegistry serializes engine runs per connection. The lease must
// be held for the entire page loop; two concurrent runs racing on the
// same cursor would silently lose one advance along with its
// transactions.
type leaseRegistry struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func newLeaseRegistry() *leaseRegistry {
	return &leaseRegistry{held: make(map[int64]struct{})}
}

// TryAcquire takes the lease for a connection, or reports false when
// another run already holds it. Never blocks.
func (l *leaseRegistry) TryAcquire(connectionID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[connectionID]; taken {
		return false
	}
	l.held[connectionID] = struct{}{}
	return true
}

func (l *leaseRegistry) Release(connectionID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, connectionID)
}
