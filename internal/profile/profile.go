package profile

import (
	"sync"

	"github.com/google/uuid"
)

// Profile is the reporting configuration shared by every session of a device class.
//
// Thread Safety:
//   - Current takes a shared lock and is safe from any goroutine.
//   - Reconcile holds the exclusive lock for the whole callback, so readers
//     never see the new snapshot before the callback has planned its work.
//   - Callers must not hold a session lock while calling Current; the
//     reconcile callback takes session locks while this lock is held.
type Profile struct {
	ID uuid.UUID

	mu      sync.RWMutex
	current *Snapshot
	version uint64
}

// New creates a profile with an initial snapshot. A nil snapshot means empty.
func New(id uuid.UUID, snap *Snapshot) *Profile {
	if snap == nil {
		snap = Empty()
	}
	return &Profile{ID: id, current: snap, version: 1}
}

// Current returns the current immutable snapshot and its version. The
// version starts at 1 and increments on every replacement.
func (p *Profile) Current() (*Snapshot, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.version
}

// Reconcile replaces the snapshot wholesale.
//
// fn runs with the exclusive lock held and receives the outgoing and incoming
// snapshots plus the version next will carry; the swap happens only after fn
// returns. Returns false without calling fn when next configures exactly what
// is already current.
func (p *Profile) Reconcile(next *Snapshot, fn func(old, next *Snapshot, version uint64)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current.Equal(next) {
		return false
	}
	if fn != nil {
		fn(p.current, next, p.version+1)
	}
	p.current = next
	p.version++
	return true
}
