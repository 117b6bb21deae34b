// Package gossip maintains the cluster's membership snapshot: a live
// view of which peers are currently reachable, kept up to date by two
// long-lived tasks that never talk to each other except through the
// snapshot's lock.
package gossip

import (
	"sync"
)

// Snapshot is the shared, mutable mapping from node identifier to a
// "host:port" address: the self entry holds the client address it was
// seeded with, and each peer entry holds the remote address the
// listener observed on that peer's latest gossip connection. The talker only removes
// entries; the listener only inserts or updates them. Both hold the
// same exclusive lock for their entire critical section.
type Snapshot struct {
	mu   sync.Mutex
	data map[string]string
}

// NewSnapshot seeds a snapshot with exactly the self entry, as required
// at node bootstrap.
func NewSnapshot(selfID, selfAddr string) *Snapshot {
	return &Snapshot{
		data: map[string]string{selfID: selfAddr},
	}
}

// Put inserts or updates the address for id. Called by the listener
// when it observes a live peer.
func (s *Snapshot) Put(id, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = addr
}

// Remove evicts id from the snapshot. Called by the talker when it
// fails to reach a peer.
func (s *Snapshot) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
}

// Lookup returns the address currently known for id, and whether an
// entry exists at all.
func (s *Snapshot) Lookup(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.data[id]
	return addr, ok
}

// Peers returns a copy of the current id->address mapping. Safe to
// range over after the call returns since it no longer shares storage
// with the snapshot.
func (s *Snapshot) Peers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Len reports the number of entries currently known, including self.
// Used by the metrics gauge.
func (s *Snapshot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
