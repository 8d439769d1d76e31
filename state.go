package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the history log and discovered-peer set shared by the UI, the
// message channel and the discovery service. Every method holds the lock for
// one short update or copy and never across I/O.
type State struct {
	mu      sync.RWMutex
	history []HistoryEntry
	peers   map[string]struct{}
	order   []string

	discoveryActive atomic.Bool

	// Called after an entry is appended, outside the lock.
	onAppend func(HistoryEntry)
}

// NewState creates an empty State with discovery active.
func NewState() *State {
	s := &State{
		peers: make(map[string]struct{}),
	}
	s.discoveryActive.Store(true)
	return s
}

// Append adds one entry to the end of the history and returns it with ID and
// timestamp filled in.
func (s *State) Append(kind EntryKind, peer, text string) HistoryEntry {
	entry := HistoryEntry{
		ID:   uuid.NewString(),
		Kind: kind,
		Peer: peer,
		Text: text,
	}

	s.mu.Lock()
	// Stamped under the lock so timestamps follow log order.
	entry.At = time.Now()
	s.history = append(s.history, entry)
	hook := s.onAppend
	s.mu.Unlock()

	if hook != nil {
		hook(entry)
	}
	return entry
}

// AddPeer inserts addr into the peer set and reports whether it was new.
func (s *State) AddPeer(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.peers[addr]; exists {
		return false
	}
	s.peers[addr] = struct{}{}
	s.order = append(s.order, addr)
	return true
}

// HasPeer reports whether addr is in the peer set.
func (s *State) HasPeer(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.peers[addr]
	return ok
}

// History returns a copy of the whole log.
func (s *State) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// HistorySince returns a copy of the entries after the first n.
func (s *State) HistorySince(n int) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(s.history) {
		return nil
	}
	out := make([]HistoryEntry, len(s.history)-n)
	copy(out, s.history[n:])
	return out
}

// HistoryLen returns the number of entries appended so far.
func (s *State) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Peers returns the discovered peers in insertion order.
func (s *State) Peers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// PeerCount returns the size of the peer set.
func (s *State) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// DiscoveryActive reports whether discovery is currently running.
func (s *State) DiscoveryActive() bool {
	return s.discoveryActive.Load()
}

// SetDiscoveryActive sets the discovery flag.
func (s *State) SetDiscoveryActive(active bool) {
	s.discoveryActive.Store(active)
}

// ToggleDiscovery flips the discovery flag and returns the new value.
func (s *State) ToggleDiscovery() bool {
	for {
		old := s.discoveryActive.Load()
		if s.discoveryActive.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// OnAppend registers a hook run after every append. It must not block.
func (s *State) OnAppend(fn func(HistoryEntry)) {
	s.mu.Lock()
	s.onAppend = fn
	s.mu.Unlock()
}
