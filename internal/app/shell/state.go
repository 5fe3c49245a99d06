/*
Package shell is the client side of the chat protocol.

It keeps one logical session alive across transport failures: it dials with a bounded,
capped exponential backoff, emits heartbeats, replays the last-known join intention after
every (re)connection, and stops for good when the server reports that a newer connection
took over the identity.
*/
package shell

import "sync"

// State is the last-known join intention of the local user.
type State struct {
	Identity string
	Room     string
}

// Empty reports whether there is nothing to replay.
func (s State) Empty() bool {
	return s.Identity == "" || s.Room == ""
}

// StateStore persists the join intention between runs of the client.
type StateStore interface {
	Load() (State, error)
	Save(state State) error
	Clear() error
}

// MemoryStore keeps the state in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the saved state, or the zero State when nothing is saved.
func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Save replaces the saved state.
func (m *MemoryStore) Save(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

// Clear forgets the saved state.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
	return nil
}
