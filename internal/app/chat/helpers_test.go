package chat

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomchat/internal/app/protocol"
)

// fakeConn records every event delivered to one connection.
type fakeConn struct {
	mu        sync.Mutex
	events    []protocol.Event
	closed    bool
	closeCode int
	capacity  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{capacity: -1}
}

func (f *fakeConn) Send(ev protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errors.New("closed")
	}
	if f.capacity >= 0 && len(f.events) >= f.capacity {
		return errors.New("queue full")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeConn) Close(code int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		f.closeCode = code
	}
	return nil
}

func (f *fakeConn) all() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Event(nil), f.events...)
}

func (f *fakeConn) ofType(eventType protocol.EventType) []protocol.Event {
	var out []protocol.Event
	for _, ev := range f.all() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func (f *fakeConn) isClosed() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCoordinator(t *testing.T, clock *testClock) *Coordinator {
	t.Helper()
	coord := NewCoordinator(Options{
		StaleThreshold: 5 * time.Minute,
		SweepInterval:  time.Minute,
		Now:            clock.Now,
	})
	t.Cleanup(coord.Shutdown)
	return coord
}

func connect(t *testing.T, coord *Coordinator, id string) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	require.NoError(t, coord.Register(id, conn))
	return conn
}

func decode[T any](t *testing.T, ev protocol.Event) T {
	t.Helper()
	var payload T
	require.NoError(t, ev.Decode(&payload))
	return payload
}

func lastRoster(t *testing.T, conn *fakeConn) protocol.RosterPayload {
	t.Helper()
	rosters := conn.ofType(protocol.TypeRoster)
	require.NotEmpty(t, rosters, "expected at least one roster event")
	return decode[protocol.RosterPayload](t, rosters[len(rosters)-1])
}

func errorKinds(t *testing.T, conn *fakeConn) []string {
	t.Helper()
	var kinds []string
	for _, ev := range conn.ofType(protocol.TypeError) {
		kinds = append(kinds, decode[protocol.ErrorPayload](t, ev).Kind)
	}
	return kinds
}

// requireInvariants checks the registry, room index and identity ledger agree.
func requireInvariants(t *testing.T, coord *Coordinator) {
	t.Helper()
	coord.mu.Lock()
	defer coord.mu.Unlock()

	for room := range coord.rooms.Occupancy() {
		for _, id := range coord.rooms.Members(room) {
			session, err := coord.registry.Get(id)
			require.NoError(t, err, "room member %s missing from registry", id)
			require.Equal(t, room, session.Room, "room member %s has wrong room", id)
		}
	}

	seen := make(map[string]string)
	for _, id := range coord.registry.IDs() {
		session, err := coord.registry.Get(id)
		require.NoError(t, err)
		if session.Room == "" {
			require.Empty(t, session.Identity, "anonymous connection %s holds an identity", id)
			continue
		}
		require.True(t, coord.rooms.Has(session.Room, id), "connection %s not indexed in %s", id, session.Room)

		owner, ok := coord.ledger.Owner(session.Identity)
		require.True(t, ok, "identity %s not in ledger", session.Identity)
		require.Equal(t, id, owner, "identity %s owned by another connection", session.Identity)

		other, dup := seen[session.Identity]
		require.False(t, dup, "identity %s held by %s and %s", session.Identity, other, id)
		seen[session.Identity] = id
	}

	require.Equal(t, len(seen), coord.ledger.Len(), "ledger has entries without a joined connection")
}
