/*
Package chat contains the presence and room coordination core of the chat server.

This file defines the Connection Registry: the table from connection identifier to
session metadata (identity, room, liveness). It is not safe for concurrent use on its own;
the Coordinator serializes every access.
*/
package chat

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrConnectionNotFound is returned for operations on an unknown or already removed connection.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrConnectionExists is returned when a connection identifier is registered twice.
	ErrConnectionExists = errors.New("connection already registered")
)

// State is the lifecycle position of a connection.
type State int

const (
	// StateAnonymous is a registered connection without identity or room.
	StateAnonymous State = iota

	// StateJoined is a connection that holds an identity inside a room.
	StateJoined

	// StateGone is a connection no longer present in the registry.
	StateGone
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateJoined:
		return "joined"
	default:
		return "gone"
	}
}

// Session is a snapshot of one registry entry.
type Session struct {
	// ConnectionID is the opaque identifier assigned by the transport.
	ConnectionID string

	// Identity is the display name claimed on join; empty while anonymous.
	Identity string

	// Room is the joined room; empty while anonymous.
	Room string

	// ConnectedAt is when the connection was registered.
	ConnectedAt time.Time

	// LastSeenAt is the time of the most recent liveness signal.
	LastSeenAt time.Time

	// Conn is the outbound handle of the connection.
	Conn Conn
}

// State derives the lifecycle state of the snapshot.
func (s Session) State() State {
	if s.Room != "" {
		return StateJoined
	}
	return StateAnonymous
}

// Registry maps connection identifiers to session metadata.
type Registry struct {
	entries map[string]*Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Session)}
}

// Register creates an anonymous entry for id with LastSeenAt = now.
func (r *Registry) Register(id string, conn Conn, now time.Time) error {
	if _, exists := r.entries[id]; exists {
		return ErrConnectionExists
	}

	r.entries[id] = &Session{
		ConnectionID: id,
		ConnectedAt:  now,
		LastSeenAt:   now,
		Conn:         conn,
	}
	return nil
}

// Touch refreshes LastSeenAt. It reports false when id is absent.
func (r *Registry) Touch(id string, now time.Time) bool {
	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	entry.LastSeenAt = now
	return true
}

// Get returns the current snapshot of id.
func (r *Registry) Get(id string) (Session, error) {
	entry, ok := r.entries[id]
	if !ok {
		return Session{}, ErrConnectionNotFound
	}
	return *entry, nil
}

// Remove deletes id and returns the snapshot it had, so callers can clean up its room and identity.
func (r *Registry) Remove(id string) (Session, bool) {
	entry, ok := r.entries[id]
	if !ok {
		return Session{}, false
	}
	delete(r.entries, id)
	return *entry, true
}

// SetJoined records the identity and room of id.
func (r *Registry) SetJoined(id, identity, room string) error {
	entry, ok := r.entries[id]
	if !ok {
		return ErrConnectionNotFound
	}
	entry.Identity = identity
	entry.Room = room
	return nil
}

// ClearJoined returns id to the anonymous state and yields the snapshot from before the change.
func (r *Registry) ClearJoined(id string) (Session, error) {
	entry, ok := r.entries[id]
	if !ok {
		return Session{}, ErrConnectionNotFound
	}
	prior := *entry
	entry.Identity = ""
	entry.Room = ""
	return prior, nil
}

// StaleBefore lists connections whose LastSeenAt is strictly before cutoff, oldest first.
func (r *Registry) StaleBefore(cutoff time.Time) []string {
	stale := make([]*Session, 0)
	for _, entry := range r.entries {
		if entry.LastSeenAt.Before(cutoff) {
			stale = append(stale, entry)
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].LastSeenAt.Before(stale[j].LastSeenAt)
	})

	ids := make([]string, len(stale))
	for i, entry := range stale {
		ids[i] = entry.ConnectionID
	}
	return ids
}

// IDs returns every registered connection identifier in no particular order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.entries)
}
