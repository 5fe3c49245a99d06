package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	registry := NewRegistry()
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	require.NoError(t, registry.Register("c1", nil, now))
	assert.ErrorIs(t, registry.Register("c1", nil, now), ErrConnectionExists)

	session, err := registry.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, session.State())
	assert.Equal(t, now, session.ConnectedAt)
	assert.Equal(t, now, session.LastSeenAt)

	require.NoError(t, registry.SetJoined("c1", "alice", "General"))
	session, _ = registry.Get("c1")
	assert.Equal(t, StateJoined, session.State())
	assert.Equal(t, "joined", session.State().String())

	prior, err := registry.ClearJoined("c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", prior.Identity)
	assert.Equal(t, "General", prior.Room)
	session, _ = registry.Get("c1")
	assert.Equal(t, StateAnonymous, session.State())

	removed, ok := registry.Remove("c1")
	assert.True(t, ok)
	assert.Equal(t, "c1", removed.ConnectionID)
	_, ok = registry.Remove("c1")
	assert.False(t, ok)

	_, err = registry.Get("c1")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	assert.ErrorIs(t, registry.SetJoined("c1", "alice", "General"), ErrConnectionNotFound)
	assert.Equal(t, "gone", StateGone.String())
}

func TestRegistry_TouchAndStaleBefore(t *testing.T) {
	registry := NewRegistry()
	start := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	require.NoError(t, registry.Register("old", nil, start))
	require.NoError(t, registry.Register("older", nil, start.Add(-time.Minute)))
	require.NoError(t, registry.Register("fresh", nil, start))

	assert.True(t, registry.Touch("fresh", start.Add(10*time.Minute)))
	assert.False(t, registry.Touch("missing", start))

	assert.Equal(t, []string{"older", "old"}, registry.StaleBefore(start.Add(time.Minute)))
	assert.Empty(t, registry.StaleBefore(start.Add(-time.Minute)), "cutoff is exclusive")
	assert.ElementsMatch(t, []string{"old", "older", "fresh"}, registry.IDs())
	assert.Equal(t, 3, registry.Len())
}
