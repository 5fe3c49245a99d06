package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/app/shell"
)

func TestHandle_JoinWhileOfflineRecordsIntention(t *testing.T) {
	store := shell.NewMemoryStore()
	s := shell.New(shell.NewWebSocketTransport("ws://127.0.0.1:1/ws"), store, shell.Options{})
	v := &view{}

	joined, quit := v.handle(s, "/join alice General")
	assert.True(t, joined)
	assert.False(t, quit)
	assert.Equal(t, "alice", v.identity)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, shell.State{Identity: "alice", Room: "General"}, state)
}

func TestHandle_Commands(t *testing.T) {
	s := shell.New(shell.NewWebSocketTransport("ws://127.0.0.1:1/ws"), shell.NewMemoryStore(), shell.Options{})
	v := &view{}

	tests := []struct {
		line   string
		joined bool
		quit   bool
	}{
		{line: "", joined: false, quit: false},
		{line: "/join alice", joined: false, quit: false},
		{line: "hello", joined: false, quit: false},
		{line: "/quit", joined: false, quit: true},
	}

	for _, tt := range tests {
		joined, quit := v.handle(s, tt.line)
		assert.Equal(t, tt.joined, joined, tt.line)
		assert.Equal(t, tt.quit, quit, tt.line)
	}
}
