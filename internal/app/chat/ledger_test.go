package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedger_ClaimDisplacesPriorOwner(t *testing.T) {
	ledger := NewLedger()

	_, displaced := ledger.Claim("alice", "c1")
	assert.False(t, displaced)

	_, displaced = ledger.Claim("alice", "c1")
	assert.False(t, displaced, "re-claiming from the same connection displaces nobody")

	prior, displaced := ledger.Claim("alice", "c2")
	assert.True(t, displaced)
	assert.Equal(t, "c1", prior)

	owner, ok := ledger.Owner("alice")
	assert.True(t, ok)
	assert.Equal(t, "c2", owner)
	assert.Equal(t, 1, ledger.Len())
}

func TestLedger_ReleaseOnlyByOwner(t *testing.T) {
	ledger := NewLedger()
	ledger.Claim("alice", "c1")
	ledger.Claim("alice", "c2")

	assert.False(t, ledger.Release("alice", "c1"))
	owner, _ := ledger.Owner("alice")
	assert.Equal(t, "c2", owner)

	assert.True(t, ledger.Release("alice", "c2"))
	_, ok := ledger.Owner("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, ledger.Len())
}
