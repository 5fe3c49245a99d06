package chat

// Ledger maps a display identity to the single connection currently authoritative for it.
type Ledger struct {
	owners map[string]string
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{owners: make(map[string]string)}
}

// Claim makes id the owner of identity. When a different connection owned it, that
// connection is returned as displaced and the caller must evict it.
func (l *Ledger) Claim(identity, id string) (displaced string, ok bool) {
	prior, exists := l.owners[identity]
	l.owners[identity] = id
	if exists && prior != id {
		return prior, true
	}
	return "", false
}

// Release drops identity only while it still points at id, so a late leave from a
// displaced connection cannot release a newer claim.
func (l *Ledger) Release(identity, id string) bool {
	if owner, ok := l.owners[identity]; ok && owner == id {
		delete(l.owners, identity)
		return true
	}
	return false
}

// Owner returns the connection currently holding identity.
func (l *Ledger) Owner(identity string) (string, bool) {
	id, ok := l.owners[identity]
	return id, ok
}

// Len returns the number of occupied identities.
func (l *Ledger) Len() int {
	return len(l.owners)
}
