package shell

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Fixed keys of the persisted join intention.
const (
	keyIdentity = "chat:identity"
	keyRoom     = "chat:room"
)

// BadgerStore persists the join intention in a badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a store under dir. An empty dir keeps the data in memory.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load returns the stored state. Missing keys yield an empty State.
func (b *BadgerStore) Load() (State, error) {
	var state State

	err := b.db.View(func(txn *badger.Txn) error {
		identity, err := getString(txn, keyIdentity)
		if err != nil {
			return err
		}
		room, err := getString(txn, keyRoom)
		if err != nil {
			return err
		}
		state = State{Identity: identity, Room: room}
		return nil
	})
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	return state, nil
}

// Save writes both keys in one transaction.
func (b *BadgerStore) Save(state State) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyIdentity), []byte(state.Identity)); err != nil {
			return err
		}
		return txn.Set([]byte(keyRoom), []byte(state.Room))
	})
}

// Clear deletes both keys.
func (b *BadgerStore) Clear() error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyIdentity)); err != nil {
			return err
		}
		return txn.Delete([]byte(keyRoom))
	})
}

// Close releases the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(value), nil
}
