package cache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// Prefix of artifact keys in a shared badger database.
var keyPrefix = []byte("plan/")

// BadgerStore keeps artifacts in a badger database. Put runs in a single
// update transaction, so concurrent publishers of the same name write once.
type BadgerStore struct {
	db *badger.DB
}

// BadgerOption adjusts the badger options before the database is opened.
type BadgerOption func(*badger.Options)

// InMemory keeps the database in memory; the directory is ignored.
func InMemory() BadgerOption {
	return func(o *badger.Options) {
		*o = o.WithInMemory(true).WithDir("").WithValueDir("")
	}
}

// OpenBadger opens (or creates) the database at dir.
func OpenBadger(dir string, opts ...BadgerOption) (*BadgerStore, error) {
	o := badger.DefaultOptions(dir).WithLogger(nil)
	for _, opt := range opts {
		opt(&o)
	}
	db, err := badger.Open(o)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func key(name string) []byte {
	return append(append([]byte{}, keyPrefix...), name...)
}

func (s *BadgerStore) Get(name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: %w", err)
	}
	return data, true, nil
}

func (s *BadgerStore) Put(name string, data []byte) (bool, error) {
	stored := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key(name))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		stored = true
		return txn.Set(key(name), data)
	})
	if err != nil {
		return false, fmt.Errorf("cache: %w", err)
	}
	return stored, nil
}

func (s *BadgerStore) Delete(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(name))
	})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
