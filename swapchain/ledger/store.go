package ledger

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	accountPrefix = []byte("a/")
	metaPrefix    = []byte("m/")
)

// Store persists committed accounts in a leveldb database. All writes of an
// atomic unit land in a single batch.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (or creates) a store at path.
func OpenStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMemStore opens a store backed by memory only.
func OpenMemStore() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return &Store{db: db}, nil
}

func accountKey(key solana.PublicKey) []byte {
	return append(append([]byte{}, accountPrefix...), key[:]...)
}

// Get returns the committed account at key, or nil when none exists.
func (s *Store) Get(key solana.PublicKey) (*Account, error) {
	raw, err := s.db.Get(accountKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", key, err)
	}
	return unmarshalAccount(raw)
}

// Put writes a single account outside of any unit. Used for genesis.
func (s *Store) Put(key solana.PublicKey, acc *Account) error {
	return s.Commit(map[solana.PublicKey]*Account{key: acc})
}

// Commit atomically applies writes. Accounts left without lamports are purged.
func (s *Store) Commit(writes map[solana.PublicKey]*Account) error {
	batch := new(leveldb.Batch)
	for key, acc := range writes {
		if acc == nil || acc.IsEmpty() {
			batch.Delete(accountKey(key))
			continue
		}
		raw, err := acc.marshal()
		if err != nil {
			return err
		}
		batch.Put(accountKey(key), raw)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to commit %d accounts: %w", len(writes), err)
	}
	return nil
}

// ForEach visits every committed account in key order.
func (s *Store) ForEach(fn func(key solana.PublicKey, acc *Account) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(accountPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := solana.PublicKeyFromBytes(iter.Key()[len(accountPrefix):])
		acc, err := unmarshalAccount(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(key, acc); err != nil {
			return err
		}
	}
	return iter.Error()
}

// GetMeta reads a store level metadata value.
func (s *Store) GetMeta(name string) ([]byte, bool, error) {
	raw, err := s.db.Get(append(append([]byte{}, metaPrefix...), name...), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read meta %s: %w", name, err)
	}
	return raw, true, nil
}

// PutMeta writes a store level metadata value.
func (s *Store) PutMeta(name string, value []byte) error {
	return s.db.Put(append(append([]byte{}, metaPrefix...), name...), value, nil)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
