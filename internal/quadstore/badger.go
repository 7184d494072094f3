package quadstore

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStorage implements Storage using an embedded BadgerDB instance.
// Adapted from the teacher's internal/storage.BadgerStorage: same
// Begin/Scan/Commit shape, retargeted at quadstore's five-table layout.
type BadgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens (creating if absent) a BadgerDB instance at path.
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("quadstore: open badger db: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

func (s *BadgerStorage) Begin(writable bool) (Transaction, error) {
	txn := s.db.NewTransaction(writable)
	return &badgerTransaction{txn: txn, writable: writable}, nil
}

func (s *BadgerStorage) Close() error { return s.db.Close() }
func (s *BadgerStorage) Sync() error  { return s.db.Sync() }

type badgerTransaction struct {
	txn      *badger.Txn
	writable bool
}

func (t *badgerTransaction) Get(table Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(PrefixKey(table, key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var value []byte
	err = item.Value(func(val []byte) error {
		value = append([]byte{}, val...)
		return nil
	})
	return value, err
}

func (t *badgerTransaction) Set(table Table, key, value []byte) error {
	if !t.writable {
		return ErrTransactionRO
	}
	return t.txn.Set(PrefixKey(table, key), value)
}

func (t *badgerTransaction) Delete(table Table, key []byte) error {
	if !t.writable {
		return ErrTransactionRO
	}
	return t.txn.Delete(PrefixKey(table, key))
}

func (t *badgerTransaction) Scan(table Table, start, end []byte) (Iterator, error) {
	opts := badger.DefaultIteratorOptions
	tablePrefix := TablePrefix(table)

	var seekKey, scanPrefix []byte
	if start != nil {
		seekKey = PrefixKey(table, start)
		scanPrefix = seekKey
	} else {
		seekKey = tablePrefix
		scanPrefix = tablePrefix
	}
	opts.Prefix = scanPrefix

	var endKey []byte
	if end != nil {
		endKey = PrefixKey(table, end)
	}

	it := t.txn.NewIterator(opts)
	return &badgerIterator{
		it:      it,
		prefix:  tablePrefix,
		endKey:  endKey,
		seekKey: seekKey,
	}, nil
}

func (t *badgerTransaction) Commit() error { return t.txn.Commit() }
func (t *badgerTransaction) Rollback() error {
	t.txn.Discard()
	return nil
}

type badgerIterator struct {
	it       *badger.Iterator
	prefix   []byte
	endKey   []byte
	seekKey  []byte
	started  bool
	hasValue bool
}

func (i *badgerIterator) Next() bool {
	if !i.started {
		i.it.Seek(i.seekKey)
		i.started = true
	} else {
		i.it.Next()
	}

	if !i.it.Valid() {
		i.hasValue = false
		return false
	}
	if i.endKey != nil && bytes.Compare(i.it.Item().Key(), i.endKey) >= 0 {
		i.hasValue = false
		return false
	}
	i.hasValue = true
	return true
}

func (i *badgerIterator) Key() []byte {
	if !i.hasValue {
		return nil
	}
	key := i.it.Item().Key()
	if len(key) > len(i.prefix) {
		return key[len(i.prefix):]
	}
	return nil
}

func (i *badgerIterator) Value() ([]byte, error) {
	if !i.hasValue {
		return nil, ErrNotFound
	}
	var value []byte
	err := i.it.Item().Value(func(val []byte) error {
		value = append([]byte{}, val...)
		return nil
	})
	return value, err
}

func (i *badgerIterator) Close() error {
	i.it.Close()
	return nil
}
