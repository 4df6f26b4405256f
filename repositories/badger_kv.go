package repositories

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

var _ KV = (*BadgerKV)(nil)

type BadgerKV struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerKV(db *badger.DB, log *slog.Logger) *BadgerKV {
	return &BadgerKV{db: db, log: log}
}

// OpenBadger opens an on-disk store, or an in-memory one when path is empty.
func OpenBadger(path string) (*badger.DB, error) {
	options := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		options = options.WithInMemory(true)
	}
	return badger.Open(options)
}

func (b *BadgerKV) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (b *BadgerKV) Put(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// CompareAndSwap relies on badger's optimistic transactions: a concurrent write
// to the same key makes the commit fail with ErrConflict, reported as a lost swap.
func (b *BadgerKV) CompareAndSwap(_ context.Context, key string, old, value []byte) (bool, error) {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if old != nil {
				return errCASMismatch
			}
		case err != nil:
			return err
		default:
			if old == nil {
				return errCASMismatch
			}
			current, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !bytes.Equal(current, old) {
				return errCASMismatch
			}
		}
		return txn.Set([]byte(key), value)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errCASMismatch), errors.Is(err, badger.ErrConflict):
		b.log.Debug("Compare-and-swap lost", "key", key)
		return false, nil
	default:
		return false, err
	}
}

func (b *BadgerKV) Scan(_ context.Context, prefix string, fn func(key string, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err = fn(string(item.KeyCopy(nil)), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerKV) Close() error {
	return b.db.Close()
}
