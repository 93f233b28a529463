// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend stores entries in an embedded badger database.
//   - key: "<class>/<key>"
//   - value: 8 byte big-endian created-at (unix nanos) followed by the blob
type BadgerBackend struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadgerBackend opens (or creates) a badger database at path. An empty
// path opens an in-memory database.
func OpenBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger cache: open: %w", err)
	}
	return &BadgerBackend{db: db, now: time.Now}, nil
}

// Name implements Backend.
func (b *BadgerBackend) Name() string { return "badger" }

func badgerPrefix(class Class) []byte {
	return []byte(string(class) + "/")
}

func badgerKey(class Class, key string) []byte {
	return []byte(string(class) + "/" + key)
}

// Get implements Backend.
func (b *BadgerBackend) Get(_ context.Context, class Class, key string) ([]byte, error) {
	if err := checkArgs(class, key); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(class, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data, _, ok := decodeEntry(val)
			if !ok {
				return fmt.Errorf("badger cache: corrupt entry %s", key)
			}
			out = data
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// Put implements Backend.
func (b *BadgerBackend) Put(_ context.Context, class Class, key string, data []byte, createdAt time.Time) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	if createdAt.IsZero() {
		createdAt = b.now()
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(class, key), encodeEntry(data, createdAt))
	})
}

// Remove implements Backend.
func (b *BadgerBackend) Remove(_ context.Context, class Class, key string) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(class, key))
	})
}

// Sweep implements Backend.
func (b *BadgerBackend) Sweep(ctx context.Context, class Class, cutoff time.Time) (int, error) {
	if !class.Valid() {
		return 0, ErrInvalidClass
	}
	prefix := badgerPrefix(class)

	var expired [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				_, createdAt, ok := decodeEntry(val)
				if ok && createdAt.Before(cutoff) {
					expired = append(expired, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		for _, k := range expired {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}

// Clear implements Backend.
func (b *BadgerBackend) Clear(_ context.Context, class Class) error {
	if !class.Valid() {
		return ErrInvalidClass
	}
	return b.db.DropPrefix(badgerPrefix(class))
}

// Close implements Backend.
func (b *BadgerBackend) Close() error { return b.db.Close() }
