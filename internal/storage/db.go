// Package storage provides the key-value abstractions the ledger indexes sit on.
package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in ascending
	// byte order. The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes that are applied together by Commit.
// Nothing is visible to readers until Commit returns nil.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that can commit a Batch atomically.
type Batcher interface {
	NewBatch() Batch
}

// Backend names accepted by Open.
const (
	BackendBadger  = "badger"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Open opens a database of the named backend at path.
// The memory backend ignores path.
func Open(backend, path string) (DB, error) {
	switch backend {
	case BackendBadger, "":
		return NewBadger(path)
	case BackendLevelDB:
		return NewLevelDB(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db backend %q", backend)
	}
}

// NewBatch returns an atomic batch when db supports it and a buffered,
// non-atomic batch otherwise.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &bufferedBatch{db: db}
}

type batchOp struct {
	key   []byte
	value []byte // nil means delete
}

// bufferedBatch buffers writes and replays them on Commit.
type bufferedBatch struct {
	db  DB
	ops []batchOp
}

func (bb *bufferedBatch) Put(key, value []byte) error {
	bb.ops = append(bb.ops, batchOp{key: copyBytes(key), value: copyValue(value)})
	return nil
}

func (bb *bufferedBatch) Delete(key []byte) error {
	bb.ops = append(bb.ops, batchOp{key: copyBytes(key)})
	return nil
}

func (bb *bufferedBatch) Commit() error {
	for _, op := range bb.ops {
		if op.value == nil {
			if err := bb.db.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := bb.db.Put(op.key, op.value); err != nil {
			return err
		}
	}
	bb.ops = nil
	return nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// copyValue is copyBytes but keeps a non-nil result for empty values so a
// buffered Put of []byte{} is not mistaken for a delete.
func copyValue(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return copyBytes(b)
}
