// Package storage persists the co-processor ciphertexts and the DAO state on
// a dvote key-value database. Every artifact family lives under its own
// prefix:
//   - 'nk/' for the co-processor network keys
//   - 'ct/' for ciphertexts, indexed by handle
//   - 'acl/' for handle access grants (handle + account)
//   - 'mb/' for DAO members
//   - 'pr/' for proposals
//   - 'rc/' for vote receipts (proposal id + voter)
//   - 'ev/' for emitted events, in emission order
//   - 'st/' for counters
//   - 'kv/' for client side string keyed values (signature cache)
//
// Artifacts are CBOR encoded with the core deterministic encoding.
package storage

import (
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/tocipoco/DAO-Vote/log"
)

var (
	// Prefixes for the keys in the database.
	networkKeyPrefix = []byte("nk/")
	ciphertextPrefix = []byte("ct/")
	aclPrefix        = []byte("acl/")
	memberPrefix     = []byte("mb/")
	proposalPrefix   = []byte("pr/")
	receiptPrefix    = []byte("rc/")
	eventPrefix      = []byte("ev/")
	statePrefix      = []byte("st/")
	kvPrefix         = []byte("kv/")
)

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned by iterators when there is nothing left.
	ErrNoMoreElements = errors.New("no more elements")
)

// Storage wraps a dvote database with typed accessors.
type Storage struct {
	db db.Database
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("error closing storage", "error", err.Error())
	}
}

// getArtifact reads and decodes the artifact stored under prefix+key into
// out. It returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	if data == nil {
		return ErrNotFound
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// setArtifact encodes and stores a single artifact in its own transaction.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	b := s.NewBatch()
	if err := b.set(prefix, key, artifact); err != nil {
		b.Discard()
		return err
	}
	return b.Commit()
}

// deleteArtifact removes the artifact stored under prefix+key.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return wTx.Commit()
}

// hasKey reports whether prefix+key exists.
func (s *Storage) hasKey(prefix, key []byte) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// iterateArtifacts calls fn for every raw artifact under prefix+subprefix,
// in key order, until fn returns false.
func (s *Storage) iterateArtifacts(prefix, subprefix []byte, fn func(k, v []byte) bool) error {
	pr := prefixeddb.NewPrefixedReader(s.db, prefix)
	return pr.Iterate(subprefix, func(k, v []byte) bool {
		// the iterator reuses its buffers
		return fn(append([]byte(nil), k...), append([]byte(nil), v...))
	})
}

// listArtifacts returns the keys stored under the prefix.
func (s *Storage) listArtifacts(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	if err := s.iterateArtifacts(prefix, nil, func(k, _ []byte) bool {
		keys = append(keys, k)
		return true
	}); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return keys, nil
}

// Batch groups several writes into a single database transaction.
type Batch struct {
	tx db.WriteTx
}

// NewBatch opens a write transaction. It must be finished with Commit or
// Discard.
func (s *Storage) NewBatch() *Batch {
	return &Batch{tx: s.db.WriteTx()}
}

func (b *Batch) set(prefix, key []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return b.setRaw(prefix, key, data)
}

func (b *Batch) setRaw(prefix, key, data []byte) error {
	if err := prefixeddb.NewPrefixedWriteTx(b.tx, prefix).Set(key, data); err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	return nil
}

// Commit writes every change of the batch atomically.
func (b *Batch) Commit() error {
	return b.tx.Commit()
}

// Discard drops the batch.
func (b *Batch) Discard() {
	b.tx.Discard()
}
