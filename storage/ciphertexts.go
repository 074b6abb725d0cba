package storage

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/types"
)

// SetCiphertext stores a ciphertext under its handle. Storing the same handle
// twice overwrites the record.
func (s *Storage) SetCiphertext(h types.Handle, rec *CiphertextRecord) error {
	return s.setArtifact(ciphertextPrefix, h.Bytes(), rec)
}

// Ciphertext returns the record of the handle or ErrNotFound.
func (s *Storage) Ciphertext(h types.Handle) (*CiphertextRecord, error) {
	rec := &CiphertextRecord{}
	if err := s.getArtifact(ciphertextPrefix, h.Bytes(), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Allow grants account access to the handle. Granting twice is a no-op.
func (s *Storage) Allow(h types.Handle, account common.Address) error {
	b := s.NewBatch()
	if err := b.Allow(h, account); err != nil {
		b.Discard()
		return err
	}
	return b.Commit()
}

// Allow adds the grant to the batch.
func (b *Batch) Allow(h types.Handle, account common.Address) error {
	return b.setRaw(aclPrefix, joinKey(h.Bytes(), account.Bytes()), []byte{1})
}

// SetCiphertext adds the ciphertext to the batch.
func (b *Batch) SetCiphertext(h types.Handle, rec *CiphertextRecord) error {
	return b.set(ciphertextPrefix, h.Bytes(), rec)
}

// IsAllowed reports whether account was granted access to the handle.
func (s *Storage) IsAllowed(h types.Handle, account common.Address) (bool, error) {
	return s.hasKey(aclPrefix, joinKey(h.Bytes(), account.Bytes()))
}

// AllowedAccounts lists the accounts with access to the handle.
func (s *Storage) AllowedAccounts(h types.Handle) ([]common.Address, error) {
	var accounts []common.Address
	err := s.iterateArtifacts(aclPrefix, h.Bytes(), func(k, _ []byte) bool {
		accounts = append(accounts, common.BytesToAddress(k))
		return true
	})
	return accounts, err
}
