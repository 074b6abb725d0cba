// Package coprocessor implements the encrypted computation service the DAO
// contract relies on. Values are ElGamal ciphertexts over BabyJubJub held by
// the co-processor and referenced through opaque handles. Addition is
// homomorphic; equality and selection are evaluated inside the co-processor
// with the network key, and their results are fresh ciphertexts, so handles
// never reveal plaintexts to their holders.
//
// Access to plaintexts is governed by a per-handle ACL. Users obtain their
// plaintexts through the Gateway, which re-encrypts them to an ephemeral key
// after checking an EIP-712 signed decryption permit.
package coprocessor

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/tocipoco/DAO-Vote/crypto/ecc"
	"github.com/tocipoco/DAO-Vote/crypto/ecc/bjj"
	"github.com/tocipoco/DAO-Vote/crypto/elgamal"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
)

const (
	// DefaultMaxPlaintext bounds the values the co-processor can decrypt.
	DefaultMaxPlaintext = 1 << 20
	// MaxUint32 is the largest value of an euint32 input.
	MaxUint32 = 1<<32 - 1
)

// DefaultGatewayAddress is the verifying contract of the decryption permits
// when none is configured.
var DefaultGatewayAddress = common.HexToAddress("0x0000000000000000000000000000000000000044")

var (
	ErrUnknownHandle     = errors.New("unknown handle")
	ErrTypeMismatch      = errors.New("encrypted type mismatch")
	ErrInvalidProof      = errors.New("invalid input proof")
	ErrNotAllowed        = errors.New("account not allowed on handle")
	ErrNotDecryptable    = errors.New("handle is not publicly decryptable")
	ErrInvalidSignature  = errors.New("invalid decryption permit signature")
	ErrPermitExpired     = errors.New("decryption permit outside its validity window")
	ErrContractNotListed = errors.New("contract not listed in decryption permit")
	ErrInvalidRequest    = errors.New("invalid decryption request")
)

// Config holds the co-processor options.
type Config struct {
	ChainID uint64
	// GatewayAddress is the EIP-712 verifying contract of decryption permits.
	GatewayAddress common.Address
	// MaxPlaintext is the largest plaintext that can be decrypted.
	MaxPlaintext uint64
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Coprocessor holds the network key and the ciphertext store.
type Coprocessor struct {
	stg     *storage.Storage
	pubKey  ecc.Point
	privKey *big.Int
	cfg     Config
}

// New loads the network key from the storage, generating and persisting a
// new one on first start.
func New(stg *storage.Storage, cfg Config) (*Coprocessor, error) {
	if cfg.MaxPlaintext == 0 {
		cfg.MaxPlaintext = DefaultMaxPlaintext
	}
	if cfg.GatewayAddress == (common.Address{}) {
		cfg.GatewayAddress = DefaultGatewayAddress
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	pubKey, privKey, err := stg.NetworkKeys(bjj.New())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		pubKey, privKey, err = elgamal.GenerateKey(bjj.New())
		if err != nil {
			return nil, fmt.Errorf("cannot generate network key: %w", err)
		}
		if err := stg.SetNetworkKeys(pubKey, privKey); err != nil {
			return nil, fmt.Errorf("cannot store network key: %w", err)
		}
		log.Infow("generated co-processor network key", "publicKey", pubKey.String())
	case err != nil:
		return nil, fmt.Errorf("cannot load network key: %w", err)
	}
	return &Coprocessor{
		stg:     stg,
		pubKey:  pubKey,
		privKey: privKey,
		cfg:     cfg,
	}, nil
}

// PublicKey returns the network encryption key.
func (cp *Coprocessor) PublicKey() ecc.Point {
	return cp.pubKey
}

// ChainID returns the chain the co-processor serves.
func (cp *Coprocessor) ChainID() uint64 {
	return cp.cfg.ChainID
}

// computeHandle derives the handle of a ciphertext: the keccak256 hash of the
// type, the ciphertext and an optional context, with the last byte replaced
// by the type.
func computeHandle(typ types.FHEType, ct *elgamal.Ciphertext, context []byte) types.Handle {
	var h types.Handle
	copy(h[:], ethcrypto.Keccak256([]byte{byte(typ)}, ct.Serialize(), context))
	h[types.HandleLen-1] = byte(typ)
	return h
}

// load returns the ciphertext behind a handle, checking its type.
func (cp *Coprocessor) load(h types.Handle, typ types.FHEType) (*elgamal.Ciphertext, *storage.CiphertextRecord, error) {
	rec, err := cp.stg.Ciphertext(h)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if err != nil {
		return nil, nil, err
	}
	if rec.Type != typ {
		return nil, nil, fmt.Errorf("%w: handle %s is %s, expected %s", ErrTypeMismatch, h, rec.Type, typ)
	}
	ct := elgamal.NewCiphertext(cp.pubKey)
	if err := ct.Deserialize(rec.Data); err != nil {
		return nil, nil, fmt.Errorf("corrupted ciphertext %s: %w", h, err)
	}
	return ct, rec, nil
}

// loadAny returns the ciphertext behind a handle whatever its type.
func (cp *Coprocessor) loadAny(h types.Handle) (*elgamal.Ciphertext, *storage.CiphertextRecord, error) {
	return cp.load(h, h.Type())
}

// store saves a new ciphertext and returns its handle. Existing records,
// such as repeated trivial encryptions, are left untouched.
func (cp *Coprocessor) store(typ types.FHEType, ct *elgamal.Ciphertext, context []byte) (types.Handle, error) {
	h := computeHandle(typ, ct, context)
	if _, err := cp.stg.Ciphertext(h); err == nil {
		return h, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return types.Handle{}, err
	}
	if err := cp.stg.SetCiphertext(h, &storage.CiphertextRecord{
		Type: typ,
		Data: ct.Serialize(),
	}); err != nil {
		return types.Handle{}, fmt.Errorf("cannot store ciphertext: %w", err)
	}
	return h, nil
}

// decrypt recovers the plaintext of a ciphertext within MaxPlaintext.
func (cp *Coprocessor) decrypt(ct *elgamal.Ciphertext) (uint64, error) {
	m, err := ct.Decrypt(cp.pubKey, cp.privKey, cp.cfg.MaxPlaintext)
	if err != nil {
		return 0, err
	}
	return m.Uint64(), nil
}
