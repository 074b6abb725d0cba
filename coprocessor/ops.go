package coprocessor

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/crypto/elgamal"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

// TrivialEncrypt returns the handle of a publicly known constant. The
// encryption is deterministic, so the same constant always maps to the same
// handle.
func (cp *Coprocessor) TrivialEncrypt(typ types.FHEType, v uint64) (types.Handle, error) {
	if typ == types.TypeBool && v > 1 {
		return types.Handle{}, fmt.Errorf("%w: %d is not a boolean", ErrTypeMismatch, v)
	}
	c1, c2, err := elgamal.EncryptWithK(cp.pubKey, new(big.Int).SetUint64(v), big.NewInt(0))
	if err != nil {
		return types.Handle{}, err
	}
	return cp.store(typ, &elgamal.Ciphertext{C1: c1, C2: c2}, nil)
}

// VerifyInput checks that handle belongs to the encrypted input carried by
// proof and that the proof was produced for contract and user. On success
// the ciphertext is stored and contract is allowed on the handle.
func (cp *Coprocessor) VerifyInput(handle types.Handle, proof []byte, contract, user common.Address) (types.Handle, error) {
	entries, err := decodeInputs(cp.pubKey, proof)
	if err != nil {
		return types.Handle{}, err
	}
	for i, e := range entries {
		binding := inputBinding(cp.cfg.ChainID, contract, user, i)
		if computeHandle(e.typ, e.ct, binding) != handle {
			continue
		}
		if err := e.proof.Verify(cp.pubKey, e.ct, binding); err != nil {
			return types.Handle{}, fmt.Errorf("%w: input %d: %v", ErrInvalidProof, i, err)
		}
		if _, err := cp.store(e.typ, e.ct, binding); err != nil {
			return types.Handle{}, err
		}
		if err := cp.Allow(handle, contract); err != nil {
			return types.Handle{}, err
		}
		log.Debugw("verified encrypted input", "handle", handle.String(), "contract", contract.Hex(), "user", user.Hex())
		return handle, nil
	}
	return types.Handle{}, fmt.Errorf("%w: handle %s not bound to this contract and user", ErrInvalidProof, handle)
}

// Eq returns an ebool handle encrypting a == scalar.
func (cp *Coprocessor) Eq(a types.Handle, scalar uint64) (types.Handle, error) {
	ct, _, err := cp.load(a, types.TypeUint32)
	if err != nil {
		return types.Handle{}, err
	}
	result := uint64(0)
	if elgamal.IsEncryptionOf(cp.privKey, ct.C1, ct.C2, new(big.Int).SetUint64(scalar)) {
		result = 1
	}
	out, err := elgamal.NewCiphertext(cp.pubKey).Encrypt(new(big.Int).SetUint64(result), cp.pubKey, nil)
	if err != nil {
		return types.Handle{}, err
	}
	return cp.store(types.TypeBool, out, nil)
}

// Select returns a fresh handle encrypting a if cond is true, b otherwise.
func (cp *Coprocessor) Select(cond, a, b types.Handle) (types.Handle, error) {
	condCt, _, err := cp.load(cond, types.TypeBool)
	if err != nil {
		return types.Handle{}, err
	}
	if a.Type() != b.Type() {
		return types.Handle{}, fmt.Errorf("%w: select between %s and %s", ErrTypeMismatch, a.Type(), b.Type())
	}
	chosen := b
	if elgamal.IsEncryptionOf(cp.privKey, condCt.C1, condCt.C2, big.NewInt(1)) {
		chosen = a
	}
	// both branches must exist, whatever the condition
	if _, _, err := cp.loadAny(a); err != nil {
		return types.Handle{}, err
	}
	ct, _, err := cp.loadAny(chosen)
	if err != nil {
		return types.Handle{}, err
	}
	out, err := ct.Rerandomize(cp.pubKey)
	if err != nil {
		return types.Handle{}, err
	}
	return cp.store(chosen.Type(), out, nil)
}

// Add returns a handle encrypting a + b.
func (cp *Coprocessor) Add(a, b types.Handle) (types.Handle, error) {
	ctA, _, err := cp.load(a, types.TypeUint32)
	if err != nil {
		return types.Handle{}, err
	}
	ctB, _, err := cp.load(b, types.TypeUint32)
	if err != nil {
		return types.Handle{}, err
	}
	return cp.store(types.TypeUint32, elgamal.NewCiphertext(cp.pubKey).Add(ctA, ctB), nil)
}

// Allow grants account persistent access to the handle. It is idempotent.
func (cp *Coprocessor) Allow(h types.Handle, account common.Address) error {
	if _, _, err := cp.loadAny(h); err != nil {
		return err
	}
	return cp.stg.Allow(h, account)
}

// IsAllowed reports whether account has access to the handle.
func (cp *Coprocessor) IsAllowed(h types.Handle, account common.Address) (bool, error) {
	return cp.stg.IsAllowed(h, account)
}

// AllowForDecryption marks the handles as publicly decryptable.
func (cp *Coprocessor) AllowForDecryption(handles ...types.Handle) error {
	for _, h := range handles {
		_, rec, err := cp.loadAny(h)
		if err != nil {
			return err
		}
		rec.Public = true
		if err := cp.stg.SetCiphertext(h, rec); err != nil {
			return err
		}
	}
	return nil
}

// PublicDecrypt returns the plaintexts of handles marked publicly
// decryptable.
func (cp *Coprocessor) PublicDecrypt(handles ...types.Handle) (map[types.Handle]uint64, error) {
	out := make(map[types.Handle]uint64, len(handles))
	for _, h := range handles {
		ct, rec, err := cp.loadAny(h)
		if err != nil {
			return nil, err
		}
		if !rec.Public {
			return nil, fmt.Errorf("%w: %s", ErrNotDecryptable, h)
		}
		v, err := cp.decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("cannot decrypt %s: %w", h, err)
		}
		out[h] = v
	}
	return out, nil
}
