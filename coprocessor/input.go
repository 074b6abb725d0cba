package coprocessor

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/crypto/ecc"
	"github.com/tocipoco/DAO-Vote/crypto/elgamal"
	"github.com/tocipoco/DAO-Vote/types"
)

const (
	// maxInputs is the largest number of values in one encrypted input.
	maxInputs = 255
	// sizeInputEntry is the encoded size of one value: its type, the
	// ciphertext and the proof of knowledge of its plaintext.
	sizeInputEntry = 1 + elgamal.SizeCiphertext + elgamal.SizeInputProof
)

// EncryptedInput is the result of encrypting a batch of values for a contract
// call: one handle per value plus a single proof blob covering all of them.
type EncryptedInput struct {
	Handles    []types.Handle `json:"handles"`
	InputProof types.HexBytes `json:"inputProof"`
}

type inputEntry struct {
	typ   types.FHEType
	ct    *elgamal.Ciphertext
	proof *elgamal.InputProof
}

// inputBinding ties a value to the chain, the contract it is meant for, the
// user submitting it and its position in the input.
func inputBinding(chainID uint64, contract, user common.Address, index int) []byte {
	b := binary.BigEndian.AppendUint64(nil, chainID)
	b = append(b, contract.Bytes()...)
	b = append(b, user.Bytes()...)
	return append(b, byte(index))
}

func encodeInputs(entries []*inputEntry) []byte {
	data := []byte{byte(len(entries))}
	for _, e := range entries {
		data = append(data, byte(e.typ))
		data = append(data, e.ct.Serialize()...)
		data = append(data, e.proof.Serialize()...)
	}
	return data
}

func decodeInputs(curve ecc.Point, data []byte) ([]*inputEntry, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty proof", ErrInvalidProof)
	}
	count := int(data[0])
	if count == 0 || len(data) != 1+count*sizeInputEntry {
		return nil, fmt.Errorf("%w: malformed proof of %d bytes", ErrInvalidProof, len(data))
	}
	entries := make([]*inputEntry, count)
	for i := range entries {
		raw := data[1+i*sizeInputEntry : 1+(i+1)*sizeInputEntry]
		e := &inputEntry{
			typ:   types.FHEType(raw[0]),
			ct:    elgamal.NewCiphertext(curve),
			proof: &elgamal.InputProof{},
		}
		if e.typ != types.TypeUint32 && e.typ != types.TypeBool {
			return nil, fmt.Errorf("%w: unsupported type %d", ErrInvalidProof, raw[0])
		}
		if err := e.ct.Deserialize(raw[1 : 1+elgamal.SizeCiphertext]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		if err := e.proof.Deserialize(curve, raw[1+elgamal.SizeCiphertext:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		entries[i] = e
	}
	return entries, nil
}

type pendingValue struct {
	typ   types.FHEType
	value uint64
}

// InputBuilder accumulates the values of an encrypted input.
type InputBuilder struct {
	client   *Client
	contract common.Address
	user     common.Address
	values   []pendingValue
	err      error
}

// Add32 appends an euint32 value.
func (b *InputBuilder) Add32(v uint64) *InputBuilder {
	if v > MaxUint32 {
		b.err = fmt.Errorf("value %d does not fit in 32 bits", v)
		return b
	}
	b.values = append(b.values, pendingValue{typ: types.TypeUint32, value: v})
	return b
}

// AddBool appends an ebool value.
func (b *InputBuilder) AddBool(v bool) *InputBuilder {
	value := uint64(0)
	if v {
		value = 1
	}
	b.values = append(b.values, pendingValue{typ: types.TypeBool, value: value})
	return b
}

// encrypt builds the handles and the proof with the given network key.
func (b *InputBuilder) encrypt(chainID uint64, publicKey ecc.Point) (*EncryptedInput, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.values) == 0 || len(b.values) > maxInputs {
		return nil, fmt.Errorf("an encrypted input holds between 1 and %d values, got %d", maxInputs, len(b.values))
	}
	out := &EncryptedInput{}
	entries := make([]*inputEntry, len(b.values))
	for i, v := range b.values {
		msg := new(big.Int).SetUint64(v.value)
		k, err := elgamal.RandK(publicKey)
		if err != nil {
			return nil, err
		}
		ct, err := elgamal.NewCiphertext(publicKey).Encrypt(msg, publicKey, k)
		if err != nil {
			return nil, err
		}
		binding := inputBinding(chainID, b.contract, b.user, i)
		proof, err := elgamal.ProveEncryption(publicKey, ct, msg, k, binding)
		if err != nil {
			return nil, fmt.Errorf("cannot prove input %d: %w", i, err)
		}
		entries[i] = &inputEntry{typ: v.typ, ct: ct, proof: proof}
		out.Handles = append(out.Handles, computeHandle(v.typ, ct, binding))
	}
	out.InputProof = encodeInputs(entries)
	return out, nil
}
