package elgamal

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"

	"github.com/tocipoco/DAO-Vote/crypto"
	"github.com/tocipoco/DAO-Vote/crypto/ecc"
	"github.com/tocipoco/DAO-Vote/crypto/hash/poseidon"
)

// SizeInputProof is the serialized size of an InputProof: two points and two
// scalars.
const SizeInputProof = 2*sizePoint + 2*sizeCoord

// ErrInvalidProof is returned when an input proof does not verify.
var ErrInvalidProof = fmt.Errorf("invalid input proof")

// InputProof is a non-interactive proof of knowledge of the plaintext m and
// randomness k behind a ciphertext C1 = k*G, C2 = m*G + k*P. The Fiat-Shamir
// challenge is a Poseidon hash over the public key, the ciphertext, the
// commitments and an arbitrary binding (contract, user, index), so a proof
// cannot be replayed for another context.
type InputProof struct {
	R1 ecc.Point
	R2 ecc.Point
	S1 *big.Int
	S2 *big.Int
}

// ProveEncryption builds the proof for ct, which must encrypt msg with
// randomness k under publicKey.
func ProveEncryption(publicKey ecc.Point, ct *Ciphertext, msg, k *big.Int, binding []byte) (*InputProof, error) {
	order := publicKey.Order()
	r1, err := RandK(publicKey)
	if err != nil {
		return nil, err
	}
	r2, err := RandK(publicKey)
	if err != nil {
		return nil, err
	}
	// R1 = r1*G, R2 = r2*G + r1*P
	R1 := publicKey.New()
	R1.ScalarBaseMult(r1)
	r2G := publicKey.New()
	r2G.ScalarBaseMult(r2)
	r1P := publicKey.New()
	r1P.ScalarMult(publicKey, r1)
	R2 := publicKey.New()
	R2.Add(r2G, r1P)

	e, err := challenge(publicKey, ct, R1, R2, binding)
	if err != nil {
		return nil, err
	}
	// s1 = r1 + e*k, s2 = r2 + e*m
	s1 := new(big.Int).Mul(e, k)
	s1.Add(s1, r1).Mod(s1, order)
	s2 := new(big.Int).Mul(e, new(big.Int).Mod(msg, order))
	s2.Add(s2, r2).Mod(s2, order)
	return &InputProof{R1: R1, R2: R2, S1: s1, S2: s2}, nil
}

// Verify checks s1*G == R1 + e*C1 and s2*G + s1*P == R2 + e*C2.
func (p *InputProof) Verify(publicKey ecc.Point, ct *Ciphertext, binding []byte) error {
	if p == nil || p.R1 == nil || p.R2 == nil || p.S1 == nil || p.S2 == nil {
		return fmt.Errorf("%w: incomplete proof", ErrInvalidProof)
	}
	e, err := challenge(publicKey, ct, p.R1, p.R2, binding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	left1 := publicKey.New()
	left1.ScalarBaseMult(p.S1)
	eC1 := publicKey.New()
	eC1.ScalarMult(ct.C1, e)
	right1 := publicKey.New()
	right1.Add(p.R1, eC1)
	if !left1.Equal(right1) {
		return fmt.Errorf("%w: randomness commitment mismatch", ErrInvalidProof)
	}

	s2G := publicKey.New()
	s2G.ScalarBaseMult(p.S2)
	s1P := publicKey.New()
	s1P.ScalarMult(publicKey, p.S1)
	left2 := publicKey.New()
	left2.Add(s2G, s1P)
	eC2 := publicKey.New()
	eC2.ScalarMult(ct.C2, e)
	right2 := publicKey.New()
	right2.Add(p.R2, eC2)
	if !left2.Equal(right2) {
		return fmt.Errorf("%w: message commitment mismatch", ErrInvalidProof)
	}
	return nil
}

func challenge(publicKey ecc.Point, ct *Ciphertext, R1, R2 ecc.Point, binding []byte) (*big.Int, error) {
	inputs := []*big.Int{}
	for _, pt := range []ecc.Point{publicKey, ct.C1, ct.C2, R1, R2} {
		x, y := pt.Point()
		inputs = append(inputs, x, y)
	}
	inputs = append(inputs, poseidon.BytesToElements(binding)...)
	h, err := poseidon.MultiPoseidon(inputs...)
	if err != nil {
		return nil, fmt.Errorf("cannot compute challenge: %w", err)
	}
	return crypto.BigToFF(publicKey.Order(), h), nil
}

// Serialize returns R1.X, R1.Y, R2.X, R2.Y, S1, S2 as 32 byte little-endian
// values.
func (p *InputProof) Serialize() []byte {
	var buf bytes.Buffer
	r1x, r1y := p.R1.Point()
	r2x, r2y := p.R2.Point()
	for _, bi := range []*big.Int{r1x, r1y, r2x, r2y, p.S1, p.S2} {
		buf.Write(arbo.BigIntToBytes(sizeCoord, bi))
	}
	return buf.Bytes()
}

// Deserialize parses a proof produced by Serialize, using curve to build the
// points.
func (p *InputProof) Deserialize(curve ecc.Point, data []byte) error {
	if len(data) != SizeInputProof {
		return fmt.Errorf("%w: got %d bytes, expected %d bytes", ErrInvalidProof, len(data), SizeInputProof)
	}
	read := func(i int) *big.Int {
		return arbo.BytesToBigInt(data[i*sizeCoord : (i+1)*sizeCoord])
	}
	r1 := curve.SetPoint(read(0), read(1))
	r2 := curve.SetPoint(read(2), read(3))
	if !r1.IsOnCurve() || !r2.IsOnCurve() {
		return fmt.Errorf("%w: commitment not on the curve", ErrInvalidProof)
	}
	p.R1, p.R2, p.S1, p.S2 = r1, r2, read(4), read(5)
	return nil
}
