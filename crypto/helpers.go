// Package crypto holds small field helpers shared by the crypto packages.
package crypto

import "math/big"

// SerializedFieldSize is the size in bytes of a serialized field element.
const SerializedFieldSize = 32

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses the curve scalar field to represent the provided number.
func BigToFF(baseField, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(baseField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, baseField)
}

// PadBytes left pads b with zeros up to SerializedFieldSize bytes.
func PadBytes(b []byte) []byte {
	for len(b) < SerializedFieldSize {
		b = append([]byte{0}, b...)
	}
	return b
}
