// Package poseidon hashes arbitrary length inputs with the iden3 Poseidon
// implementation, chunking them into groups of 16 field elements.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// bytesPerElement keeps every chunk below the field modulus.
const bytesPerElement = 31

func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) > 256 {
		return nil, fmt.Errorf("too many inputs")
	} else if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	hashes := []*big.Int{}
	chunk := []*big.Int{}
	for _, input := range inputs {
		if len(chunk) == 16 {
			hash, err := poseidon.Hash(chunk)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, hash)
			chunk = []*big.Int{}
		}
		chunk = append(chunk, input)
	}
	if len(chunk) > 0 {
		hash, err := poseidon.Hash(chunk)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	return poseidon.Hash(hashes)
}

// BytesToElements splits data into big-endian field elements of at most 31
// bytes each. The length of data is prepended so different splits of the same
// bytes do not collide.
func BytesToElements(data []byte) []*big.Int {
	elems := []*big.Int{big.NewInt(int64(len(data)))}
	for i := 0; i < len(data); i += bytesPerElement {
		end := min(i+bytesPerElement, len(data))
		elems = append(elems, new(big.Int).SetBytes(data[i:end]))
	}
	return elems
}
