package storage

import (
	"math/big"

	"github.com/tocipoco/DAO-Vote/types"
)

// NetworkKeys is the co-processor ElGamal key pair.
type NetworkKeys struct {
	X          *big.Int `cbor:"0,keyasint"`
	Y          *big.Int `cbor:"1,keyasint"`
	PrivateKey *big.Int `cbor:"2,keyasint"`
}

// CiphertextRecord is a ciphertext held by the co-processor.
type CiphertextRecord struct {
	Type types.FHEType `cbor:"0,keyasint"`
	// Data is the serialized ElGamal ciphertext.
	Data []byte `cbor:"1,keyasint"`
	// Public marks the plaintext as decryptable by anyone.
	Public bool `cbor:"2,keyasint,omitempty"`
}
