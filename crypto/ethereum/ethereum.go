// Package ethereum wraps go-ethereum secp256k1 keys for wallet accounts:
// EIP-191 message signatures, EIP-712 decryption permits and ECIES
// re-encryption keys.
package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/tocipoco/DAO-Vote/types"
)

const (
	// SignatureLength is the size of an ECDSA signature in the [R || S || V]
	// format.
	SignatureLength = ethcrypto.SignatureLength
	// PubKeyLengthBytes is the size of a compressed public key.
	PubKeyLengthBytes = 33
	// PubKeyLengthBytesUncompressed is the size of an uncompressed public key.
	PubKeyLengthBytesUncompressed = 65

	signingPrefix = "\x19Ethereum Signed Message:\n"
)

// SignKeys represents an ECDSA pair of keys for signing.
type SignKeys struct {
	Public  ecdsa.PublicKey
	Private ecdsa.PrivateKey
}

// NewSignKeys creates an ECDSA pair of keys for signing.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate generates new keys.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// AddHexKey imports a private hex key, with or without the 0x prefix.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return err
	}
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// HexString returns the compressed public key and the private key as hex
// strings without prefix.
func (k *SignKeys) HexString() (string, string) {
	pub := hexutil.Encode(ethcrypto.CompressPubkey(&k.Public))
	priv := hexutil.Encode(ethcrypto.FromECDSA(&k.Private))
	return strings.TrimPrefix(pub, "0x"), strings.TrimPrefix(priv, "0x")
}

// PublicKey returns the compressed public key.
func (k *SignKeys) PublicKey() types.HexBytes {
	return ethcrypto.CompressPubkey(&k.Public)
}

// Address returns the Ethereum address of the key pair.
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.Public)
}

// AddressString returns the checksummed address.
func (k *SignKeys) AddressString() string {
	return k.Address().Hex()
}

// SignEthereum signs the EIP-191 hash of message. The recovery byte is 0 or 1.
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private.D == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return ethcrypto.Sign(HashMessage(message), &k.Private)
}

// SignHash signs a 32 byte digest as a wallet would, with the recovery byte
// set to 27 or 28.
func (k *SignKeys) SignHash(hash []byte) ([]byte, error) {
	if k.Private.D == nil {
		return nil, fmt.Errorf("no private key available")
	}
	sig, err := ethcrypto.Sign(hash, &k.Private)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// HashMessage returns the EIP-191 hash of message.
func HashMessage(message []byte) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s%d%s", signingPrefix, len(message), message)))
}

// HashRaw returns the keccak256 hash of data.
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// PubKeyFromSignature recovers the public key from a digest and a signature,
// accepting recovery bytes 0/1 and 27/28.
func PubKeyFromSignature(hash, signature []byte) (*ecdsa.PublicKey, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return nil, fmt.Errorf("invalid signature recovery byte %d", signature[64])
	}
	return ethcrypto.SigToPub(hash, sig)
}

// AddrFromSignature recovers the signer address of an EIP-191 signed message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	pub, err := PubKeyFromSignature(HashMessage(message), signature)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// AddrFromPublicKey returns the address of a compressed or uncompressed
// public key.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	var (
		pk  *ecdsa.PublicKey
		err error
	)
	switch len(pub) {
	case PubKeyLengthBytes:
		pk, err = ethcrypto.DecompressPubkey(pub)
	case PubKeyLengthBytesUncompressed:
		pk, err = ethcrypto.UnmarshalPubkey(pub)
	default:
		return common.Address{}, fmt.Errorf("invalid public key length %d", len(pub))
	}
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pk), nil
}
