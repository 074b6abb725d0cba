package ethereum

import (
	"crypto/rand"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// GenerateEphemeralKeypair returns a fresh secp256k1 key pair used to receive
// re-encrypted plaintexts. The public key is uncompressed.
func GenerateEphemeralKeypair() (privateKey, publicKey []byte, err error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	return ethcrypto.FromECDSA(key), ethcrypto.FromECDSAPub(&key.PublicKey), nil
}

// Reencrypt encrypts msg to the given uncompressed public key with ECIES.
func Reencrypt(publicKey, msg []byte) ([]byte, error) {
	pub, err := ethcrypto.UnmarshalPubkey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid re-encryption public key: %w", err)
	}
	return ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), msg, nil, nil)
}

// DecryptReencrypted opens a message produced by Reencrypt.
func DecryptReencrypted(privateKey, ciphertext []byte) ([]byte, error) {
	key, err := ethcrypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid re-encryption private key: %w", err)
	}
	return ecies.ImportECDSA(key).Decrypt(ciphertext, nil, nil)
}
