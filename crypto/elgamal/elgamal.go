// Package elgamal implements additively homomorphic ElGamal encryption over
// an ecc.Point curve. Messages are encoded as m*G so ciphertexts can be added
// and decryption requires solving a bounded discrete logarithm.
package elgamal

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/tocipoco/DAO-Vote/crypto/ecc"
)

// RandK function generates a random k value for encryption, in the range
// [1, order).
func RandK(curve ecc.Point) (*big.Int, error) {
	for {
		k, err := rand.Int(rand.Reader, curve.Order())
		if err != nil {
			return nil, fmt.Errorf("failed to generate random k: %v", err)
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}

// Encrypt function encrypts a message using the public key provided as
// elliptic curve point. It generates a random k and returns the two points
// that represent the encrypted message and the random k used to encrypt it.
// It returns an error if any.
func Encrypt(publicKey ecc.Point, msg *big.Int) (ecc.Point, ecc.Point, *big.Int, error) {
	k, err := RandK(publicKey)
	if err != nil {
		return nil, nil, nil, err
	}
	c1, c2, err := EncryptWithK(publicKey, msg, k)
	if err != nil {
		return nil, nil, nil, err
	}
	return c1, c2, k, nil
}

// EncryptWithK function encrypts a message using the public key provided as
// elliptic curve point and the random k value provided. It returns the two
// points that represent the encrypted message and error if any. A zero k
// produces a trivial (publicly known) encryption.
func EncryptWithK(pubKey ecc.Point, msg, k *big.Int) (ecc.Point, ecc.Point, error) {
	if msg == nil || k == nil {
		return nil, nil, fmt.Errorf("nil message or randomness")
	}
	if msg.Sign() < 0 || k.Sign() < 0 {
		return nil, nil, fmt.Errorf("negative message or randomness")
	}
	m := new(big.Int).Mod(msg, pubKey.Order())
	// C1 = k * G
	c1 := pubKey.New()
	c1.ScalarBaseMult(k)
	// s = k * pubKey
	s := pubKey.New()
	s.ScalarMult(pubKey, k)
	// M = m * G
	mPoint := pubKey.New()
	mPoint.ScalarBaseMult(m)
	// C2 = M + s
	c2 := pubKey.New()
	c2.Add(mPoint, s)
	return c1, c2, nil
}

// GenerateKey generates a new public/private ElGamal encryption key pair.
func GenerateKey(curve ecc.Point) (publicKey ecc.Point, privateKey *big.Int, err error) {
	d, err := RandK(curve)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key scalar: %v", err)
	}
	return PublicKey(curve, d), d, nil
}

// PublicKey derives the public key d*G of the private scalar d.
func PublicKey(curve ecc.Point, privateKey *big.Int) ecc.Point {
	publicKey := curve.New()
	publicKey.ScalarBaseMult(privateKey)
	return publicKey
}

// DecryptPoint returns the message point M = c2 - d*c1.
func DecryptPoint(privateKey *big.Int, c1, c2 ecc.Point) ecc.Point {
	dC1 := c2.New()
	dC1.ScalarMult(c1, privateKey)
	negDC1 := c2.New()
	negDC1.Neg(dC1)
	m := c2.New()
	m.Add(c2, negDC1)
	return m
}

// Decrypt decrypts the given ciphertext (c1, c2) using the private key.
// It returns the point M = c2 - d*c1 and the discrete log message scalar,
// searched in [0, maxMessage]. If no solution is found, returns an error.
func Decrypt(publicKey ecc.Point, privateKey *big.Int, c1, c2 ecc.Point, maxMessage uint64) (ecc.Point, *big.Int, error) {
	m := DecryptPoint(privateKey, c1, c2)
	message, err := DiscreteLogTable(publicKey, maxMessage).Solve(m)
	if err != nil {
		return nil, nil, err
	}
	return m, new(big.Int).SetUint64(message), nil
}

// IsEncryptionOf reports whether (c1, c2) encrypts msg, comparing the
// decrypted point with msg*G without solving a discrete logarithm.
func IsEncryptionOf(privateKey *big.Int, c1, c2 ecc.Point, msg *big.Int) bool {
	m := DecryptPoint(privateKey, c1, c2)
	expected := m.New()
	expected.ScalarBaseMult(msg)
	return m.Equal(expected)
}

// CheckK checks if a given k was used to produce the ciphertext (c1, c2) under the given publicKey.
// It returns true if c1 == k * G, false otherwise.
// This does not require decrypting the message or computing the discrete log.
func CheckK(c1 ecc.Point, k *big.Int) bool {
	kCheck := c1.New()
	kCheck.ScalarBaseMult(k)
	return kCheck.Equal(c1)
}
