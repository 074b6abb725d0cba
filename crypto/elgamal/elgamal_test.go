package elgamal

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/tocipoco/DAO-Vote/crypto/ecc/bjj"
)

const testMaxMessage = 1 << 10

func TestGenerateKey(t *testing.T) {
	c := qt.New(t)

	publicKey, privateKey, err := GenerateKey(bjj.New())
	c.Assert(err, qt.IsNil)
	c.Assert(publicKey, qt.Not(qt.IsNil))
	c.Assert(privateKey.Sign(), qt.Equals, 1)

	// publicKey = privateKey * G
	testPoint := bjj.New()
	testPoint.SetGenerator()
	testPoint.ScalarMult(testPoint, privateKey)
	c.Assert(testPoint.Equal(publicKey), qt.IsTrue)
	c.Assert(PublicKey(bjj.New(), privateKey).Equal(publicKey), qt.IsTrue)
}

func TestEncryptDecrypt(t *testing.T) {
	c := qt.New(t)

	publicKey, privateKey, err := GenerateKey(bjj.New())
	c.Assert(err, qt.IsNil)

	for _, m := range []uint64{0, 1, 42, 999, testMaxMessage} {
		msg := new(big.Int).SetUint64(m)
		c1, c2, k, err := Encrypt(publicKey, msg)
		c.Assert(err, qt.IsNil)
		c.Assert(CheckK(c1, k), qt.IsTrue)

		M, recovered, err := Decrypt(publicKey, privateKey, c1, c2, testMaxMessage)
		c.Assert(err, qt.IsNil)
		c.Assert(recovered.Uint64(), qt.Equals, m)
		c.Assert(IsEncryptionOf(privateKey, c1, c2, msg), qt.IsTrue)

		// M = m * G
		testPoint := bjj.New()
		testPoint.ScalarBaseMult(msg)
		c.Assert(testPoint.Equal(M), qt.IsTrue)
	}
	// the message scalar passed in is not modified
	msg := big.NewInt(7)
	_, _, _, err = Encrypt(publicKey, msg)
	c.Assert(err, qt.IsNil)
	c.Assert(msg.Int64(), qt.Equals, int64(7))
}

func TestDecryptOutOfRange(t *testing.T) {
	c := qt.New(t)

	publicKey, privateKey, err := GenerateKey(bjj.New())
	c.Assert(err, qt.IsNil)
	c1, c2, _, err := Encrypt(publicKey, big.NewInt(testMaxMessage+1))
	c.Assert(err, qt.IsNil)
	_, _, err = Decrypt(publicKey, privateKey, c1, c2, testMaxMessage)
	c.Assert(err, qt.ErrorIs, ErrNoDiscreteLog)
	// equality checks still work outside the discrete log range
	c.Assert(IsEncryptionOf(privateKey, c1, c2, big.NewInt(testMaxMessage+1)), qt.IsTrue)
	c.Assert(IsEncryptionOf(privateKey, c1, c2, big.NewInt(1)), qt.IsFalse)
}

func TestTrivialEncryption(t *testing.T) {
	c := qt.New(t)

	publicKey, privateKey, err := GenerateKey(bjj.New())
	c.Assert(err, qt.IsNil)
	c1, c2, err := EncryptWithK(publicKey, big.NewInt(3), big.NewInt(0))
	c.Assert(err, qt.IsNil)
	// C1 is the identity so anyone can read C2 = 3*G
	identity := bjj.New()
	c.Assert(c1.Equal(identity), qt.IsTrue)
	_, m, err := Decrypt(publicKey, privateKey, c1, c2, testMaxMessage)
	c.Assert(err, qt.IsNil)
	c.Assert(m.Int64(), qt.Equals, int64(3))

	_, _, err = EncryptWithK(publicKey, big.NewInt(-1), big.NewInt(1))
	c.Assert(err, qt.ErrorMatches, "negative message or randomness")
}

func TestDiscreteLogTableIsShared(t *testing.T) {
	c := qt.New(t)

	t1 := DiscreteLogTable(bjj.New(), 100)
	t2 := DiscreteLogTable(bjj.New(), 100)
	c.Assert(t1 == t2, qt.IsTrue)
	c.Assert(t1.Max(), qt.Equals, uint64(100))

	// values above the bound are rejected even when the table would reach them
	p := bjj.New()
	p.ScalarBaseMult(big.NewInt(105))
	_, err := t1.Solve(p)
	c.Assert(err, qt.ErrorIs, ErrNoDiscreteLog)
	p.ScalarBaseMult(big.NewInt(100))
	x, err := t1.Solve(p)
	c.Assert(err, qt.IsNil)
	c.Assert(x, qt.Equals, uint64(100))
}
