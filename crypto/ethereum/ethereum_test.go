package ethereum

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
)

func TestSignKeysGeneration(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	s := NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)

	pub, priv := s.HexString()
	c.Assert(pub, qt.Not(qt.Equals), "")
	c.Assert(priv, qt.Not(qt.Equals), "")

	// Test key import
	imported := NewSignKeys()
	c.Assert(imported.AddHexKey("0x"+priv), qt.IsNil)

	importedPub, importedPriv := imported.HexString()
	c.Assert(importedPub, qt.Equals, pub)
	c.Assert(importedPriv, qt.Equals, priv)
	c.Assert(imported.Address(), qt.Equals, s.Address())

	c.Assert(NewSignKeys().AddHexKey("zz"), qt.IsNotNil)
	_, err := NewSignKeys().SignEthereum([]byte("hello"))
	c.Assert(err, qt.ErrorMatches, "no private key available")
}

func TestAddressRecovery(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	testCases := []struct {
		name    string
		message []byte
	}{
		{
			name:    "simple message",
			message: []byte("join the dao"),
		},
		{
			name:    "different message",
			message: []byte("vote on proposal 1"),
		},
	}

	s := NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)

	expectedAddr, err := AddrFromPublicKey(s.PublicKey())
	c.Assert(err, qt.IsNil)
	c.Assert(expectedAddr.String(), qt.Equals, s.AddressString())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)

			signature, err := s.SignEthereum(tc.message)
			c.Assert(err, qt.IsNil)
			c.Assert(signature, qt.HasLen, SignatureLength)

			recoveredAddr, err := AddrFromSignature(tc.message, signature)
			c.Assert(err, qt.IsNil)
			c.Assert(recoveredAddr, qt.Equals, expectedAddr)
		})
	}

	_, err = AddrFromSignature([]byte("x"), []byte{1, 2, 3})
	c.Assert(err, qt.ErrorMatches, "invalid signature length.*")
	_, err = AddrFromPublicKey([]byte{1, 2})
	c.Assert(err, qt.ErrorMatches, "invalid public key length.*")
}

func TestDecryptionPermit(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	user := NewSignKeys()
	c.Assert(user.Generate(), qt.IsNil)
	_, ephemeralPub, err := GenerateEphemeralKeypair()
	c.Assert(err, qt.IsNil)

	dao := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	permit := &DecryptionPermit{
		PublicKey:         ephemeralPub,
		ContractAddresses: []common.Address{dao},
		StartTimestamp:    uint64(start.Unix()),
		DurationDays:      1,
		ChainID:           31337,
		VerifyingContract: common.HexToAddress("0x0000000000000000000000000000000000000044"),
	}

	signature, err := user.SignTypedData(permit)
	c.Assert(err, qt.IsNil)
	c.Assert(signature[64] >= 27, qt.IsTrue)

	signer, err := AddrFromTypedDataSignature(permit, signature)
	c.Assert(err, qt.IsNil)
	c.Assert(signer, qt.Equals, user.Address())

	// any change to the signed fields recovers another address
	tampered := *permit
	tampered.DurationDays = 365
	other, err := AddrFromTypedDataSignature(&tampered, signature)
	c.Assert(err, qt.IsNil)
	c.Assert(other, qt.Not(qt.Equals), user.Address())

	tampered = *permit
	tampered.ChainID = 1
	other, err = AddrFromTypedDataSignature(&tampered, signature)
	c.Assert(err, qt.IsNil)
	c.Assert(other, qt.Not(qt.Equals), user.Address())

	// validity window
	c.Assert(permit.ValidAt(start), qt.IsTrue)
	c.Assert(permit.ValidAt(start.Add(24*time.Hour)), qt.IsTrue)
	c.Assert(permit.ValidAt(start.Add(24*time.Hour+time.Second)), qt.IsFalse)
	c.Assert(permit.ValidAt(start.Add(-time.Second)), qt.IsFalse)

	c.Assert(permit.Covers(dao), qt.IsTrue)
	c.Assert(permit.Covers(common.Address{}), qt.IsFalse)
}

func TestReencryption(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	priv, pub, err := GenerateEphemeralKeypair()
	c.Assert(err, qt.IsNil)

	msg := []byte{0, 0, 0, 0, 0, 0, 0, 7}
	ct, err := Reencrypt(pub, msg)
	c.Assert(err, qt.IsNil)
	c.Assert(ct, qt.Not(qt.DeepEquals), msg)

	plain, err := DecryptReencrypted(priv, ct)
	c.Assert(err, qt.IsNil)
	c.Assert(plain, qt.DeepEquals, msg)

	// another key cannot open it
	otherPriv, _, err := GenerateEphemeralKeypair()
	c.Assert(err, qt.IsNil)
	_, err = DecryptReencrypted(otherPriv, ct)
	c.Assert(err, qt.IsNotNil)

	_, err = Reencrypt([]byte{4, 1}, msg)
	c.Assert(err, qt.ErrorMatches, "invalid re-encryption public key.*")
}
