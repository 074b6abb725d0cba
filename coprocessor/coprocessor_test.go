package coprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"

	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
)

const testChainID = 31337

var daoAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type testEnv struct {
	cp     *Coprocessor
	client *Client
	now    time.Time
}

func newTestEnv(c *qt.C) *testEnv {
	env := &testEnv{now: time.Unix(1_760_000_000, 0)}
	cp, err := New(storage.New(memdb.New()), Config{
		ChainID:      testChainID,
		MaxPlaintext: 1 << 10,
		Now:          func() time.Time { return env.now },
	})
	c.Assert(err, qt.IsNil)
	env.cp = cp
	env.client = NewClient(cp)
	return env
}

func newAccount(c *qt.C) *ethereum.SignKeys {
	s := ethereum.NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)
	return s
}

// encryptAndVerify encrypts v as user for the DAO and verifies it as the
// contract would.
func (env *testEnv) encryptAndVerify(c *qt.C, user common.Address, v uint64) types.Handle {
	in, err := env.client.CreateEncryptedInput(daoAddress, user).Add32(v).Encrypt(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(in.Handles, qt.HasLen, 1)
	h, err := env.cp.VerifyInput(in.Handles[0], in.InputProof, daoAddress, user)
	c.Assert(err, qt.IsNil)
	return h
}

func (env *testEnv) publicValue(c *qt.C, h types.Handle) uint64 {
	c.Assert(env.cp.AllowForDecryption(h), qt.IsNil)
	res, err := env.cp.PublicDecrypt(h)
	c.Assert(err, qt.IsNil)
	return res[h]
}

func TestNetworkKeyIsPersisted(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(memdb.New())

	cp1, err := New(stg, Config{ChainID: testChainID})
	c.Assert(err, qt.IsNil)
	cp2, err := New(stg, Config{ChainID: testChainID})
	c.Assert(err, qt.IsNil)
	c.Assert(cp1.PublicKey().Equal(cp2.PublicKey()), qt.IsTrue)
}

func TestTrivialEncrypt(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	zero1, err := env.cp.TrivialEncrypt(types.TypeUint32, 0)
	c.Assert(err, qt.IsNil)
	zero2, err := env.cp.TrivialEncrypt(types.TypeUint32, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(zero1, qt.Equals, zero2)
	c.Assert(zero1.Type(), qt.Equals, types.TypeUint32)

	one, err := env.cp.TrivialEncrypt(types.TypeUint32, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(one, qt.Not(qt.Equals), zero1)
	c.Assert(env.publicValue(c, one), qt.Equals, uint64(1))

	_, err = env.cp.TrivialEncrypt(types.TypeBool, 2)
	c.Assert(err, qt.ErrorIs, ErrTypeMismatch)
}

func TestVerifyInput(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	user := newAccount(c).Address()
	other := newAccount(c).Address()

	in, err := env.client.CreateEncryptedInput(daoAddress, user).Add32(1).AddBool(true).Encrypt(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(in.Handles, qt.HasLen, 2)
	c.Assert(in.Handles[0].Type(), qt.Equals, types.TypeUint32)
	c.Assert(in.Handles[1].Type(), qt.Equals, types.TypeBool)

	// replaying the input for another user or contract fails
	_, err = env.cp.VerifyInput(in.Handles[0], in.InputProof, daoAddress, other)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	_, err = env.cp.VerifyInput(in.Handles[0], in.InputProof, other, user)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	// tampered proofs fail: flip a byte of the first response scalar
	tampered := append(types.HexBytes{}, in.InputProof...)
	tampered[sizeInputEntry] ^= 0x01
	_, err = env.cp.VerifyInput(in.Handles[0], tampered, daoAddress, user)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	_, err = env.cp.VerifyInput(in.Handles[0], in.InputProof[:10], daoAddress, user)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	h, err := env.cp.VerifyInput(in.Handles[0], in.InputProof, daoAddress, user)
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, in.Handles[0])
	allowed, err := env.cp.IsAllowed(h, daoAddress)
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsTrue)
	c.Assert(env.publicValue(c, h), qt.Equals, uint64(1))

	_, err = env.client.CreateEncryptedInput(daoAddress, user).Add32(MaxUint32 + 1).Encrypt(context.Background())
	c.Assert(err, qt.ErrorMatches, ".*does not fit in 32 bits")
	_, err = env.client.CreateEncryptedInput(daoAddress, user).Encrypt(context.Background())
	c.Assert(err, qt.IsNotNil)
}

func TestTallyOperations(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	user := newAccount(c).Address()

	zero, err := env.cp.TrivialEncrypt(types.TypeUint32, 0)
	c.Assert(err, qt.IsNil)
	one, err := env.cp.TrivialEncrypt(types.TypeUint32, 1)
	c.Assert(err, qt.IsNil)

	yes, no := zero, zero
	for _, ballot := range []uint64{1, 0, 1, 7, 1} {
		h := env.encryptAndVerify(c, user, ballot)
		isYes, err := env.cp.Eq(h, 1)
		c.Assert(err, qt.IsNil)
		c.Assert(isYes.Type(), qt.Equals, types.TypeBool)
		isNo, err := env.cp.Eq(h, 0)
		c.Assert(err, qt.IsNil)
		addYes, err := env.cp.Select(isYes, one, zero)
		c.Assert(err, qt.IsNil)
		addNo, err := env.cp.Select(isNo, one, zero)
		c.Assert(err, qt.IsNil)
		yes, err = env.cp.Add(yes, addYes)
		c.Assert(err, qt.IsNil)
		no, err = env.cp.Add(no, addNo)
		c.Assert(err, qt.IsNil)
	}
	// the out of range ballot counts for neither side
	c.Assert(env.publicValue(c, yes), qt.Equals, uint64(3))
	c.Assert(env.publicValue(c, no), qt.Equals, uint64(1))

	// type checks
	isYes, err := env.cp.Eq(one, 1)
	c.Assert(err, qt.IsNil)
	_, err = env.cp.Eq(isYes, 1)
	c.Assert(err, qt.ErrorIs, ErrTypeMismatch)
	_, err = env.cp.Add(one, isYes)
	c.Assert(err, qt.ErrorIs, ErrTypeMismatch)
	_, err = env.cp.Select(one, one, zero)
	c.Assert(err, qt.ErrorIs, ErrTypeMismatch)
	_, err = env.cp.Select(isYes, one, isYes)
	c.Assert(err, qt.ErrorIs, ErrTypeMismatch)
	_, err = env.cp.Add(one, types.Handle{0x01, 31: byte(types.TypeUint32)})
	c.Assert(err, qt.ErrorIs, ErrUnknownHandle)
}

func TestPublicDecryptRequiresFlag(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	h := env.encryptAndVerify(c, newAccount(c).Address(), 5)
	_, err := env.cp.PublicDecrypt(h)
	c.Assert(err, qt.ErrorIs, ErrNotDecryptable)
	c.Assert(env.publicValue(c, h), qt.Equals, uint64(5))
}

func TestUserDecrypt(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	user := newAccount(c)
	stranger := newAccount(c)

	h := env.encryptAndVerify(c, user.Address(), 1)
	c.Assert(env.cp.Allow(h, user.Address()), qt.IsNil)
	pairs := []HandleContractPair{{Handle: h, ContractAddress: daoAddress}}
	contracts := []common.Address{daoAddress}
	start := uint64(env.now.Unix())

	sign := func(signer *ethereum.SignKeys, kp *Keypair, days uint64) []byte {
		permit, err := env.client.CreateEIP712(ctx, kp.PublicKey, contracts, start, days)
		c.Assert(err, qt.IsNil)
		sig, err := signer.SignTypedData(permit)
		c.Assert(err, qt.IsNil)
		return sig
	}

	kp, err := env.client.GenerateKeypair()
	c.Assert(err, qt.IsNil)
	sig := sign(user, kp, types.DefaultSignatureDurationDays)

	res, err := env.client.UserDecrypt(ctx, pairs, kp, sig, contracts, user.Address(), start, types.DefaultSignatureDurationDays)
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.DeepEquals, map[types.Handle]uint64{h: 1})

	c.Run("signature from another account", func(c *qt.C) {
		_, err := env.client.UserDecrypt(ctx, pairs, kp, sign(stranger, kp, 1), contracts, user.Address(), start, 1)
		c.Assert(err, qt.ErrorIs, ErrInvalidSignature)
	})

	c.Run("signature over other parameters", func(c *qt.C) {
		_, err := env.client.UserDecrypt(ctx, pairs, kp, sig, contracts, user.Address(), start, 1)
		c.Assert(err, qt.ErrorIs, ErrInvalidSignature)
	})

	c.Run("caller without access", func(c *qt.C) {
		_, err := env.client.UserDecrypt(ctx, pairs, kp, sign(stranger, kp, 1), contracts, stranger.Address(), start, 1)
		c.Assert(err, qt.ErrorIs, ErrNotAllowed)
	})

	c.Run("contract not listed", func(c *qt.C) {
		other := []common.Address{common.HexToAddress("0x01")}
		permit, err := env.client.CreateEIP712(ctx, kp.PublicKey, other, start, 1)
		c.Assert(err, qt.IsNil)
		otherSig, err := user.SignTypedData(permit)
		c.Assert(err, qt.IsNil)
		_, err = env.client.UserDecrypt(ctx, pairs, kp, otherSig, other, user.Address(), start, 1)
		c.Assert(err, qt.ErrorIs, ErrContractNotListed)
	})

	c.Run("expired permit", func(c *qt.C) {
		shortSig := sign(user, kp, 1)
		env.now = env.now.Add(48 * time.Hour)
		defer func() { env.now = env.now.Add(-48 * time.Hour) }()
		_, err := env.client.UserDecrypt(ctx, pairs, kp, shortSig, contracts, user.Address(), start, 1)
		c.Assert(err, qt.ErrorIs, ErrPermitExpired)
	})

	c.Run("invalid requests", func(c *qt.C) {
		_, err := env.client.UserDecrypt(ctx, nil, kp, sig, contracts, user.Address(), start, 1)
		c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
		_, err = env.client.UserDecrypt(ctx, pairs, kp, sig, contracts, user.Address(), start, 0)
		c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
		_, err = env.client.UserDecrypt(ctx, pairs, kp, sig, nil, user.Address(), start, 1)
		c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
	})
}
