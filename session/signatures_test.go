package session

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"

	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
)

var (
	userA     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	userB     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	contractX = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	contractY = common.HexToAddress("0x0000000000000000000000000000000000000c02")
)

func testSignature(user common.Address, start time.Time, days uint64, contracts ...common.Address) *CachedSignature {
	return &CachedSignature{
		User:           user,
		Contracts:      contracts,
		Keypair:        coprocessor.Keypair{PrivateKey: []byte{1}, PublicKey: []byte{2}},
		Signature:      []byte{0xde, 0xad},
		StartTimestamp: uint64(start.Unix()),
		DurationDays:   days,
	}
}

func TestSignatureCacheBackends(t *testing.T) {
	for name, store := range map[string]KeyValueStore{
		"memory":  NewMemoryStore(),
		"storage": storage.New(memdb.New()),
	} {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			now := time.Unix(1_760_000_000, 0)
			cache := NewSignatureCache(store, 0, func() time.Time { return now })

			c.Assert(cache.Put(testSignature(userA, now, 1, contractX, contractY)), qt.IsNil)
			// the contract order is irrelevant
			sig, ok, err := cache.Get(userA, []common.Address{contractY, contractX})
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsTrue)
			c.Assert(sig.User, qt.Equals, userA)
			c.Assert([]byte(sig.Keypair.PublicKey), qt.DeepEquals, []byte{2})

			// a different contract set is a different entry
			_, ok, err = cache.Get(userA, []common.Address{contractX})
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsFalse)

			// expired entries are dropped on read
			now = now.Add(25 * time.Hour)
			_, ok, err = cache.Get(userA, []common.Address{contractX, contractY})
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsFalse)
			n, err := cache.Len()
			c.Assert(err, qt.IsNil)
			c.Assert(n, qt.Equals, 0)
		})
	}
}

func TestSignatureCacheNotYetValid(t *testing.T) {
	c := qt.New(t)
	now := time.Unix(1_760_000_000, 0)
	cache := NewSignatureCache(NewMemoryStore(), 0, func() time.Time { return now })
	c.Assert(cache.Put(testSignature(userA, now.Add(time.Hour), 1, contractX)), qt.IsNil)
	_, ok, err := cache.Get(userA, []common.Address{contractX})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestSignatureCacheSignOut(t *testing.T) {
	c := qt.New(t)
	now := time.Unix(1_760_000_000, 0)
	cache := NewSignatureCache(NewMemoryStore(), 0, func() time.Time { return now })
	c.Assert(cache.Put(testSignature(userA, now, 1, contractX)), qt.IsNil)
	c.Assert(cache.Put(testSignature(userA, now, 1, contractY)), qt.IsNil)
	c.Assert(cache.Put(testSignature(userB, now, 1, contractX)), qt.IsNil)

	c.Assert(cache.SignOut(userA), qt.IsNil)
	n, err := cache.Len()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	_, ok, err := cache.Get(userB, []common.Address{contractX})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	c.Assert(cache.Delete(userB, []common.Address{contractX}), qt.IsNil)
	n, err = cache.Len()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func TestSignatureCacheEviction(t *testing.T) {
	c := qt.New(t)
	now := time.Unix(1_760_000_000, 0)
	cache := NewSignatureCache(NewMemoryStore(), 2, func() time.Time { return now })

	c.Assert(cache.Put(testSignature(userA, now, 30, contractX)), qt.IsNil)
	c.Assert(cache.Put(testSignature(userA, now, 2, contractY)), qt.IsNil)
	// the third entry evicts the one closest to expiry, even if shorter lived
	c.Assert(cache.Put(testSignature(userB, now, 1, contractX)), qt.IsNil)

	n, err := cache.Len()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)
	_, ok, err := cache.Get(userA, []common.Address{contractY})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	_, ok, err = cache.Get(userA, []common.Address{contractX})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	_, ok, err = cache.Get(userB, []common.Address{contractX})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func testTally(id uint64) *types.Tally {
	return &types.Tally{ProposalID: id, Yes: id, No: 1}
}

func TestResultBook(t *testing.T) {
	c := qt.New(t)
	book := NewResultBook()
	for _, id := range []uint64{3, 1, 2} {
		book.Set(testTally(id))
	}
	all := book.All()
	c.Assert(all, qt.HasLen, 3)
	c.Assert(all[0].ProposalID, qt.Equals, uint64(1))
	c.Assert(all[2].ProposalID, qt.Equals, uint64(3))

	version := book.Version(2)
	book.Invalidate(2)
	_, ok := book.Get(2)
	c.Assert(ok, qt.IsFalse)
	c.Assert(book.Version(2), qt.Equals, version+1)
	c.Assert(book.SetIfVersion(version, testTally(2)), qt.IsFalse)
	_, ok = book.Get(2)
	c.Assert(ok, qt.IsFalse)
	c.Assert(book.SetIfVersion(version+1, testTally(2)), qt.IsTrue)
	_, ok = book.Get(2)
	c.Assert(ok, qt.IsTrue)
	book.Clear()
	c.Assert(book.All(), qt.HasLen, 0)
}
