package storage

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/tocipoco/DAO-Vote/crypto/ecc/bjj"
	"github.com/tocipoco/DAO-Vote/crypto/elgamal"
	"github.com/tocipoco/DAO-Vote/types"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func TestNetworkKeys(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	_, _, err := st.NetworkKeys(bjj.New())
	c.Assert(err, qt.Equals, ErrNotFound)

	pub, priv, err := elgamal.GenerateKey(bjj.New())
	c.Assert(err, qt.IsNil)
	c.Assert(st.SetNetworkKeys(pub, priv), qt.IsNil)

	loadedPub, loadedPriv, err := st.NetworkKeys(bjj.New())
	c.Assert(err, qt.IsNil)
	c.Assert(loadedPub.Equal(pub), qt.IsTrue)
	c.Assert(loadedPriv.Cmp(priv), qt.Equals, 0)
}

func TestCiphertextsAndACL(t *testing.T) {
	c := qt.New(t)
	st := New(memdb.New())

	h := types.Handle{1, 2, 3}
	_, err := st.Ciphertext(h)
	c.Assert(err, qt.Equals, ErrNotFound)

	rec := &CiphertextRecord{Type: types.TypeUint32, Data: []byte{9, 9}}
	c.Assert(st.SetCiphertext(h, rec), qt.IsNil)
	got, err := st.Ciphertext(h)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, rec)

	allowed, err := st.IsAllowed(h, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsFalse)

	c.Assert(st.Allow(h, alice), qt.IsNil)
	c.Assert(st.Allow(h, alice), qt.IsNil)
	allowed, err = st.IsAllowed(h, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsTrue)
	allowed, err = st.IsAllowed(h, bob)
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsFalse)

	accounts, err := st.AllowedAccounts(h)
	c.Assert(err, qt.IsNil)
	c.Assert(accounts, qt.DeepEquals, []common.Address{alice})
}

func TestDAOState(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	n, err := st.MemberCount()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, uint64(0))
	isMember, err := st.IsMember(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(isMember, qt.IsFalse)

	now := time.Unix(1_700_000_000, 0)
	proposal := &types.Proposal{
		ID:           1,
		Proposer:     alice,
		Description:  "Fund the community garden",
		StartTime:    now,
		EndTime:      now.Add(types.MinVotingDuration),
		EncryptedYes: types.Handle{0xaa},
		EncryptedNo:  types.Handle{0xbb},
	}

	b := st.NewBatch()
	c.Assert(b.SetMember(&types.Member{Address: alice, IsMember: true, JoinTime: now}), qt.IsNil)
	c.Assert(b.SetMemberCount(1), qt.IsNil)
	c.Assert(b.SetProposal(proposal), qt.IsNil)
	c.Assert(b.SetProposalCount(1), qt.IsNil)
	c.Assert(b.SetReceipt(1, bob), qt.IsNil)
	c.Assert(b.AddEvent(&types.Event{Index: 0, Type: types.EventMemberAdded, Account: alice}), qt.IsNil)
	c.Assert(b.AddEvent(&types.Event{Index: 1, Type: types.EventProposalCreated, ProposalID: 1}), qt.IsNil)
	c.Assert(b.SetEventCount(2), qt.IsNil)
	c.Assert(b.Commit(), qt.IsNil)

	isMember, err = st.IsMember(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(isMember, qt.IsTrue)
	members, err := st.Members()
	c.Assert(err, qt.IsNil)
	c.Assert(members, qt.HasLen, 1)
	c.Assert(members[0].JoinTime.Unix(), qt.Equals, now.Unix())

	n, err = st.MemberCount()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, uint64(1))
	n, err = st.ProposalCount()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, uint64(1))

	got, err := st.Proposal(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Description, qt.Equals, proposal.Description)
	c.Assert(got.EncryptedYes, qt.Equals, proposal.EncryptedYes)
	c.Assert(got.EndTime.Unix(), qt.Equals, proposal.EndTime.Unix())
	_, err = st.Proposal(2)
	c.Assert(err, qt.Equals, ErrNotFound)

	voted, err := st.HasVoted(1, bob)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
	voted, err = st.HasVoted(1, alice)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)
	voters, err := st.Voters(1)
	c.Assert(err, qt.IsNil)
	c.Assert(voters, qt.DeepEquals, []common.Address{bob})

	events, err := st.Events(0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 2)
	c.Assert(events[0].Type, qt.Equals, types.EventMemberAdded)
	c.Assert(events[1].Type, qt.Equals, types.EventProposalCreated)
	events, err = st.Events(1, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 1)
	events, err = st.Events(0, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 1)
	c.Assert(events[0].Index, qt.Equals, uint64(0))
}

func TestDiscardedBatch(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	b := st.NewBatch()
	c.Assert(b.SetMember(&types.Member{Address: alice, IsMember: true}), qt.IsNil)
	b.Discard()

	isMember, err := st.IsMember(alice)
	c.Assert(err, qt.IsNil)
	c.Assert(isMember, qt.IsFalse)
	c.Assert(st.NewBatch().SetProposal(&types.Proposal{}), qt.ErrorMatches, "invalid proposal id 0")
}

func TestKeyValues(t *testing.T) {
	c := qt.New(t)
	st := New(memdb.New())

	_, ok, err := st.Get("sig/a")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	c.Assert(st.Put("sig/a", []byte("one")), qt.IsNil)
	c.Assert(st.Put("sig/b", []byte("two")), qt.IsNil)
	c.Assert(st.Put("other", []byte("three")), qt.IsNil)

	v, ok, err := st.Get("sig/a")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(string(v), qt.Equals, "one")

	keys, err := st.Keys("sig/")
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.ContentEquals, []string{"sig/a", "sig/b"})

	c.Assert(st.Delete("sig/a"), qt.IsNil)
	c.Assert(st.Delete("sig/a"), qt.IsNil)
	_, ok, err = st.Get("sig/a")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}
