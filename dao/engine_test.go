package dao

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"

	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
)

var daoAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type testDAO struct {
	*Engine
	cp     *coprocessor.Coprocessor
	client *coprocessor.Client
	now    time.Time
}

func newTestDAO(c *qt.C) *testDAO {
	d := &testDAO{now: time.Unix(1_760_000_000, 0)}
	clock := func() time.Time { return d.now }
	stg := storage.New(memdb.New())
	cp, err := coprocessor.New(stg, coprocessor.Config{ChainID: 31337, MaxPlaintext: 1 << 10, Now: clock})
	c.Assert(err, qt.IsNil)
	engine, err := New(stg, cp, Config{Address: daoAddress, Now: clock})
	c.Assert(err, qt.IsNil)
	d.Engine, d.cp, d.client = engine, cp, coprocessor.NewClient(cp)
	return d
}

func newAccount(c *qt.C) *ethereum.SignKeys {
	s := ethereum.NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)
	return s
}

func msgFrom(s *ethereum.SignKeys) Msg {
	return Msg{Sender: s.Address()}
}

func (d *testDAO) member(c *qt.C) *ethereum.SignKeys {
	s := newAccount(c)
	c.Assert(d.JoinDAO(msgFrom(s)), qt.IsNil)
	return s
}

func (d *testDAO) vote(voter *ethereum.SignKeys, id, ballot uint64) error {
	in, err := d.client.CreateEncryptedInput(daoAddress, voter.Address()).Add32(ballot).Encrypt(context.Background())
	if err != nil {
		return err
	}
	return d.CastVote(msgFrom(voter), id, in.Handles[0], in.InputProof)
}

// decrypt grants access to the current counters and resolves them through
// the user decryption flow.
func (d *testDAO) decrypt(c *qt.C, user *ethereum.SignKeys, id uint64) (yes, no uint64) {
	ctx := context.Background()
	c.Assert(d.GrantDecryptionAccess(msgFrom(user), id), qt.IsNil)
	yesH, noH, err := d.EncryptedVotes(id)
	c.Assert(err, qt.IsNil)
	kp, err := d.client.GenerateKeypair()
	c.Assert(err, qt.IsNil)
	contracts := []common.Address{daoAddress}
	start := uint64(d.now.Unix())
	permit, err := d.client.CreateEIP712(ctx, kp.PublicKey, contracts, start, types.DefaultSignatureDurationDays)
	c.Assert(err, qt.IsNil)
	sig, err := user.SignTypedData(permit)
	c.Assert(err, qt.IsNil)
	res, err := d.client.UserDecrypt(ctx, []coprocessor.HandleContractPair{
		{Handle: yesH, ContractAddress: daoAddress},
		{Handle: noH, ContractAddress: daoAddress},
	}, kp, sig, contracts, user.Address(), start, types.DefaultSignatureDurationDays)
	c.Assert(err, qt.IsNil)
	return res[yesH], res[noH]
}

func TestMembership(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	alice := newAccount(c)
	bob := newAccount(c)
	carol := newAccount(c)

	c.Assert(d.JoinDAO(msgFrom(alice)), qt.IsNil)
	err := d.JoinDAO(msgFrom(alice))
	c.Assert(err, qt.ErrorIs, ErrAlreadyMember)
	c.Assert(err, qt.ErrorIs, ErrValidation)

	err = d.AddMember(msgFrom(bob), carol.Address())
	c.Assert(err, qt.ErrorIs, ErrNotMember)
	c.Assert(err, qt.ErrorIs, ErrAuthorization)

	c.Assert(d.AddMember(msgFrom(alice), bob.Address()), qt.IsNil)
	c.Assert(d.AddMember(msgFrom(alice), bob.Address()), qt.ErrorIs, ErrAlreadyMember)
	c.Assert(d.JoinDAO(msgFrom(bob)), qt.ErrorIs, ErrAlreadyMember)

	count, err := d.MemberCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(2))
	for addr, want := range map[common.Address]bool{alice.Address(): true, bob.Address(): true, carol.Address(): false} {
		ok, err := d.IsMember(addr)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.Equals, want)
	}
	members, err := d.Members()
	c.Assert(err, qt.IsNil)
	c.Assert(members, qt.HasLen, 2)

	events, err := d.Events(0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 2)
	c.Assert(events[0].Type, qt.Equals, types.EventMemberAdded)
	c.Assert(events[0].Account, qt.Equals, alice.Address())
	c.Assert(events[1].Account, qt.Equals, bob.Address())
	c.Assert(events[1].Index, qt.Equals, uint64(1))
}

func TestCreateProposal(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	alice := d.member(c)

	_, err := d.CreateProposal(msgFrom(newAccount(c)), "fund the docs", types.MinVotingDuration)
	c.Assert(err, qt.ErrorIs, ErrNotMember)
	_, err = d.CreateProposal(msgFrom(alice), "  ", types.MinVotingDuration)
	c.Assert(err, qt.ErrorIs, ErrEmptyDescription)
	_, err = d.CreateProposal(msgFrom(alice), "fund the docs", types.MinVotingDuration-time.Second)
	c.Assert(err, qt.ErrorIs, ErrVotingDurationTooShort)
	c.Assert(err, qt.ErrorIs, ErrValidation)

	id, err := d.CreateProposal(msgFrom(alice), "fund the docs", types.MinVotingDuration)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))
	id, err = d.CreateProposal(msgFrom(alice), "second", 48*time.Hour)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(2))

	count, err := d.ProposalCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(2))

	p, err := d.Proposal(count)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Description, qt.Equals, "second")
	c.Assert(p.Proposer, qt.Equals, alice.Address())
	c.Assert(p.StartTime.Unix(), qt.Equals, d.now.Unix())
	c.Assert(p.EndTime.Unix(), qt.Equals, d.now.Add(48*time.Hour).Unix())
	c.Assert(p.TotalVoters, qt.Equals, uint64(0))
	c.Assert(p.Executed, qt.IsFalse)

	for _, bad := range []uint64{0, count + 1} {
		_, err := d.Proposal(bad)
		c.Assert(err, qt.ErrorIs, ErrInvalidProposalID)
		_, _, err = d.EncryptedVotes(bad)
		c.Assert(err, qt.ErrorIs, ErrInvalidProposalID)
	}

	// fresh counters decrypt to zero
	yes, no := d.decrypt(c, alice, 1)
	c.Assert(yes, qt.Equals, uint64(0))
	c.Assert(no, qt.Equals, uint64(0))

	ended, err := d.IsVotingEnded(1)
	c.Assert(err, qt.IsNil)
	c.Assert(ended, qt.IsFalse)
	d.now = d.now.Add(types.MinVotingDuration)
	ended, err = d.IsVotingEnded(1)
	c.Assert(err, qt.IsNil)
	c.Assert(ended, qt.IsFalse)
	d.now = d.now.Add(time.Second)
	ended, err = d.IsVotingEnded(1)
	c.Assert(err, qt.IsNil)
	c.Assert(ended, qt.IsTrue)
}

func TestCastVoteTally(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	alice := d.member(c)
	id, err := d.CreateProposal(msgFrom(alice), "adopt the roadmap", types.MinVotingDuration)
	c.Assert(err, qt.IsNil)

	wantYes, wantNo := uint64(0), uint64(0)
	for i, ballot := range []uint64{1, 0, 1, 1, 0} {
		voter := d.member(c)
		c.Assert(d.vote(voter, id, ballot), qt.IsNil)
		if ballot == 1 {
			wantYes++
		} else {
			wantNo++
		}
		// exactly one counter moves by one
		yes, no := d.decrypt(c, voter, id)
		c.Assert(yes, qt.Equals, wantYes)
		c.Assert(no, qt.Equals, wantNo)

		p, err := d.Proposal(id)
		c.Assert(err, qt.IsNil)
		c.Assert(p.TotalVoters, qt.Equals, uint64(i+1))
		voted, err := d.HasVoted(id, voter.Address())
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsTrue)
	}

	// out of range ballots are counted as voters but add to neither side
	odd := d.member(c)
	c.Assert(d.vote(odd, id, 7), qt.IsNil)
	yes, no := d.decrypt(c, alice, id)
	c.Assert(yes, qt.Equals, wantYes)
	c.Assert(no, qt.Equals, wantNo)
	p, err := d.Proposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(p.TotalVoters, qt.Equals, uint64(6))
}

func TestCastVoteRejections(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	alice := d.member(c)
	bob := d.member(c)
	id, err := d.CreateProposal(msgFrom(alice), "rename the DAO", types.MinVotingDuration)
	c.Assert(err, qt.IsNil)

	c.Run("non member", func(c *qt.C) {
		err := d.vote(newAccount(c), id, 1)
		c.Assert(err, qt.ErrorIs, ErrNotMember)
	})

	c.Run("unknown proposal", func(c *qt.C) {
		c.Assert(d.vote(bob, id+1, 1), qt.ErrorIs, ErrInvalidProposalID)
	})

	c.Run("input bound to another voter", func(c *qt.C) {
		in, err := d.client.CreateEncryptedInput(daoAddress, alice.Address()).Add32(1).Encrypt(context.Background())
		c.Assert(err, qt.IsNil)
		err = d.CastVote(msgFrom(bob), id, in.Handles[0], in.InputProof)
		c.Assert(err, qt.ErrorIs, ErrInvalidProof)
		c.Assert(err, qt.ErrorIs, ErrProof)
		voted, err := d.HasVoted(id, bob.Address())
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
	})

	c.Run("duplicate vote", func(c *qt.C) {
		c.Assert(d.vote(bob, id, 1), qt.IsNil)
		c.Assert(d.vote(bob, id, 0), qt.ErrorIs, ErrAlreadyVoted)
		p, err := d.Proposal(id)
		c.Assert(err, qt.IsNil)
		c.Assert(p.TotalVoters, qt.Equals, uint64(1))
	})

	c.Run("voting closed", func(c *qt.C) {
		d.now = d.now.Add(types.MinVotingDuration)
		c.Assert(d.vote(alice, id, 1), qt.IsNil)
		carol := d.member(c)
		d.now = d.now.Add(time.Second)
		c.Assert(d.vote(carol, id, 1), qt.ErrorIs, ErrVotingNotActive)
	})
}

func TestGrantDecryptionAccess(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	alice := d.member(c)
	bob := d.member(c)
	id, err := d.CreateProposal(msgFrom(alice), "new logo", types.MinVotingDuration)
	c.Assert(err, qt.IsNil)
	c.Assert(d.vote(bob, id, 1), qt.IsNil)

	c.Assert(d.GrantDecryptionAccess(msgFrom(newAccount(c)), id), qt.ErrorIs, ErrNotMember)
	c.Assert(d.GrantDecryptionAccess(msgFrom(alice), id+1), qt.ErrorIs, ErrInvalidProposalID)

	yesH, _, err := d.EncryptedVotes(id)
	c.Assert(err, qt.IsNil)
	allowed, err := d.cp.IsAllowed(yesH, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsFalse)
	c.Assert(d.GrantDecryptionAccess(msgFrom(alice), id), qt.IsNil)
	c.Assert(d.GrantDecryptionAccess(msgFrom(alice), id), qt.IsNil)
	allowed, err = d.cp.IsAllowed(yesH, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsTrue)

	// a new vote replaces the handles, the grant does not carry over
	carol := d.member(c)
	c.Assert(d.vote(carol, id, 0), qt.IsNil)
	newYes, _, err := d.EncryptedVotes(id)
	c.Assert(err, qt.IsNil)
	c.Assert(newYes, qt.Not(qt.Equals), yesH)
	allowed, err = d.cp.IsAllowed(newYes, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsFalse)
}

// recordingACL counts the grants made on counters a stored proposal already
// refers to.
type recordingACL struct {
	*coprocessor.Coprocessor
	engine  *Engine
	id      uint64
	grants  int
	current int
}

func (r *recordingACL) Allow(h types.Handle, account common.Address) error {
	r.grants++
	if p, err := r.engine.Proposal(r.id); err == nil && (h == p.EncryptedYes || h == p.EncryptedNo) {
		r.current++
	}
	return r.Coprocessor.Allow(h, account)
}

func TestCastVoteGrantsCommittedCounters(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	alice := d.member(c)
	id, err := d.CreateProposal(msgFrom(alice), "extend the grant", types.MinVotingDuration)
	c.Assert(err, qt.IsNil)

	acl := &recordingACL{Coprocessor: d.cp, id: id}
	acl.engine, err = New(d.stg, acl, Config{Address: daoAddress, Now: func() time.Time { return d.now }})
	c.Assert(err, qt.IsNil)
	in, err := d.client.CreateEncryptedInput(daoAddress, alice.Address()).Add32(1).Encrypt(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(acl.engine.CastVote(msgFrom(alice), id, in.Handles[0], in.InputProof), qt.IsNil)
	c.Assert(acl.grants, qt.Equals, 4)
	c.Assert(acl.current, qt.Equals, 4)

	yesH, noH, err := d.EncryptedVotes(id)
	c.Assert(err, qt.IsNil)
	for _, h := range []types.Handle{yesH, noH} {
		for _, account := range []common.Address{daoAddress, alice.Address()} {
			allowed, err := d.cp.IsAllowed(h, account)
			c.Assert(err, qt.IsNil)
			c.Assert(allowed, qt.IsTrue)
		}
	}
}

func TestExecuteProposal(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	alice := d.member(c)
	bob := d.member(c)
	id, err := d.CreateProposal(msgFrom(alice), "hire an auditor", types.MinVotingDuration)
	c.Assert(err, qt.IsNil)
	c.Assert(d.vote(alice, id, 1), qt.IsNil)
	c.Assert(d.vote(bob, id, 1), qt.IsNil)

	_, err = d.ExecuteProposal(msgFrom(alice), id)
	c.Assert(err, qt.ErrorIs, ErrVotingNotEnded)

	d.now = d.now.Add(types.MinVotingDuration + time.Second)
	_, err = d.ExecuteProposal(msgFrom(newAccount(c)), id)
	c.Assert(err, qt.ErrorIs, ErrNotMember)

	tally, err := d.ExecuteProposal(Msg{Sender: bob.Address(), BlockNumber: 9}, id)
	c.Assert(err, qt.IsNil)
	c.Assert(tally.Yes, qt.Equals, uint64(2))
	c.Assert(tally.No, qt.Equals, uint64(0))

	_, err = d.ExecuteProposal(msgFrom(alice), id)
	c.Assert(err, qt.ErrorIs, ErrAlreadyExecuted)
	p, err := d.Proposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Executed, qt.IsTrue)

	count, err := d.stg.EventCount()
	c.Assert(err, qt.IsNil)
	events, err := d.Events(count-2, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 2)
	c.Assert(events[0].Type, qt.Equals, types.EventVoteResultsDecrypted)
	c.Assert(events[0].Yes, qt.Equals, uint64(2))
	c.Assert(events[0].Result, qt.IsTrue)
	c.Assert(events[0].BlockNumber, qt.Equals, uint64(9))
	c.Assert(events[1].Type, qt.Equals, types.EventProposalExecuted)
	c.Assert(events[1].Result, qt.IsTrue)
}

func TestSubscribe(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	events, cancel := d.Subscribe(4)

	alice := d.member(c)
	ev := <-events
	c.Assert(ev.Type, qt.Equals, types.EventMemberAdded)
	c.Assert(ev.Account, qt.Equals, alice.Address())

	cancel()
	cancel()
	_, open := <-events
	c.Assert(open, qt.IsFalse)
}

// A member creates a proposal, an outsider is rejected until joining, then
// votes yes and the proposer decrypts {yes: 1, no: 0}.
func TestScenarioJoinAndVote(t *testing.T) {
	c := qt.New(t)
	d := newTestDAO(c)
	a := d.member(c)
	b := newAccount(c)

	id, err := d.CreateProposal(msgFrom(a), "one day proposal", 24*time.Hour)
	c.Assert(err, qt.IsNil)
	c.Assert(d.vote(b, id, 1), qt.ErrorIs, ErrNotMember)

	c.Assert(d.JoinDAO(msgFrom(b)), qt.IsNil)
	c.Assert(d.vote(b, id, 1), qt.IsNil)
	p, err := d.Proposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(p.TotalVoters, qt.Equals, uint64(1))

	yes, no := d.decrypt(c, a, id)
	c.Assert(yes, qt.Equals, uint64(1))
	c.Assert(no, qt.Equals, uint64(0))
}
