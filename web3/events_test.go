package web3

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	qt "github.com/frankban/quicktest"

	"github.com/tocipoco/DAO-Vote/types"
)

// buildLog encodes an EncryptedDAO event the way the contract emits it.
func buildLog(c *qt.C, name string, topics []common.Hash, data ...any) *gethtypes.Log {
	ev, ok := DAOABI.Events[name]
	c.Assert(ok, qt.IsTrue)
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	c.Assert(err, qt.IsNil)
	return &gethtypes.Log{
		Topics:      append([]common.Hash{ev.ID}, topics...),
		Data:        packed,
		TxHash:      common.Hash{0xaa},
		BlockNumber: 42,
	}
}

func TestDecodeLog(t *testing.T) {
	c := qt.New(t)
	member := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	id := common.BigToHash(big.NewInt(3))

	ev, err := decodeLog(buildLog(c, "MemberAdded", []common.Hash{common.BytesToHash(member.Bytes())}))
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Type, qt.Equals, types.EventMemberAdded)
	c.Assert(ev.Account, qt.Equals, member)
	c.Assert(ev.TxHash, qt.Equals, common.Hash{0xaa})
	c.Assert(ev.BlockNumber, qt.Equals, uint64(42))

	ev, err = decodeLog(buildLog(c, "ProposalCreated",
		[]common.Hash{id, common.BytesToHash(member.Bytes())},
		"upgrade the treasury", big.NewInt(1000), big.NewInt(87400)))
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Type, qt.Equals, types.EventProposalCreated)
	c.Assert(ev.ProposalID, qt.Equals, uint64(3))
	c.Assert(ev.Account, qt.Equals, member)
	c.Assert(ev.Description, qt.Equals, "upgrade the treasury")
	c.Assert(ev.StartTime.Unix(), qt.Equals, int64(1000))
	c.Assert(ev.EndTime.Unix(), qt.Equals, int64(87400))

	ev, err = decodeLog(buildLog(c, "VoteCast", []common.Hash{id, common.BytesToHash(member.Bytes())}))
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Type, qt.Equals, types.EventVoteCast)
	c.Assert(ev.Account, qt.Equals, member)

	ev, err = decodeLog(buildLog(c, "VoteResultsDecrypted", []common.Hash{id}, uint32(5), uint32(2), true))
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Yes, qt.Equals, uint64(5))
	c.Assert(ev.No, qt.Equals, uint64(2))
	c.Assert(ev.Result, qt.IsTrue)

	ev, err = decodeLog(buildLog(c, "ProposalExecuted", []common.Hash{id}, false))
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Type, qt.Equals, types.EventProposalExecuted)
	c.Assert(ev.Result, qt.IsFalse)

	_, err = decodeLog(&gethtypes.Log{})
	c.Assert(err, qt.IsNotNil)
	_, err = decodeLog(&gethtypes.Log{Topics: []common.Hash{{0x01}}})
	c.Assert(err, qt.IsNotNil)
}

func TestABIMethods(t *testing.T) {
	c := qt.New(t)
	for _, m := range []string{
		"joinDAO", "addMember", "createProposal", "castVote", "grantDecryptionAccess",
		"executeProposal", "getProposal", "getEncryptedVotes", "isMember", "checkHasVoted",
		"isVotingEnded", "getProposalCount", "getMemberCount",
	} {
		_, ok := DAOABI.Methods[m]
		c.Assert(ok, qt.IsTrue, qt.Commentf("method %s", m))
	}
	c.Assert(DAOABI.Methods["getProposal"].Outputs, qt.HasLen, 7)
}
