package web3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/types"
)

func (c *Contracts) JoinDAO(ctx context.Context) (common.Hash, error) {
	return c.transact(ctx, "joinDAO")
}

func (c *Contracts) AddMember(ctx context.Context, member common.Address) (common.Hash, error) {
	return c.transact(ctx, "addMember", member)
}

// CreateProposal sends a createProposal transaction. The duration is sent
// in seconds.
func (c *Contracts) CreateProposal(ctx context.Context, description string, votingDuration time.Duration) (common.Hash, error) {
	return c.transact(ctx, "createProposal", description, big.NewInt(int64(votingDuration/time.Second)))
}

func (c *Contracts) CastVote(ctx context.Context, id uint64, ballot types.Handle, proof []byte) (common.Hash, error) {
	return c.transact(ctx, "castVote", new(big.Int).SetUint64(id), [32]byte(ballot), proof)
}

func (c *Contracts) GrantDecryptionAccess(ctx context.Context, id uint64) (common.Hash, error) {
	return c.transact(ctx, "grantDecryptionAccess", new(big.Int).SetUint64(id))
}

func (c *Contracts) ExecuteProposal(ctx context.Context, id uint64) (common.Hash, error) {
	return c.transact(ctx, "executeProposal", new(big.Int).SetUint64(id))
}

// Proposal returns the proposal metadata. The encrypted counters are read
// with a second call.
func (c *Contracts) Proposal(ctx context.Context, id uint64) (*types.Proposal, error) {
	out, err := c.call(ctx, "getProposal", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("unexpected getProposal output size %d", len(out))
	}
	p := &types.Proposal{
		ID:          abiUint64(out[0]),
		Proposer:    *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		Description: *abi.ConvertType(out[2], new(string)).(*string),
		StartTime:   time.Unix(int64(abiUint64(out[3])), 0),
		EndTime:     time.Unix(int64(abiUint64(out[4])), 0),
		Executed:    *abi.ConvertType(out[5], new(bool)).(*bool),
		TotalVoters: abiUint64(out[6]),
	}
	if p.EncryptedYes, p.EncryptedNo, err = c.EncryptedVotes(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Contracts) EncryptedVotes(ctx context.Context, id uint64) (yes, no types.Handle, err error) {
	out, err := c.call(ctx, "getEncryptedVotes", new(big.Int).SetUint64(id))
	if err != nil {
		return yes, no, err
	}
	if len(out) != 2 {
		return yes, no, fmt.Errorf("unexpected getEncryptedVotes output size %d", len(out))
	}
	yes = types.Handle(*abi.ConvertType(out[0], new([32]byte)).(*[32]byte))
	no = types.Handle(*abi.ConvertType(out[1], new([32]byte)).(*[32]byte))
	return yes, no, nil
}

func (c *Contracts) IsMember(ctx context.Context, addr common.Address) (bool, error) {
	return c.callBool(ctx, "isMember", addr)
}

func (c *Contracts) HasVoted(ctx context.Context, id uint64, voter common.Address) (bool, error) {
	return c.callBool(ctx, "checkHasVoted", new(big.Int).SetUint64(id), voter)
}

func (c *Contracts) IsVotingEnded(ctx context.Context, id uint64) (bool, error) {
	return c.callBool(ctx, "isVotingEnded", new(big.Int).SetUint64(id))
}

func (c *Contracts) ProposalCount(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "getProposalCount")
}

func (c *Contracts) MemberCount(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, "getMemberCount")
}

func (c *Contracts) callBool(ctx context.Context, method string, params ...any) (bool, error) {
	out, err := c.call(ctx, method, params...)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("unexpected %s output size %d", method, len(out))
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Contracts) callUint64(ctx context.Context, method string, params ...any) (uint64, error) {
	out, err := c.call(ctx, method, params...)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected %s output size %d", method, len(out))
	}
	return abiUint64(out[0]), nil
}

func abiUint64(v any) uint64 {
	return abi.ConvertType(v, new(big.Int)).(*big.Int).Uint64()
}
