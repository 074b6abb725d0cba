package dao

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

// CastVote adds the encrypted ballot of the sender to the proposal counters.
// The ballot is verified against its input proof, then "ballot == 1" and
// "ballot == 0" are evaluated encrypted and added to the yes and no counters.
// A ballot that is neither 0 nor 1 adds zero to both.
func (e *Engine) CastVote(msg Msg, id uint64, ballot types.Handle, proof []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireMember(msg.Sender); err != nil {
		return err
	}
	p, err := e.Proposal(id)
	if err != nil {
		return err
	}
	if p.Executed {
		return fmt.Errorf("%w: %d", ErrAlreadyExecuted, id)
	}
	if now := e.blockTime(); !p.Active(now) {
		return fmt.Errorf("%w: window is [%s, %s]", ErrVotingNotActive,
			p.StartTime.Format(timeLayout), p.EndTime.Format(timeLayout))
	}
	voted, err := e.stg.HasVoted(id, msg.Sender)
	if err != nil {
		return err
	}
	if voted {
		return fmt.Errorf("%w: %s on proposal %d", ErrAlreadyVoted, msg.Sender.Hex(), id)
	}

	ballot, err = e.fhe.VerifyInput(ballot, proof, e.addr, msg.Sender)
	if err != nil {
		if errors.Is(err, coprocessor.ErrInvalidProof) {
			return fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		return err
	}
	yes, no, err := e.accumulate(p, ballot)
	if err != nil {
		return fmt.Errorf("cannot update tally: %w", err)
	}
	p.EncryptedYes, p.EncryptedNo = yes, no
	p.TotalVoters++
	b := e.stg.NewBatch()
	if err := b.SetProposal(p); err != nil {
		b.Discard()
		return err
	}
	if err := b.SetReceipt(id, msg.Sender); err != nil {
		b.Discard()
		return err
	}
	if err := e.commit(b, msg, &types.Event{Type: types.EventVoteCast, ProposalID: id, Account: msg.Sender}); err != nil {
		return err
	}
	// counters are only granted once a proposal refers to them
	for _, h := range []types.Handle{yes, no} {
		for _, account := range []common.Address{e.addr, msg.Sender} {
			if err := e.fhe.Allow(h, account); err != nil {
				return fmt.Errorf("vote recorded, cannot grant counter access: %w", err)
			}
		}
	}
	return nil
}

// accumulate returns the counters of p after adding ballot.
func (e *Engine) accumulate(p *types.Proposal, ballot types.Handle) (yes, no types.Handle, err error) {
	zero, err := e.fhe.TrivialEncrypt(types.TypeUint32, 0)
	if err != nil {
		return yes, no, err
	}
	one, err := e.fhe.TrivialEncrypt(types.TypeUint32, 1)
	if err != nil {
		return yes, no, err
	}
	add := func(counter types.Handle, value uint64) (types.Handle, error) {
		match, err := e.fhe.Eq(ballot, value)
		if err != nil {
			return types.Handle{}, err
		}
		inc, err := e.fhe.Select(match, one, zero)
		if err != nil {
			return types.Handle{}, err
		}
		return e.fhe.Add(counter, inc)
	}
	if yes, err = add(p.EncryptedYes, types.BallotYes); err != nil {
		return yes, no, err
	}
	if no, err = add(p.EncryptedNo, types.BallotNo); err != nil {
		return yes, no, err
	}
	return yes, no, nil
}

// GrantDecryptionAccess allows the sender on the current counters of the
// proposal. Counters change with every vote, so access has to be granted
// again after new votes. Repeated grants are harmless.
func (e *Engine) GrantDecryptionAccess(msg Msg, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireMember(msg.Sender); err != nil {
		return err
	}
	p, err := e.Proposal(id)
	if err != nil {
		return err
	}
	for _, h := range []types.Handle{p.EncryptedYes, p.EncryptedNo} {
		if err := e.fhe.Allow(h, msg.Sender); err != nil {
			return err
		}
	}
	log.Debugw("decryption access granted", "proposal", id, "account", msg.Sender.Hex())
	return nil
}

// ExecuteProposal closes a proposal whose voting window is over: the final
// counters are made publicly decryptable and the result, yes > no, is
// published.
func (e *Engine) ExecuteProposal(msg Msg, id uint64) (*types.Tally, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireMember(msg.Sender); err != nil {
		return nil, err
	}
	p, err := e.Proposal(id)
	if err != nil {
		return nil, err
	}
	if p.Executed {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyExecuted, id)
	}
	now := e.blockTime()
	if !p.Ended(now) {
		return nil, fmt.Errorf("%w: ends at %s", ErrVotingNotEnded, p.EndTime.Format(timeLayout))
	}
	if err := e.fhe.AllowForDecryption(p.EncryptedYes, p.EncryptedNo); err != nil {
		return nil, err
	}
	values, err := e.fhe.PublicDecrypt(p.EncryptedYes, p.EncryptedNo)
	if err != nil {
		return nil, fmt.Errorf("cannot decrypt tally: %w", err)
	}
	tally := &types.Tally{
		ProposalID:  id,
		Yes:         values[p.EncryptedYes],
		No:          values[p.EncryptedNo],
		YesHandle:   p.EncryptedYes,
		NoHandle:    p.EncryptedNo,
		DecryptedAt: now,
	}
	result := tally.Yes > tally.No

	p.Executed = true
	b := e.stg.NewBatch()
	if err := b.SetProposal(p); err != nil {
		b.Discard()
		return nil, err
	}
	if err := e.commit(b, msg,
		&types.Event{
			Type:       types.EventVoteResultsDecrypted,
			ProposalID: id,
			Yes:        tally.Yes,
			No:         tally.No,
			Result:     result,
		},
		&types.Event{Type: types.EventProposalExecuted, ProposalID: id, Result: result},
	); err != nil {
		return nil, err
	}
	log.Infow("proposal executed", "proposal", id, "yes", tally.Yes, "no", tally.No, "passed", result)
	return tally, nil
}

const timeLayout = "2006-01-02 15:04:05"
