package dao

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
)

// CreateProposal stores a new proposal opened now for votingDuration and
// returns its id. Ids are sequential starting at 1.
func (e *Engine) CreateProposal(msg Msg, description string, votingDuration time.Duration) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireMember(msg.Sender); err != nil {
		return 0, err
	}
	if strings.TrimSpace(description) == "" {
		return 0, ErrEmptyDescription
	}
	if votingDuration < types.MinVotingDuration {
		return 0, fmt.Errorf("%w: %s, minimum is %s", ErrVotingDurationTooShort, votingDuration, types.MinVotingDuration)
	}
	// both counters start at the shared encrypted zero
	zero, err := e.fhe.TrivialEncrypt(types.TypeUint32, 0)
	if err != nil {
		return 0, fmt.Errorf("cannot encrypt counters: %w", err)
	}
	if err := e.fhe.Allow(zero, e.addr); err != nil {
		return 0, err
	}
	count, err := e.stg.ProposalCount()
	if err != nil {
		return 0, err
	}
	now := e.blockTime()
	p := &types.Proposal{
		ID:           count + 1,
		Proposer:     msg.Sender,
		Description:  description,
		StartTime:    now,
		EndTime:      now.Add(votingDuration.Truncate(time.Second)),
		EncryptedYes: zero,
		EncryptedNo:  zero,
	}
	b := e.stg.NewBatch()
	if err := b.SetProposal(p); err != nil {
		b.Discard()
		return 0, err
	}
	if err := b.SetProposalCount(p.ID); err != nil {
		b.Discard()
		return 0, err
	}
	if err := e.commit(b, msg, &types.Event{
		Type:        types.EventProposalCreated,
		ProposalID:  p.ID,
		Account:     p.Proposer,
		Description: p.Description,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
	}); err != nil {
		return 0, err
	}
	return p.ID, nil
}

// Proposal returns the proposal with the given id. Ids outside
// [1, ProposalCount] fail with ErrInvalidProposalID.
func (e *Engine) Proposal(id uint64) (*types.Proposal, error) {
	count, err := e.stg.ProposalCount()
	if err != nil {
		return nil, err
	}
	if id == 0 || id > count {
		return nil, fmt.Errorf("%w: %d, count is %d", ErrInvalidProposalID, id, count)
	}
	p, err := e.stg.Proposal(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProposalID, id)
	}
	return p, err
}

// ProposalCount returns the number of proposals.
func (e *Engine) ProposalCount() (uint64, error) {
	return e.stg.ProposalCount()
}

// EncryptedVotes returns the current yes and no counter handles. Reading
// handles is not restricted, access to their plaintexts is enforced by the
// co-processor.
func (e *Engine) EncryptedVotes(id uint64) (yes, no types.Handle, err error) {
	p, err := e.Proposal(id)
	if err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return p.EncryptedYes, p.EncryptedNo, nil
}

// HasVoted reports whether voter already voted on the proposal.
func (e *Engine) HasVoted(id uint64, voter common.Address) (bool, error) {
	if _, err := e.Proposal(id); err != nil {
		return false, err
	}
	return e.stg.HasVoted(id, voter)
}

// IsVotingEnded reports whether the voting window of the proposal is over.
func (e *Engine) IsVotingEnded(id uint64) (bool, error) {
	p, err := e.Proposal(id)
	if err != nil {
		return false, err
	}
	return p.Ended(e.blockTime()), nil
}
