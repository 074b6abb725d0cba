package storage

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/types"
)

var (
	memberCountKey   = []byte("memberCount")
	proposalCountKey = []byte("proposalCount")
	eventCountKey    = []byte("eventCount")
)

// Member returns the membership record of addr or ErrNotFound.
func (s *Storage) Member(addr common.Address) (*types.Member, error) {
	m := &types.Member{}
	if err := s.getArtifact(memberPrefix, addr.Bytes(), m); err != nil {
		return nil, err
	}
	return m, nil
}

// IsMember reports whether addr is a registered member.
func (s *Storage) IsMember(addr common.Address) (bool, error) {
	m, err := s.Member(addr)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.IsMember, nil
}

// Members lists every registered member.
func (s *Storage) Members() ([]*types.Member, error) {
	var (
		members []*types.Member
		decErr  error
	)
	if err := s.iterateArtifacts(memberPrefix, nil, func(_, v []byte) bool {
		m := &types.Member{}
		if decErr = decodeArtifact(v, m); decErr != nil {
			return false
		}
		members = append(members, m)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	if decErr != nil {
		return nil, fmt.Errorf("decode member: %w", decErr)
	}
	slices.SortFunc(members, func(a, b *types.Member) int {
		return bytes.Compare(a.Address.Bytes(), b.Address.Bytes())
	})
	return members, nil
}

// Proposal returns the proposal with the given id or ErrNotFound.
func (s *Storage) Proposal(id uint64) (*types.Proposal, error) {
	p := &types.Proposal{}
	if err := s.getArtifact(proposalPrefix, uint64Key(id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// HasVoted reports whether a receipt exists for (id, voter).
func (s *Storage) HasVoted(id uint64, voter common.Address) (bool, error) {
	return s.hasKey(receiptPrefix, joinKey(uint64Key(id), voter.Bytes()))
}

// Voters lists the accounts that voted on the proposal.
func (s *Storage) Voters(id uint64) ([]common.Address, error) {
	var voters []common.Address
	err := s.iterateArtifacts(receiptPrefix, uint64Key(id), func(k, _ []byte) bool {
		voters = append(voters, common.BytesToAddress(k))
		return true
	})
	return voters, err
}

// MemberCount returns the number of registered members.
func (s *Storage) MemberCount() (uint64, error) {
	return s.counter(memberCountKey)
}

// ProposalCount returns the number of created proposals.
func (s *Storage) ProposalCount() (uint64, error) {
	return s.counter(proposalCountKey)
}

// EventCount returns the number of emitted events.
func (s *Storage) EventCount() (uint64, error) {
	return s.counter(eventCountKey)
}

func (s *Storage) counter(key []byte) (uint64, error) {
	var n uint64
	if err := s.getArtifact(statePrefix, key, &n); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Events returns the events with index >= from, in emission order. A
// non-positive limit returns all of them.
func (s *Storage) Events(from uint64, limit int) ([]*types.Event, error) {
	var (
		events []*types.Event
		decErr error
	)
	if err := s.iterateArtifacts(eventPrefix, nil, func(k, v []byte) bool {
		if keyUint64(k) < from {
			return true
		}
		ev := &types.Event{}
		if decErr = decodeArtifact(v, ev); decErr != nil {
			return false
		}
		events = append(events, ev)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if decErr != nil {
		return nil, fmt.Errorf("decode event: %w", decErr)
	}
	// not every backend iterates in key order
	slices.SortFunc(events, func(a, b *types.Event) int {
		return cmp.Compare(a.Index, b.Index)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// SetMember adds the member record to the batch.
func (b *Batch) SetMember(m *types.Member) error {
	return b.set(memberPrefix, m.Address.Bytes(), m)
}

// SetProposal adds the proposal to the batch.
func (b *Batch) SetProposal(p *types.Proposal) error {
	if p.ID == 0 {
		return fmt.Errorf("invalid proposal id 0")
	}
	return b.set(proposalPrefix, uint64Key(p.ID), p)
}

// SetReceipt records that voter voted on the proposal.
func (b *Batch) SetReceipt(id uint64, voter common.Address) error {
	return b.setRaw(receiptPrefix, joinKey(uint64Key(id), voter.Bytes()), []byte{1})
}

// AddEvent stores the event under its index.
func (b *Batch) AddEvent(ev *types.Event) error {
	return b.set(eventPrefix, uint64Key(ev.Index), ev)
}

// SetMemberCount adds the member counter to the batch.
func (b *Batch) SetMemberCount(n uint64) error {
	return b.set(statePrefix, memberCountKey, n)
}

// SetProposalCount adds the proposal counter to the batch.
func (b *Batch) SetProposalCount(n uint64) error {
	return b.set(statePrefix, proposalCountKey, n)
}

// SetEventCount adds the event counter to the batch.
func (b *Batch) SetEventCount(n uint64) error {
	return b.set(statePrefix, eventCountKey, n)
}
