package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

// VoteSession casts encrypted ballots for the session user. At most one vote
// runs at a time.
type VoteSession struct {
	cfg      Config
	tracker  *Tracker
	results  *ResultBook
	inFlight atomic.Bool
}

// NewVoteSession returns a vote session invalidating tallies in results.
func NewVoteSession(cfg Config, tracker *Tracker, results *ResultBook) *VoteSession {
	cfg.setDefaults()
	return &VoteSession{cfg: cfg, tracker: tracker, results: results}
}

// InFlight reports whether a vote is pending.
func (s *VoteSession) InFlight() bool {
	return s.inFlight.Load()
}

// Vote encrypts ballot, casts it on the proposal and returns the refreshed
// proposal. Ballots are 1 for yes and 0 for no, other values are accepted
// and counted for neither side. Any decrypted tally of the proposal is
// dropped once the vote is mined.
func (s *VoteSession) Vote(ctx context.Context, target Target, id, ballot uint64) (*types.Proposal, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}
	defer s.inFlight.Store(false)

	reqID := uuid.New().String()
	token := s.tracker.Begin()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	p, err := s.run(ctx, token, target, id, ballot)
	if err != nil && !errors.Is(err, ErrStale) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if err != nil {
		log.Debugw("vote not applied", "request", reqID, "proposal", id, "error", err.Error())
		return nil, err
	}
	log.Infow("vote cast", "request", reqID, "proposal", id, "voter", target.Conn.Account().Hex())
	return p, nil
}

func (s *VoteSession) run(ctx context.Context, token Token, target Target, id, ballot uint64) (*types.Proposal, error) {
	conn := target.Conn
	if !token.Matches(conn) {
		return nil, ErrStale
	}
	in, err := target.Client.CreateEncryptedInput(conn.ContractAddress(), conn.Account()).Add32(ballot).Encrypt(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	if token.Stale() {
		return nil, ErrStale
	}
	if _, err := chain.Transact(ctx, conn, func(ctx context.Context) (common.Hash, error) {
		return conn.CastVote(ctx, id, in.Handles[0], in.InputProof)
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	// the counters changed for everyone, whatever the session context is now
	s.results.Invalidate(id)
	if token.Stale() {
		return nil, ErrStale
	}
	p, err := conn.Proposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot refresh proposal: %w", ErrTransaction, err)
	}
	return p, nil
}
