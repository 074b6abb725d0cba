package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/session"
	"github.com/tocipoco/DAO-Vote/types"
)

// refreshAttempts bounds the rebuilds of a view whose context keeps
// changing while it is read.
const refreshAttempts = 3

// proposalReaders bounds the concurrent proposal reads of a refresh.
const proposalReaders = 8

// ProposalView is a proposal as shown to the active account.
type ProposalView struct {
	*types.Proposal
	HasVoted    bool         `json:"hasVoted"`
	VotingEnded bool         `json:"votingEnded"`
	Tally       *types.Tally `json:"tally,omitempty"`
}

// View is the dashboard state of the active account.
type View struct {
	ChainID       uint64          `json:"chainId"`
	Contract      common.Address  `json:"contract"`
	Account       common.Address  `json:"account"`
	IsMember      bool            `json:"isMember"`
	MemberCount   uint64          `json:"memberCount"`
	ProposalCount uint64          `json:"proposalCount"`
	Proposals     []*ProposalView `json:"proposals"`
	Decrypting    bool            `json:"decrypting"`
	DecryptState  string          `json:"decryptState"`
	Voting        bool            `json:"voting"`
	LastError     string          `json:"lastError,omitempty"`
}

// Refresh reads the contract state for the active account. Proposals are
// listed newest first. A view read across a context switch is rebuilt.
func (c *Controller) Refresh(ctx context.Context) (*View, error) {
	for range refreshAttempts {
		token := c.tracker.Begin()
		v, err := c.read(ctx)
		if err != nil {
			return nil, err
		}
		if !token.Stale() {
			return v, nil
		}
	}
	return nil, session.ErrStale
}

func (c *Controller) read(ctx context.Context) (*View, error) {
	conn := c.Connection()
	v := &View{
		ChainID:      conn.ChainID(),
		Contract:     conn.ContractAddress(),
		Account:      conn.Account(),
		Decrypting:   c.decrypt.InFlight(),
		DecryptState: c.decrypt.State(),
		Voting:       c.vote.InFlight(),
		LastError:    c.LastError(),
	}
	var err error
	if v.IsMember, err = conn.IsMember(ctx, v.Account); err != nil {
		return nil, fmt.Errorf("cannot read membership: %w", err)
	}
	if v.MemberCount, err = conn.MemberCount(ctx); err != nil {
		return nil, fmt.Errorf("cannot read member count: %w", err)
	}
	if v.ProposalCount, err = conn.ProposalCount(ctx); err != nil {
		return nil, fmt.Errorf("cannot read proposal count: %w", err)
	}
	v.Proposals = make([]*ProposalView, v.ProposalCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(proposalReaders)
	for i := range v.Proposals {
		id := v.ProposalCount - uint64(i)
		g.Go(func() error {
			pv, err := c.proposalView(gctx, conn, id)
			if err != nil {
				return err
			}
			v.Proposals[i] = pv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return v, nil
}

// Proposal returns the view of a single proposal.
func (c *Controller) Proposal(ctx context.Context, id uint64) (*ProposalView, error) {
	return c.proposalView(ctx, c.Connection(), id)
}

func (c *Controller) proposalView(ctx context.Context, conn chain.Connection, id uint64) (*ProposalView, error) {
	p, err := conn.Proposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cannot read proposal %d: %w", id, err)
	}
	pv := &ProposalView{Proposal: p}
	if pv.HasVoted, err = conn.HasVoted(ctx, id, conn.Account()); err != nil {
		return nil, fmt.Errorf("cannot read vote receipt of proposal %d: %w", id, err)
	}
	if pv.VotingEnded, err = conn.IsVotingEnded(ctx, id); err != nil {
		return nil, fmt.Errorf("cannot read voting window of proposal %d: %w", id, err)
	}
	// a tally of counters that have moved on since is not shown
	if t, ok := c.results.Get(id); ok && t.Decrypts(p) {
		pv.Tally = t
	}
	return pv, nil
}

// Tallies returns the tallies decrypted in this session.
func (c *Controller) Tallies() []*types.Tally {
	return c.results.All()
}

// Dropped reports whether err means the request was discarded rather than
// failed.
func Dropped(err error) bool {
	return errors.Is(err, session.ErrStale) || errors.Is(err, session.ErrRequestInFlight)
}
