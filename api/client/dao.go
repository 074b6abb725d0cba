package client

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/api"
	"github.com/tocipoco/DAO-Vote/dashboard"
	"github.com/tocipoco/DAO-Vote/types"
)

func proposalPath(id uint64, action string) []string {
	p := []string{api.ProposalsEndpoint, strconv.FormatUint(id, 10)}
	if action != "" {
		p = append(p, action)
	}
	return p
}

// Dashboard returns the view of the session account.
func (c *HTTPclient) Dashboard(ctx context.Context) (*dashboard.View, error) {
	v := &dashboard.View{}
	if err := c.call(ctx, HTTPGET, nil, v, nil, api.DashboardEndpoint); err != nil {
		return nil, err
	}
	return v, nil
}

// Join registers the session account as a member.
func (c *HTTPclient) Join(ctx context.Context) error {
	return c.call(ctx, HTTPPOST, &api.AddMember{}, nil, nil, api.MembersEndpoint)
}

// AddMember registers member on behalf of the session account.
func (c *HTTPclient) AddMember(ctx context.Context, member common.Address) error {
	return c.call(ctx, HTTPPOST, &api.AddMember{Address: &member}, nil, nil, api.MembersEndpoint)
}

// CreateProposal opens a proposal and returns its id.
func (c *HTTPclient) CreateProposal(ctx context.Context, description string, votingDuration time.Duration) (uint64, error) {
	resp := &api.ProposalCreated{}
	req := &api.NewProposal{Description: description, VotingDuration: uint64(votingDuration / time.Second)}
	if err := c.call(ctx, HTTPPOST, req, resp, nil, api.ProposalsEndpoint); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Proposal returns a proposal as seen by the session account.
func (c *HTTPclient) Proposal(ctx context.Context, id uint64) (*dashboard.ProposalView, error) {
	p := &dashboard.ProposalView{}
	if err := c.call(ctx, HTTPGET, nil, p, nil, proposalPath(id, "")...); err != nil {
		return nil, err
	}
	return p, nil
}

// Vote casts ballot from the session account and returns the updated
// proposal.
func (c *HTTPclient) Vote(ctx context.Context, id, ballot uint64) (*types.Proposal, error) {
	p := &types.Proposal{}
	if err := c.call(ctx, HTTPPOST, &api.Vote{Ballot: ballot}, p, nil, proposalPath(id, "votes")...); err != nil {
		return nil, err
	}
	return p, nil
}

// Decrypt resolves the tally of a proposal for the session account.
func (c *HTTPclient) Decrypt(ctx context.Context, id uint64) (*types.Tally, error) {
	t := &types.Tally{}
	if err := c.call(ctx, HTTPPOST, nil, t, nil, proposalPath(id, "decrypt")...); err != nil {
		return nil, err
	}
	return t, nil
}

// Execute closes a proposal and returns its published tally.
func (c *HTTPclient) Execute(ctx context.Context, id uint64) (*types.Tally, error) {
	t := &types.Tally{}
	if err := c.call(ctx, HTTPPOST, nil, t, nil, proposalPath(id, "execute")...); err != nil {
		return nil, err
	}
	return t, nil
}

// Events returns the contract events with index >= from.
func (c *HTTPclient) Events(ctx context.Context, from uint64) (*api.Events, error) {
	ev := &api.Events{}
	params := []string{"from", strconv.FormatUint(from, 10)}
	if err := c.call(ctx, HTTPGET, nil, ev, params, api.EventsEndpoint); err != nil {
		return nil, err
	}
	return ev, nil
}

// SwitchAccount connects the wallet of privateKey to the session.
func (c *HTTPclient) SwitchAccount(ctx context.Context, privateKey []byte) (*dashboard.View, error) {
	v := &dashboard.View{}
	if err := c.call(ctx, HTTPPOST, &api.SwitchAccount{PrivateKey: privateKey}, v, nil, api.SessionAccountEndpoint); err != nil {
		return nil, err
	}
	return v, nil
}

// SwitchNetwork connects the session wallet to chainID.
func (c *HTTPclient) SwitchNetwork(ctx context.Context, chainID uint64) (*dashboard.View, error) {
	v := &dashboard.View{}
	if err := c.call(ctx, HTTPPOST, &api.SwitchNetwork{ChainID: chainID}, v, nil, api.SessionNetworkEndpoint); err != nil {
		return nil, err
	}
	return v, nil
}

// SignOut drops the decryption signatures of the session account.
func (c *HTTPclient) SignOut(ctx context.Context) error {
	return c.call(ctx, HTTPPOST, nil, nil, nil, api.SessionSignOutEndpoint)
}
