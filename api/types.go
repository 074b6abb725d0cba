package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/types"
)

// AddMember is the body of a membership request. An empty address joins the
// session account itself.
type AddMember struct {
	Address *common.Address `json:"address,omitempty"`
}

// NewProposal is the body of a proposal creation request. The voting
// duration is given in seconds.
type NewProposal struct {
	Description    string `json:"description"`
	VotingDuration uint64 `json:"votingDuration"`
}

// ProposalCreated is the response to a proposal creation request.
type ProposalCreated struct {
	ID uint64 `json:"id"`
}

// Vote is the body of a vote request. Ballot 1 votes yes and 0 votes no.
type Vote struct {
	Ballot uint64 `json:"ballot"`
}

// SwitchAccount is the body of an account switch request.
type SwitchAccount struct {
	PrivateKey types.HexBytes `json:"privateKey"`
}

// SwitchNetwork is the body of a network switch request.
type SwitchNetwork struct {
	ChainID uint64 `json:"chainId"`
}

// Events is the response to an events request.
type Events struct {
	Events []*types.Event `json:"events"`
	// Next is the index to request the following events from.
	Next uint64 `json:"next"`
}
