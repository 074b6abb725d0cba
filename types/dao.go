package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Member is an entry of the membership registry. Once IsMember is true it
// never reverts to false.
type Member struct {
	Address  common.Address `json:"address"  cbor:"0,keyasint,omitempty"`
	IsMember bool           `json:"isMember" cbor:"1,keyasint,omitempty"`
	JoinTime time.Time      `json:"joinTime" cbor:"2,keyasint"`
}

// Proposal holds the proposal metadata and the two running encrypted
// counters.
type Proposal struct {
	ID           uint64         `json:"id"           cbor:"0,keyasint,omitempty"`
	Proposer     common.Address `json:"proposer"     cbor:"1,keyasint,omitempty"`
	Description  string         `json:"description"  cbor:"2,keyasint,omitempty"`
	StartTime    time.Time      `json:"startTime"    cbor:"3,keyasint"`
	EndTime      time.Time      `json:"endTime"      cbor:"4,keyasint"`
	Executed     bool           `json:"executed"     cbor:"5,keyasint"`
	EncryptedYes Handle         `json:"encryptedYes" cbor:"6,keyasint"`
	EncryptedNo  Handle         `json:"encryptedNo"  cbor:"7,keyasint,omitempty"`
	TotalVoters  uint64         `json:"totalVoters"  cbor:"8,keyasint,omitempty"`
}

// Active reports whether t falls within the voting window (both ends
// included).
func (p *Proposal) Active(t time.Time) bool {
	return !t.Before(p.StartTime) && !t.After(p.EndTime)
}

// Ended reports whether the voting window is over, strictly after EndTime.
func (p *Proposal) Ended(t time.Time) bool {
	return t.After(p.EndTime)
}

func (p *Proposal) String() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// Tally is the clear result of a proposal, as resolved by an authorized
// decryption. The handles identify the exact counters that were decrypted.
type Tally struct {
	ProposalID  uint64    `json:"proposalId"`
	Yes         uint64    `json:"yes"`
	No          uint64    `json:"no"`
	YesHandle   Handle    `json:"yesHandle"`
	NoHandle    Handle    `json:"noHandle"`
	DecryptedAt time.Time `json:"decryptedAt"`
}

// Decrypts reports whether t was resolved from the present counters of p.
func (t *Tally) Decrypts(p *Proposal) bool {
	return t.ProposalID == p.ID && t.YesHandle == p.EncryptedYes && t.NoHandle == p.EncryptedNo
}

// EventType enumerates the notifications emitted by the DAO contract.
type EventType string

const (
	EventMemberAdded          EventType = "MemberAdded"
	EventProposalCreated      EventType = "ProposalCreated"
	EventVoteCast             EventType = "VoteCast"
	EventProposalExecuted     EventType = "ProposalExecuted"
	EventVoteResultsDecrypted EventType = "VoteResultsDecrypted"
)

// Event is a contract notification. Only the fields relevant to the event
// type are set.
type Event struct {
	Index       uint64         `json:"index"                 cbor:"0,keyasint,omitempty"`
	Type        EventType      `json:"type"                  cbor:"1,keyasint,omitempty"`
	ProposalID  uint64         `json:"proposalId,omitempty"  cbor:"2,keyasint,omitempty"`
	Account     common.Address `json:"account"               cbor:"3,keyasint,omitempty"`
	Description string         `json:"description,omitempty" cbor:"4,keyasint,omitempty"`
	StartTime   time.Time      `json:"startTime"             cbor:"5,keyasint"`
	EndTime     time.Time      `json:"endTime"               cbor:"6,keyasint"`
	Yes         uint64         `json:"yes,omitempty"         cbor:"7,keyasint,omitempty"`
	No          uint64         `json:"no,omitempty"          cbor:"8,keyasint,omitempty"`
	Result      bool           `json:"result,omitempty"      cbor:"9,keyasint,omitempty"`
	TxHash      common.Hash    `json:"txHash"                cbor:"10,keyasint,omitempty"`
	BlockNumber uint64         `json:"blockNumber,omitempty" cbor:"11,keyasint,omitempty"`
}

func (e *Event) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}
