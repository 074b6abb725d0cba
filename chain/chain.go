// Package chain defines the connection to a deployed EncryptedDAO contract:
// the transactions and view calls of the contract plus the identity of the
// connected account. Local runs the contract in process, web3.Contracts talks
// to a real chain.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/types"
)

const (
	// ReceiptStatusFailed and ReceiptStatusSuccessful follow the Ethereum
	// receipt status values.
	ReceiptStatusFailed     = 0
	ReceiptStatusSuccessful = 1
)

var (
	// ErrTransactionReverted is returned by WaitTx when the transaction was
	// mined but reverted.
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrUnknownTransaction is returned by WaitTx for hashes never sent.
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrNoEvent is returned when a receipt lacks an expected event.
	ErrNoEvent = errors.New("event not found in receipt")
)

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      uint64
	Events      []*types.Event
	// Err holds the revert reason of failed transactions.
	Err error
}

// Connection is an account connected to an EncryptedDAO contract.
// Transaction methods return as soon as the transaction is sent, its outcome
// is obtained with WaitTx.
type Connection interface {
	ChainID() uint64
	Account() common.Address
	ContractAddress() common.Address
	// SignKeys returns the wallet of the connected account, used to sign
	// decryption permits.
	SignKeys() *ethereum.SignKeys

	JoinDAO(ctx context.Context) (common.Hash, error)
	AddMember(ctx context.Context, member common.Address) (common.Hash, error)
	CreateProposal(ctx context.Context, description string, votingDuration time.Duration) (common.Hash, error)
	CastVote(ctx context.Context, id uint64, ballot types.Handle, proof []byte) (common.Hash, error)
	GrantDecryptionAccess(ctx context.Context, id uint64) (common.Hash, error)
	ExecuteProposal(ctx context.Context, id uint64) (common.Hash, error)
	// WaitTx blocks until the transaction is mined. Reverted transactions
	// return their receipt and an error wrapping ErrTransactionReverted.
	WaitTx(ctx context.Context, hash common.Hash) (*Receipt, error)

	Proposal(ctx context.Context, id uint64) (*types.Proposal, error)
	EncryptedVotes(ctx context.Context, id uint64) (yes, no types.Handle, err error)
	IsMember(ctx context.Context, addr common.Address) (bool, error)
	HasVoted(ctx context.Context, id uint64, voter common.Address) (bool, error)
	IsVotingEnded(ctx context.Context, id uint64) (bool, error)
	ProposalCount(ctx context.Context) (uint64, error)
	MemberCount(ctx context.Context) (uint64, error)
	// Events returns the contract events with index >= from.
	Events(ctx context.Context, from uint64) ([]*types.Event, error)
}

// Dialer opens a connection for signer on the given chain.
type Dialer interface {
	Dial(ctx context.Context, chainID uint64, signer *ethereum.SignKeys) (Connection, error)
}

// Subscriber is implemented by connections able to push events as they are
// emitted.
type Subscriber interface {
	SubscribeEvents(buffer int) (<-chan *types.Event, func())
}

// Transact sends a transaction with send and waits for its receipt.
func Transact(ctx context.Context, conn Connection, send func(ctx context.Context) (common.Hash, error)) (*Receipt, error) {
	hash, err := send(ctx)
	if err != nil {
		return nil, err
	}
	return conn.WaitTx(ctx, hash)
}

// ProposalIDFromReceipt extracts the id of the proposal created by the
// transaction.
func ProposalIDFromReceipt(r *Receipt) (uint64, error) {
	if ev := r.Event(types.EventProposalCreated); ev != nil {
		return ev.ProposalID, nil
	}
	return 0, fmt.Errorf("%w: %s in %s", ErrNoEvent, types.EventProposalCreated, r.TxHash.Hex())
}

// Event returns the first event of the given type, or nil.
func (r *Receipt) Event(typ types.EventType) *types.Event {
	for _, ev := range r.Events {
		if ev.Type == typ {
			return ev
		}
	}
	return nil
}
