package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/dao"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

// Local is an in process ledger running the DAO engine. Every transaction
// is mined in its own block as soon as it is sent.
type Local struct {
	engine  *dao.Engine
	chainID uint64

	mu       sync.Mutex
	block    uint64
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*Receipt
}

// NewLocal returns a ledger for engine identified by chainID.
func NewLocal(engine *dao.Engine, chainID uint64) *Local {
	return &Local{
		engine:   engine,
		chainID:  chainID,
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*Receipt),
	}
}

// Engine returns the contract engine.
func (l *Local) Engine() *dao.Engine {
	return l.engine
}

// ChainID returns the chain id of the ledger.
func (l *Local) ChainID() uint64 {
	return l.chainID
}

// BlockNumber returns the last mined block.
func (l *Local) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

// Connect binds signer to the ledger.
func (l *Local) Connect(signer *ethereum.SignKeys) *LocalConnection {
	return &LocalConnection{ledger: l, signer: signer}
}

// Dial implements Dialer.
func (l *Local) Dial(_ context.Context, chainID uint64, signer *ethereum.SignKeys) (Connection, error) {
	if chainID != l.chainID {
		return nil, fmt.Errorf("local ledger serves chain %d, not %d", l.chainID, chainID)
	}
	return l.Connect(signer), nil
}

// execute mines a transaction from sender running fn. Failures of fn are
// recorded as reverted receipts.
func (l *Local) execute(sender common.Address, fn func(msg dao.Msg) error) common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	nonce := l.nonces[sender]
	l.nonces[sender] = nonce + 1
	l.block++
	hash := common.BytesToHash(ethcrypto.Keccak256(
		binary.BigEndian.AppendUint64(nil, l.chainID),
		sender.Bytes(),
		binary.BigEndian.AppendUint64(nil, nonce),
	))
	receipt := &Receipt{TxHash: hash, BlockNumber: l.block, Status: ReceiptStatusSuccessful}
	from, err := l.engine.EventCount()
	if err == nil {
		err = fn(dao.Msg{Sender: sender, TxHash: hash, BlockNumber: l.block})
	}
	if err != nil {
		receipt.Status = ReceiptStatusFailed
		receipt.Err = err
		log.Debugw("transaction reverted", "tx", hash.Hex(), "from", sender.Hex(), "error", err.Error())
	} else if events, err := l.engine.Events(from, 0); err == nil {
		for _, ev := range events {
			if ev.TxHash == hash {
				receipt.Events = append(receipt.Events, ev)
			}
		}
	}
	l.receipts[hash] = receipt
	return hash
}

var (
	_ Connection = (*LocalConnection)(nil)
	_ Subscriber = (*LocalConnection)(nil)
	_ Dialer     = (*Local)(nil)
)

// LocalConnection is an account connected to a Local ledger.
type LocalConnection struct {
	ledger *Local
	signer *ethereum.SignKeys
}

func (c *LocalConnection) ChainID() uint64 { return c.ledger.chainID }

func (c *LocalConnection) Account() common.Address { return c.signer.Address() }

func (c *LocalConnection) ContractAddress() common.Address { return c.ledger.engine.Address() }

func (c *LocalConnection) SignKeys() *ethereum.SignKeys { return c.signer }

func (c *LocalConnection) send(ctx context.Context, fn func(msg dao.Msg) error) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	return c.ledger.execute(c.Account(), fn), nil
}

func (c *LocalConnection) JoinDAO(ctx context.Context) (common.Hash, error) {
	return c.send(ctx, c.ledger.engine.JoinDAO)
}

func (c *LocalConnection) AddMember(ctx context.Context, member common.Address) (common.Hash, error) {
	return c.send(ctx, func(msg dao.Msg) error {
		return c.ledger.engine.AddMember(msg, member)
	})
}

func (c *LocalConnection) CreateProposal(ctx context.Context, description string, votingDuration time.Duration) (common.Hash, error) {
	return c.send(ctx, func(msg dao.Msg) error {
		_, err := c.ledger.engine.CreateProposal(msg, description, votingDuration)
		return err
	})
}

func (c *LocalConnection) CastVote(ctx context.Context, id uint64, ballot types.Handle, proof []byte) (common.Hash, error) {
	return c.send(ctx, func(msg dao.Msg) error {
		return c.ledger.engine.CastVote(msg, id, ballot, proof)
	})
}

func (c *LocalConnection) GrantDecryptionAccess(ctx context.Context, id uint64) (common.Hash, error) {
	return c.send(ctx, func(msg dao.Msg) error {
		return c.ledger.engine.GrantDecryptionAccess(msg, id)
	})
}

func (c *LocalConnection) ExecuteProposal(ctx context.Context, id uint64) (common.Hash, error) {
	return c.send(ctx, func(msg dao.Msg) error {
		_, err := c.ledger.engine.ExecuteProposal(msg, id)
		return err
	})
}

// WaitTx implements Connection. Local transactions are mined when sent.
func (c *LocalConnection) WaitTx(ctx context.Context, hash common.Hash) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.ledger.mu.Lock()
	receipt, ok := c.ledger.receipts[hash]
	c.ledger.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, hash.Hex())
	}
	if receipt.Status != ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %w", ErrTransactionReverted, receipt.Err)
	}
	return receipt, nil
}

func (c *LocalConnection) Proposal(_ context.Context, id uint64) (*types.Proposal, error) {
	return c.ledger.engine.Proposal(id)
}

func (c *LocalConnection) EncryptedVotes(_ context.Context, id uint64) (types.Handle, types.Handle, error) {
	return c.ledger.engine.EncryptedVotes(id)
}

func (c *LocalConnection) IsMember(_ context.Context, addr common.Address) (bool, error) {
	return c.ledger.engine.IsMember(addr)
}

func (c *LocalConnection) HasVoted(_ context.Context, id uint64, voter common.Address) (bool, error) {
	return c.ledger.engine.HasVoted(id, voter)
}

func (c *LocalConnection) IsVotingEnded(_ context.Context, id uint64) (bool, error) {
	return c.ledger.engine.IsVotingEnded(id)
}

func (c *LocalConnection) ProposalCount(_ context.Context) (uint64, error) {
	return c.ledger.engine.ProposalCount()
}

func (c *LocalConnection) MemberCount(_ context.Context) (uint64, error) {
	return c.ledger.engine.MemberCount()
}

func (c *LocalConnection) Events(_ context.Context, from uint64) ([]*types.Event, error) {
	return c.ledger.engine.Events(from, 0)
}

// SubscribeEvents implements Subscriber.
func (c *LocalConnection) SubscribeEvents(buffer int) (<-chan *types.Event, func()) {
	return c.ledger.engine.Subscribe(buffer)
}

// Networks routes dials to the dialer serving each chain id.
type Networks map[uint64]Dialer

// Dial implements Dialer.
func (n Networks) Dial(ctx context.Context, chainID uint64, signer *ethereum.SignKeys) (Connection, error) {
	d, ok := n[chainID]
	if !ok {
		return nil, fmt.Errorf("no network configured for chain %d", chainID)
	}
	return d.Dial(ctx, chainID, signer)
}
