// Package dao implements the EncryptedDAO contract logic: the membership
// registry, the proposal store and the tally engine. Ballots and counters
// are co-processor handles, the engine never sees a plaintext vote.
//
// Every state transition is executed under a single lock, which plays the
// role of the ledger total order, and persisted in one storage batch.
package dao

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
)

// Coprocessor is the encrypted computation service the engine relies on.
type Coprocessor interface {
	TrivialEncrypt(typ types.FHEType, v uint64) (types.Handle, error)
	VerifyInput(handle types.Handle, proof []byte, contract, user common.Address) (types.Handle, error)
	Eq(a types.Handle, scalar uint64) (types.Handle, error)
	Select(cond, a, b types.Handle) (types.Handle, error)
	Add(a, b types.Handle) (types.Handle, error)
	Allow(h types.Handle, account common.Address) error
	AllowForDecryption(handles ...types.Handle) error
	PublicDecrypt(handles ...types.Handle) (map[types.Handle]uint64, error)
}

// Msg carries the context of a state changing call, like msg.sender and the
// enclosing transaction in a contract.
type Msg struct {
	Sender      common.Address
	TxHash      common.Hash
	BlockNumber uint64
}

// Config holds the engine options.
type Config struct {
	// Address is the contract address, used for the ACL grants the contract
	// keeps on its own counters.
	Address common.Address
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Engine is the DAO contract state machine.
type Engine struct {
	mu   sync.Mutex
	stg  *storage.Storage
	fhe  Coprocessor
	addr common.Address
	now  func() time.Time

	subsMu  sync.Mutex
	subs    map[int]chan *types.Event
	nextSub int
}

// New returns an engine persisting its state in stg.
func New(stg *storage.Storage, fhe Coprocessor, cfg Config) (*Engine, error) {
	if stg == nil || fhe == nil {
		return nil, fmt.Errorf("storage and co-processor are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		stg:  stg,
		fhe:  fhe,
		addr: cfg.Address,
		now:  cfg.Now,
		subs: make(map[int]chan *types.Event),
	}, nil
}

// Address returns the contract address.
func (e *Engine) Address() common.Address {
	return e.addr
}

// blockTime returns the current time with the second resolution of block
// timestamps.
func (e *Engine) blockTime() time.Time {
	return e.now().Truncate(time.Second)
}

// commit writes the batch, assigning indexes to the events, and notifies
// subscribers once the batch is durable. Must be called with mu held.
func (e *Engine) commit(b *storage.Batch, msg Msg, events ...*types.Event) error {
	count, err := e.stg.EventCount()
	if err != nil {
		b.Discard()
		return err
	}
	for _, ev := range events {
		ev.Index = count
		ev.TxHash = msg.TxHash
		ev.BlockNumber = msg.BlockNumber
		if err := b.AddEvent(ev); err != nil {
			b.Discard()
			return err
		}
		count++
	}
	if err := b.SetEventCount(count); err != nil {
		b.Discard()
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("cannot commit state: %w", err)
	}
	for _, ev := range events {
		log.Debugw("dao event", "type", string(ev.Type), "index", ev.Index, "proposal", ev.ProposalID)
		e.broadcast(ev)
	}
	return nil
}

// requireMember fails with ErrNotMember unless addr is registered.
func (e *Engine) requireMember(addr common.Address) error {
	ok, err := e.stg.IsMember(addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotMember, addr.Hex())
	}
	return nil
}
