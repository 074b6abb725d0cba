package chain

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"

	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/dao"
	"github.com/tocipoco/DAO-Vote/storage"
	"github.com/tocipoco/DAO-Vote/types"
)

const testChainID = 31337

func newTestLocal(c *qt.C) *Local {
	stg := storage.New(memdb.New())
	cp, err := coprocessor.New(stg, coprocessor.Config{ChainID: testChainID, MaxPlaintext: 1 << 10})
	c.Assert(err, qt.IsNil)
	engine, err := dao.New(stg, cp, dao.Config{Address: common.HexToAddress("0xda0")})
	c.Assert(err, qt.IsNil)
	return NewLocal(engine, testChainID)
}

func newSigner(c *qt.C) *ethereum.SignKeys {
	s := ethereum.NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)
	return s
}

func TestLocalTransactions(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	ledger := newTestLocal(c)
	alice := ledger.Connect(newSigner(c))
	c.Assert(alice.ChainID(), qt.Equals, uint64(testChainID))
	c.Assert(alice.ContractAddress(), qt.Equals, common.HexToAddress("0xda0"))

	r, err := Transact(ctx, alice, alice.JoinDAO)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Status, qt.Equals, uint64(ReceiptStatusSuccessful))
	c.Assert(r.Events, qt.HasLen, 1)
	c.Assert(r.Events[0].Type, qt.Equals, types.EventMemberAdded)
	c.Assert(r.Events[0].TxHash, qt.Equals, r.TxHash)
	c.Assert(r.BlockNumber, qt.Equals, ledger.BlockNumber())

	// the same call again reverts, with a new hash
	hash, err := alice.JoinDAO(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(hash, qt.Not(qt.Equals), r.TxHash)
	r2, err := alice.WaitTx(ctx, hash)
	c.Assert(err, qt.ErrorIs, ErrTransactionReverted)
	c.Assert(r2.Status, qt.Equals, uint64(ReceiptStatusFailed))
	c.Assert(r2.Err, qt.ErrorIs, dao.ErrAlreadyMember)
	c.Assert(r2.Events, qt.HasLen, 0)

	r, err = Transact(ctx, alice, func(ctx context.Context) (common.Hash, error) {
		return alice.CreateProposal(ctx, "treasury report", types.MinVotingDuration)
	})
	c.Assert(err, qt.IsNil)
	id, err := ProposalIDFromReceipt(r)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))
	count, err := alice.ProposalCount(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))

	_, err = ProposalIDFromReceipt(r2)
	c.Assert(err, qt.ErrorIs, ErrNoEvent)
	_, err = alice.WaitTx(ctx, common.Hash{0x01})
	c.Assert(err, qt.ErrorIs, ErrUnknownTransaction)

	events, err := alice.Events(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 2)
}

func TestLocalSubscription(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	ledger := newTestLocal(c)
	conn := ledger.Connect(newSigner(c))

	var sub Subscriber = conn
	events, cancel := sub.SubscribeEvents(1)
	defer cancel()
	_, err := Transact(ctx, conn, conn.JoinDAO)
	c.Assert(err, qt.IsNil)
	select {
	case ev := <-events:
		c.Assert(ev.Account, qt.Equals, conn.Account())
	case <-time.After(time.Second):
		c.Fatal("event not delivered")
	}
}

func TestNetworksDial(t *testing.T) {
	c := qt.New(t)
	ledger := newTestLocal(c)
	nets := Networks{testChainID: ledger}
	signer := newSigner(c)

	conn, err := nets.Dial(context.Background(), testChainID, signer)
	c.Assert(err, qt.IsNil)
	c.Assert(conn.Account(), qt.Equals, signer.Address())
	_, err = nets.Dial(context.Background(), 1, signer)
	c.Assert(err, qt.IsNotNil)
	_, err = ledger.Dial(context.Background(), 1, signer)
	c.Assert(err, qt.IsNotNil)
}
