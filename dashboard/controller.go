// Package dashboard orchestrates the member facing operations of the DAO: it
// owns the active wallet and chain connection, runs the decryption and vote
// sessions against them and builds the view shown to the user.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/session"
	"github.com/tocipoco/DAO-Vote/types"
)

var (
	// ErrNoGateway is returned when no co-processor gateway serves a chain.
	ErrNoGateway = errors.New("no co-processor gateway for chain")
	// ErrNoSigner is returned when the controller is built without a wallet.
	ErrNoSigner = errors.New("no wallet connected")
)

// Config holds the controller dependencies.
type Config struct {
	// Dialer opens chain connections for the active wallet.
	Dialer chain.Dialer
	// Gateways are the co-processor gateways by chain id.
	Gateways map[uint64]coprocessor.Gateway
	// ChainID is the initial network.
	ChainID uint64
	// Signer is the initial wallet.
	Signer *ethereum.SignKeys
	// Signatures backs the decryption signature cache. Defaults to memory.
	Signatures        session.KeyValueStore
	SignatureCapacity int
	Session           session.Config
}

// Controller is the state of one dashboard session.
type Controller struct {
	dialer   chain.Dialer
	gateways map[uint64]coprocessor.Gateway
	now      func() time.Time

	mu      sync.RWMutex
	conn    chain.Connection
	client  *coprocessor.Client
	clients map[uint64]*coprocessor.Client
	lastErr string

	tracker *session.Tracker
	sigs    *session.SignatureCache
	results *session.ResultBook
	decrypt *session.DecryptSession
	vote    *session.VoteSession
}

// New connects cfg.Signer to cfg.ChainID and returns the controller.
func New(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("missing chain dialer")
	}
	if cfg.Signer == nil {
		return nil, ErrNoSigner
	}
	if cfg.Signatures == nil {
		cfg.Signatures = session.NewMemoryStore()
	}
	if cfg.Session.Now == nil {
		cfg.Session.Now = time.Now
	}
	c := &Controller{
		dialer:   cfg.Dialer,
		gateways: cfg.Gateways,
		now:      cfg.Session.Now,
		clients:  make(map[uint64]*coprocessor.Client),
		results:  session.NewResultBook(),
	}
	conn, client, err := c.connect(ctx, cfg.ChainID, cfg.Signer)
	if err != nil {
		return nil, err
	}
	c.conn, c.client = conn, client
	c.tracker = session.NewTracker(session.ContextOf(conn))
	c.sigs = session.NewSignatureCache(cfg.Signatures, cfg.SignatureCapacity, cfg.Session.Now)
	c.decrypt = session.NewDecryptSession(cfg.Session, c.tracker, c.sigs, c.results)
	c.vote = session.NewVoteSession(cfg.Session, c.tracker, c.results)
	log.Infow("dashboard connected", "chainId", conn.ChainID(), "account", conn.Account().Hex(),
		"contract", conn.ContractAddress().Hex())
	return c, nil
}

// connect dials chainID with signer and returns the co-processor client of
// the chain. Clients are kept per chain so gateway parameters are fetched
// once.
func (c *Controller) connect(ctx context.Context, chainID uint64, signer *ethereum.SignKeys) (chain.Connection, *coprocessor.Client, error) {
	gw, ok := c.gateways[chainID]
	if !ok {
		return nil, nil, fmt.Errorf("%w %d", ErrNoGateway, chainID)
	}
	conn, err := c.dialer.Dial(ctx, chainID, signer)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to chain %d: %w", chainID, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[chainID]
	if !ok {
		client = coprocessor.NewClient(gw)
		c.clients[chainID] = client
	}
	return conn, client, nil
}

// Connection returns the active chain connection.
func (c *Controller) Connection() chain.Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Controller) target() session.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return session.Target{Conn: c.conn, Client: c.client}
}

// report records the outcome of a user action. Stale and ignored requests
// are not failures and leave the last error untouched.
func (c *Controller) report(action string, err error) error {
	if Dropped(err) {
		log.Debugw("dashboard action dropped", "action", action, "reason", err.Error())
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = fmt.Sprintf("%s: %v", action, err)
		log.Warnw("dashboard action failed", "action", action, "error", err.Error())
		return err
	}
	c.lastErr = ""
	return nil
}

// LastError returns the message of the last failed action, if any.
func (c *Controller) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// ClearError dismisses the last error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = ""
}

// transact sends a transaction from the active account and waits for it.
func (c *Controller) transact(ctx context.Context, action string, send func(conn chain.Connection) func(ctx context.Context) (common.Hash, error)) (*chain.Receipt, error) {
	conn := c.Connection()
	r, err := chain.Transact(ctx, conn, send(conn))
	if err != nil {
		err = fmt.Errorf("%w: %w", session.ErrTransaction, err)
	}
	return r, c.report(action, err)
}

// Join registers the active account as a member.
func (c *Controller) Join(ctx context.Context) error {
	_, err := c.transact(ctx, "join", func(conn chain.Connection) func(context.Context) (common.Hash, error) {
		return conn.JoinDAO
	})
	return err
}

// AddMember registers member on behalf of the active account.
func (c *Controller) AddMember(ctx context.Context, member common.Address) error {
	_, err := c.transact(ctx, "add member", func(conn chain.Connection) func(context.Context) (common.Hash, error) {
		return func(ctx context.Context) (common.Hash, error) { return conn.AddMember(ctx, member) }
	})
	return err
}

// CreateProposal opens a proposal and returns its id.
func (c *Controller) CreateProposal(ctx context.Context, description string, votingDuration time.Duration) (uint64, error) {
	r, err := c.transact(ctx, "create proposal", func(conn chain.Connection) func(context.Context) (common.Hash, error) {
		return func(ctx context.Context) (common.Hash, error) {
			return conn.CreateProposal(ctx, description, votingDuration)
		}
	})
	if err != nil {
		return 0, err
	}
	return chain.ProposalIDFromReceipt(r)
}

// Vote casts ballot on the proposal from the active account.
func (c *Controller) Vote(ctx context.Context, id, ballot uint64) (*types.Proposal, error) {
	p, err := c.vote.Vote(ctx, c.target(), id, ballot)
	return p, c.report("vote", err)
}

// Decrypt resolves the tally of the proposal for the active account. A failed
// request returns the decryption session to idle.
func (c *Controller) Decrypt(ctx context.Context, id uint64) (*types.Tally, error) {
	t, err := c.decrypt.Decrypt(ctx, c.target(), id)
	if err != nil && !Dropped(err) {
		c.decrypt.Reset()
	}
	return t, c.report("decrypt", err)
}

// Execute closes the proposal and returns the published tally.
func (c *Controller) Execute(ctx context.Context, id uint64) (*types.Tally, error) {
	r, err := c.transact(ctx, "execute", func(conn chain.Connection) func(context.Context) (common.Hash, error) {
		return func(ctx context.Context) (common.Hash, error) { return conn.ExecuteProposal(ctx, id) }
	})
	if err != nil {
		return nil, err
	}
	ev := r.Event(types.EventVoteResultsDecrypted)
	if ev == nil {
		return nil, fmt.Errorf("%w: %s", chain.ErrNoEvent, types.EventVoteResultsDecrypted)
	}
	t := c.tallyFromEvent(ctx, ev)
	c.results.Set(t)
	return t, nil
}

func (c *Controller) tallyFromEvent(ctx context.Context, ev *types.Event) *types.Tally {
	t := &types.Tally{ProposalID: ev.ProposalID, Yes: ev.Yes, No: ev.No, DecryptedAt: c.now()}
	if yes, no, err := c.Connection().EncryptedVotes(ctx, ev.ProposalID); err == nil {
		t.YesHandle, t.NoHandle = yes, no
	}
	return t
}

// SwitchAccount connects signer on the active network. Pending requests of
// the previous account become stale and decrypted tallies are dropped.
func (c *Controller) SwitchAccount(ctx context.Context, signer *ethereum.SignKeys) error {
	if signer == nil {
		return ErrNoSigner
	}
	return c.switchTo(ctx, c.Connection().ChainID(), signer)
}

// SwitchNetwork connects the active wallet to chainID.
func (c *Controller) SwitchNetwork(ctx context.Context, chainID uint64) error {
	return c.switchTo(ctx, chainID, c.Connection().SignKeys())
}

func (c *Controller) switchTo(ctx context.Context, chainID uint64, signer *ethereum.SignKeys) error {
	conn, client, err := c.connect(ctx, chainID, signer)
	if err != nil {
		return c.report("switch", err)
	}
	c.mu.Lock()
	c.conn, c.client = conn, client
	c.mu.Unlock()
	c.tracker.Update(session.ContextOf(conn), c.results.Clear)
	log.Infow("dashboard context switched", "chainId", chainID, "account", conn.Account().Hex(),
		"contract", conn.ContractAddress().Hex())
	return c.report("switch", nil)
}

// SignOut forgets the decryption signatures and tallies of the active
// account. Pending decryptions are discarded.
func (c *Controller) SignOut() error {
	account := c.Connection().Account()
	c.tracker.Invalidate(c.results.Clear)
	if err := c.sigs.SignOut(account); err != nil {
		return c.report("sign out", err)
	}
	log.Infow("signed out", "account", account.Hex())
	return c.report("sign out", nil)
}

// HandleEvent applies a contract event of the active connection to the
// session state. Votes from other accounts change the counters, so the
// decrypted tally of their proposal is dropped; published results replace
// it.
func (c *Controller) HandleEvent(ctx context.Context, ev *types.Event) {
	switch ev.Type {
	case types.EventVoteCast:
		if ev.Account == c.Connection().Account() {
			return
		}
		if _, ok := c.results.Get(ev.ProposalID); ok {
			log.Debugw("tally outdated by foreign vote", "proposal", ev.ProposalID, "voter", ev.Account.Hex())
		}
		c.results.Invalidate(ev.ProposalID)
	case types.EventVoteResultsDecrypted:
		c.results.Set(c.tallyFromEvent(ctx, ev))
	}
}
