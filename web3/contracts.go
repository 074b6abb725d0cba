// Package web3 connects to an EncryptedDAO contract deployed on an EVM chain
// through a pool of web3 endpoints. Contracts implements chain.Connection.
package web3

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
	"github.com/tocipoco/DAO-Vote/web3/rpc"
)

const (
	// web3QueryTimeout bounds view calls issued without a deadline.
	web3QueryTimeout = 10 * time.Second
	// defaultGasLimit is used for every transaction.
	defaultGasLimit = 10000000
)

//go:embed abi/EncryptedDAO.json
var encryptedDAOABI string

// DAOABI is the parsed EncryptedDAO contract ABI.
var DAOABI = mustParseABI(encryptedDAOABI)

func mustParseABI(data string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("invalid EncryptedDAO ABI: %v", err))
	}
	return parsed
}

var _ chain.Connection = (*Contracts)(nil)

// Contracts contains the binding to a deployed EncryptedDAO contract.
type Contracts struct {
	chainID  uint64
	address  common.Address
	dao      *bind.BoundContract
	web3pool *rpc.Web3Pool
	cli      *rpc.Client
	signer   *ethereum.SignKeys
	// startBlock is the first block scanned for contract events.
	startBlock uint64

	txMu sync.Mutex
	sent map[common.Hash]*gethtypes.Transaction

	eventsMu       sync.Mutex
	events         []*types.Event
	lastWatchBlock uint64
}

// NewContracts binds the contract at address using the given web3 endpoint.
func NewContracts(address common.Address, web3rpc string) (*Contracts, error) {
	w3pool := rpc.NewWeb3Pool()
	chainID, err := w3pool.AddEndpoint(web3rpc)
	if err != nil {
		return nil, fmt.Errorf("failed to add web3 endpoint: %w", err)
	}
	cli, err := w3pool.Client(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &Contracts{
		chainID:  chainID,
		address:  address,
		dao:      bind.NewBoundContract(address, DAOABI, cli, cli, cli),
		web3pool: w3pool,
		cli:      cli,
		sent:     make(map[common.Hash]*gethtypes.Transaction),
	}, nil
}

// AddWeb3Endpoint adds a new web3 endpoint to the pool. It must serve the
// same chain.
func (c *Contracts) AddWeb3Endpoint(web3rpc string) error {
	chainID, err := c.web3pool.AddEndpoint(web3rpc)
	if err != nil {
		return err
	}
	if chainID != c.chainID {
		return fmt.Errorf("endpoint %s serves chain %d, expected %d", web3rpc, chainID, c.chainID)
	}
	return nil
}

// SetAccountPrivateKey sets the private key to be used for signing transactions.
func (c *Contracts) SetAccountPrivateKey(hexPrivKey string) error {
	signer := ethereum.NewSignKeys()
	if err := signer.AddHexKey(hexPrivKey); err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	c.signer = signer
	return nil
}

// SetSigner sets the wallet used for transactions and permits.
func (c *Contracts) SetSigner(signer *ethereum.SignKeys) {
	c.signer = signer
}

// SetStartBlock sets the first block scanned for events, usually the
// deployment block of the contract.
func (c *Contracts) SetStartBlock(block uint64) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.startBlock = block
	if c.lastWatchBlock < block {
		c.lastWatchBlock = block
	}
}

func (c *Contracts) ChainID() uint64 { return c.chainID }

func (c *Contracts) ContractAddress() common.Address { return c.address }

func (c *Contracts) SignKeys() *ethereum.SignKeys { return c.signer }

// Account returns the address of the account used to sign transactions.
func (c *Contracts) Account() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// authTransactOpts creates the transact options with the configured signer.
// It sets the nonce, gas tip cap and gas limit.
func (c *Contracts) authTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no private key set")
	}
	auth, err := bind.NewKeyedTransactorWithChainID(&c.signer.Private, new(big.Int).SetUint64(c.chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	log.Debugw("getting nonce", "address", c.Account().Hex())
	nonce, err := c.cli.PendingNonceAt(ctx, c.Account())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	if auth.GasTipCap, err = c.cli.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	auth.GasLimit = defaultGasLimit
	auth.Context = ctx
	return auth, nil
}

// transact sends a call of method and remembers the transaction for WaitTx.
func (c *Contracts) transact(ctx context.Context, method string, params ...any) (common.Hash, error) {
	opts, err := c.authTransactOpts(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create transact options: %w", err)
	}
	tx, err := c.dao.Transact(opts, method, params...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", method, err)
	}
	c.txMu.Lock()
	c.sent[tx.Hash()] = tx
	c.txMu.Unlock()
	log.Debugw("transaction sent", "method", method, "tx", tx.Hash().Hex())
	return tx.Hash(), nil
}

// WaitTx implements chain.Connection.
func (c *Contracts) WaitTx(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	c.txMu.Lock()
	tx, ok := c.sent[hash]
	c.txMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownTransaction, hash.Hex())
	}
	r, err := bind.WaitMined(ctx, c.cli, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", hash.Hex(), err)
	}
	c.txMu.Lock()
	delete(c.sent, hash)
	c.txMu.Unlock()
	receipt := &chain.Receipt{TxHash: hash, BlockNumber: r.BlockNumber.Uint64(), Status: r.Status}
	if r.Status != gethtypes.ReceiptStatusSuccessful {
		receipt.Err = errors.New("execution reverted")
		return receipt, fmt.Errorf("%w: %s", chain.ErrTransactionReverted, hash.Hex())
	}
	for _, l := range r.Logs {
		if l.Address != c.address {
			continue
		}
		ev, err := decodeLog(l)
		if err != nil {
			log.Warnw("cannot decode receipt log", "tx", hash.Hex(), "error", err.Error())
			continue
		}
		receipt.Events = append(receipt.Events, ev)
	}
	return receipt, nil
}

// call runs a view method of the contract.
func (c *Contracts) call(ctx context.Context, method string, params ...any) ([]any, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, web3QueryTimeout)
		defer cancel()
	}
	var out []any
	if err := c.dao.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}
