package rpc

import (
	"context"
	"fmt"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tocipoco/DAO-Vote/log"
)

var (
	_ bind.ContractBackend = (*Client)(nil)
	_ bind.DeployBackend   = (*Client)(nil)
)

// Client is a bind.ContractBackend for a chainID of a Web3Pool. Every call is
// retried on the next endpoint of the chain when it fails, disabling the
// failing endpoint.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// ChainID returns the chain served by the client.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// retry runs fn on the endpoints of the chain until one succeeds or every
// endpoint has been tried.
func retry[T any](c *Client, fn func(cli *ethclient.Client) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	tries := c.w3p.NumberOfEndpoints(c.chainID, false)
	for i := 0; i < tries; i++ {
		endpoint, err := c.w3p.Endpoint(c.chainID)
		if err != nil {
			return zero, err
		}
		res, err := fn(endpoint.client)
		if err == nil {
			return res, nil
		}
		log.Debugw("web3 call failed, trying next endpoint", "chainID", c.chainID, "uri", endpoint.URI, "error", err.Error())
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
		lastErr = err
	}
	if lastErr == nil {
		return zero, fmt.Errorf("no endpoints for chainID %d", c.chainID)
	}
	return zero, lastErr
}

// CodeAt implements bind.ContractCaller.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return retry(c, func(cli *ethclient.Client) ([]byte, error) {
		return cli.CodeAt(ctx, account, blockNumber)
	})
}

// CallContract implements bind.ContractCaller.
func (c *Client) CallContract(ctx context.Context, call geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return retry(c, func(cli *ethclient.Client) ([]byte, error) {
		return cli.CallContract(ctx, call, blockNumber)
	})
}

// HeaderByNumber implements bind.ContractTransactor.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return retry(c, func(cli *ethclient.Client) (*gethtypes.Header, error) {
		return cli.HeaderByNumber(ctx, number)
	})
}

// PendingCodeAt implements bind.ContractTransactor.
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return retry(c, func(cli *ethclient.Client) ([]byte, error) {
		return cli.PendingCodeAt(ctx, account)
	})
}

// PendingNonceAt implements bind.ContractTransactor.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return retry(c, func(cli *ethclient.Client) (uint64, error) {
		return cli.PendingNonceAt(ctx, account)
	})
}

// SuggestGasPrice implements bind.ContractTransactor.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return retry(c, func(cli *ethclient.Client) (*big.Int, error) {
		return cli.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap implements bind.ContractTransactor.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return retry(c, func(cli *ethclient.Client) (*big.Int, error) {
		return cli.SuggestGasTipCap(ctx)
	})
}

// EstimateGas implements bind.ContractTransactor.
func (c *Client) EstimateGas(ctx context.Context, call geth.CallMsg) (uint64, error) {
	return retry(c, func(cli *ethclient.Client) (uint64, error) {
		return cli.EstimateGas(ctx, call)
	})
}

// SendTransaction implements bind.ContractTransactor. It is not retried on
// other endpoints to avoid broadcasting the same transaction twice.
func (c *Client) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return err
	}
	return endpoint.client.SendTransaction(ctx, tx)
}

// FilterLogs implements bind.ContractFilterer.
func (c *Client) FilterLogs(ctx context.Context, query geth.FilterQuery) ([]gethtypes.Log, error) {
	return retry(c, func(cli *ethclient.Client) ([]gethtypes.Log, error) {
		return cli.FilterLogs(ctx, query)
	})
}

// SubscribeFilterLogs implements bind.ContractFilterer.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query geth.FilterQuery, ch chan<- gethtypes.Log) (geth.Subscription, error) {
	return retry(c, func(cli *ethclient.Client) (geth.Subscription, error) {
		return cli.SubscribeFilterLogs(ctx, query, ch)
	})
}

// TransactionReceipt implements bind.DeployBackend.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return nil, err
	}
	// not found errors are expected while waiting, so they do not disable
	// the endpoint
	return endpoint.client.TransactionReceipt(ctx, txHash)
}

// BlockNumber returns the last block of the chain.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return retry(c, func(cli *ethclient.Client) (uint64, error) {
		return cli.BlockNumber(ctx)
	})
}
