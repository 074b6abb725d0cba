package web3

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/log"
)

var _ chain.Dialer = (*Dialer)(nil)

// Dialer opens Contracts connections to a contract deployed on an EVM chain.
type Dialer struct {
	Address    common.Address
	Endpoints  []string
	StartBlock uint64
}

// Dial implements chain.Dialer. The first endpoint decides the chain, the
// others are added to the pool when they serve the same chain.
func (d *Dialer) Dial(_ context.Context, chainID uint64, signer *ethereum.SignKeys) (chain.Connection, error) {
	if len(d.Endpoints) == 0 {
		return nil, fmt.Errorf("no web3 endpoints configured")
	}
	contracts, err := NewContracts(d.Address, d.Endpoints[0])
	if err != nil {
		return nil, err
	}
	if contracts.ChainID() != chainID {
		return nil, fmt.Errorf("web3 endpoint serves chain %d, not %d", contracts.ChainID(), chainID)
	}
	for _, uri := range d.Endpoints[1:] {
		if err := contracts.AddWeb3Endpoint(uri); err != nil {
			log.Warnw("failed to add endpoint", "rpc", uri, "error", err.Error())
		}
	}
	contracts.SetSigner(signer)
	contracts.SetStartBlock(d.StartBlock)
	log.Infow("contracts initialized", "chainId", chainID, "address", d.Address.Hex())
	return contracts, nil
}
