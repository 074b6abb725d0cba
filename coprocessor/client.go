package coprocessor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/crypto/ecc"
	"github.com/tocipoco/DAO-Vote/crypto/ecc/bjj"
	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/types"
)

// Keypair is an ephemeral re-encryption key pair.
type Keypair struct {
	PrivateKey types.HexBytes `json:"privateKey"`
	PublicKey  types.HexBytes `json:"publicKey"`
}

// Client is the user side of the co-processor: it encrypts inputs with the
// network key and runs the user decryption flow against a Gateway.
type Client struct {
	gw Gateway

	mu     sync.Mutex
	info   *GatewayInfo
	pubKey ecc.Point
}

// NewClient returns a client using gw. Gateway parameters are fetched on
// first use.
func NewClient(gw Gateway) *Client {
	return &Client{gw: gw}
}

// Info returns the cached gateway parameters, fetching them if needed.
func (c *Client) Info(ctx context.Context) (*GatewayInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil {
		return c.info, nil
	}
	info, err := c.gw.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch gateway info: %w", err)
	}
	pubKey := bjj.New()
	if err := pubKey.Unmarshal(info.NetworkPublicKey); err != nil {
		return nil, fmt.Errorf("invalid network public key: %w", err)
	}
	c.info, c.pubKey = info, pubKey
	return info, nil
}

// CreateEncryptedInput starts an encrypted input for a call from user to
// contract.
func (c *Client) CreateEncryptedInput(contract, user common.Address) *InputBuilder {
	return &InputBuilder{client: c, contract: contract, user: user}
}

// Encrypt encrypts the accumulated values and builds their proof.
func (b *InputBuilder) Encrypt(ctx context.Context) (*EncryptedInput, error) {
	info, err := b.client.Info(ctx)
	if err != nil {
		return nil, err
	}
	b.client.mu.Lock()
	pubKey := b.client.pubKey
	b.client.mu.Unlock()
	return b.encrypt(info.ChainID, pubKey)
}

// GenerateKeypair returns a fresh re-encryption key pair.
func (c *Client) GenerateKeypair() (*Keypair, error) {
	priv, pub, err := ethereum.GenerateEphemeralKeypair()
	if err != nil {
		return nil, err
	}
	return &Keypair{PrivateKey: priv, PublicKey: pub}, nil
}

// CreateEIP712 builds the decryption permit the user has to sign.
func (c *Client) CreateEIP712(ctx context.Context, publicKey []byte, contracts []common.Address,
	startTimestamp, durationDays uint64,
) (*ethereum.DecryptionPermit, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &ethereum.DecryptionPermit{
		PublicKey:         publicKey,
		ContractAddresses: contracts,
		StartTimestamp:    startTimestamp,
		DurationDays:      durationDays,
		ChainID:           info.ChainID,
		VerifyingContract: info.VerifyingContract,
	}, nil
}

// UserDecrypt asks the gateway for the plaintexts of pairs and opens them
// with the ephemeral private key. Every requested handle is present in the
// result.
func (c *Client) UserDecrypt(ctx context.Context, pairs []HandleContractPair, keypair *Keypair,
	signature []byte, contracts []common.Address, user common.Address, startTimestamp, durationDays uint64,
) (map[types.Handle]uint64, error) {
	resp, err := c.gw.UserDecrypt(ctx, &UserDecryptRequest{
		Pairs:             pairs,
		User:              user,
		PublicKey:         keypair.PublicKey,
		Signature:         signature,
		ContractAddresses: contracts,
		StartTimestamp:    startTimestamp,
		DurationDays:      durationDays,
	})
	if err != nil {
		return nil, err
	}
	out := make(map[types.Handle]uint64, len(resp.Values))
	for _, v := range resp.Values {
		plain, err := ethereum.DecryptReencrypted(keypair.PrivateKey, v.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("cannot open value of %s: %w", v.Handle, err)
		}
		if len(plain) != 8 {
			return nil, fmt.Errorf("unexpected plaintext size %d for %s", len(plain), v.Handle)
		}
		out[v.Handle] = binary.BigEndian.Uint64(plain)
	}
	for _, p := range pairs {
		if _, ok := out[p.Handle]; !ok {
			return nil, fmt.Errorf("gateway did not return handle %s", p.Handle)
		}
	}
	return out, nil
}
