package coprocessor

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/crypto/ethereum"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

const (
	// MaxPermitContracts bounds the contracts a single permit can list.
	MaxPermitContracts = 10
	// MaxPermitDurationDays bounds the validity of a permit.
	MaxPermitDurationDays = 365
)

// Gateway is the decryption gateway of the co-processor, reachable in
// process or over HTTP.
type Gateway interface {
	Info(ctx context.Context) (*GatewayInfo, error)
	UserDecrypt(ctx context.Context, req *UserDecryptRequest) (*UserDecryptResponse, error)
}

// GatewayInfo describes the parameters clients need to build inputs and
// permits.
type GatewayInfo struct {
	ChainID           uint64         `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
	// NetworkPublicKey is the compressed network encryption key.
	NetworkPublicKey types.HexBytes `json:"networkPublicKey"`
	MaxPlaintext     uint64         `json:"maxPlaintext"`
}

// HandleContractPair names a handle and the contract that holds it.
type HandleContractPair struct {
	Handle          types.Handle   `json:"handle"`
	ContractAddress common.Address `json:"contractAddress"`
}

// UserDecryptRequest asks for the plaintexts of Pairs, re-encrypted to
// PublicKey, on behalf of User. Signature is User's EIP-712 signature over
// the DecryptionPermit built from the remaining fields.
type UserDecryptRequest struct {
	Pairs             []HandleContractPair `json:"pairs"`
	User              common.Address       `json:"user"`
	PublicKey         types.HexBytes       `json:"publicKey"`
	Signature         types.HexBytes       `json:"signature"`
	ContractAddresses []common.Address     `json:"contractAddresses"`
	StartTimestamp    uint64               `json:"startTimestamp"`
	DurationDays      uint64               `json:"durationDays"`
}

// ReencryptedValue is a plaintext encrypted to the requester ephemeral key.
type ReencryptedValue struct {
	Handle     types.Handle   `json:"handle"`
	Ciphertext types.HexBytes `json:"ciphertext"`
}

// UserDecryptResponse holds one re-encrypted value per requested pair, in
// request order.
type UserDecryptResponse struct {
	Values []ReencryptedValue `json:"values"`
}

// Info implements Gateway.
func (cp *Coprocessor) Info(_ context.Context) (*GatewayInfo, error) {
	return &GatewayInfo{
		ChainID:           cp.cfg.ChainID,
		VerifyingContract: cp.cfg.GatewayAddress,
		NetworkPublicKey:  cp.pubKey.Marshal(),
		MaxPlaintext:      cp.cfg.MaxPlaintext,
	}, nil
}

// Permit returns the decryption permit the request signature must cover.
func (cp *Coprocessor) Permit(req *UserDecryptRequest) *ethereum.DecryptionPermit {
	return &ethereum.DecryptionPermit{
		PublicKey:         req.PublicKey,
		ContractAddresses: req.ContractAddresses,
		StartTimestamp:    req.StartTimestamp,
		DurationDays:      req.DurationDays,
		ChainID:           cp.cfg.ChainID,
		VerifyingContract: cp.cfg.GatewayAddress,
	}
}

// UserDecrypt implements Gateway. The request is accepted only if the
// signature recovers to the user, the permit is within its validity window,
// every handle's contract is listed in the permit and both the user and the
// contract are allowed on every handle.
func (cp *Coprocessor) UserDecrypt(ctx context.Context, req *UserDecryptRequest) (*UserDecryptResponse, error) {
	if err := cp.checkRequest(req); err != nil {
		return nil, err
	}
	permit := cp.Permit(req)
	signer, err := ethereum.AddrFromTypedDataSignature(permit, req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != req.User {
		return nil, fmt.Errorf("%w: signed by %s, not %s", ErrInvalidSignature, signer.Hex(), req.User.Hex())
	}
	if !permit.ValidAt(cp.cfg.Now()) {
		return nil, fmt.Errorf("%w: valid until %s", ErrPermitExpired, permit.Expiry())
	}

	resp := &UserDecryptResponse{}
	for _, pair := range req.Pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !permit.Covers(pair.ContractAddress) {
			return nil, fmt.Errorf("%w: %s", ErrContractNotListed, pair.ContractAddress.Hex())
		}
		for _, account := range []common.Address{req.User, pair.ContractAddress} {
			allowed, err := cp.IsAllowed(pair.Handle, account)
			if err != nil {
				return nil, err
			}
			if !allowed {
				return nil, fmt.Errorf("%w: %s on %s", ErrNotAllowed, account.Hex(), pair.Handle)
			}
		}
		ct, _, err := cp.loadAny(pair.Handle)
		if err != nil {
			return nil, err
		}
		v, err := cp.decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("cannot decrypt %s: %w", pair.Handle, err)
		}
		reencrypted, err := ethereum.Reencrypt(req.PublicKey, binary.BigEndian.AppendUint64(nil, v))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		resp.Values = append(resp.Values, ReencryptedValue{Handle: pair.Handle, Ciphertext: reencrypted})
	}
	log.Debugw("user decryption served", "user", req.User.Hex(), "handles", len(req.Pairs))
	return resp, nil
}

func (cp *Coprocessor) checkRequest(req *UserDecryptRequest) error {
	switch {
	case req == nil:
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	case len(req.Pairs) == 0:
		return fmt.Errorf("%w: no handles requested", ErrInvalidRequest)
	case len(req.ContractAddresses) == 0 || len(req.ContractAddresses) > MaxPermitContracts:
		return fmt.Errorf("%w: permit must list between 1 and %d contracts", ErrInvalidRequest, MaxPermitContracts)
	case req.DurationDays == 0 || req.DurationDays > MaxPermitDurationDays:
		return fmt.Errorf("%w: duration must be between 1 and %d days", ErrInvalidRequest, MaxPermitDurationDays)
	case len(req.PublicKey) != ethereum.PubKeyLengthBytesUncompressed:
		return fmt.Errorf("%w: invalid re-encryption public key", ErrInvalidRequest)
	}
	for _, pair := range req.Pairs {
		if pair.ContractAddress == req.User {
			return fmt.Errorf("%w: user address equals contract address", ErrInvalidRequest)
		}
	}
	return nil
}
