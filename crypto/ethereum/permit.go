package ethereum

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	PermitDomainName    = "Decryption"
	PermitDomainVersion = "1"
	PermitPrimaryType   = "UserDecryptRequestVerification"
)

// DecryptionPermit is the EIP-712 message a user signs to authorize the
// gateway to re-encrypt the plaintexts of the listed contracts' ciphertexts
// to PublicKey, during DurationDays starting at StartTimestamp.
type DecryptionPermit struct {
	PublicKey         []byte           `json:"publicKey"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	StartTimestamp    uint64           `json:"startTimestamp"`
	DurationDays      uint64           `json:"durationDays"`
	ChainID           uint64           `json:"chainId"`
	VerifyingContract common.Address   `json:"verifyingContract"`
}

// TypedData returns the EIP-712 representation of the permit.
func (p *DecryptionPermit) TypedData() apitypes.TypedData {
	contracts := make([]interface{}, len(p.ContractAddresses))
	for i, addr := range p.ContractAddresses {
		contracts[i] = addr.Hex()
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			PermitPrimaryType: []apitypes.Type{
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: PermitPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              PermitDomainName,
			Version:           PermitDomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(p.ChainID)),
			VerifyingContract: p.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(p.PublicKey),
			"contractAddresses": contracts,
			"startTimestamp":    strconv.FormatUint(p.StartTimestamp, 10),
			"durationDays":      strconv.FormatUint(p.DurationDays, 10),
		},
	}
}

// Hash returns the EIP-712 digest to be signed.
func (p *DecryptionPermit) Hash() ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(p.TypedData())
	if err != nil {
		return nil, fmt.Errorf("cannot hash decryption permit: %w", err)
	}
	return hash, nil
}

// Expiry returns the end of the validity window.
func (p *DecryptionPermit) Expiry() time.Time {
	start := time.Unix(int64(p.StartTimestamp), 0)
	return start.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
}

// ValidAt reports whether t is inside [start, start+durationDays].
func (p *DecryptionPermit) ValidAt(t time.Time) bool {
	start := time.Unix(int64(p.StartTimestamp), 0)
	return !t.Before(start) && !t.After(p.Expiry())
}

// Covers reports whether contract is listed in the permit.
func (p *DecryptionPermit) Covers(contract common.Address) bool {
	for _, addr := range p.ContractAddresses {
		if addr == contract {
			return true
		}
	}
	return false
}

// SignTypedData signs the permit's EIP-712 digest.
func (k *SignKeys) SignTypedData(p *DecryptionPermit) ([]byte, error) {
	hash, err := p.Hash()
	if err != nil {
		return nil, err
	}
	return k.SignHash(hash)
}

// AddrFromTypedDataSignature recovers the address that signed the permit.
func AddrFromTypedDataSignature(p *DecryptionPermit, signature []byte) (common.Address, error) {
	hash, err := p.Hash()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := PubKeyFromSignature(hash, signature)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
