package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HandleLen is the size in bytes of a ciphertext handle.
const HandleLen = 32

// FHEType identifies the plaintext type behind a ciphertext handle. It is
// stored in the last byte of every handle.
type FHEType uint8

const (
	TypeBool   FHEType = 0
	TypeUint32 FHEType = 4
)

func (t FHEType) String() string {
	switch t {
	case TypeBool:
		return "ebool"
	case TypeUint32:
		return "euint32"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Handle is an opaque reference to an encrypted value held by the
// co-processor. Handles are comparable and never reveal the plaintext.
type Handle [HandleLen]byte

// HandleFromBytes builds a Handle from a byte slice of exactly HandleLen bytes.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleLen {
		return h, fmt.Errorf("invalid handle length: got %d, expected %d", len(b), HandleLen)
	}
	copy(h[:], b)
	return h, nil
}

// HexToHandle parses a 0x-prefixed (or bare) hex string into a Handle.
func HexToHandle(s string) (Handle, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Handle{}, fmt.Errorf("invalid handle hex: %w", err)
	}
	return HandleFromBytes(b)
}

// Type returns the encrypted type embedded in the handle.
func (h Handle) Type() FHEType {
	return FHEType(h[HandleLen-1])
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) Bytes() []byte {
	return h[:]
}

func (h Handle) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(data []byte) error {
	parsed, err := HexToHandle(string(data))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
