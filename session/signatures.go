package session

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"

	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

const (
	// DefaultSignatureCapacity bounds the cached signatures.
	DefaultSignatureCapacity = 64

	signatureKeyPrefix = "sig/"
)

// KeyValueStore is the string keyed storage backing the signature cache.
// storage.Storage implements it.
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

// MemoryStore is an in memory KeyValueStore.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return bytes.Clone(v), ok, nil
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = bytes.Clone(value)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// CachedSignature is a decryption permit signature together with the
// ephemeral key pair it authorizes.
type CachedSignature struct {
	User           common.Address      `cbor:"0,keyasint"`
	Contracts      []common.Address    `cbor:"1,keyasint"`
	Keypair        coprocessor.Keypair `cbor:"2,keyasint"`
	Signature      types.HexBytes      `cbor:"3,keyasint"`
	StartTimestamp uint64              `cbor:"4,keyasint"`
	DurationDays   uint64              `cbor:"5,keyasint"`
}

// Expiry returns the end of the validity window.
func (s *CachedSignature) Expiry() time.Time {
	return time.Unix(int64(s.StartTimestamp), 0).Add(time.Duration(s.DurationDays) * 24 * time.Hour)
}

// ValidAt reports whether t is within the validity window.
func (s *CachedSignature) ValidAt(t time.Time) bool {
	return !t.Before(time.Unix(int64(s.StartTimestamp), 0)) && !t.After(s.Expiry())
}

// SignatureCache keeps decryption signatures keyed by user and the sorted
// set of contracts they cover. Expiry is checked on every read and entries
// are replaced wholesale, never modified.
type SignatureCache struct {
	mu       sync.Mutex
	store    KeyValueStore
	capacity int
	now      func() time.Time
}

// NewSignatureCache returns a cache over store holding at most capacity
// signatures.
func NewSignatureCache(store KeyValueStore, capacity int, now func() time.Time) *SignatureCache {
	if capacity <= 0 {
		capacity = DefaultSignatureCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &SignatureCache{store: store, capacity: capacity, now: now}
}

// signatureKey returns the cache key of (user, contracts). The contract
// order does not matter.
func signatureKey(user common.Address, contracts []common.Address) string {
	hexes := make([]string, len(contracts))
	for i, c := range contracts {
		hexes[i] = strings.ToLower(c.Hex())
	}
	slices.Sort(hexes)
	hexes = slices.Compact(hexes)
	return userPrefix(user) + strings.Join(hexes, ",")
}

func userPrefix(user common.Address) string {
	return signatureKeyPrefix + strings.ToLower(user.Hex()) + "/"
}

// Get returns the valid cached signature of (user, contracts). Expired
// entries are removed and reported as missing.
func (c *SignatureCache) Get(user common.Address, contracts []common.Address) (*CachedSignature, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := signatureKey(user, contracts)
	sig, ok, err := c.load(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if !sig.ValidAt(c.now()) {
		log.Debugw("cached decryption signature expired", "user", user.Hex(), "expiry", sig.Expiry())
		return nil, false, c.store.Delete(key)
	}
	return sig, true, nil
}

// Put stores sig, replacing any previous entry for the same key. When the
// cache is full the entry closest to expiry is evicted.
func (c *SignatureCache) Put(sig *CachedSignature) error {
	if sig == nil {
		return fmt.Errorf("nil signature")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := cbor.Marshal(sig)
	if err != nil {
		return fmt.Errorf("cannot encode signature: %w", err)
	}
	key := signatureKey(sig.User, sig.Contracts)
	if err := c.store.Put(key, data); err != nil {
		return err
	}
	return c.evict(key)
}

// Delete drops the entry of (user, contracts).
func (c *SignatureCache) Delete(user common.Address, contracts []common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(signatureKey(user, contracts))
}

// SignOut drops every signature of user.
func (c *SignatureCache) SignOut(user common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, err := c.store.Keys(userPrefix(user))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := c.store.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *SignatureCache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, err := c.store.Keys(signatureKeyPrefix)
	return len(keys), err
}

func (c *SignatureCache) load(key string) (*CachedSignature, bool, error) {
	data, ok, err := c.store.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	sig := &CachedSignature{}
	if err := cbor.Unmarshal(data, sig); err != nil {
		log.Warnw("dropping undecodable cached signature", "key", key, "error", err.Error())
		return nil, false, c.store.Delete(key)
	}
	return sig, true, nil
}

// evict removes entries closest to expiry until the cache fits its
// capacity. The entry just written is kept.
func (c *SignatureCache) evict(keep string) error {
	keys, err := c.store.Keys(signatureKeyPrefix)
	if err != nil {
		return err
	}
	for len(keys) > c.capacity {
		victim, victimExpiry := "", time.Time{}
		for _, k := range keys {
			if k == keep {
				continue
			}
			sig, ok, err := c.load(k)
			if err != nil {
				return err
			}
			if !ok {
				victim = k
				break
			}
			if victim == "" || sig.Expiry().Before(victimExpiry) {
				victim, victimExpiry = k, sig.Expiry()
			}
		}
		if victim == "" {
			return nil
		}
		if err := c.store.Delete(victim); err != nil {
			return err
		}
		keys = slices.DeleteFunc(keys, func(k string) bool { return k == victim })
	}
	return nil
}
