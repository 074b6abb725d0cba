package session

import (
	"cmp"
	"slices"
	"sync"

	"github.com/tocipoco/DAO-Vote/types"
)

// ResultBook holds the decrypted tallies shown to the user, by proposal.
// Every proposal carries a version bumped when its counters change.
type ResultBook struct {
	mu       sync.RWMutex
	tallies  map[uint64]*types.Tally
	versions map[uint64]uint64
}

// NewResultBook returns an empty book.
func NewResultBook() *ResultBook {
	return &ResultBook{
		tallies:  make(map[uint64]*types.Tally),
		versions: make(map[uint64]uint64),
	}
}

// Version returns the counter version of the proposal.
func (b *ResultBook) Version(id uint64) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.versions[id]
}

// Get returns the tally of the proposal, if any.
func (b *ResultBook) Get(id uint64) (*types.Tally, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tallies[id]
	return t, ok
}

// Set records the tally of its proposal.
func (b *ResultBook) Set(t *types.Tally) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tallies[t.ProposalID] = t
}

// SetIfVersion records the tally only if the counters of its proposal did
// not change since version was read, and reports whether it did.
func (b *ResultBook) SetIfVersion(version uint64, t *types.Tally) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.versions[t.ProposalID] != version {
		return false
	}
	b.tallies[t.ProposalID] = t
	return true
}

// Invalidate drops the tally of the proposal, whose counters changed, and
// bumps its version.
func (b *ResultBook) Invalidate(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tallies, id)
	b.versions[id]++
}

// Clear drops every tally.
func (b *ResultBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.tallies)
}

// All returns the tallies sorted by proposal id.
func (b *ResultBook) All() []*types.Tally {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*types.Tally, 0, len(b.tallies))
	for _, t := range b.tallies {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *types.Tally) int { return cmp.Compare(a.ProposalID, b.ProposalID) })
	return out
}
