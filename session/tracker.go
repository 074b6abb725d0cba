// Package session implements the client side protocols of a dashboard
// session: decrypting a proposal tally and casting an encrypted vote. Both
// guard against context switches with a generation Tracker: a request whose
// chain, account or contract changed while it was pending is discarded.
package session

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/chain"
)

// Context identifies what a request is about.
type Context struct {
	ChainID  uint64         `json:"chainId"`
	Account  common.Address `json:"account"`
	Contract common.Address `json:"contract"`
}

// ContextOf returns the context a connection runs requests in.
func ContextOf(conn chain.Connection) Context {
	return Context{ChainID: conn.ChainID(), Account: conn.Account(), Contract: conn.ContractAddress()}
}

// Tracker holds the active context and a generation counter bumped on every
// change.
type Tracker struct {
	mu  sync.Mutex
	ctx Context
	gen uint64
}

// NewTracker returns a tracker for the initial context.
func NewTracker(ctx Context) *Tracker {
	return &Tracker{ctx: ctx}
}

// Current returns the active context.
func (t *Tracker) Current() Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx
}

// Update sets the active context. Pending requests become stale if it
// differs from the previous one. The reset functions run under the tracker
// lock, so no Commit interleaves with them.
func (t *Tracker) Update(ctx Context, resets ...func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx != t.ctx {
		t.ctx = ctx
		t.gen++
	}
	for _, reset := range resets {
		reset()
	}
}

// Invalidate makes every pending request stale without changing the context
// and runs the reset functions under the tracker lock.
func (t *Tracker) Invalidate(resets ...func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	for _, reset := range resets {
		reset()
	}
}

// Begin captures the current generation.
func (t *Tracker) Begin() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Token{tracker: t, gen: t.gen, ctx: t.ctx}
}

// Token is the generation captured when a request started.
type Token struct {
	tracker *Tracker
	gen     uint64
	ctx     Context
}

// Stale reports whether the context changed since the token was taken.
func (tk Token) Stale() bool {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()
	return tk.tracker.gen != tk.gen
}

// Commit runs apply if the token is still current and reports whether it
// ran. apply holds the tracker lock and must not call back into the tracker.
func (tk Token) Commit(apply func()) bool {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()
	if tk.tracker.gen != tk.gen {
		return false
	}
	apply()
	return true
}

// Matches reports whether conn runs in the context captured by the token.
func (tk Token) Matches(conn chain.Connection) bool {
	return ContextOf(conn) == tk.ctx
}

// Context returns the context captured by the token.
func (tk Token) Context() Context {
	return tk.ctx
}
