package dao

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/types"
)

// JoinDAO registers the sender as a member. Anyone not yet registered can
// join.
func (e *Engine) JoinDAO(msg Msg) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addMember(msg, msg.Sender)
}

// AddMember registers member on behalf of the sender, who must be a member.
func (e *Engine) AddMember(msg Msg, member common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireMember(msg.Sender); err != nil {
		return err
	}
	return e.addMember(msg, member)
}

func (e *Engine) addMember(msg Msg, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrValidation)
	}
	ok, err := e.stg.IsMember(addr)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrAlreadyMember, addr.Hex())
	}
	count, err := e.stg.MemberCount()
	if err != nil {
		return err
	}
	b := e.stg.NewBatch()
	if err := b.SetMember(&types.Member{Address: addr, IsMember: true, JoinTime: e.blockTime()}); err != nil {
		b.Discard()
		return err
	}
	if err := b.SetMemberCount(count + 1); err != nil {
		b.Discard()
		return err
	}
	return e.commit(b, msg, &types.Event{Type: types.EventMemberAdded, Account: addr})
}

// IsMember reports whether addr is registered.
func (e *Engine) IsMember(addr common.Address) (bool, error) {
	return e.stg.IsMember(addr)
}

// MemberCount returns the number of registered members.
func (e *Engine) MemberCount() (uint64, error) {
	return e.stg.MemberCount()
}

// Members lists the registered members.
func (e *Engine) Members() ([]*types.Member, error) {
	return e.stg.Members()
}
