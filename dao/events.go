package dao

import (
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

// Events returns the emitted events with index >= from, in order. A
// non-positive limit returns all of them.
func (e *Engine) Events(from uint64, limit int) ([]*types.Event, error) {
	return e.stg.Events(from, limit)
}

// Subscribe returns a channel receiving every event emitted from now on and
// a function to cancel the subscription. A subscriber that does not keep up
// loses events; it can recover them with Events.
func (e *Engine) Subscribe(buffer int) (<-chan *types.Event, func()) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan *types.Event, buffer)
	e.subs[id] = ch
	return ch, func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

func (e *Engine) broadcast(ev *types.Event) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for id, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			log.Warnw("event subscriber is full, dropping event", "subscriber", id, "index", ev.Index)
		}
	}
}

// EventCount returns the number of emitted events.
func (e *Engine) EventCount() (uint64, error) {
	return e.stg.EventCount()
}
