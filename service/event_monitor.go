package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

// subscriptionBuffer is the channel size of pushed event subscriptions.
const subscriptionBuffer = 64

// EventSource returns the chain connection whose events are monitored. The
// connection may change over time, the monitor follows it.
type EventSource interface {
	Connection() chain.Connection
}

// EventHandler consumes contract events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *types.Event)
}

// EventMonitor represents a service that follows the contract events of the
// active connection and feeds them to a handler. Events are polled every
// interval; connections implementing chain.Subscriber also push them as they
// are emitted.
type EventMonitor struct {
	source   EventSource
	handler  EventHandler
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEventMonitor creates a new EventMonitor service.
func NewEventMonitor(source EventSource, handler EventHandler, interval time.Duration) *EventMonitor {
	return &EventMonitor{
		source:   source,
		handler:  handler,
		interval: interval,
	}
}

// Start begins monitoring. It returns an error if the service is already
// running.
func (em *EventMonitor) Start(ctx context.Context) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	em.cancel = cancel
	em.done = make(chan struct{})
	go em.monitor(ctx, em.done)
	return nil
}

// Stop halts the monitoring service and waits for it to return.
func (em *EventMonitor) Stop() {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.cancel != nil {
		em.cancel()
		<-em.done
		em.cancel = nil
	}
}

// feed tracks the event stream of one connection.
type feed struct {
	conn   chain.Connection
	next   uint64
	events <-chan *types.Event
	cancel func()
}

func (f *feed) close() {
	if f != nil && f.cancel != nil {
		f.cancel()
	}
}

func (em *EventMonitor) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(em.interval)
	defer ticker.Stop()

	var f *feed
	defer func() { f.close() }()
	for {
		if conn := em.source.Connection(); f == nil || conn != f.conn {
			f.close()
			f = &feed{conn: conn}
			if sub, ok := conn.(chain.Subscriber); ok {
				f.events, f.cancel = sub.SubscribeEvents(subscriptionBuffer)
			}
			log.Debugw("monitoring contract events", "chainId", conn.ChainID(),
				"contract", conn.ContractAddress().Hex(), "push", f.events != nil)
			em.poll(ctx, f)
		}
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.events:
			if !ok {
				f.events = nil
				continue
			}
			em.handle(ctx, f, ev)
		case <-ticker.C:
			em.poll(ctx, f)
		}
	}
}

// poll handles the events emitted since the last one seen.
func (em *EventMonitor) poll(ctx context.Context, f *feed) {
	events, err := f.conn.Events(ctx, f.next)
	if err != nil {
		log.Warnw("cannot fetch contract events", "from", f.next, "error", err.Error())
		return
	}
	for _, ev := range events {
		em.handle(ctx, f, ev)
	}
}

// handle feeds ev to the handler unless it was seen already. Pushed events
// can arrive ahead of a poll, the gap is filled from the ledger first and ev
// is left to the next poll if that fails.
func (em *EventMonitor) handle(ctx context.Context, f *feed, ev *types.Event) {
	if ev.Index < f.next {
		return
	}
	if ev.Index > f.next {
		em.poll(ctx, f)
		if ev.Index != f.next {
			return
		}
	}
	em.handler.HandleEvent(ctx, ev)
	f.next = ev.Index + 1
}
