package rpc

import (
	"fmt"
	"sync"
)

// Web3Iterator walks the endpoints of a chain in round robin, skipping the
// disabled ones. When every endpoint is disabled all of them are enabled
// again.
type Web3Iterator struct {
	mu        sync.Mutex
	available []*Web3Endpoint
	disabled  []*Web3Endpoint
	next      int
}

// NewWeb3Iterator returns an iterator over the given endpoints.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{available: endpoints}
}

// Add appends an endpoint to the available list.
func (w *Web3Iterator) Add(endpoint *Web3Endpoint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.available = append(w.available, endpoint)
}

// Next returns the next available endpoint.
func (w *Web3Iterator) Next() (*Web3Endpoint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.available) == 0 {
		if len(w.disabled) == 0 {
			return nil, fmt.Errorf("no web3 endpoints")
		}
		w.available, w.disabled = w.disabled, nil
	}
	w.next %= len(w.available)
	endpoint := w.available[w.next]
	w.next++
	return endpoint, nil
}

// Disable moves the endpoint with the given uri to the disabled list.
func (w *Web3Iterator) Disable(uri string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.available {
		if e.URI == uri {
			w.available = append(w.available[:i], w.available[i+1:]...)
			w.disabled = append(w.disabled, e)
			return
		}
	}
}

// Available returns the number of available endpoints.
func (w *Web3Iterator) Available() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.available)
}

// Disabled returns the number of disabled endpoints.
func (w *Web3Iterator) Disabled() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.disabled)
}
