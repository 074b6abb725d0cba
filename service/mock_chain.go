package service

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/types"
)

// MockConnection implements the read side of a chain.Connection over an
// in memory event log, for testing. Calls outside the event log panic.
type MockConnection struct {
	chain.Connection
	chainID uint64
	mu      sync.Mutex
	events  []*types.Event
}

// NewMockConnection returns an empty mock connection on chainID.
func NewMockConnection(chainID uint64) *MockConnection {
	return &MockConnection{chainID: chainID}
}

// Emit appends an event to the log, assigning its index.
func (m *MockConnection) Emit(ev *types.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Index = uint64(len(m.events))
	m.events = append(m.events, ev)
}

func (m *MockConnection) ChainID() uint64 {
	return m.chainID
}

func (m *MockConnection) Account() common.Address {
	return common.HexToAddress("0x1234567890123456789012345678901234567890")
}

func (m *MockConnection) ContractAddress() common.Address {
	return common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
}

func (m *MockConnection) Events(_ context.Context, from uint64) ([]*types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if from >= uint64(len(m.events)) {
		return nil, nil
	}
	return append([]*types.Event(nil), m.events[from:]...), nil
}

// MockSource is an EventSource whose connection can be swapped.
type MockSource struct {
	mu   sync.Mutex
	conn chain.Connection
}

// NewMockSource returns a source serving conn.
func NewMockSource(conn chain.Connection) *MockSource {
	return &MockSource{conn: conn}
}

func (s *MockSource) Connection() chain.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Switch replaces the served connection.
func (s *MockSource) Switch(conn chain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}
