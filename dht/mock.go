package dht

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
)

// mutableItem is one seed+salt slot in the shared mock DHT store.
type mutableItem struct {
	seed [32]byte
	salt []byte
	data []byte
	seq  int64
}

func itemKey(seed [32]byte, salt []byte) string {
	return hex.EncodeToString(seed[:]) + ":" + string(salt)
}

// MockNetwork is an in-process swarm shared by every Mock node created
// from it: a common mutable-item store (standing in for the real
// DHT's distributed storage) and an address book so SendUDP on one
// node is observed as an inbound packet on another. It exists purely
// to let tests exercise the core's DHT-facing logic, including
// multi-node roundtrips, without a real socket or DHT engine.
type MockNetwork struct {
	mu    sync.Mutex
	nodes map[string]*Mock
	store map[string]*mutableItem
}

// NewMockNetwork returns an empty shared swarm.
func NewMockNetwork() *MockNetwork {
	return &MockNetwork{
		nodes: make(map[string]*Mock),
		store: make(map[string]*mutableItem),
	}
}

// NewNode registers and returns a Mock Primitive bound to addr
// ("ip:port") within this swarm.
func (n *MockNetwork) NewNode(ip string, port int) *Mock {
	m := &Mock{
		network: n,
		ip:      ip,
		port:    port,
	}
	n.mu.Lock()
	n.nodes[m.addr()] = m
	n.mu.Unlock()
	return m
}

// Mock is an in-memory Primitive implementation. It is safe for
// concurrent use, but since the spec requires a single owning
// goroutine in production, tests should still confine each Mock to
// one Scheduler.
type Mock struct {
	network *MockNetwork
	ip      string
	port    int

	mu      sync.Mutex
	pending []Alert
	closed  bool
}

func (m *Mock) addr() string { return fmt.Sprintf("%s:%d", m.ip, m.port) }

func (m *Mock) pushAlert(a Alert) {
	m.mu.Lock()
	m.pending = append(m.pending, a)
	m.mu.Unlock()
}

func (m *Mock) Init(_ context.Context, _ string, _ bool) error {
	return nil
}

func (m *Mock) LoadState(_ []byte) error { return nil }

func (m *Mock) SaveState() ([]byte, error) {
	return []byte(m.addr()), nil
}

func (m *Mock) Enable() error {
	m.pushAlert(Alert{Kind: AlertListenSucceeded, Addr: m.addr()})
	m.pushAlert(Alert{Kind: AlertBootstrapComplete})
	return nil
}

func (m *Mock) Put(seed [32]byte, salt []byte, cb PutCallback) error {
	m.network.mu.Lock()
	defer m.network.mu.Unlock()

	key := itemKey(seed, salt)
	existing, ok := m.network.store[key]
	var have []byte
	var seq int64
	if ok {
		have = existing.data
		seq = existing.seq
	}

	newValue, bump := cb(have)
	if len(newValue) > MaxValueBytes {
		return ErrValueTooLarge
	}
	if bump {
		seq++
	}
	m.network.store[key] = &mutableItem{seed: seed, salt: salt, data: newValue, seq: seq}
	return nil
}

func (m *Mock) Get(seed [32]byte, salt []byte) error {
	m.network.mu.Lock()
	item, ok := m.network.store[itemKey(seed, salt)]
	m.network.mu.Unlock()

	if !ok {
		return nil
	}
	m.pushAlert(Alert{
		Kind: AlertMutableItem,
		Seed: item.seed,
		Salt: append([]byte{}, item.salt...),
		Data: append([]byte{}, item.data...),
		Seq:  item.seq,
		Auth: true,
	})
	return nil
}

func (m *Mock) Alerts(cb AlertCallback) {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, a := range batch {
		cb(a)
	}
}

// SendUDP delivers data to whichever Mock node in the swarm is
// registered at ip:port, as an AlertPacket on that node.
func (m *Mock) SendUDP(ip string, port int, data []byte) error {
	addr := fmt.Sprintf("%s:%d", ip, port)
	m.network.mu.Lock()
	target, ok := m.network.nodes[addr]
	m.network.mu.Unlock()
	if !ok {
		return fmt.Errorf("dht: mock: no node listening at %s", addr)
	}

	target.pushAlert(Alert{
		Kind:     AlertPacket,
		FromIP:   m.ip,
		FromPort: m.port,
		Incoming: true,
		Data:     append([]byte{}, data...),
	})
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
