// Package dht defines the contract the core consumes from the
// underlying DHT engine (spec §6): mutable-item put/get keyed by a
// 32-byte seed and an opaque salt, an asynchronous alert stream, and a
// raw UDP send. The DHT engine's own routing table, bootstrap logic
// and wire protocol are an external collaborator's concern; this
// package only models the boundary and ships an in-memory Mock that
// implements it faithfully enough to drive the core's tests.
package dht

import (
	"context"
	"errors"
)

// MaxValueBytes bounds a mutable item's value, per spec §1/§6.
const MaxValueBytes = 1000

// PutCallback is invoked by the DHT engine with the currently-stored
// value for a seed+salt (nil if never put before) and must return the
// fresh value to store plus whether the engine should bump its
// sequence number. The engine may invoke this callback asynchronously,
// and more than once, for a single Put call (spec §4.3's "put callback
// shuttle").
type PutCallback func(have []byte) (newValue []byte, bumpSeq bool)

// AlertKind enumerates the asynchronous events the DHT engine may
// raise (spec §6).
type AlertKind int

const (
	AlertBootstrapComplete AlertKind = iota
	AlertListenSucceeded
	AlertListenFailed
	AlertExternalIP
	AlertMutableItem
	AlertPacket
)

// Alert is a single event drained from the DHT engine's alert queue.
type Alert struct {
	Kind AlertKind

	// AlertListenSucceeded / AlertListenFailed / AlertExternalIP
	Addr string

	// AlertMutableItem
	Seed [32]byte
	Salt []byte
	Data []byte
	Seq  int64
	Auth bool

	// AlertPacket
	FromIP   string
	FromPort int
	Incoming bool
}

// AlertCallback receives drained alerts; see Primitive.Alerts.
type AlertCallback func(Alert)

// ErrValueTooLarge is returned by Put when newValue exceeds MaxValueBytes.
var ErrValueTooLarge = errors.New("dht: mutable item value exceeds 1000 bytes")

// Primitive is the pluggable DHT engine the core drives from its
// single Scheduler thread. No other goroutine may call it.
type Primitive interface {
	// Init brings the engine up in listen-only or full mode.
	Init(ctx context.Context, listenInterfaces string, readOnly bool) error
	// LoadState seeds the engine's routing table from a previously
	// saved blob (spec §6 persistence).
	LoadState(data []byte) error
	// SaveState serializes the engine's routing table for persistence.
	SaveState() ([]byte, error)
	// Enable begins active DHT participation (after LoadState, if any).
	Enable() error
	// Put submits a mutable-item put for seed+salt; cb is shuttled
	// through the engine's async replay machinery.
	Put(seed [32]byte, salt []byte, cb PutCallback) error
	// Get requests a mutable item; a value found under seed+salt is
	// delivered later as an AlertMutableItem, from which the core
	// derives the sender's public key.
	Get(seed [32]byte, salt []byte) error
	// Alerts drains any alerts raised since the last call, invoking cb
	// for each. Must never block.
	Alerts(cb AlertCallback)
	// SendUDP performs a raw UDP send to ip:port.
	SendUDP(ip string, port int, data []byte) error
	// Close releases the engine's resources.
	Close() error
}
