// Package core wires together the Trans Registry, Gets Registry and
// DHT primitive behind a single Scheduler goroutine, and exposes the
// public surface applications drive: Initialize, Send, Recv,
// InvestigatePeer and Key (spec §4.6).
package core

import (
	"context"
	"net"

	"github.com/baselayer-io/KomodoPlatform/chunk"
	"github.com/baselayer-io/KomodoPlatform/common/log"
	"github.com/baselayer-io/KomodoPlatform/gets"
	"github.com/baselayer-io/KomodoPlatform/key"
	"github.com/baselayer-io/KomodoPlatform/transport"
)

// Context is the shared handle Initialize returns (spec §9): each
// call starts its own Scheduler goroutine and DHT primitive
// instance, so a process may host more than one concurrently (e.g.
// under test, one per simulated node).
type Context struct {
	cfg      *Config
	localKey key.Peer
	logger   log.Logger
	sched    *Scheduler
	cancel   context.CancelFunc
}

// Initialize validates localKey, builds a Scheduler from opts and
// starts its event loop.
func Initialize(localKey key.Peer, opts ...Option) (*Context, error) {
	if err := localKey.Validate(); err != nil {
		return nil, err
	}

	cfg := NewConfig(opts...)
	sched := newScheduler(cfg, localKey)

	runCtx, cancel := context.WithCancel(context.Background())
	go sched.run(runCtx)

	return &Context{
		cfg:      cfg,
		localKey: localKey,
		logger:   cfg.logger,
		sched:    sched,
		cancel:   cancel,
	}, nil
}

// Key returns the local peer identity this Context was initialized with.
func (c *Context) Key() key.Peer { return c.localKey }

// Send submits payload under subject to dest, returning a SendHandle
// the caller holds onto (and eventually Closes) to keep retransmitting
// until an equivalent of acknowledgement is no longer needed.
func (c *Context) Send(dest key.Peer, subject chunk.Salt, payload []byte) (*transport.SendHandle, error) {
	return c.sched.Put(dest, subject, payload)
}

// Recv returns a future that resolves once subject reassembles into a
// payload validator accepts. A nil validator accepts any payload.
func (c *Context) Recv(subject chunk.Salt, validator gets.Validator) *gets.RecvFuture {
	return gets.NewRecvFuture(subject, validator, c.sched.fetched, c.sched)
}

// InvestigatePeer sends a one-shot discovery ping to addr.
func (c *Context) InvestigatePeer(addr *net.UDPAddr) error {
	return c.sched.Ping(addr)
}

// Stop halts the Scheduler's event loop and releases the DHT
// primitive, blocking up to StopTimeout for a clean exit.
func (c *Context) Stop() {
	c.sched.Stop()
	c.cancel()
}
