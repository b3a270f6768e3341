// Package transport holds the Trans Registry: the friends table of
// known peer endpoints and the outbound package retransmission queue
// (spec §3/§4.3). A package's destination is modeled as a tagged union
// (spec §9: "tagged union, not inheritance") rather than an interface
// hierarchy with behaviour attached.
package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baselayer-io/KomodoPlatform/key"
	"github.com/baselayer-io/KomodoPlatform/wire"
)

// Destination is the tagged union of a package's recipient: either a
// peer key (multi-endpoint, DHT + direct) or a raw socket address
// (discovery ping only).
type Destination struct {
	peer   key.Peer
	addr   *net.UDPAddr
	isAddr bool
}

// ToPeer builds a peer-key destination.
func ToPeer(p key.Peer) Destination { return Destination{peer: p} }

// ToAddr builds a socket-address destination.
func ToAddr(a *net.UDPAddr) Destination { return Destination{addr: a, isAddr: true} }

// IsAddr reports whether this destination targets a raw socket address.
func (d Destination) IsAddr() bool { return d.isAddr }

// Peer returns the destination's peer key; valid only if !IsAddr().
func (d Destination) Peer() key.Peer { return d.peer }

// Addr returns the destination's socket address; valid only if IsAddr().
func (d Destination) Addr() *net.UDPAddr { return d.addr }

// PayloadOutMeta tracks per-payload retransmission bookkeeping.
type PayloadOutMeta struct {
	DHTPutInvokedAt time.Time
	PingsSent       uint8
	PongsReceived   uint8
}

// saturatingInc increments n unless it is already at its max value.
func saturatingInc(n uint8) uint8 {
	if n == 255 {
		return n
	}
	return n + 1
}

// OutPayload is a single payload within a Package, plus its
// retransmission metadata.
type OutPayload struct {
	Payload wire.MmPayload
	Meta    PayloadOutMeta
}

// RecordPingSent bumps the saturating ping counter.
func (p *OutPayload) RecordPingSent() { p.Meta.PingsSent = saturatingInc(p.Meta.PingsSent) }

// RecordPongReceived bumps the saturating pong counter.
func (p *OutPayload) RecordPongReceived() { p.Meta.PongsReceived = saturatingInc(p.Meta.PongsReceived) }

// Package is a group of chunk-payloads destined for a single
// Destination, retained while its SendHandle has not been dropped.
type Package struct {
	TraceID  uuid.UUID
	Dest     Destination
	Payloads []*OutPayload

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// newPackage builds a package with a fresh cancellable context.
func newPackage(dest Destination, payloads []wire.MmPayload) (*Package, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make([]*OutPayload, len(payloads))
	for i, p := range payloads {
		out[i] = &OutPayload{Payload: p}
	}
	return &Package{
		TraceID:  uuid.New(),
		Dest:     dest,
		Payloads: out,
		ctx:      ctx,
		cancel:   cancel,
	}, cancel
}

// Cancelled reports whether the package's sender handle has been
// dropped. Discovery packages have no handle and never report
// cancelled; they remain live until explicitly removed.
func (p *Package) Cancelled() bool {
	return p.ctx.Err() != nil
}

// RemovePayload drops the payload at index i, preserving order among
// the rest.
func (p *Package) RemovePayload(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Payloads = append(p.Payloads[:i], p.Payloads[i+1:]...)
}

// Empty reports whether the package has no payloads left to service.
func (p *Package) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Payloads) == 0
}

// SendHandle models a continuously-broadcasting send effort: dropping
// it (calling Close) tells the Scheduler to stop retransmitting on its
// next pass.
type SendHandle struct {
	cancel context.CancelFunc
	once   sync.Once
}

// Close stops retransmission for the package this handle owns.
func (h *SendHandle) Close() {
	h.once.Do(h.cancel)
}
