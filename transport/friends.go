package transport

import (
	"net"
	"sync"

	"github.com/baselayer-io/KomodoPlatform/key"
)

// Friends is the per-peer set of observed socket endpoints, built up
// from inbound direct pings (spec §4.5 step 4).
type Friends struct {
	mu        sync.Mutex
	endpoints map[key.Peer]map[string]*net.UDPAddr
}

// NewFriends returns an empty friends table.
func NewFriends() *Friends {
	return &Friends{endpoints: make(map[key.Peer]map[string]*net.UDPAddr)}
}

// Observe idempotently records addr as a live endpoint for p.
func (f *Friends) Observe(p key.Peer, addr *net.UDPAddr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.endpoints[p]
	if !ok {
		set = make(map[string]*net.UDPAddr)
		f.endpoints[p] = set
	}
	set[addr.String()] = addr
}

// Endpoints returns the known live endpoints for p, or nil if p is
// not yet a friend.
func (f *Friends) Endpoints(p key.Peer) []*net.UDPAddr {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.endpoints[p]
	if !ok {
		return nil
	}
	out := make([]*net.UDPAddr, 0, len(set))
	for _, a := range set {
		out = append(out, a)
	}
	return out
}

// IsFriend reports whether p has at least one known endpoint.
func (f *Friends) IsFriend(p key.Peer) bool {
	return len(f.Endpoints(p)) > 0
}
