package transport

import (
	"sync"

	"github.com/baselayer-io/KomodoPlatform/key"
	"github.com/baselayer-io/KomodoPlatform/wire"
)

// Registry is the Trans Registry: the friends table plus the
// retransmission queue of outbound packages. It is locked briefly by
// API callers (friend lookups) and by the Scheduler's retransmit pass.
type Registry struct {
	mu       sync.Mutex
	friends  *Friends
	packages []*Package
}

// NewRegistry returns an empty Trans Registry.
func NewRegistry() *Registry {
	return &Registry{friends: NewFriends()}
}

// Friends returns the friends table.
func (r *Registry) Friends() *Friends { return r.friends }

// NewSendPackage creates and enqueues a package destined for a peer
// key, returning the SendHandle the caller must hold onto (and
// eventually Close) to keep retransmitting.
func (r *Registry) NewSendPackage(dest key.Peer, payloads []wire.MmPayload) (*Package, *SendHandle) {
	pkg, cancel := newPackage(ToPeer(dest), payloads)
	handle := &SendHandle{cancel: cancel}
	r.mu.Lock()
	r.packages = append(r.packages, pkg)
	r.mu.Unlock()
	return pkg, handle
}

// NewDiscoveryPackage creates and enqueues a one-shot discovery ping
// package destined for a raw socket address. Discovery packages have
// no externally-held SendHandle: they are removed once a pong for their
// single payload has been received (spec §4.3).
func (r *Registry) NewDiscoveryPackage(addr Destination, payload wire.MmPayload) *Package {
	pkg, _ := newPackage(addr, []wire.MmPayload{payload})
	r.mu.Lock()
	r.packages = append(r.packages, pkg)
	r.mu.Unlock()
	return pkg
}

// Packages returns a snapshot of the live packages, newest first, so
// the retransmit pass can safely remove entries while iterating.
func (r *Registry) Packages() []*Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Package, len(r.packages))
	for i := range r.packages {
		out[i] = r.packages[len(r.packages)-1-i]
	}
	return out
}

// Remove drops pkg from the registry.
func (r *Registry) Remove(pkg *Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.packages {
		if p == pkg {
			r.packages = append(r.packages[:i], r.packages[i+1:]...)
			return
		}
	}
}

// FindByPingID returns every live outbound payload across all
// packages whose wire id matches id, used when a pong arrives (spec
// §4.5 step 5).
func (r *Registry) FindByPingID(id uint64) []*OutPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OutPayload
	for _, pkg := range r.packages {
		for _, op := range pkg.Payloads {
			if op.Payload.ID == id {
				out = append(out, op)
			}
		}
	}
	return out
}
