package gets

import (
	"sync"

	"github.com/baselayer-io/KomodoPlatform/chunk"
)

// Registry is the Scheduler-private map from subject-salt to
// reassembly state (spec §3's "Gets Registry"). Only the Scheduler
// goroutine may touch it; other goroutines communicate through
// GetCmd/DropGetCmd and the shared FetchedCache instead.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewRegistry returns an empty Gets Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// GetOrCreate returns the entry for salt, creating one on first use.
func (r *Registry) GetOrCreate(salt chunk.Salt) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := salt.String()
	e, ok := r.entries[key]
	if !ok {
		e = NewEntry(salt)
		r.entries[key] = e
	}
	return e
}

// Lookup returns the entry for salt, if one exists.
func (r *Registry) Lookup(salt chunk.Salt) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[salt.String()]
	return e, ok
}

// Entries returns a snapshot of every tracked entry.
func (r *Registry) Entries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// PruneCompleted removes entries that have finished reassembling and
// have no subscribers left, bounding registry growth across the
// lifetime of a long-running node.
func (r *Registry) PruneCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.entries {
		if !e.ReassembledAt.IsZero() && !e.HasSubscribers() {
			delete(r.entries, k)
		}
	}
}
