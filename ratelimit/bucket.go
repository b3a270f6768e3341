// Package ratelimit implements the per-seed token bucket used to gate
// DHT puts/gets and direct pings (spec §2/§5). Each bucket's level
// decays at a fixed rate and is bumped by one on every submission; the
// callers read the current level back and compare it against the
// threshold appropriate to the action they're about to take (direct
// ping ≤33, DHT get/put ≤10, retry put ≤1) rather than being told
// allow/deny for a single fixed action, which is why this is a small
// hand-rolled bucket instead of golang.org/x/time/rate (whose
// Limiter does not expose its internal token level for that
// three-way read).
package ratelimit

import (
	"sync"
	"time"

	clock "github.com/jonboulle/clockwork"
)

// DecayPerSecond is how many ops drain off a bucket's level per second.
const DecayPerSecond = 10.0

// Bucket tracks one seed's recent op count.
type Bucket struct {
	mu         sync.Mutex
	value      float64
	lastUpdate time.Time
	clock      clock.Clock
}

// NewBucket returns a fresh, empty bucket driven by the given clock.
func NewBucket(c clock.Clock) *Bucket {
	return &Bucket{clock: c, lastUpdate: c.Now()}
}

// Ops returns the current decayed op level.
func (b *Bucket) Ops() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decayLocked()
	return b.value
}

// Increment bumps the bucket by one submitted op.
func (b *Bucket) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decayLocked()
	b.value++
}

// Allow reports whether the bucket's current level is at or below
// threshold, for convenience at call sites that only need a boolean.
func (b *Bucket) Allow(threshold float64) bool {
	return b.Ops() <= threshold
}

func (b *Bucket) decayLocked() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.lastUpdate = now
	b.value -= elapsed * DecayPerSecond
	if b.value < 0 {
		b.value = 0
	}
}

// Registry maps an opaque seed (typically a peer key's raw bytes) to
// its Bucket, creating buckets lazily.
type Registry struct {
	mu      sync.Mutex
	clock   clock.Clock
	buckets map[string]*Bucket
}

// NewRegistry returns an empty bucket registry.
func NewRegistry(c clock.Clock) *Registry {
	return &Registry{clock: c, buckets: make(map[string]*Bucket)}
}

// For returns (creating if needed) the bucket for seed.
func (r *Registry) For(seed []byte) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(seed)
	b, ok := r.buckets[key]
	if !ok {
		b = NewBucket(r.clock)
		r.buckets[key] = b
	}
	return b
}
