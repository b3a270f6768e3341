package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/baselayer-io/KomodoPlatform/dht"
)

// shuttleRegistry is the process-wide map of pending DHT put
// callbacks, keyed by a stable token (spec §4.3/§9: "the put callback
// shuttle"). The DHT engine is only ever handed the token, never the
// closure itself, because the engine may replay a put's callback
// asynchronously — possibly more than once — long after the call that
// registered it returned. TTL eviction bounds the registry's memory
// even if an engine never replays a given token.
type shuttleRegistry struct {
	mu      sync.Mutex
	entries map[uint64]shuttleEntry
	nextTok uint64
}

type shuttleEntry struct {
	cb        dht.PutCallback
	createdAt time.Time
}

var globalShuttles = newShuttleRegistry()

func newShuttleRegistry() *shuttleRegistry {
	return &shuttleRegistry{entries: make(map[uint64]shuttleEntry)}
}

// register stores cb under a fresh token.
func (r *shuttleRegistry) register(cb dht.PutCallback, now time.Time) uint64 {
	tok := atomic.AddUint64(&r.nextTok, 1)
	r.mu.Lock()
	r.entries[tok] = shuttleEntry{cb: cb, createdAt: now}
	r.mu.Unlock()
	return tok
}

// wrap returns a dht.PutCallback that shuttles through the registry:
// registering the real callback under a token and handing the engine
// a closure that looks the token back up (simulating the token-only
// handoff a cross-boundary DHT engine would require). The entry is
// never evicted on invocation, only by sweep's TTL, since the engine
// may legitimately replay the same token's callback more than once.
func (r *shuttleRegistry) wrap(cb dht.PutCallback, now time.Time) dht.PutCallback {
	tok := r.register(cb, now)
	return func(have []byte) ([]byte, bool) {
		r.mu.Lock()
		entry, ok := r.entries[tok]
		r.mu.Unlock()
		if !ok {
			// Evicted by a sweep before the engine replayed it; treat
			// as a no-op put rather than panicking the Scheduler.
			return have, false
		}
		return entry.cb(have)
	}
}

// sweep evicts entries older than ttl.
func (r *shuttleRegistry) sweep(now time.Time, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, e := range r.entries {
		if now.Sub(e.createdAt) > ttl {
			delete(r.entries, tok)
		}
	}
}

// size reports how many shuttles are currently pending (test/metrics hook).
func (r *shuttleRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
