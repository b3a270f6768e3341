// Package gets implements the Gets Registry: per subject-salt
// reassembly state, the fetched cache of completed payloads, and the
// RecvFuture subscribers wait on (spec §3/§4.4).
package gets

import (
	"sync"
	"time"

	clock "github.com/jonboulle/clockwork"
	lru "github.com/hashicorp/golang-lru"

	"github.com/baselayer-io/KomodoPlatform/chunk"
)

// DefaultFetchedCacheSize bounds how many distinct subject-salts the
// fetched cache retains at once.
const DefaultFetchedCacheSize = 4096

type fetchedEntry struct {
	at      time.Time
	payload []byte
}

// FetchedCache holds reassembled payloads awaiting subscriber
// consumption, keyed by subject-salt. Unlike the original
// implementation (spec §9's open question: "source never ages
// recently_fetched"), entries here are bounded by an LRU capacity and
// swept on a TTL so the cache cannot grow without bound.
type FetchedCache struct {
	mu    sync.Mutex
	cache *lru.Cache
	ttl   time.Duration
	clock clock.Clock
}

// NewFetchedCache returns a cache holding at most size entries, each
// evicted ttl after it was published. A ttl of zero or less disables
// time-based eviction; only the LRU capacity then bounds the cache.
func NewFetchedCache(size int, ttl time.Duration, c clock.Clock) *FetchedCache {
	if size <= 0 {
		size = DefaultFetchedCacheSize
	}
	l, _ := lru.New(size)
	return &FetchedCache{cache: l, ttl: ttl, clock: c}
}

// Publish records payload as the reassembled result for salt,
// overwriting any prior entry. Per-salt the cache holds at most one
// entry at a time (spec §8).
func (f *FetchedCache) Publish(salt chunk.Salt, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Add(salt.String(), &fetchedEntry{at: f.clock.Now(), payload: payload})
}

// Get returns the reassembled payload for salt, if present and not
// expired.
func (f *FetchedCache) Get(salt chunk.Salt) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.cache.Get(salt.String())
	if !ok {
		return nil, false
	}
	entry := v.(*fetchedEntry)
	if f.ttl > 0 && f.clock.Now().Sub(entry.at) > f.ttl {
		f.cache.Remove(salt.String())
		return nil, false
	}
	return entry.payload, true
}

// Sweep evicts every entry older than the configured TTL. Called once
// per Scheduler tick.
func (f *FetchedCache) Sweep() {
	if f.ttl <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	for _, k := range f.cache.Keys() {
		v, ok := f.cache.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(v.(*fetchedEntry).at) > f.ttl {
			f.cache.Remove(k)
		}
	}
}
