package gets

import (
	"sort"
	"time"

	"github.com/baselayer-io/KomodoPlatform/chunk"
	"github.com/baselayer-io/KomodoPlatform/key"
)

// ChunkGetsEntry is one chunk slot within a GetsEntry's reassembly
// state.
type ChunkGetsEntry struct {
	RestartedAt time.Time
	SeqAuth     int64
	Payload     []byte // nil until a valid chunk has been admitted
}

// subscriber is a waiting RecvFuture, addressed by its fetch-request id.
type subscriber struct {
	frid   uint64
	notify chan struct{}
}

// Entry is the per subject-salt reassembly state (spec §3's GetsEntry).
type Entry struct {
	Salt            chunk.Salt
	DerivedPubKey   *key.Peer
	NumberOfChunks  *int
	Chunks          []*ChunkGetsEntry
	ReassembledAt   time.Time
	DiscoveryIssued bool // set once the first dht_get(seed=local_pubkey, salt‖0x01) has been attempted (even if rate-limited)

	subscribers map[uint64]*subscriber
}

// NewEntry returns a freshly created, empty reassembly entry.
func NewEntry(salt chunk.Salt) *Entry {
	return &Entry{Salt: salt, subscribers: make(map[uint64]*subscriber)}
}

// Subscribe registers frid, waking it on notify whenever the entry
// reassembles.
func (e *Entry) Subscribe(frid uint64, notify chan struct{}) {
	e.subscribers[frid] = &subscriber{frid: frid, notify: notify}
}

// Unsubscribe removes frid; the entry itself is retained (other
// subscribers, or future ones, may still consult it).
func (e *Entry) Unsubscribe(frid uint64) {
	delete(e.subscribers, frid)
}

// HasSubscribers reports whether any RecvFuture still waits on this entry.
func (e *Entry) HasSubscribers() bool {
	return len(e.subscribers) > 0
}

// NotifyAll wakes every waiting subscriber without blocking.
func (e *Entry) NotifyAll() {
	for _, s := range e.subscribers {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// SetNumberOfChunks resizes the chunk slot vector to n, preserving
// any slots already populated, once chunk #1 has revealed the true
// count (spec §4.4's "chunk-count growth").
func (e *Entry) SetNumberOfChunks(n int) {
	if e.NumberOfChunks != nil {
		return
	}
	e.NumberOfChunks = &n
	grown := make([]*ChunkGetsEntry, n)
	copy(grown, e.Chunks)
	for i := range grown {
		if grown[i] == nil {
			grown[i] = &ChunkGetsEntry{}
		}
	}
	e.Chunks = grown
}

// MarkRestarted records that chunk slot index was just (re)requested at
// now, growing the chunk slot vector if needed so the gets scheduler
// can track per-slot restart timing even before NumberOfChunks is known.
func (e *Entry) MarkRestarted(index int, now time.Time) {
	e.ensureSlot(index)
	e.Chunks[index-1].RestartedAt = now
}

// ensureSlot grows Chunks (if NumberOfChunks is still unknown) to
// cover index (1-based), so out-of-order chunks before chunk #1 has
// arrived still have somewhere to land.
func (e *Entry) ensureSlot(index int) {
	for len(e.Chunks) < index {
		e.Chunks = append(e.Chunks, &ChunkGetsEntry{})
	}
}

// AdmitChunk writes body into slot index unless the slot already holds
// a chunk with a higher seqAuth (spec §5: "higher seq_auth wins per
// chunk; older chunk versions are discarded"). It reports false and
// leaves the entry untouched if index falls outside an already-known
// NumberOfChunks (spec §4.4/§7: out-of-bounds chunk indices are a
// protocol error to be logged and dropped, never grown into).
func (e *Entry) AdmitChunk(index int, seqAuth int64, body []byte) bool {
	if e.NumberOfChunks != nil && index > *e.NumberOfChunks {
		return false
	}
	e.ensureSlot(index)
	slot := e.Chunks[index-1]
	if slot.Payload != nil && seqAuth < slot.SeqAuth {
		return true
	}
	slot.Payload = body
	slot.SeqAuth = seqAuth
	return true
}

// Complete reports whether every chunk slot is populated and how big
// the reassembly vector is; it returns false before NumberOfChunks is
// known.
func (e *Entry) Complete() bool {
	if e.NumberOfChunks == nil || len(e.Chunks) != *e.NumberOfChunks {
		return false
	}
	for _, c := range e.Chunks {
		if c.Payload == nil {
			return false
		}
	}
	return true
}

// Reassemble concatenates every chunk body in index order. Callers
// must first check Complete().
func (e *Entry) Reassemble() []byte {
	var out []byte
	for _, c := range e.Chunks {
		out = append(out, c.Payload...)
	}
	return out
}

// MissingIndex returns the 1-based index of the first chunk slot that
// still needs fetching, or 0 if none is missing (or the chunk count
// isn't known yet, in which case index 1 — chunk #1 itself — is what
// is missing).
func (e *Entry) MissingIndex() int {
	if e.NumberOfChunks == nil {
		if len(e.Chunks) == 0 || e.Chunks[0].Payload == nil {
			return 1
		}
		return 0
	}
	for i, c := range e.Chunks {
		if c.Payload == nil {
			return i + 1
		}
	}
	return 0
}

// oldestMissingRestart returns the RestartedAt of the entry's
// earliest-restarted missing slot, or the zero time if no chunk slot
// has been restarted yet (so it sorts first).
func (e *Entry) oldestMissingRestart() time.Time {
	var oldest time.Time
	found := false
	for _, c := range e.Chunks {
		if c.Payload != nil {
			continue
		}
		if !found || c.RestartedAt.Before(oldest) {
			oldest = c.RestartedAt
			found = true
		}
	}
	return oldest
}

// ScheduleOrder sorts entries the way the gets scheduler must visit
// them: payload-missing entries first, then oldest chunk-restart first
// (spec §4.4: "ordered by (payload_missing DESC, restarted_at ASC)").
// It returns a new, sorted slice; entries is left untouched.
func ScheduleOrder(entries []*Entry) []*Entry {
	out := append([]*Entry{}, entries...)
	sort.Slice(out, func(i, j int) bool {
		mi, mj := out[i].MissingIndex() != 0, out[j].MissingIndex() != 0
		if mi != mj {
			return mi
		}
		return out[i].oldestMissingRestart().Before(out[j].oldestMissingRestart())
	})
	return out
}
