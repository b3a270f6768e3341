package core

import (
	"time"

	"github.com/baselayer-io/KomodoPlatform/gets"
	"github.com/baselayer-io/KomodoPlatform/metrics"
)

// handleGetCmd registers a RecvFuture's subscription and, on the first
// subscriber for a subject-salt, issues the bootstrapping dht_get that
// discovers the sender's identity (spec §4.4).
func (s *Scheduler) handleGetCmd(c gets.GetCmd) {
	entry := s.getsReg.GetOrCreate(c.Salt)
	entry.Subscribe(c.Frid, c.Notify)
	if !entry.DiscoveryIssued {
		entry.DiscoveryIssued = true
		if s.issueGet(entry, 1) {
			entry.MarkRestarted(1, s.clock.Now())
		}
	}
}

// handleDropGetCmd unsubscribes a RecvFuture; the GetsEntry itself is
// retained for other subscribers or future recv() calls.
func (s *Scheduler) handleDropGetCmd(c gets.DropGetCmd) {
	if entry, ok := s.getsReg.Lookup(c.Salt); ok {
		entry.Unsubscribe(c.Frid)
	}
}

// getsSchedulerPass visits every tracked subject-salt ordered
// (payload_missing DESC, restarted_at ASC), issuing a dht_get for
// whichever chunk is still missing once DefaultChunkRestartAfter has
// elapsed since its last request, and publishes+notifies once an entry
// completes (spec §4.4).
func (s *Scheduler) getsSchedulerPass(now time.Time) {
	for _, entry := range gets.ScheduleOrder(s.getsReg.Entries()) {
		if entry.Complete() {
			if entry.ReassembledAt.IsZero() {
				payload := entry.Reassemble()
				entry.ReassembledAt = now
				s.fetched.Publish(entry.Salt, payload)
				entry.NotifyAll()
				metrics.ReassembledPayloads.Inc()
			}
			continue
		}

		missing := entry.MissingIndex()
		if missing == 0 {
			continue
		}
		if missing-1 < len(entry.Chunks) {
			restarted := entry.Chunks[missing-1].RestartedAt
			if !restarted.IsZero() && now.Sub(restarted) < DefaultChunkRestartAfter {
				continue
			}
		}
		if s.issueGet(entry, missing) {
			entry.MarkRestarted(missing, now)
		}
	}
}

// issueGet submits a dht_get for entry's subject-salt at the given
// 1-based chunk index, gated by the per-local-identity rate limiter.
// It reports whether the get was actually submitted.
func (s *Scheduler) issueGet(entry *gets.Entry, index int) bool {
	bucket := s.rates.For(getSeed(s.localKey.Bytes()))
	if !bucket.Allow(RateLimitGet) {
		metrics.RateLimited.WithLabelValues("get").Inc()
		return false
	}

	full, err := entry.Salt.FullSalt(byte(index))
	if err != nil {
		s.logger.Warnw("gets scheduler: invalid chunk index", "error", err)
		return false
	}

	var seed [32]byte
	copy(seed[:], s.localKey.Bytes())
	if err := s.primitive.Get(seed, full); err != nil {
		s.logger.Warnw("dht get failed", "error", err)
		return false
	}
	bucket.Increment()
	metrics.DHTGets.Inc()
	return true
}

func getSeed(local []byte) []byte {
	return append(append([]byte{}, local...), "get"...)
}
