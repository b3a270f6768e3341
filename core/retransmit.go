package core

import (
	"net"
	"time"

	"github.com/baselayer-io/KomodoPlatform/key"
	"github.com/baselayer-io/KomodoPlatform/metrics"
	"github.com/baselayer-io/KomodoPlatform/ratelimit"
	"github.com/baselayer-io/KomodoPlatform/transport"
	"github.com/baselayer-io/KomodoPlatform/wire"
)

// retransmitPass drives the Trans Registry (spec §4.3): emitting
// direct pings to every known friend endpoint and scheduling DHT puts
// for each live outbound package, both gated by the per-seed rate
// limiter.
func (s *Scheduler) retransmitPass(now time.Time) {
	for _, pkg := range s.trans.Packages() {
		if pkg.Empty() {
			s.trans.Remove(pkg)
			continue
		}
		if pkg.Dest.IsAddr() {
			s.retransmitDiscovery(pkg)
			continue
		}
		if pkg.Cancelled() {
			s.trans.Remove(pkg)
			continue
		}
		s.retransmitSend(now, pkg)
	}
}

// retransmitDiscovery re-pings a one-shot discovery package until its
// pong is observed, then removes it (spec §4.3).
func (s *Scheduler) retransmitDiscovery(pkg *transport.Package) {
	if len(pkg.Payloads) == 0 {
		return
	}
	op := pkg.Payloads[0]
	if op.Meta.PongsReceived > 0 {
		s.trans.Remove(pkg)
		return
	}

	bucket := s.rates.For([]byte(pkg.Dest.Addr().String()))
	if !bucket.Allow(RateLimitPing) {
		metrics.RateLimited.WithLabelValues("ping").Inc()
		return
	}
	if err := s.sendPing(pkg.Dest.Addr(), op.Payload); err != nil {
		s.logger.Warnw("discovery ping send failed", "error", err)
		return
	}
	bucket.Increment()
	op.RecordPingSent()
	metrics.PingsSent.Inc()
}

// retransmitSend drives one peer-addressed package: direct pings to
// every known endpoint, plus DHT puts gated by the 20s retry interval.
func (s *Scheduler) retransmitSend(now time.Time, pkg *transport.Package) {
	peer := pkg.Dest.Peer()
	endpoints := s.trans.Friends().Endpoints(peer)
	pingBucket := s.rates.For(peer.Bytes())
	putBucket := s.rates.For(putSeed(peer.Bytes()))

	for _, op := range pkg.Payloads {
		s.retransmitPing(pingBucket, endpoints, peer, op)
		s.retransmitPut(now, putBucket, peer, op)
	}
}

func (s *Scheduler) retransmitPing(bucket *ratelimit.Bucket, endpoints []*net.UDPAddr, peer key.Peer, op *transport.OutPayload) {
	if len(endpoints) == 0 || op.Meta.PongsReceived > 0 {
		return
	}
	if !bucket.Allow(RateLimitPing) {
		metrics.RateLimited.WithLabelValues("ping").Inc()
		return
	}
	sent := false
	for _, addr := range endpoints {
		if err := s.sendPing(addr, op.Payload); err != nil {
			s.logger.Warnw("direct ping send failed", "peer", peer.String(), "error", err)
			continue
		}
		sent = true
	}
	if sent {
		bucket.Increment()
		op.RecordPingSent()
		metrics.PingsSent.Inc()
	}
}

func (s *Scheduler) retransmitPut(now time.Time, bucket *ratelimit.Bucket, peer key.Peer, op *transport.OutPayload) {
	threshold := float64(RateLimitGet)
	if !op.Meta.DHTPutInvokedAt.IsZero() {
		if now.Sub(op.Meta.DHTPutInvokedAt) < DefaultPutRetryInterval {
			return
		}
		threshold = RateLimitPutRetry
	}
	if !bucket.Allow(threshold) {
		metrics.RateLimited.WithLabelValues("put").Inc()
		return
	}

	value, err := wire.EncodeValue(op.Payload)
	if err != nil {
		s.logger.Warnw("dht value encode failed", "error", err)
		return
	}
	cb := globalShuttles.wrap(func([]byte) ([]byte, bool) { return value, true }, now)

	var seed [32]byte
	copy(seed[:], peer.Bytes())
	if err := s.primitive.Put(seed, op.Payload.Salt, cb); err != nil {
		s.logger.Warnw("dht put failed", "error", err)
		return
	}
	op.Meta.DHTPutInvokedAt = now
	bucket.Increment()
	metrics.DHTPuts.Inc()
}

func (s *Scheduler) sendPing(addr *net.UDPAddr, payload wire.MmPayload) error {
	raw, err := wire.Encode(wire.NewPingQuery(payload))
	if err != nil {
		return err
	}
	return s.primitive.SendUDP(addr.IP.String(), addr.Port, raw)
}

func putSeed(peer []byte) []byte {
	return append(append([]byte{}, peer...), "put"...)
}
