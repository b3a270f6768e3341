package core

import (
	"net"

	"github.com/baselayer-io/KomodoPlatform/chunk"
	"github.com/baselayer-io/KomodoPlatform/dht"
	"github.com/baselayer-io/KomodoPlatform/key"
	"github.com/baselayer-io/KomodoPlatform/metrics"
	"github.com/baselayer-io/KomodoPlatform/wire"
)

// handleAlert dispatches a single drained DHT alert (spec §6/§4.5).
func (s *Scheduler) handleAlert(a dht.Alert) {
	switch a.Kind {
	case dht.AlertBootstrapComplete:
		s.logger.Infow("dht bootstrap complete")
	case dht.AlertListenSucceeded:
		s.logger.Infow("dht listen succeeded", "addr", a.Addr)
	case dht.AlertListenFailed:
		s.logger.Warnw("dht listen failed", "addr", a.Addr)
	case dht.AlertExternalIP:
		s.logger.Infow("dht external ip observed", "addr", a.Addr)
	case dht.AlertMutableItem:
		s.onMutableItem(a)
	case dht.AlertPacket:
		s.onPacket(a)
	}
}

// onMutableItem admits a DHT-fetched chunk into its GetsEntry (spec §4.4).
func (s *Scheduler) onMutableItem(a dht.Alert) {
	if !a.Auth {
		metrics.ProtocolErrors.WithLabelValues("unauthenticated_item").Inc()
		return
	}
	subject, index, err := chunk.SplitFullSalt(a.Salt)
	if err != nil {
		metrics.ProtocolErrors.WithLabelValues("bad_salt").Inc()
		return
	}
	entry, ok := s.getsReg.Lookup(subject)
	if !ok {
		return
	}

	payload, err := wire.DecodeValue(a.Data)
	if err != nil {
		metrics.ProtocolErrors.WithLabelValues("bad_value").Inc()
		return
	}

	body, numberOfChunks, err := chunk.Decode(payload.Chunk, index, payload.From, subject)
	if err != nil {
		metrics.ProtocolErrors.WithLabelValues("bad_chunk").Inc()
		return
	}
	if numberOfChunks != nil {
		entry.SetNumberOfChunks(int(*numberOfChunks))
	}
	if !entry.AdmitChunk(int(index), a.Seq, body) {
		metrics.ProtocolErrors.WithLabelValues("chunk_index_out_of_bounds").Inc()
		return
	}

	if entry.DerivedPubKey == nil {
		if p, err := key.FromBytes(payload.From); err == nil {
			entry.DerivedPubKey = &p
		}
	}
}

// onPacket handles an inbound direct UDP ping/pong (spec §4.5).
func (s *Scheduler) onPacket(a dht.Alert) {
	q, err := wire.Decode(a.Data)
	if err != nil {
		metrics.ProtocolErrors.WithLabelValues("bad_packet").Inc()
		return
	}
	payload := q.Payload()

	fromPeer, err := key.FromBytes(payload.From)
	if err != nil {
		metrics.ProtocolErrors.WithLabelValues("bad_peer").Inc()
		return
	}
	if ip := net.ParseIP(a.FromIP); ip != nil {
		s.trans.Friends().Observe(fromPeer, &net.UDPAddr{IP: ip, Port: a.FromPort})
	}

	if payload.IsPong() {
		for _, op := range s.trans.FindByPingID(payload.ID) {
			op.RecordPongReceived()
		}
		metrics.PongsReceived.Inc()
		return
	}

	s.replyPong(a, payload)

	if len(payload.Salt) == 0 || len(payload.Chunk) == 0 {
		return
	}
	subject, index, err := chunk.SplitFullSalt(payload.Salt)
	if err != nil {
		metrics.ProtocolErrors.WithLabelValues("bad_salt").Inc()
		return
	}
	body, numberOfChunks, err := chunk.Decode(payload.Chunk, index, payload.From, subject)
	if err != nil {
		metrics.ProtocolErrors.WithLabelValues("bad_chunk").Inc()
		return
	}

	entry := s.getsReg.GetOrCreate(subject)
	if entry.DerivedPubKey == nil {
		entry.DerivedPubKey = &fromPeer
	}
	if numberOfChunks != nil {
		entry.SetNumberOfChunks(int(*numberOfChunks))
	}
	// Piggybacked direct-ping chunks carry no DHT sequence number; the
	// payload id (monotonic per sending Scheduler) stands in as the
	// version a newer put/ping supersedes an older one with.
	if !entry.AdmitChunk(int(index), int64(payload.ID), body) {
		metrics.ProtocolErrors.WithLabelValues("chunk_index_out_of_bounds").Inc()
	}
}

func (s *Scheduler) replyPong(a dht.Alert, payload wire.MmPayload) {
	ip := net.ParseIP(a.FromIP)
	if ip == nil {
		return
	}
	addr := &net.UDPAddr{IP: ip, Port: a.FromPort}
	pong := wire.MmPayload{ID: payload.ID, From: s.localKey.Bytes(), Pong: 1}
	if err := s.sendPing(addr, pong); err != nil {
		s.logger.Warnw("pong send failed", "error", err)
		return
	}
	metrics.PongsSent.Inc()
}
