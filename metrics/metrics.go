// Package metrics exposes the Prometheus counters the Scheduler
// updates on every tick, in the shape of drand's metrics package:
// named registries and CounterVecs rather than ad-hoc globals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the private registry mm2p2p's metrics are registered
// against, so embedding applications can expose it on their own
// /metrics handler without colliding with other registrations.
var Registry = prometheus.NewRegistry()

var (
	// PingsSent counts direct-ping UDP packets transmitted.
	PingsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mm2p2p_pings_sent_total",
		Help: "Number of direct UDP ping packets sent.",
	})
	// PongsSent counts pong packets transmitted in reply to an inbound ping.
	PongsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mm2p2p_pongs_sent_total",
		Help: "Number of pong packets sent.",
	})
	// PongsReceived counts pongs observed for our own outbound pings.
	PongsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mm2p2p_pongs_received_total",
		Help: "Number of pongs received for packages we sent.",
	})
	// DHTPuts counts DHT mutable-item put submissions.
	DHTPuts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mm2p2p_dht_puts_total",
		Help: "Number of DHT put submissions.",
	})
	// DHTGets counts DHT mutable-item get submissions.
	DHTGets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mm2p2p_dht_gets_total",
		Help: "Number of DHT get submissions.",
	})
	// RateLimited counts actions skipped due to the rate limiter.
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mm2p2p_rate_limited_total",
		Help: "Number of actions skipped by the rate limiter, by kind.",
	}, []string{"kind"})
	// ReassembledPayloads counts completed reassemblies.
	ReassembledPayloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mm2p2p_reassembled_payloads_total",
		Help: "Number of subject-salts whose reassembly completed.",
	})
	// ProtocolErrors counts malformed/rejected inbound packets.
	ProtocolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mm2p2p_protocol_errors_total",
		Help: "Number of protocol errors encountered, by kind.",
	}, []string{"kind"})
)

//nolint:gochecknoinits // mirrors drand's metrics package registration pattern
func init() {
	Registry.MustRegister(
		PingsSent,
		PongsSent,
		PongsReceived,
		DHTPuts,
		DHTGets,
		RateLimited,
		ReassembledPayloads,
		ProtocolErrors,
	)
}
