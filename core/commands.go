package core

import (
	"net"

	"github.com/baselayer-io/KomodoPlatform/chunk"
	"github.com/baselayer-io/KomodoPlatform/key"
	"github.com/baselayer-io/KomodoPlatform/transport"
)

// PutCmd asks the Scheduler to enqueue a new outbound package destined
// for a peer key (spec §4.1's "Put" command, driven by the public
// send() call).
type PutCmd struct {
	Dest    key.Peer
	Subject chunk.Salt
	Payload []byte
	Result  chan<- PutResult
}

// PutResult is delivered once the Scheduler has registered the
// package (or rejected the request outright).
type PutResult struct {
	Handle *transport.SendHandle
	Err    error
}

// PingCmd asks the Scheduler to enqueue a one-shot discovery ping
// (spec §4.1's "Ping" command, driven by investigate_peer()).
type PingCmd struct {
	Addr *net.UDPAddr
}
